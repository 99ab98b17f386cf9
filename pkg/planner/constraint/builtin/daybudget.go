package builtin

import (
	"fmt"

	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
)

// budgetEpsilon 浮点比较容差
const budgetEpsilon = 1e-9

// DayBudgetConstraint 每日时间预算约束（硬约束）
// 每天的游览加步行总时长不得超过节奏对应的预算，等待开放不计入
type DayBudgetConstraint struct {
	*BaseConstraint
}

// NewDayBudgetConstraint 创建每日时间预算约束
func NewDayBudgetConstraint() *DayBudgetConstraint {
	return &DayBudgetConstraint{
		BaseConstraint: NewBaseConstraint(
			"每日预算约束",
			constraint.TypeDayBudget,
			constraint.CategoryHard,
			9,
		),
	}
}

// Evaluate 评估约束
func (c *DayBudgetConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	violations := make([]constraint.ViolationDetail, 0)
	penalty := 0
	budget := ctx.Prefs.DayBudgetHours()

	for day := range ctx.DayOrders {
		hours, _ := ctx.DayTotals(day)
		if hours <= budget+budgetEpsilon {
			continue
		}
		p := c.Weight() * 10
		penalty += p
		violations = append(violations, c.CreateViolation(nil, day,
			fmt.Sprintf("第 %d 天总时长 %.1f 小时超出预算 %.1f 小时", day+1, hours, budget), p))
	}

	return len(violations) == 0, penalty, violations
}

// EvaluateAppend 评估追加
func (c *DayBudgetConstraint) EvaluateAppend(ctx *constraint.Context, poi *model.POI, day int) (bool, int) {
	candidate := withAppended(ctx, poi, day)
	hours, _ := candidate.DayTotals(day)
	if hours > ctx.Prefs.DayBudgetHours()+budgetEpsilon {
		return false, c.Weight() * 10
	}
	return true, 0
}
