package builtin

import (
	"fmt"

	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
)

// OpeningHoursConstraint 开放时间约束（硬约束）
// 到达后等待开放属于正常情况，到达时当天已无可用开放时段才算违反
type OpeningHoursConstraint struct {
	*BaseConstraint
}

// NewOpeningHoursConstraint 创建开放时间约束
func NewOpeningHoursConstraint() *OpeningHoursConstraint {
	return &OpeningHoursConstraint{
		BaseConstraint: NewBaseConstraint(
			"开放时间约束",
			constraint.TypeOpeningHours,
			constraint.CategoryHard,
			10,
		),
	}
}

// Evaluate 评估约束
func (c *OpeningHoursConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	violations := make([]constraint.ViolationDetail, 0)
	penalty := 0

	for day := range ctx.DayOrders {
		steps, _, _ := ctx.SimulateDay(day)
		for _, step := range steps {
			if step.Open {
				continue
			}
			poi := ctx.POI(step.POIID)
			p := c.Weight() * 10
			penalty += p
			violations = append(violations, c.CreateViolation(poi, day,
				fmt.Sprintf("到达 %s 时刻 %s 当天已无开放时段", poi.Name, step.Arrival), p))
		}
	}

	return len(violations) == 0, penalty, violations
}

// EvaluateAppend 评估追加
func (c *OpeningHoursConstraint) EvaluateAppend(ctx *constraint.Context, poi *model.POI, day int) (bool, int) {
	candidate := withAppended(ctx, poi, day)
	steps, _, _ := candidate.SimulateDay(day)
	if len(steps) == 0 {
		return true, 0
	}

	last := steps[len(steps)-1]
	if last.POIID == poi.ID && !last.Open {
		return false, c.Weight() * 10
	}
	return true, 0
}
