package builtin

import (
	"fmt"

	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
)

// PrecedenceConstraint 先后顺序约束（硬约束）
// 声明了前置的 POI 必须在其全部前置被游览之后才能游览
type PrecedenceConstraint struct {
	*BaseConstraint
}

// NewPrecedenceConstraint 创建先后顺序约束
func NewPrecedenceConstraint() *PrecedenceConstraint {
	return &PrecedenceConstraint{
		BaseConstraint: NewBaseConstraint(
			"先后顺序约束",
			constraint.TypePrecedence,
			constraint.CategoryHard,
			8,
		),
	}
}

// Evaluate 评估约束
func (c *PrecedenceConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	violations := make([]constraint.ViolationDetail, 0)
	penalty := 0

	for _, poi := range ctx.POIs {
		if poi.Precedence == nil {
			continue
		}
		seq := ctx.GlobalSequence(poi.ID)
		if seq < 0 {
			continue
		}

		for _, prevID := range poi.Precedence.After {
			prevSeq := ctx.GlobalSequence(prevID)
			if prevSeq >= 0 && prevSeq < seq {
				continue
			}

			prev := ctx.POI(prevID)
			name := prevID.String()
			if prev != nil {
				name = prev.Name
			}
			p := c.Weight() * 10
			penalty += p
			violations = append(violations, c.CreateViolation(poi, ctx.PlacedDay(poi.ID),
				fmt.Sprintf("%s 必须在 %s 之后游览", poi.Name, name), p))
		}
	}

	return len(violations) == 0, penalty, violations
}

// EvaluateAppend 评估追加
// 追加位置是当前全局末尾，只需检查全部前置都已安排
func (c *PrecedenceConstraint) EvaluateAppend(ctx *constraint.Context, poi *model.POI, day int) (bool, int) {
	if poi.Precedence == nil {
		return true, 0
	}

	for _, prevID := range poi.Precedence.After {
		d := ctx.PlacedDay(prevID)
		if d < 0 || d > day {
			return false, c.Weight() * 10
		}
	}
	return true, 0
}
