package builtin

import (
	"fmt"

	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
)

// CoherenceOrderThreshold 高连贯对的判定阈值
const CoherenceOrderThreshold = 0.7

// CoherenceOrderConstraint 高连贯对顺序约束（硬约束）
// 连贯度达到阈值的 POI 对必须按输入顺序游览
type CoherenceOrderConstraint struct {
	*BaseConstraint
}

// NewCoherenceOrderConstraint 创建高连贯对顺序约束
func NewCoherenceOrderConstraint() *CoherenceOrderConstraint {
	return &CoherenceOrderConstraint{
		BaseConstraint: NewBaseConstraint(
			"连贯顺序约束",
			constraint.TypeCoherenceOrder,
			constraint.CategoryHard,
			7,
		),
	}
}

// Evaluate 评估约束
func (c *CoherenceOrderConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	violations := make([]constraint.ViolationDetail, 0)
	penalty := 0

	for i, a := range ctx.POIs {
		seqA := ctx.GlobalSequence(a.ID)
		if seqA < 0 {
			continue
		}
		for _, b := range ctx.POIs[i+1:] {
			if ctx.Matrix.Coherence(a.ID, b.ID) < CoherenceOrderThreshold {
				continue
			}
			seqB := ctx.GlobalSequence(b.ID)
			if seqB < 0 || seqA < seqB {
				continue
			}
			p := c.Weight() * 10
			penalty += p
			violations = append(violations, c.CreateViolation(b, ctx.PlacedDay(b.ID),
				fmt.Sprintf("%s 与 %s 高度连贯，应在 %s 之后游览", b.Name, a.Name, a.Name), p))
		}
	}

	return len(violations) == 0, penalty, violations
}

// EvaluateAppend 评估追加
// 追加位置是当前全局末尾，只需检查输入顺序靠后的高连贯伙伴尚未安排
func (c *CoherenceOrderConstraint) EvaluateAppend(ctx *constraint.Context, poi *model.POI, day int) (bool, int) {
	idx := inputIndex(ctx, poi.ID)
	if idx < 0 {
		return true, 0
	}

	for _, b := range ctx.POIs[idx+1:] {
		if ctx.Matrix.Coherence(poi.ID, b.ID) < CoherenceOrderThreshold {
			continue
		}
		if ctx.GlobalSequence(b.ID) >= 0 {
			return false, c.Weight() * 10
		}
	}
	return true, 0
}
