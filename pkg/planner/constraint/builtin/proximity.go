package builtin

import (
	"fmt"

	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
)

// proximityToleranceKm 软约束的容忍距离，超出才记违反
const proximityToleranceKm = 2.0

// StartProximityConstraint 首站贴近出发点约束（软约束）
type StartProximityConstraint struct {
	*BaseConstraint
}

// NewStartProximityConstraint 创建首站贴近约束
func NewStartProximityConstraint() *StartProximityConstraint {
	return &StartProximityConstraint{
		BaseConstraint: NewBaseConstraint(
			"首站贴近约束",
			constraint.TypeStartProximity,
			constraint.CategorySoft,
			3,
		),
	}
}

// Evaluate 评估约束
func (c *StartProximityConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	if ctx.Prefs.Start == nil || !ctx.Prefs.Start.HasCoordinates() {
		return true, 0, nil
	}

	violations := make([]constraint.ViolationDetail, 0)
	penalty := 0

	for day, order := range ctx.DayOrders {
		if len(order) == 0 {
			continue
		}
		first := ctx.POI(order[0])
		if first == nil || !first.Location.HasCoordinates() {
			continue
		}
		dist := ctx.Prefs.Start.Distance(first.Location)
		if dist <= proximityToleranceKm {
			continue
		}
		p := c.Weight() * int(dist-proximityToleranceKm+1)
		penalty += p
		violations = append(violations, c.CreateViolation(first, day,
			fmt.Sprintf("第 %d 天首站 %s 距出发点 %.1f 公里", day+1, first.Name, dist), p))
	}

	return len(violations) == 0, penalty, violations
}

// EvaluateAppend 软约束不阻止追加
func (c *StartProximityConstraint) EvaluateAppend(ctx *constraint.Context, poi *model.POI, day int) (bool, int) {
	return true, 0
}

// EndProximityConstraint 末站贴近终点约束（软约束）
type EndProximityConstraint struct {
	*BaseConstraint
}

// NewEndProximityConstraint 创建末站贴近约束
func NewEndProximityConstraint() *EndProximityConstraint {
	return &EndProximityConstraint{
		BaseConstraint: NewBaseConstraint(
			"末站贴近约束",
			constraint.TypeEndProximity,
			constraint.CategorySoft,
			3,
		),
	}
}

// Evaluate 评估约束
func (c *EndProximityConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	if ctx.Prefs.End == nil || !ctx.Prefs.End.HasCoordinates() {
		return true, 0, nil
	}

	violations := make([]constraint.ViolationDetail, 0)
	penalty := 0

	for day, order := range ctx.DayOrders {
		if len(order) == 0 {
			continue
		}
		last := ctx.POI(order[len(order)-1])
		if last == nil || !last.Location.HasCoordinates() {
			continue
		}
		dist := ctx.Prefs.End.Distance(last.Location)
		if dist <= proximityToleranceKm {
			continue
		}
		p := c.Weight() * int(dist-proximityToleranceKm+1)
		penalty += p
		violations = append(violations, c.CreateViolation(last, day,
			fmt.Sprintf("第 %d 天末站 %s 距终点 %.1f 公里", day+1, last.Name, dist), p))
	}

	return len(violations) == 0, penalty, violations
}

// EvaluateAppend 软约束不阻止追加
func (c *EndProximityConstraint) EvaluateAppend(ctx *constraint.Context, poi *model.POI, day int) (bool, int) {
	return true, 0
}
