package builtin

import (
	"fmt"

	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
)

// BookingWindowConstraint 预约时段约束（硬约束）
// 需预约的 POI 实际开始游览时刻必须落在某个预约窗口内
type BookingWindowConstraint struct {
	*BaseConstraint
}

// NewBookingWindowConstraint 创建预约时段约束
func NewBookingWindowConstraint() *BookingWindowConstraint {
	return &BookingWindowConstraint{
		BaseConstraint: NewBaseConstraint(
			"预约时段约束",
			constraint.TypeBookingWindow,
			constraint.CategoryHard,
			9,
		),
	}
}

// Evaluate 评估约束
func (c *BookingWindowConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	violations := make([]constraint.ViolationDetail, 0)
	penalty := 0

	for day := range ctx.DayOrders {
		steps, _, _ := ctx.SimulateDay(day)
		for _, step := range steps {
			poi := ctx.POI(step.POIID)
			if poi.Booking == nil || !poi.Booking.Required {
				continue
			}
			if poi.Booking.InWindow(step.Start) {
				continue
			}
			p := c.Weight() * 10
			penalty += p
			violations = append(violations, c.CreateViolation(poi, day,
				fmt.Sprintf("%s 开始时刻 %s 不在预约窗口内", poi.Name, step.Start), p))
		}
	}

	return len(violations) == 0, penalty, violations
}

// EvaluateAppend 评估追加
func (c *BookingWindowConstraint) EvaluateAppend(ctx *constraint.Context, poi *model.POI, day int) (bool, int) {
	if poi.Booking == nil || !poi.Booking.Required {
		return true, 0
	}

	candidate := withAppended(ctx, poi, day)
	steps, _, _ := candidate.SimulateDay(day)
	if len(steps) == 0 {
		return true, 0
	}

	last := steps[len(steps)-1]
	if last.POIID == poi.ID && !poi.Booking.InWindow(last.Start) {
		return false, c.Weight() * 10
	}
	return true, 0
}
