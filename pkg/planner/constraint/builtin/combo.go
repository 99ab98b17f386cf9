package builtin

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
)

// ComboGroupConstraint 联票约束（硬约束）
// 同一联票组的成员必须安排在同一天且连续游览，要么全部安排要么全部不安排
type ComboGroupConstraint struct {
	*BaseConstraint
}

// NewComboGroupConstraint 创建联票约束
func NewComboGroupConstraint() *ComboGroupConstraint {
	return &ComboGroupConstraint{
		BaseConstraint: NewBaseConstraint(
			"联票约束",
			constraint.TypeComboGroup,
			constraint.CategoryHard,
			8,
		),
	}
}

// Evaluate 评估约束
func (c *ComboGroupConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	violations := make([]constraint.ViolationDetail, 0)
	penalty := 0

	groups := model.ComboGroupsOf(ctx.POIs)
	for groupID, members := range groups {
		placed := 0
		day := -1
		sameDay := true
		for _, poi := range members {
			d := ctx.PlacedDay(poi.ID)
			if d < 0 {
				continue
			}
			placed++
			if day < 0 {
				day = d
			} else if d != day {
				sameDay = false
			}
		}

		if placed == 0 {
			continue
		}

		if placed < len(members) {
			p := c.Weight() * 10
			penalty += p
			violations = append(violations, c.CreateViolation(nil, day,
				fmt.Sprintf("联票组 %s 只安排了部分成员（%d/%d）", groupID, placed, len(members)), p))
			continue
		}

		if !sameDay {
			p := c.Weight() * 10
			penalty += p
			violations = append(violations, c.CreateViolation(nil, day,
				fmt.Sprintf("联票组 %s 的成员分散在不同天", groupID), p))
			continue
		}

		if !contiguousInDay(ctx.DayOrders[day], members) {
			p := c.Weight() * 10
			penalty += p
			violations = append(violations, c.CreateViolation(nil, day,
				fmt.Sprintf("联票组 %s 的成员在当天不连续", groupID), p))
		}
	}

	return len(violations) == 0, penalty, violations
}

// EvaluateAppend 评估追加
// 追加发生在整组搭建过程中：已安排的同组成员必须正好占据同一天的队尾
func (c *ComboGroupConstraint) EvaluateAppend(ctx *constraint.Context, poi *model.POI, day int) (bool, int) {
	if poi.Combo == nil {
		return true, 0
	}

	memberSet := make(map[uuid.UUID]bool)
	for _, m := range model.ComboGroupsOf(ctx.POIs)[poi.Combo.GroupID] {
		memberSet[m.ID] = true
	}

	placed := 0
	for id := range memberSet {
		if ctx.PlacedDay(id) >= 0 {
			placed++
		}
	}
	if placed == 0 {
		return true, 0
	}

	order := ctx.DayOrders[day]
	if len(order) < placed {
		return false, c.Weight() * 10
	}
	for _, id := range order[len(order)-placed:] {
		if !memberSet[id] {
			return false, c.Weight() * 10
		}
	}
	return true, 0
}

// contiguousInDay 检查成员是否在当天顺序中占据连续区间
func contiguousInDay(order []uuid.UUID, members []*model.POI) bool {
	memberSet := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		memberSet[m.ID] = true
	}

	first := -1
	last := -1
	for i, id := range order {
		if memberSet[id] {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		return false
	}
	return last-first+1 == len(members)
}
