package builtin

import (
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
)

// RegisterDefaults 注册默认约束集
func RegisterDefaults(m *constraint.Manager) {
	// 硬约束
	m.Register(NewOpeningHoursConstraint())
	m.Register(NewBookingWindowConstraint())
	m.Register(NewDayBudgetConstraint())
	m.Register(NewComboGroupConstraint())
	m.Register(NewPrecedenceConstraint())
	m.Register(NewCoherenceOrderConstraint())

	// 软约束
	m.Register(NewStartProximityConstraint())
	m.Register(NewEndProximityConstraint())
}

// NewDefaultManager 创建带默认约束集的管理器
func NewDefaultManager() *constraint.Manager {
	m := constraint.NewManager()
	RegisterDefaults(m)
	return m
}
