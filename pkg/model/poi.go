// Package model 定义行程规划引擎的核心数据模型
package model

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// POI 兴趣点（Point of Interest）
// 由元数据采集层补全后输入规划引擎
type POI struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Location   Location  `json:"location"`
	VisitHours float64   `json:"visit_hours"` // 预计游览时长（小时）
	Priority   int       `json:"priority"`    // 优先级档位，越大越重要

	// 叙事元数据（用于连贯性评分）
	Era    string   `json:"era,omitempty"`    // 时代/年代标签
	Topics []string `json:"topics,omitempty"` // 主题标签

	// 可选能力记录：存在即生效
	OpeningHours *OpeningHours `json:"opening_hours,omitempty"`
	Booking      *Booking      `json:"booking,omitempty"`
	Combo        *ComboGroup   `json:"combo,omitempty"`
	Precedence   *Precedence   `json:"precedence,omitempty"`
}

// OpeningHours 开放时间能力
// 按星期几（0=周日）记录开放时段；某天没有任何时段即当天闭馆
type OpeningHours struct {
	Periods map[int][]ClockPeriod `json:"periods"`
}

// IsOpenAt 检查某星期几的某时刻是否在开放时段内
func (o *OpeningHours) IsOpenAt(weekday int, clock string) bool {
	for _, p := range o.Periods[weekday] {
		if p.Contains(clock) {
			return true
		}
	}
	return false
}

// IsClosedAllDay 检查某星期几是否全天闭馆
func (o *OpeningHours) IsClosedAllDay(weekday int) bool {
	return len(o.Periods[weekday]) == 0
}

// FirstOpenAt 返回某星期几不早于 clock 的最近开放时刻
// 不存在时返回空字符串
func (o *OpeningHours) FirstOpenAt(weekday int, clock string) string {
	best := ""
	for _, p := range o.Periods[weekday] {
		if p.Contains(clock) {
			return clock
		}
		if p.Open > clock && (best == "" || p.Open < best) {
			best = p.Open
		}
	}
	return best
}

// Booking 预约能力
// Required 时仅允许在偏好时段内到达
type Booking struct {
	Required bool          `json:"required"`
	Windows  []ClockPeriod `json:"windows,omitempty"` // 偏好到达时段
}

// InWindow 检查到达时刻是否落在偏好时段内
// 未配置偏好时段时视为任意时刻可达
func (b *Booking) InWindow(clock string) bool {
	if len(b.Windows) == 0 {
		return true
	}
	for _, w := range b.Windows {
		if w.Contains(clock) {
			return true
		}
	}
	return false
}

// ComboGroup 联票分组能力
// 同组 POI 必须安排在同一天且位置连续
type ComboGroup struct {
	GroupID string `json:"group_id"`
}

// Precedence 先后顺序能力
// After 中列出的 POI 必须安排在本 POI 之前
type Precedence struct {
	After []uuid.UUID `json:"after"`
}

// HasHardCapabilities 检查 POI 是否携带硬约束能力
// 用于自动模式下判断是否需要精确求解器
func (p *POI) HasHardCapabilities() bool {
	if p.Booking != nil && p.Booking.Required {
		return true
	}
	if p.Combo != nil {
		return true
	}
	if p.Precedence != nil && len(p.Precedence.After) > 0 {
		return true
	}
	return false
}

// String 返回 POI 的简短描述
func (p *POI) String() string {
	return fmt.Sprintf("%s(%s)", p.Name, p.ID.String()[:8])
}

// POIsByID 构建 POI 索引
func POIsByID(pois []*POI) map[uuid.UUID]*POI {
	m := make(map[uuid.UUID]*POI, len(pois))
	for _, p := range pois {
		m[p.ID] = p
	}
	return m
}

// ComboGroupsOf 按联票分组归类 POI，返回分组ID到成员的映射
// 成员按名称排序以保证确定性
func ComboGroupsOf(pois []*POI) map[string][]*POI {
	groups := make(map[string][]*POI)
	for _, p := range pois {
		if p.Combo == nil || p.Combo.GroupID == "" {
			continue
		}
		groups[p.Combo.GroupID] = append(groups[p.Combo.GroupID], p)
	}
	for _, members := range groups {
		sortPOIsByName(members)
	}
	return groups
}

// sortPOIsByName 按名称、ID排序（确定性平局处理）
func sortPOIsByName(pois []*POI) {
	sort.Slice(pois, func(i, j int) bool {
		return LessPOI(pois[i], pois[j])
	})
}

// LessPOI POI 的确定性排序：先按名称，再按ID
func LessPOI(a, b *POI) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID.String() < b.ID.String()
}
