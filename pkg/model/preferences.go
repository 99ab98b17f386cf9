// Package model 定义行程规划引擎的核心数据模型
package model

// Pace 节奏偏好，决定每日时间预算
type Pace string

const (
	PaceRelaxed Pace = "relaxed" // 轻松
	PaceNormal  Pace = "normal"  // 正常
	PacePacked  Pace = "packed"  // 紧凑
)

// HoursPerDay 返回每日时间预算（游览+步行，小时）
func (p Pace) HoursPerDay() float64 {
	switch p {
	case PaceRelaxed:
		return 6.0
	case PacePacked:
		return 9.0
	default:
		return 7.5
	}
}

// WalkingBufferHours 返回每日步行缓冲（小时）
// 配置了固定起止点时，为返程步行预留的富余时间
func (p Pace) WalkingBufferHours() float64 {
	switch p {
	case PaceRelaxed:
		return 1.5
	case PacePacked:
		return 0.5
	default:
		return 1.0
	}
}

// Preferences 优化偏好
type Preferences struct {
	DistanceWeight  float64 `json:"distance_weight"`
	CoherenceWeight float64 `json:"coherence_weight"`
	PenaltyWeight   float64 `json:"constraint_penalty_weight"`

	Pace Pace `json:"pace"`

	// 固定起止位置（可选；可能是坐标，也可能是无法解析的地名）
	Start *Location `json:"start,omitempty"`
	End   *Location `json:"end,omitempty"`

	// 每日出发时刻，"15:04" 格式
	DayStart string `json:"day_start,omitempty"`

	// WalkingToleranceKm 步行容忍度（公里）
	// 预留字段：当前收集但不参与计算，等待聚类策略定义后启用
	WalkingToleranceKm float64 `json:"walking_tolerance_km,omitempty"`
}

// DefaultPreferences 返回默认偏好
func DefaultPreferences() *Preferences {
	return &Preferences{
		DistanceWeight:  1.0,
		CoherenceWeight: 1.0,
		PenaltyWeight:   1.0,
		Pace:            PaceNormal,
		DayStart:        "09:00",
	}
}

// Normalize 填充零值字段为默认值
func (p *Preferences) Normalize() {
	if p.DistanceWeight == 0 && p.CoherenceWeight == 0 {
		p.DistanceWeight = 1.0
		p.CoherenceWeight = 1.0
	}
	if p.PenaltyWeight == 0 {
		p.PenaltyWeight = 1.0
	}
	if p.Pace == "" {
		p.Pace = PaceNormal
	}
	if p.DayStart == "" {
		p.DayStart = "09:00"
	}
}

// DayBudgetHours 返回每日时间预算
// 配置了固定起止位置时扣除步行缓冲，首末段步行不计入行程内步行时长
func (p *Preferences) DayBudgetHours() float64 {
	budget := p.Pace.HoursPerDay()
	if p.Start != nil || p.End != nil {
		budget -= p.Pace.WalkingBufferHours()
	}
	return budget
}
