// Package constraints 约束系统
package constraints

// ConstraintParam 约束参数定义
type ConstraintParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, float, string, bool, array
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Min         string `json:"min,omitempty"`
	Max         string `json:"max,omitempty"`
}

// ConstraintDefinition 约束定义
type ConstraintDefinition struct {
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Type        string            `json:"type"`     // hard 硬约束, soft 软约束
	Category    string            `json:"category"` // 分类
	Description string            `json:"description"`
	Capability  string            `json:"capability,omitempty"` // 依赖的 POI 能力记录，空表示始终生效
	Params      []ConstraintParam `json:"params"`
}

// LibraryResponse 约束库响应
type LibraryResponse struct {
	Library []ConstraintDefinition `json:"library"`
}

// GetLibrary 获取完整的约束库
func GetLibrary() []ConstraintDefinition {
	return []ConstraintDefinition{
		// =====================================================
		// 硬约束
		// =====================================================
		{
			Name:        "opening_hours",
			DisplayName: "开放时间",
			Type:        "hard",
			Category:    "时间限制",
			Description: "POI 有开放时间记录时，到达时刻必须落在当天的开放时段内；当天全天闭馆则不能安排在该天。",
			Capability:  "opening_hours",
			Params:      []ConstraintParam{},
		},
		{
			Name:        "booking_window",
			DisplayName: "预约时段",
			Type:        "hard",
			Category:    "时间限制",
			Description: "需要预订的 POI 必须安排在指定日期的预约时间窗口内到达。",
			Capability:  "booking",
			Params:      []ConstraintParam{},
		},
		{
			Name:        "combo_group",
			DisplayName: "联票同日连续",
			Type:        "hard",
			Category:    "成组安排",
			Description: "同一联票组的 POI 必须安排在同一天且相邻连续访问，不可拆散或跨天。",
			Capability:  "combo",
			Params:      []ConstraintParam{},
		},
		{
			Name:        "precedence",
			DisplayName: "先后顺序",
			Type:        "hard",
			Category:    "顺序约束",
			Description: "声明了前置关系的 POI 必须在其前置 POI 之后访问，可以跨天。",
			Capability:  "precedence",
			Params:      []ConstraintParam{},
		},
		{
			Name:        "day_budget",
			DisplayName: "每日时间预算",
			Type:        "hard",
			Category:    "预算限制",
			Description: "每天的游览与步行总时长不得超过节奏档位决定的预算，超出的 POI 落选并记录原因。",
			Params: []ConstraintParam{
				{Name: "pace", Type: "string", Description: "节奏档位", Default: "normal"},
				{Name: "relaxed_hours", Type: "float", Description: "悠闲档预算(小时)", Default: "6.0"},
				{Name: "normal_hours", Type: "float", Description: "正常档预算(小时)", Default: "7.5"},
				{Name: "packed_hours", Type: "float", Description: "紧凑档预算(小时)", Default: "9.0"},
			},
		},

		// =====================================================
		// 软约束
		// =====================================================
		{
			Name:        "coherence_order",
			DisplayName: "高连贯对顺序",
			Type:        "soft",
			Category:    "叙事体验",
			Description: "连贯性得分高于阈值的 POI 对尽量安排在同一天相邻访问，保持叙事连贯。",
			Params: []ConstraintParam{
				{Name: "threshold", Type: "float", Description: "高连贯阈值", Default: "0.7", Min: "0", Max: "1"},
				{Name: "weight", Type: "int", Description: "优化权重", Default: "60", Min: "0", Max: "100"},
			},
		},
		{
			Name:        "start_proximity",
			DisplayName: "首站贴近出发点",
			Type:        "soft",
			Category:    "地理优化",
			Description: "偏好中给出出发点时，每天的首站尽量选在出发点附近，减少早间赶路。",
			Params: []ConstraintParam{
				{Name: "weight", Type: "int", Description: "优化权重", Default: "40", Min: "0", Max: "100"},
			},
		},
		{
			Name:        "end_proximity",
			DisplayName: "末站贴近终点",
			Type:        "soft",
			Category:    "地理优化",
			Description: "偏好中给出终点时，每天的末站尽量选在终点附近，方便收尾返程。",
			Params: []ConstraintParam{
				{Name: "weight", Type: "int", Description: "优化权重", Default: "40", Min: "0", Max: "100"},
			},
		},
	}
}
