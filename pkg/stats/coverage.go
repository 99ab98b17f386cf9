package stats

import (
	"github.com/xingcheng/xingcheng/pkg/model"
)

// CoverageMetrics 安排覆盖率指标
type CoverageMetrics struct {
	// 整体覆盖率
	TotalPOIs     int     `json:"total_pois"`     // 请求的 POI 总数
	PlacedPOIs    int     `json:"placed_pois"`    // 已安排 POI 数
	RejectedPOIs  int     `json:"rejected_pois"`  // 落选 POI 数
	PlacementRate float64 `json:"placement_rate"` // 安排率 (%)

	// 按日期统计
	DailyUtilization map[string]DayUtilization `json:"daily_utilization"` // 每日时长利用率

	// 落选原因分布
	RejectionReasons map[string]int `json:"rejection_reasons"`

	// 问题识别
	OverBudgetDays  []string `json:"over_budget_days"` // 超出预算的日期
	UnderfilledDays []string `json:"underfilled_days"` // 利用率过低的日期
}

// DayUtilization 每日时长利用情况
type DayUtilization struct {
	Date            string  `json:"date"`
	VisitCount      int     `json:"visit_count"`
	UsedHours       float64 `json:"used_hours"`
	BudgetHours     float64 `json:"budget_hours"`
	UtilizationRate float64 `json:"utilization_rate"` // (%)
}

// CoverageAnalyzer 覆盖率分析器
type CoverageAnalyzer struct {
	underfillThreshold float64 // 利用率低于此值视为欠填
}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{
		underfillThreshold: 40.0,
	}
}

// Analyze 分析行程的安排覆盖率
// prefs 为 nil 时使用默认偏好的单日预算
func (c *CoverageAnalyzer) Analyze(tour *model.Tour, prefs *model.Preferences) *CoverageMetrics {
	metrics := &CoverageMetrics{
		DailyUtilization: make(map[string]DayUtilization),
		RejectionReasons: make(map[string]int),
		OverBudgetDays:   make([]string, 0),
		UnderfilledDays:  make([]string, 0),
	}
	if tour == nil {
		return metrics
	}
	if prefs == nil {
		prefs = model.DefaultPreferences()
	}
	budget := prefs.DayBudgetHours()

	placed := 0
	for _, day := range tour.Days {
		placed += len(day.Visits)

		utilization := 0.0
		if budget > 0 {
			utilization = day.TotalHours / budget * 100
		}
		metrics.DailyUtilization[day.Date] = DayUtilization{
			Date:            day.Date,
			VisitCount:      len(day.Visits),
			UsedHours:       day.TotalHours,
			BudgetHours:     budget,
			UtilizationRate: utilization,
		}

		if utilization > 100 {
			metrics.OverBudgetDays = append(metrics.OverBudgetDays, day.Date)
		} else if len(day.Visits) > 0 && utilization < c.underfillThreshold {
			metrics.UnderfilledDays = append(metrics.UnderfilledDays, day.Date)
		}
	}

	for _, r := range tour.Rejected {
		metrics.RejectionReasons[r.Reason]++
	}

	metrics.PlacedPOIs = placed
	metrics.RejectedPOIs = len(tour.Rejected)
	metrics.TotalPOIs = placed + len(tour.Rejected)
	if metrics.TotalPOIs > 0 {
		metrics.PlacementRate = float64(placed) / float64(metrics.TotalPOIs) * 100
	}

	return metrics
}
