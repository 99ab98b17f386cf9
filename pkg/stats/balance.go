// Package stats 提供行程统计分析功能
package stats

import (
	"math"
	"sort"

	"github.com/xingcheng/xingcheng/pkg/model"
)

// BalanceMetrics 日负载均衡指标
type BalanceMetrics struct {
	// 时长均衡性
	HoursGini      float64 `json:"hours_gini"`        // 日时长基尼系数 (0=完全均衡, 1=完全不均衡)
	HoursVariance  float64 `json:"hours_variance"`    // 日时长方差
	HoursStdDev    float64 `json:"hours_std_dev"`     // 日时长标准差
	AvgHoursPerDay float64 `json:"avg_hours_per_day"` // 日均行程时长
	MaxHours       float64 `json:"max_hours"`         // 最重一天时长
	MinHours       float64 `json:"min_hours"`         // 最轻一天时长
	HoursRange     float64 `json:"hours_range"`       // 日时长极差

	// 步行均衡性
	WalkingGini  float64 `json:"walking_gini"`   // 步行距离基尼系数
	AvgWalkingKm float64 `json:"avg_walking_km"` // 日均步行距离

	// 按天统计
	DayStats []DayStat `json:"day_stats"`

	// 综合评分
	OverallBalanceScore float64 `json:"overall_balance_score"` // 综合均衡评分 (0-100)
}

// DayStat 单日统计
type DayStat struct {
	Index      int     `json:"index"`
	Date       string  `json:"date"`
	VisitCount int     `json:"visit_count"`
	TotalHours float64 `json:"total_hours"`
	WalkingKm  float64 `json:"walking_km"`
	Deviation  float64 `json:"deviation"` // 与日均时长的偏差百分比
}

// BalanceAnalyzer 均衡性分析器
type BalanceAnalyzer struct{}

// NewBalanceAnalyzer 创建均衡性分析器
func NewBalanceAnalyzer() *BalanceAnalyzer {
	return &BalanceAnalyzer{}
}

// Analyze 分析行程的日负载均衡性
func (b *BalanceAnalyzer) Analyze(tour *model.Tour) *BalanceMetrics {
	if tour == nil || len(tour.Days) == 0 {
		return &BalanceMetrics{
			DayStats:            make([]DayStat, 0),
			OverallBalanceScore: 100,
		}
	}

	dayStats := make([]DayStat, len(tour.Days))
	hours := make([]float64, len(tour.Days))
	walking := make([]float64, len(tour.Days))

	for i, day := range tour.Days {
		dayStats[i] = DayStat{
			Index:      day.Index,
			Date:       day.Date,
			VisitCount: len(day.Visits),
			TotalHours: day.TotalHours,
			WalkingKm:  day.TotalWalkingKm,
		}
		hours[i] = day.TotalHours
		walking[i] = day.TotalWalkingKm
	}

	avgHours := mean(hours)
	variance := varianceOf(hours, avgHours)
	stdDev := math.Sqrt(variance)
	maxHours, minHours := rangeOf(hours)

	for i := range dayStats {
		if avgHours > 0 {
			dayStats[i].Deviation = (dayStats[i].TotalHours - avgHours) / avgHours * 100
		}
	}

	hoursGini := gini(hours)
	walkingGini := gini(walking)

	overallScore := b.calculateOverallScore(hoursGini, walkingGini, stdDev, avgHours)

	return &BalanceMetrics{
		HoursGini:           hoursGini,
		HoursVariance:       variance,
		HoursStdDev:         stdDev,
		AvgHoursPerDay:      avgHours,
		MaxHours:            maxHours,
		MinHours:            minHours,
		HoursRange:          maxHours - minHours,
		WalkingGini:         walkingGini,
		AvgWalkingKm:        mean(walking),
		DayStats:            dayStats,
		OverallBalanceScore: overallScore,
	}
}

// calculateOverallScore 计算综合均衡评分
func (b *BalanceAnalyzer) calculateOverallScore(hoursGini, walkingGini, stdDev, avgHours float64) float64 {
	// 各项权重
	const (
		hoursWeight   = 0.5
		walkingWeight = 0.3
		stdDevWeight  = 0.2
	)

	// 基尼系数转换为分数 (0=100分, 1=0分)
	hoursScore := (1 - hoursGini) * 100
	walkingScore := (1 - walkingGini) * 100

	// 标准差评分 (变异系数越低分数越高)
	cvScore := 100.0
	if avgHours > 0 {
		cv := stdDev / avgHours
		cvScore = math.Max(0, 100-cv*200)
	}

	score := hoursWeight*hoursScore +
		walkingWeight*walkingScore +
		stdDevWeight*cvScore

	return math.Max(0, math.Min(100, score))
}

// CompareTours 比较两个行程方案的均衡性
func (b *BalanceAnalyzer) CompareTours(tour1, tour2 *model.Tour) map[string]float64 {
	metrics1 := b.Analyze(tour1)
	metrics2 := b.Analyze(tour2)

	return map[string]float64{
		"hours_gini_diff":     metrics2.HoursGini - metrics1.HoursGini,
		"walking_gini_diff":   metrics2.WalkingGini - metrics1.WalkingGini,
		"overall_score_diff":  metrics2.OverallBalanceScore - metrics1.OverallBalanceScore,
		"tour1_overall_score": metrics1.OverallBalanceScore,
		"tour2_overall_score": metrics2.OverallBalanceScore,
	}
}

// mean 计算平均值
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// varianceOf 计算方差
func varianceOf(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

// rangeOf 计算极值
func rangeOf(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// gini 计算基尼系数
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	g := 0.0
	for i, v := range sorted {
		g += (2*float64(i+1) - float64(n) - 1) * v
	}

	g = g / (float64(n) * sum)
	return math.Max(0, math.Min(1, g))
}
