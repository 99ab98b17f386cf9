package stats

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/xingcheng/xingcheng/pkg/model"
)

func makeDay(index int, date string, visitCount int, totalHours, walkingKm float64) model.Day {
	visits := make([]model.Visit, visitCount)
	base, _ := time.Parse("2006-01-02", date)
	for i := range visits {
		visits[i] = model.Visit{
			POIID:   uuid.New(),
			POIName: "景点",
			Start:   base.Add(time.Duration(i) * time.Hour),
			End:     base.Add(time.Duration(i+1) * time.Hour),
		}
	}
	return model.Day{
		Index:          index,
		Date:           date,
		Visits:         visits,
		TotalHours:     totalHours,
		TotalWalkingKm: walkingKm,
	}
}

func TestBalanceAnalyzer_EvenDays(t *testing.T) {
	tour := &model.Tour{
		Days: []model.Day{
			makeDay(0, "2026-09-07", 3, 6.0, 3.0),
			makeDay(1, "2026-09-08", 3, 6.0, 3.0),
			makeDay(2, "2026-09-09", 3, 6.0, 3.0),
		},
	}

	metrics := NewBalanceAnalyzer().Analyze(tour)

	if metrics.HoursGini > 0.01 {
		t.Errorf("完全均衡的行程基尼系数应接近 0，实际 %f", metrics.HoursGini)
	}
	if math.Abs(metrics.AvgHoursPerDay-6.0) > 1e-9 {
		t.Errorf("日均时长应为 6.0，实际 %f", metrics.AvgHoursPerDay)
	}
	if metrics.OverallBalanceScore < 99 {
		t.Errorf("完全均衡评分应接近 100，实际 %f", metrics.OverallBalanceScore)
	}
}

func TestBalanceAnalyzer_SkewedDays(t *testing.T) {
	even := &model.Tour{
		Days: []model.Day{
			makeDay(0, "2026-09-07", 3, 6.0, 3.0),
			makeDay(1, "2026-09-08", 3, 6.0, 3.0),
		},
	}
	skewed := &model.Tour{
		Days: []model.Day{
			makeDay(0, "2026-09-07", 6, 11.0, 8.0),
			makeDay(1, "2026-09-08", 1, 1.0, 0.5),
		},
	}

	analyzer := NewBalanceAnalyzer()
	evenMetrics := analyzer.Analyze(even)
	skewedMetrics := analyzer.Analyze(skewed)

	if skewedMetrics.HoursGini <= evenMetrics.HoursGini {
		t.Error("不均衡行程的基尼系数应更高")
	}
	if skewedMetrics.OverallBalanceScore >= evenMetrics.OverallBalanceScore {
		t.Error("不均衡行程的综合评分应更低")
	}
	if skewedMetrics.MaxHours != 11.0 || skewedMetrics.MinHours != 1.0 {
		t.Errorf("极值错误: max=%f min=%f", skewedMetrics.MaxHours, skewedMetrics.MinHours)
	}
	if math.Abs(skewedMetrics.HoursRange-10.0) > 1e-9 {
		t.Errorf("极差应为 10.0，实际 %f", skewedMetrics.HoursRange)
	}
}

func TestBalanceAnalyzer_DeviationPerDay(t *testing.T) {
	tour := &model.Tour{
		Days: []model.Day{
			makeDay(0, "2026-09-07", 2, 4.0, 2.0),
			makeDay(1, "2026-09-08", 4, 8.0, 4.0),
		},
	}

	metrics := NewBalanceAnalyzer().Analyze(tour)

	// 日均 6 小时，第一天偏差 -33.3%，第二天 +33.3%
	if len(metrics.DayStats) != 2 {
		t.Fatalf("应有两天统计，实际 %d", len(metrics.DayStats))
	}
	if metrics.DayStats[0].Deviation >= 0 {
		t.Errorf("轻的一天偏差应为负，实际 %f", metrics.DayStats[0].Deviation)
	}
	if metrics.DayStats[1].Deviation <= 0 {
		t.Errorf("重的一天偏差应为正，实际 %f", metrics.DayStats[1].Deviation)
	}
}

func TestBalanceAnalyzer_EmptyTour(t *testing.T) {
	metrics := NewBalanceAnalyzer().Analyze(nil)
	if metrics.OverallBalanceScore != 100 {
		t.Errorf("空行程评分应为 100，实际 %f", metrics.OverallBalanceScore)
	}

	metrics = NewBalanceAnalyzer().Analyze(&model.Tour{})
	if metrics.OverallBalanceScore != 100 {
		t.Errorf("无天数行程评分应为 100，实际 %f", metrics.OverallBalanceScore)
	}
}

func TestBalanceAnalyzer_CompareTours(t *testing.T) {
	better := &model.Tour{
		Days: []model.Day{
			makeDay(0, "2026-09-07", 3, 6.0, 3.0),
			makeDay(1, "2026-09-08", 3, 6.0, 3.0),
		},
	}
	worse := &model.Tour{
		Days: []model.Day{
			makeDay(0, "2026-09-07", 5, 10.0, 7.0),
			makeDay(1, "2026-09-08", 1, 2.0, 1.0),
		},
	}

	diff := NewBalanceAnalyzer().CompareTours(better, worse)
	if diff["overall_score_diff"] >= 0 {
		t.Errorf("方案2更不均衡，评分差应为负，实际 %f", diff["overall_score_diff"])
	}
	if diff["hours_gini_diff"] <= 0 {
		t.Errorf("方案2的基尼系数应更高，实际差值 %f", diff["hours_gini_diff"])
	}
}

func TestGini_Bounds(t *testing.T) {
	if g := gini(nil); g != 0 {
		t.Errorf("空序列基尼系数应为 0，实际 %f", g)
	}
	if g := gini([]float64{0, 0, 0}); g != 0 {
		t.Errorf("全零序列基尼系数应为 0，实际 %f", g)
	}
	g := gini([]float64{0, 0, 0, 12})
	if g <= 0.5 || g > 1 {
		t.Errorf("高度集中的序列基尼系数应较高且不超过 1，实际 %f", g)
	}
}
