package stats

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/xingcheng/xingcheng/pkg/model"
)

func TestCoverageAnalyzer_PlacementRate(t *testing.T) {
	tour := &model.Tour{
		Days: []model.Day{
			makeDay(0, "2026-09-07", 3, 6.0, 3.0),
			makeDay(1, "2026-09-08", 2, 5.0, 2.0),
		},
		Rejected: []model.RejectedPOI{
			{POIID: uuid.New(), Name: "甲", Reason: "超出单日预算"},
		},
	}

	metrics := NewCoverageAnalyzer().Analyze(tour, model.DefaultPreferences())

	if metrics.TotalPOIs != 6 {
		t.Errorf("POI 总数应为 6，实际 %d", metrics.TotalPOIs)
	}
	if metrics.PlacedPOIs != 5 || metrics.RejectedPOIs != 1 {
		t.Errorf("安排/落选计数错误: %d/%d", metrics.PlacedPOIs, metrics.RejectedPOIs)
	}
	want := 5.0 / 6.0 * 100
	if math.Abs(metrics.PlacementRate-want) > 1e-9 {
		t.Errorf("安排率应为 %f，实际 %f", want, metrics.PlacementRate)
	}
	if metrics.RejectionReasons["超出单日预算"] != 1 {
		t.Error("落选原因分布应包含超出单日预算")
	}
}

func TestCoverageAnalyzer_DailyUtilization(t *testing.T) {
	// 默认 normal 节奏预算为 7.5 小时
	tour := &model.Tour{
		Days: []model.Day{
			makeDay(0, "2026-09-07", 3, 6.0, 3.0),  // 80%
			makeDay(1, "2026-09-08", 1, 1.5, 0.5),  // 20%，欠填
			makeDay(2, "2026-09-09", 5, 9.0, 4.0),  // 120%，超预算
			makeDay(3, "2026-09-10", 0, 0, 0),      // 空天不算欠填
		},
	}

	metrics := NewCoverageAnalyzer().Analyze(tour, model.DefaultPreferences())

	day0 := metrics.DailyUtilization["2026-09-07"]
	if math.Abs(day0.UtilizationRate-80.0) > 1e-9 {
		t.Errorf("首日利用率应为 80%%，实际 %f", day0.UtilizationRate)
	}
	if day0.BudgetHours != 7.5 {
		t.Errorf("默认预算应为 7.5 小时，实际 %f", day0.BudgetHours)
	}

	if len(metrics.OverBudgetDays) != 1 || metrics.OverBudgetDays[0] != "2026-09-09" {
		t.Errorf("超预算日期应为 2026-09-09，实际 %v", metrics.OverBudgetDays)
	}
	if len(metrics.UnderfilledDays) != 1 || metrics.UnderfilledDays[0] != "2026-09-08" {
		t.Errorf("欠填日期应为 2026-09-08，实际 %v", metrics.UnderfilledDays)
	}
}

func TestCoverageAnalyzer_NilInputs(t *testing.T) {
	metrics := NewCoverageAnalyzer().Analyze(nil, nil)
	if metrics.TotalPOIs != 0 || metrics.PlacementRate != 0 {
		t.Error("空行程应返回零值指标")
	}

	// prefs 为 nil 时使用默认偏好
	tour := &model.Tour{Days: []model.Day{makeDay(0, "2026-09-07", 2, 7.5, 2.0)}}
	metrics = NewCoverageAnalyzer().Analyze(tour, nil)
	if math.Abs(metrics.DailyUtilization["2026-09-07"].UtilizationRate-100.0) > 1e-9 {
		t.Errorf("利用率应为 100%%，实际 %f", metrics.DailyUtilization["2026-09-07"].UtilizationRate)
	}
}
