package planner

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/xingcheng/xingcheng/pkg/errors"
	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/exact"
)

// 2026-09-07 是周一
const testStartDate = "2026-09-07"

func makePOI(name string, lat, lng, visitHours float64) *model.POI {
	return &model.POI{
		ID:         uuid.New(),
		Name:       name,
		Location:   model.Location{Name: name, Latitude: lat, Longitude: lng},
		VisitHours: visitHours,
	}
}

func newTestEngine() *Engine {
	cfg := exact.DefaultConfig()
	cfg.TimeBudget = 5 * time.Second
	return NewEngine(nil, cfg)
}

func TestGenerateSimple(t *testing.T) {
	pois := []*model.POI{
		makePOI("浅草寺", 35.7148, 139.7967, 1.5),
		makePOI("上野公园", 35.7141, 139.7744, 2.0),
		makePOI("皇居", 35.6852, 139.7528, 1.5),
	}

	engine := newTestEngine()
	tour, err := engine.Generate(context.Background(), &GenerateRequest{
		StartDate: testStartDate,
		DayCount:  2,
		Mode:      ModeSimple,
		POIs:      pois,
		Prefs:     model.DefaultPreferences(),
	})
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	if len(tour.Days) != 2 {
		t.Fatalf("期望 2 天，得到 %d", len(tour.Days))
	}
	if tour.Days[0].Date != testStartDate {
		t.Errorf("第一天日期应为 %s: %s", testStartDate, tour.Days[0].Date)
	}

	// 每个 POI 要么被安排恰好一次，要么在落选列表
	for _, poi := range pois {
		_, _, found := tour.FindVisit(poi.ID)
		if found == tour.IsRejected(poi.ID) {
			t.Errorf("POI %s 应恰好出现在行程或落选列表之一", poi.Name)
		}
	}

	if tour.Diagnostics == nil || tour.Diagnostics.Status != "heuristic" {
		t.Errorf("simple 模式诊断应为 heuristic: %+v", tour.Diagnostics)
	}
	if tour.Diagnostics.Exact {
		t.Error("simple 模式不应标记为精确解")
	}
	if tour.Scores.Overall <= 0 || tour.Scores.Overall > 1 {
		t.Errorf("综合评分应在 (0,1]: %f", tour.Scores.Overall)
	}
}

func TestGenerateAutoDetectsHardCapabilities(t *testing.T) {
	plain := makePOI("上野公园", 35.7141, 139.7744, 2.0)
	booked := makePOI("需预约馆", 35.71, 139.78, 1.0)
	booked.Booking = &model.Booking{Required: true}

	engine := newTestEngine()
	tour, err := engine.Generate(context.Background(), &GenerateRequest{
		StartDate: testStartDate,
		DayCount:  1,
		Mode:      ModeAuto,
		POIs:      []*model.POI{plain, booked},
		Prefs:     model.DefaultPreferences(),
	})
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	if !tour.Diagnostics.Exact {
		t.Errorf("存在预约要求时 auto 应走精确求解: %+v", tour.Diagnostics)
	}
	if tour.Diagnostics.Status != string(exact.StatusOptimal) && tour.Diagnostics.Status != string(exact.StatusFeasible) {
		t.Errorf("小规模实例应得到可行或最优: %s", tour.Diagnostics.Status)
	}
}

func TestGenerateAutoWithoutCapabilitiesStaysHeuristic(t *testing.T) {
	pois := []*model.POI{
		makePOI("浅草寺", 35.7148, 139.7967, 1.5),
		makePOI("上野公园", 35.7141, 139.7744, 2.0),
	}

	engine := newTestEngine()
	tour, err := engine.Generate(context.Background(), &GenerateRequest{
		StartDate: testStartDate,
		DayCount:  1,
		POIs:      pois,
		Prefs:     model.DefaultPreferences(),
	})
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	if tour.Diagnostics.Status != "heuristic" {
		t.Errorf("无硬约束能力时 auto 应走启发式: %s", tour.Diagnostics.Status)
	}
}

func TestGenerateILPPlacesAllWhenFullCoverFeasible(t *testing.T) {
	// 贪心装箱会把 3.0+3.0 塞进第一天，导致一个 2.0 无处安放；
	// 全覆盖布局 {4.5,3.0} + {3.0,2.0,2.0} 存在，精确求解必须找到它
	mk := func(name string, hours float64, priority int) *model.POI {
		poi := makePOI(name, 35.71, 139.77, hours)
		poi.Priority = priority
		return poi
	}
	pois := []*model.POI{
		mk("东本愿寺", 3.0, 9),
		mk("西本愿寺", 3.0, 8),
		mk("二条城", 4.5, 7),
		mk("锦市场", 2.0, 6),
		mk("先斗町", 2.0, 5),
	}

	engine := newTestEngine()
	tour, err := engine.Generate(context.Background(), &GenerateRequest{
		StartDate: testStartDate,
		DayCount:  2,
		Mode:      ModeILP,
		POIs:      pois,
		Prefs:     model.DefaultPreferences(),
	})
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	if len(tour.Rejected) != 0 {
		t.Fatalf("存在全覆盖布局时不应有落选 POI: %+v", tour.Rejected)
	}
	if placed := len(tour.ScheduledPOIIDs()); placed != len(pois) {
		t.Errorf("应安排全部 %d 个 POI，实际 %d", len(pois), placed)
	}
	if tour.Diagnostics == nil || !tour.Diagnostics.Exact {
		t.Errorf("全覆盖可行时诊断应标记精确解: %+v", tour.Diagnostics)
	}
	if tour.Diagnostics.Status != string(exact.StatusOptimal) && tour.Diagnostics.Status != string(exact.StatusFeasible) {
		t.Errorf("期望 optimal/feasible，得到 %s", tour.Diagnostics.Status)
	}
}

func TestGenerateILPFallsBackWhenInfeasible(t *testing.T) {
	// 单天塞不下三个大体量 POI，全覆盖被证不可行后回退启发式
	pois := []*model.POI{
		makePOI("甲", 35.70, 139.70, 4.0),
		makePOI("乙", 35.71, 139.71, 4.0),
		makePOI("丙", 35.72, 139.72, 4.0),
	}

	engine := newTestEngine()
	tour, err := engine.Generate(context.Background(), &GenerateRequest{
		StartDate: testStartDate,
		DayCount:  1,
		Mode:      ModeILP,
		POIs:      pois,
		Prefs:     model.DefaultPreferences(),
	})
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	placed := len(tour.ScheduledPOIIDs())
	if placed+len(tour.Rejected) != len(pois) {
		t.Errorf("安排数 %d + 落选数 %d 应等于 %d", placed, len(tour.Rejected), len(pois))
	}
	if len(tour.Rejected) == 0 {
		t.Error("超出单天预算应有落选 POI")
	}
	for _, r := range tour.Rejected {
		if r.Reason == "" {
			t.Errorf("落选 POI %s 应带原因", r.Name)
		}
	}
	if tour.Diagnostics == nil || tour.Diagnostics.Exact {
		t.Errorf("回退启发式后诊断不应标记精确解: %+v", tour.Diagnostics)
	}
	if tour.Diagnostics.Status != string(exact.StatusInfeasible) {
		t.Errorf("期望 infeasible，得到 %s", tour.Diagnostics.Status)
	}
	if tour.Diagnostics.FallbackReason == "" {
		t.Error("回退时应记录原因")
	}
}

func TestGenerateValidation(t *testing.T) {
	engine := newTestEngine()
	prefs := model.DefaultPreferences()
	poi := makePOI("浅草寺", 35.7148, 139.7967, 1.5)

	cases := []struct {
		name string
		req  *GenerateRequest
	}{
		{"空 POI 列表", &GenerateRequest{StartDate: testStartDate, DayCount: 1, Prefs: prefs}},
		{"零天数", &GenerateRequest{StartDate: testStartDate, DayCount: 0, POIs: []*model.POI{poi}, Prefs: prefs}},
		{"坏日期", &GenerateRequest{StartDate: "09/07/2026", DayCount: 1, POIs: []*model.POI{poi}, Prefs: prefs}},
		{"未知模式", &GenerateRequest{StartDate: testStartDate, DayCount: 1, Mode: "magic", POIs: []*model.POI{poi}, Prefs: prefs}},
		{"生成接口不接受重优化模式", &GenerateRequest{StartDate: testStartDate, DayCount: 1, Mode: ModeReoptimize, POIs: []*model.POI{poi}, Prefs: prefs}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Generate(context.Background(), tc.req); err == nil {
				t.Error("应返回错误")
			}
		})
	}
}

func TestReplaceDelegatesAndLocks(t *testing.T) {
	a := makePOI("浅草寺", 35.7148, 139.7967, 1.5)
	b := makePOI("上野公园", 35.7141, 139.7744, 2.0)
	repl := makePOI("增上寺", 35.6574, 139.7482, 1.0)

	engine := newTestEngine()
	tour, err := engine.Generate(context.Background(), &GenerateRequest{
		StartDate: testStartDate,
		DayCount:  1,
		Mode:      ModeSimple,
		POIs:      []*model.POI{a, b},
		Prefs:     model.DefaultPreferences(),
	})
	if err != nil {
		t.Fatalf("生成失败: %v", err)
	}

	updated, err := engine.Replace(context.Background(), &ReplaceRequest{
		Tour:  tour,
		POIs:  []*model.POI{a, b, repl},
		Prefs: model.DefaultPreferences(),
		Replacements: []model.ReplacementRequest{
			{OriginalPOI: a.ID, ReplacementPOI: repl.ID, TargetDay: -1},
		},
	})
	if err != nil {
		t.Fatalf("替换失败: %v", err)
	}

	if _, _, found := updated.FindVisit(repl.ID); !found {
		t.Error("替换 POI 应在新行程中")
	}
	if len(updated.History) != 1 {
		t.Errorf("应追加一条历史: %d", len(updated.History))
	}

	// 重放同一替换应得到幂等信号
	_, err = engine.Replace(context.Background(), &ReplaceRequest{
		Tour:  updated,
		POIs:  []*model.POI{a, b, repl},
		Prefs: model.DefaultPreferences(),
		Replacements: []model.ReplacementRequest{
			{OriginalPOI: a.ID, ReplacementPOI: repl.ID, TargetDay: -1},
		},
	})
	if !apperrors.Is(err, apperrors.CodeAlreadyApplied) {
		t.Fatalf("重放应得到 ALREADY_APPLIED，得到 %v", err)
	}
}

func TestLockForReturnsSameMutexPerTour(t *testing.T) {
	engine := newTestEngine()
	id := uuid.New()

	if engine.lockFor(id) != engine.lockFor(id) {
		t.Error("同一行程应共享互斥锁")
	}
	if engine.lockFor(id) == engine.lockFor(uuid.New()) {
		t.Error("不同行程不应共享互斥锁")
	}
}
