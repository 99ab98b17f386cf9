package reopt

import (
	"context"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/xingcheng/xingcheng/pkg/errors"
	"github.com/xingcheng/xingcheng/pkg/matrix"
	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint/builtin"
	"github.com/xingcheng/xingcheng/pkg/planner/exact"
	"github.com/xingcheng/xingcheng/pkg/planner/schedule"
	"github.com/xingcheng/xingcheng/pkg/planner/sequencer"
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

func newTestCoordinator() *Coordinator {
	cm := builtin.NewDefaultManager()
	cfg := exact.DefaultConfig()
	cfg.TimeBudget = 5 * time.Second
	return NewCoordinator(cm, sequencer.NewSequencer(cm), exact.NewSolver(cm, cfg))
}

// buildTour 依据布局直接构造行程文档
func buildTour(dayCount int, pois []*model.POI, orders [][]uuid.UUID, m *matrix.Matrix) *model.Tour {
	planCtx := constraint.NewContext(testStartDate, dayCount, model.DefaultPreferences(), m, pois)
	planCtx.SetDayOrders(orders)

	return &model.Tour{
		ID:        uuid.New(),
		StartDate: testStartDate,
		Days:      schedule.BuildDays(planCtx),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestApplyLocalSwap(t *testing.T) {
	a := makePOI("浅草寺", 35.7148, 139.7967, 1.5)
	b := makePOI("上野公园", 35.7141, 139.7744, 2.0)
	c := makePOI("皇居", 35.6852, 139.7528, 1.5)
	d := makePOI("东京塔", 35.6586, 139.7454, 1.5)
	repl := makePOI("增上寺", 35.6574, 139.7482, 1.0)

	pois := []*model.POI{a, b, c, d, repl}
	m := matrix.Build(pois, nil)
	tour := buildTour(2, pois, [][]uuid.UUID{{a.ID, b.ID}, {c.ID, d.ID}}, m)

	day2Before := append([]uuid.UUID(nil), tour.Days[1].POIIDs()...)

	coord := newTestCoordinator()
	updated, err := coord.Apply(context.Background(), &Request{
		Tour:   tour,
		POIs:   pois,
		Matrix: m,
		Prefs:  model.DefaultPreferences(),
		Replacements: []model.ReplacementRequest{
			{OriginalPOI: a.ID, ReplacementPOI: repl.ID, TargetDay: -1},
		},
	})
	if err != nil {
		t.Fatalf("替换失败: %v", err)
	}

	if _, _, found := updated.FindVisit(a.ID); found {
		t.Error("原 POI 应被换出")
	}
	if _, _, found := updated.FindVisit(repl.ID); !found {
		t.Error("替换 POI 应在行程中")
	}

	// 范围正确性：波及单天的替换不得改动其他天
	if !reflect.DeepEqual(updated.Days[1].POIIDs(), day2Before) {
		t.Errorf("未波及的天不应改变:\n%v\n%v", updated.Days[1].POIIDs(), day2Before)
	}

	if len(updated.History) != 1 {
		t.Fatalf("应追加一条历史: %d", len(updated.History))
	}
	if updated.History[0].Strategy != StrategyLocalSwap {
		t.Errorf("期望 local_swap 策略，得到 %s", updated.History[0].Strategy)
	}

	// 原文档不被修改
	if _, _, found := tour.FindVisit(a.ID); !found {
		t.Error("原行程文档不应被修改")
	}
	if len(tour.History) != 0 {
		t.Error("原行程文档的历史不应被追加")
	}
}

func TestApplyUnknownOriginal(t *testing.T) {
	a := makePOI("浅草寺", 35.7148, 139.7967, 1.5)
	stranger := makePOI("陌生", 35.70, 139.70, 1.0)
	repl := makePOI("替换", 35.71, 139.71, 1.0)

	pois := []*model.POI{a, stranger, repl}
	m := matrix.Build(pois, nil)
	tour := buildTour(1, pois, [][]uuid.UUID{{a.ID}}, m)
	before := tour.Clone()

	coord := newTestCoordinator()
	_, err := coord.Apply(context.Background(), &Request{
		Tour:   tour,
		POIs:   pois,
		Matrix: m,
		Prefs:  model.DefaultPreferences(),
		Replacements: []model.ReplacementRequest{
			{OriginalPOI: stranger.ID, ReplacementPOI: repl.ID, TargetDay: -1},
		},
	})

	if !apperrors.Is(err, apperrors.CodeInvalidReplacement) {
		t.Fatalf("期望 INVALID_REPLACEMENT，得到 %v", err)
	}
	if !reflect.DeepEqual(tour.DayOrders(), before.DayOrders()) {
		t.Error("校验失败时行程必须保持原样")
	}
}

func TestApplyAlreadyApplied(t *testing.T) {
	a := makePOI("浅草寺", 35.7148, 139.7967, 1.5)
	b := makePOI("上野公园", 35.7141, 139.7744, 2.0)
	gone := makePOI("已换出", 35.70, 139.70, 1.0)

	pois := []*model.POI{a, b, gone}
	m := matrix.Build(pois, nil)
	// gone 已不在行程中，b 已经顶替了它
	tour := buildTour(1, pois, [][]uuid.UUID{{a.ID, b.ID}}, m)

	coord := newTestCoordinator()
	_, err := coord.Apply(context.Background(), &Request{
		Tour:   tour,
		POIs:   pois,
		Matrix: m,
		Prefs:  model.DefaultPreferences(),
		Replacements: []model.ReplacementRequest{
			{OriginalPOI: gone.ID, ReplacementPOI: b.ID, TargetDay: -1},
		},
	})

	if !apperrors.Is(err, apperrors.CodeAlreadyApplied) {
		t.Fatalf("重放已生效的替换应得到 ALREADY_APPLIED，得到 %v", err)
	}
}

func TestApplyReplacementAlreadyElsewhere(t *testing.T) {
	a := makePOI("浅草寺", 35.7148, 139.7967, 1.5)
	b := makePOI("上野公园", 35.7141, 139.7744, 2.0)

	pois := []*model.POI{a, b}
	m := matrix.Build(pois, nil)
	tour := buildTour(1, pois, [][]uuid.UUID{{a.ID, b.ID}}, m)

	coord := newTestCoordinator()
	_, err := coord.Apply(context.Background(), &Request{
		Tour:   tour,
		POIs:   pois,
		Matrix: m,
		Prefs:  model.DefaultPreferences(),
		Replacements: []model.ReplacementRequest{
			{OriginalPOI: a.ID, ReplacementPOI: b.ID, TargetDay: -1},
		},
	})

	if !apperrors.Is(err, apperrors.CodeInvalidReplacement) {
		t.Fatalf("替换 POI 已在行程中应拒绝，得到 %v", err)
	}
}

func TestApplyHardCapabilityForcesFullResolve(t *testing.T) {
	a := makePOI("浅草寺", 35.7148, 139.7967, 1.5)
	b := makePOI("上野公园", 35.7141, 139.7744, 2.0)
	repl := makePOI("需预约馆", 35.71, 139.78, 1.0)
	repl.Booking = &model.Booking{Required: true}

	pois := []*model.POI{a, b, repl}
	m := matrix.Build(pois, nil)
	tour := buildTour(2, pois, [][]uuid.UUID{{a.ID}, {b.ID}}, m)

	coord := newTestCoordinator()
	updated, err := coord.Apply(context.Background(), &Request{
		Tour:   tour,
		POIs:   pois,
		Matrix: m,
		Prefs:  model.DefaultPreferences(),
		Replacements: []model.ReplacementRequest{
			{OriginalPOI: a.ID, ReplacementPOI: repl.ID, TargetDay: -1},
		},
	})
	if err != nil {
		t.Fatalf("替换失败: %v", err)
	}

	if updated.History[0].Strategy != StrategyFullResolve {
		t.Errorf("涉及硬约束能力应整体重算，得到 %s", updated.History[0].Strategy)
	}
	if _, _, found := updated.FindVisit(repl.ID); !found {
		t.Errorf("替换 POI 应被安排: %+v", updated.Rejected)
	}
}

func TestApplyExtendsMatrixIncrementally(t *testing.T) {
	a := makePOI("浅草寺", 35.7148, 139.7967, 1.5)
	b := makePOI("上野公园", 35.7141, 139.7744, 2.0)

	known := []*model.POI{a, b}
	m := matrix.Build(known, nil)
	lenBefore := m.Len()
	snapshot := m.Snapshot()

	repl := makePOI("新来的", 35.70, 139.75, 1.0)
	pois := []*model.POI{a, b, repl}
	tour := buildTour(1, pois, [][]uuid.UUID{{a.ID, b.ID}}, m)

	coord := newTestCoordinator()
	_, err := coord.Apply(context.Background(), &Request{
		Tour:   tour,
		POIs:   pois,
		Matrix: m,
		Prefs:  model.DefaultPreferences(),
		Replacements: []model.ReplacementRequest{
			{OriginalPOI: a.ID, ReplacementPOI: repl.ID, TargetDay: -1},
		},
	})
	if err != nil {
		t.Fatalf("替换失败: %v", err)
	}

	// 新 POI 与两个已知 POI 各配一对
	if m.Len() != lenBefore+2 {
		t.Errorf("期望新增 2 个条目，得到 %d", m.Len()-lenBefore)
	}

	// 已缓存的条目不被改写
	for key, entry := range snapshot {
		got, ok := m.Get(key.A, key.B)
		if !ok || got != entry {
			t.Errorf("已有条目被改写: %+v", key)
		}
	}
}

func TestApplyDayLevel(t *testing.T) {
	// 第 0 天 6 站（超出单天重插阈值 5），替换只波及这一天
	var day0 []*model.POI
	for _, name := range []string{"一", "二", "三", "四", "五", "六"} {
		day0 = append(day0, makePOI(name, 35.68, 139.76, 1.0))
	}
	other := makePOI("隔天", 35.70, 139.78, 2.0)
	repl := makePOI("替补", 35.681, 139.761, 1.0)

	pois := append(append([]*model.POI{}, day0...), other, repl)
	m := matrix.Build(pois, nil)

	orders := [][]uuid.UUID{{}, {other.ID}}
	for _, poi := range day0 {
		orders[0] = append(orders[0], poi.ID)
	}
	tour := buildTour(2, pois, orders, m)
	day2Before := append([]uuid.UUID(nil), tour.Days[1].POIIDs()...)

	coord := newTestCoordinator()
	updated, err := coord.Apply(context.Background(), &Request{
		Tour:   tour,
		POIs:   pois,
		Matrix: m,
		Prefs:  model.DefaultPreferences(),
		Replacements: []model.ReplacementRequest{
			{OriginalPOI: day0[0].ID, ReplacementPOI: repl.ID, TargetDay: -1},
		},
	})
	if err != nil {
		t.Fatalf("替换失败: %v", err)
	}

	if updated.History[0].Strategy != StrategyDayLevel {
		t.Errorf("超过单天重插阈值应走天级重排，得到 %s", updated.History[0].Strategy)
	}
	if !reflect.DeepEqual(updated.Days[1].POIIDs(), day2Before) {
		t.Error("未波及的天不应改变")
	}
	if _, _, found := updated.FindVisit(repl.ID); !found {
		t.Errorf("替换 POI 应被安排: %+v", updated.Rejected)
	}
}

func TestApplyDayLevelRejectionCarriesConstraintReason(t *testing.T) {
	a := makePOI("浅草寺", 35.7148, 139.7967, 1.5)
	b := makePOI("上野公园", 35.7141, 139.7744, 2.0)
	repl := makePOI("增上寺", 35.6574, 139.7482, 1.0)

	// 周一周二全天闭馆，天级重排时放不回去
	sunday := makePOI("周日限定馆", 35.7150, 139.7960, 1.0)
	sunday.OpeningHours = &model.OpeningHours{
		Periods: map[int][]model.ClockPeriod{
			0: {{Open: "10:00", Close: "18:00"}},
		},
	}

	pois := []*model.POI{a, b, repl, sunday}
	m := matrix.Build(pois, nil)
	tour := buildTour(2, pois, [][]uuid.UUID{{a.ID, sunday.ID}, {b.ID}}, m)

	coord := newTestCoordinator()
	updated, err := coord.Apply(context.Background(), &Request{
		Tour:   tour,
		POIs:   pois,
		Matrix: m,
		Prefs:  model.DefaultPreferences(),
		Replacements: []model.ReplacementRequest{
			// 跨天目标迫使两天一起重排
			{OriginalPOI: a.ID, ReplacementPOI: repl.ID, TargetDay: 1},
		},
	})
	if err != nil {
		t.Fatalf("替换失败: %v", err)
	}

	if updated.History[0].Strategy != StrategyDayLevel {
		t.Fatalf("跨天替换应走天级重排，得到 %s", updated.History[0].Strategy)
	}

	var reason string
	for _, r := range updated.Rejected {
		if r.POIID == sunday.ID {
			reason = r.Reason
		}
	}
	if reason == "" {
		t.Fatalf("闭馆 POI 应被拒绝: %+v", updated.Rejected)
	}
	if !strings.Contains(reason, "开放时间") {
		t.Errorf("拒绝原因应指向被违反的约束，得到 %q", reason)
	}
}

func TestApplyScoresRecomputedAndHistoryAppendOnly(t *testing.T) {
	a := makePOI("浅草寺", 35.7148, 139.7967, 1.5)
	b := makePOI("上野公园", 35.7141, 139.7744, 2.0)
	r1 := makePOI("替补一", 35.71, 139.78, 1.0)
	r2 := makePOI("替补二", 35.69, 139.75, 1.0)

	pois := []*model.POI{a, b, r1, r2}
	m := matrix.Build(pois, nil)
	tour := buildTour(1, pois, [][]uuid.UUID{{a.ID, b.ID}}, m)

	coord := newTestCoordinator()
	first, err := coord.Apply(context.Background(), &Request{
		Tour: tour, POIs: pois, Matrix: m, Prefs: model.DefaultPreferences(),
		Replacements: []model.ReplacementRequest{{OriginalPOI: a.ID, ReplacementPOI: r1.ID, TargetDay: -1}},
	})
	if err != nil {
		t.Fatalf("第一次替换失败: %v", err)
	}
	second, err := coord.Apply(context.Background(), &Request{
		Tour: first, POIs: pois, Matrix: m, Prefs: model.DefaultPreferences(),
		Replacements: []model.ReplacementRequest{{OriginalPOI: b.ID, ReplacementPOI: r2.ID, TargetDay: -1}},
	})
	if err != nil {
		t.Fatalf("第二次替换失败: %v", err)
	}

	if len(second.History) != 2 {
		t.Fatalf("历史应只追加: %d", len(second.History))
	}
	if second.History[0].ID == second.History[1].ID {
		t.Error("历史条目应各有唯一ID")
	}
	if second.Scores.Overall <= 0 {
		t.Errorf("评分应被重算: %+v", second.Scores)
	}
}
