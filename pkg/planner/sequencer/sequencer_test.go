package sequencer

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/xingcheng/xingcheng/pkg/matrix"
	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint/builtin"
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

func makeContext(dayCount int, pois []*model.POI) *constraint.Context {
	return constraint.NewContext(testStartDate, dayCount, model.DefaultPreferences(), matrix.Build(pois, nil), pois)
}

func newTestSequencer() *Sequencer {
	return NewSequencer(builtin.NewDefaultManager())
}

func TestSequenceBasic(t *testing.T) {
	pois := []*model.POI{
		makePOI("浅草寺", 35.7148, 139.7967, 1.5),
		makePOI("上野公园", 35.7141, 139.7744, 2.0),
		makePOI("东京塔", 35.6586, 139.7454, 1.5),
		makePOI("明治神宫", 35.6764, 139.6993, 1.5),
	}

	s := newTestSequencer()
	result, err := s.Sequence(context.Background(), makeContext(2, pois))
	if err != nil {
		t.Fatalf("定序失败: %v", err)
	}

	placed := 0
	for _, order := range result.DayOrders {
		placed += len(order)
	}
	if placed+len(result.Rejected) != len(pois) {
		t.Errorf("POI 应恰好一次被安排或拒绝: 安排 %d, 拒绝 %d", placed, len(result.Rejected))
	}
	if len(result.Rejected) != 0 {
		t.Errorf("宽松输入不应有拒绝: %+v", result.Rejected)
	}
}

func TestSequenceOverflowRejects(t *testing.T) {
	// 正常节奏每天 7.5 小时，三个 3 小时的 POI 放不进一天
	pois := []*model.POI{
		makePOI("甲", 35.68, 139.76, 3.0),
		makePOI("乙", 35.68, 139.76, 3.0),
		makePOI("丙", 35.68, 139.76, 3.0),
	}

	s := newTestSequencer()
	result, err := s.Sequence(context.Background(), makeContext(1, pois))
	if err != nil {
		t.Fatalf("定序失败: %v", err)
	}

	placed := 0
	for _, order := range result.DayOrders {
		placed += len(order)
	}
	if placed != 2 {
		t.Errorf("期望安排 2 个，得到 %d", placed)
	}
	if len(result.Rejected) != 1 {
		t.Fatalf("期望拒绝 1 个，得到 %d", len(result.Rejected))
	}
	if result.Rejected[0].Reason == "" {
		t.Error("拒绝必须附带原因")
	}
}

func TestSequencePriorityWins(t *testing.T) {
	// 预算只够放一个，高优先级的应当入选
	low := makePOI("低优先级", 35.68, 139.76, 5.0)
	high := makePOI("高优先级", 35.69, 139.77, 5.0)
	low.Priority = 1
	high.Priority = 9

	s := newTestSequencer()
	result, err := s.Sequence(context.Background(), makeContext(1, []*model.POI{low, high}))
	if err != nil {
		t.Fatalf("定序失败: %v", err)
	}

	if len(result.DayOrders[0]) != 1 || result.DayOrders[0][0] != high.ID {
		t.Errorf("高优先级 POI 应当入选: %+v", result.DayOrders)
	}
}

func TestSequenceComboAtomic(t *testing.T) {
	m1 := makePOI("联票甲", 35.68, 139.76, 1.0)
	m2 := makePOI("联票乙", 35.681, 139.761, 1.0)
	m1.Combo = &model.ComboGroup{GroupID: "palace"}
	m2.Combo = &model.ComboGroup{GroupID: "palace"}
	other := makePOI("普通丙", 35.70, 139.78, 2.0)

	s := newTestSequencer()
	result, err := s.Sequence(context.Background(), makeContext(2, []*model.POI{m1, other, m2}))
	if err != nil {
		t.Fatalf("定序失败: %v", err)
	}

	day1, day2 := -1, -1
	for day, order := range result.DayOrders {
		for i, id := range order {
			if id == m1.ID {
				day1 = day
				_ = i
			}
			if id == m2.ID {
				day2 = day
			}
		}
	}
	if day1 < 0 || day2 < 0 {
		t.Fatalf("联票组应被安排: %+v", result.Rejected)
	}
	if day1 != day2 {
		t.Errorf("联票组成员应在同一天: %d vs %d", day1, day2)
	}

	// 在当天顺序中必须相邻
	order := result.DayOrders[day1]
	for i, id := range order {
		if id != m1.ID && id != m2.ID {
			continue
		}
		if i+1 < len(order) && (order[i+1] == m1.ID || order[i+1] == m2.ID) {
			return
		}
	}
	t.Errorf("联票组成员应连续: %+v", order)
}

func TestSequenceComboOverBudgetRejectsWhole(t *testing.T) {
	// 联票组合计 8 小时超出单天预算，应整组拒绝
	m1 := makePOI("联票甲", 35.68, 139.76, 4.0)
	m2 := makePOI("联票乙", 35.68, 139.76, 4.0)
	m1.Combo = &model.ComboGroup{GroupID: "palace"}
	m2.Combo = &model.ComboGroup{GroupID: "palace"}

	s := newTestSequencer()
	result, err := s.Sequence(context.Background(), makeContext(1, []*model.POI{m1, m2}))
	if err != nil {
		t.Fatalf("定序失败: %v", err)
	}

	if len(result.Rejected) != 2 {
		t.Errorf("超预算的联票组应整组拒绝: %+v", result.Rejected)
	}
	if len(result.DayOrders[0]) != 0 {
		t.Errorf("不应留下孤立的联票成员: %+v", result.DayOrders[0])
	}
}

func TestSequencePrecedenceOrder(t *testing.T) {
	first := makePOI("本殿", 35.68, 139.76, 1.0)
	second := makePOI("宝物馆", 35.681, 139.761, 1.0)
	second.Precedence = &model.Precedence{After: []uuid.UUID{first.ID}}
	// 高优先级也不能越过前置
	second.Priority = 9

	s := newTestSequencer()
	result, err := s.Sequence(context.Background(), makeContext(1, []*model.POI{first, second}))
	if err != nil {
		t.Fatalf("定序失败: %v", err)
	}

	order := result.DayOrders[0]
	if len(order) != 2 {
		t.Fatalf("两个 POI 都应被安排: %+v", result.Rejected)
	}
	if order[0] != first.ID || order[1] != second.ID {
		t.Errorf("前置必须在前: %+v", order)
	}
}

func TestSequenceDeterministic(t *testing.T) {
	pois := []*model.POI{
		makePOI("浅草寺", 35.7148, 139.7967, 1.5),
		makePOI("上野公园", 35.7141, 139.7744, 2.0),
		makePOI("东京塔", 35.6586, 139.7454, 1.5),
	}

	s := newTestSequencer()
	first, err := s.Sequence(context.Background(), makeContext(2, pois))
	if err != nil {
		t.Fatalf("定序失败: %v", err)
	}
	second, err := s.Sequence(context.Background(), makeContext(2, pois))
	if err != nil {
		t.Fatalf("定序失败: %v", err)
	}

	if !reflect.DeepEqual(first.DayOrders, second.DayOrders) {
		t.Errorf("相同输入应产出相同布局:\n%+v\n%+v", first.DayOrders, second.DayOrders)
	}
}

func TestSequenceSatisfiesHardConstraints(t *testing.T) {
	pois := []*model.POI{
		makePOI("浅草寺", 35.7148, 139.7967, 1.5),
		makePOI("上野公园", 35.7141, 139.7744, 2.0),
		makePOI("东京塔", 35.6586, 139.7454, 1.5),
		makePOI("明治神宫", 35.6764, 139.6993, 1.5),
		makePOI("皇居", 35.6852, 139.7528, 2.0),
	}
	// 周一闭馆的 POI
	pois[2].OpeningHours = &model.OpeningHours{
		Periods: map[int][]model.ClockPeriod{
			2: {{Open: "09:00", Close: "18:00"}},
			3: {{Open: "09:00", Close: "18:00"}},
		},
	}

	manager := builtin.NewDefaultManager()
	s := NewSequencer(manager)
	planCtx := makeContext(2, pois)

	result, err := s.Sequence(context.Background(), planCtx)
	if err != nil {
		t.Fatalf("定序失败: %v", err)
	}

	check := planCtx.Clone()
	check.SetDayOrders(result.DayOrders)
	eval := manager.Evaluate(check)
	if !eval.IsValid {
		t.Errorf("产出布局必须满足全部硬约束: %+v", eval.HardViolations)
	}

	// 周一闭馆的 POI 不应被安排在第一天
	for _, id := range result.DayOrders[0] {
		if id == pois[2].ID {
			t.Error("周一闭馆的 POI 被安排在了周一")
		}
	}
}

func TestSequenceEmptyInput(t *testing.T) {
	s := newTestSequencer()
	result, err := s.Sequence(context.Background(), makeContext(2, nil))
	if err != nil {
		t.Fatalf("空输入不应报错: %v", err)
	}
	if len(result.Rejected) != 0 {
		t.Errorf("空输入不应有拒绝: %+v", result.Rejected)
	}
}

func TestSequenceInvalidDayCount(t *testing.T) {
	s := newTestSequencer()
	pois := []*model.POI{makePOI("甲", 35.68, 139.76, 1.0)}
	if _, err := s.Sequence(context.Background(), makeContext(0, pois)); err == nil {
		t.Error("非正天数应报错")
	}
}
