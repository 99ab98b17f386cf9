// Package scenario 提供场景测试
package scenario

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner"
	"github.com/xingcheng/xingcheng/pkg/planner/exact"
)

// createPOI 创建测试 POI
func createPOI(name string, lat, lng, visitHours float64) *model.POI {
	return &model.POI{
		ID:         uuid.New(),
		Name:       name,
		Location:   model.Location{Latitude: lat, Longitude: lng},
		VisitHours: visitHours,
	}
}

// createThemedPOI 创建带叙事元数据的测试 POI
func createThemedPOI(name, era string, topics []string, lat, lng, visitHours float64) *model.POI {
	poi := createPOI(name, lat, lng, visitHours)
	poi.Era = era
	poi.Topics = topics
	return poi
}

// withOpeningHours 为 POI 附加开放时间
func withOpeningHours(poi *model.POI, periods map[int][]model.ClockPeriod) *model.POI {
	poi.OpeningHours = &model.OpeningHours{Periods: periods}
	return poi
}

// withCombo 为 POI 附加联票分组
func withCombo(poi *model.POI, groupID string) *model.POI {
	poi.Combo = &model.ComboGroup{GroupID: groupID}
	return poi
}

// withPrecedence 为 POI 附加前置依赖
func withPrecedence(poi *model.POI, after ...uuid.UUID) *model.POI {
	poi.Precedence = &model.Precedence{After: after}
	return poi
}

// allWeekOpen 返回一周七天均开放的时段表
func allWeekOpen(open, close string) map[int][]model.ClockPeriod {
	periods := make(map[int][]model.ClockPeriod, 7)
	for weekday := 0; weekday < 7; weekday++ {
		periods[weekday] = []model.ClockPeriod{{Open: open, Close: close}}
	}
	return periods
}

// newTestEngine 创建场景测试引擎
func newTestEngine() *planner.Engine {
	return planner.NewEngine(nil, exact.Config{
		TimeBudget: 5 * time.Second,
		GapLimit:   0.05,
		Workers:    2,
	})
}

// generateTour 执行生成并断言成功
func generateTour(t *testing.T, engine *planner.Engine, req *planner.GenerateRequest) *model.Tour {
	t.Helper()
	tour, err := engine.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("生成行程失败: %v", err)
	}
	return tour
}

// placedDayOf 返回 POI 所在天索引，未安排时返回 -1
func placedDayOf(tour *model.Tour, poiID uuid.UUID) int {
	for di, day := range tour.Days {
		for _, v := range day.Visits {
			if v.POIID == poiID {
				return di
			}
		}
	}
	return -1
}

// placedPositionOf 返回 POI 的天索引与当天位置，未安排时返回 (-1, -1)
func placedPositionOf(tour *model.Tour, poiID uuid.UUID) (int, int) {
	for di, day := range tour.Days {
		for pi, v := range day.Visits {
			if v.POIID == poiID {
				return di, pi
			}
		}
	}
	return -1, -1
}

// isRejected 检查 POI 是否在落选列表中
func isRejected(tour *model.Tour, poiID uuid.UUID) bool {
	for _, r := range tour.Rejected {
		if r.POIID == poiID {
			return true
		}
	}
	return false
}

// dayOrderIDs 导出各天的 POI 顺序（用于方案比较）
func dayOrderIDs(tour *model.Tour) [][]uuid.UUID {
	orders := make([][]uuid.UUID, len(tour.Days))
	for i := range tour.Days {
		orders[i] = tour.Days[i].POIIDs()
	}
	return orders
}
