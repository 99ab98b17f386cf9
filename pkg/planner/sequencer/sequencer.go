// Package sequencer 提供启发式定序器
// 贪心构造加有界二邻域改进，产出各天的 POI 顺序
package sequencer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/xingcheng/xingcheng/pkg/logger"
	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
)

// improveEpsilon 改进步幅下限，低于该值视为无改进
const improveEpsilon = 1e-6

// defaultImprovePasses 二邻域改进的默认最大轮数
const defaultImprovePasses = 10

// Sequencer 启发式定序器
type Sequencer struct {
	constraintManager *constraint.Manager
	logger            *logger.PlannerLogger
	improvePasses     int
}

// NewSequencer 创建定序器
func NewSequencer(cm *constraint.Manager) *Sequencer {
	return &Sequencer{
		constraintManager: cm,
		logger:            logger.NewPlannerLogger(),
		improvePasses:     defaultImprovePasses,
	}
}

// Name 返回定序器名称
func (s *Sequencer) Name() string {
	return "GreedySequencer"
}

// SetImprovePasses 设置改进轮数上限
func (s *Sequencer) SetImprovePasses(passes int) {
	s.improvePasses = passes
}

// Result 定序结果
type Result struct {
	DayOrders  [][]uuid.UUID      `json:"day_orders"`
	Rejected   []model.RejectedPOI `json:"rejected"`
	Objective  float64            `json:"objective"`
	Statistics *Statistics        `json:"statistics"`
	Duration   time.Duration      `json:"duration"`
}

// Statistics 定序统计
type Statistics struct {
	PlacedPOIs    int `json:"placed_pois"`
	RejectedPOIs  int `json:"rejected_pois"`
	ImprovePasses int `json:"improve_passes"`
	ImprovedMoves int `json:"improved_moves"`
}

// Unit 放置的最小单位：单个 POI 或一整个联票组
type Unit struct {
	Members  []*model.POI
	Priority int
}

// Sequence 生成各天的 POI 顺序
// 放不下的 POI 进入拒绝列表并附带原因，不会静默丢弃
func (s *Sequencer) Sequence(ctx context.Context, planCtx *constraint.Context) (*Result, error) {
	startTime := time.Now()

	result := &Result{
		DayOrders:  make([][]uuid.UUID, planCtx.DayCount),
		Rejected:   make([]model.RejectedPOI, 0),
		Statistics: &Statistics{},
	}

	if planCtx.DayCount <= 0 {
		return result, fmt.Errorf("天数必须为正: %d", planCtx.DayCount)
	}
	if len(planCtx.POIs) == 0 {
		result.Duration = time.Since(startTime)
		return result, nil
	}

	units := PlacementUnits(planCtx.POIs)
	remaining := make([]*Unit, len(units))
	copy(remaining, units)

	// 记录每个单位最近一次放置失败的原因
	lastReason := make(map[*Unit]string)

	work := planCtx.Clone()
	work.SetDayOrders(make([][]uuid.UUID, planCtx.DayCount))

	for day := 0; day < planCtx.DayCount; day++ {
		for {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}

			best := -1
			bestCost := 0.0
			var bestCtx *constraint.Context

			for i, u := range remaining {
				candidate, cost, reason := s.tryPlace(work, u, day)
				if candidate == nil {
					lastReason[u] = reason
					continue
				}
				if best < 0 || cost < bestCost-improveEpsilon {
					best = i
					bestCost = cost
					bestCtx = candidate
				}
			}

			if best < 0 {
				break // 当天放不下任何单位，换下一天
			}

			work = bestCtx
			result.Statistics.PlacedPOIs += len(remaining[best].Members)
			remaining = append(remaining[:best], remaining[best+1:]...)
		}
	}

	// 剩余单位全部拒绝
	for _, u := range remaining {
		reason := lastReason[u]
		if reason == "" {
			reason = "各天均无剩余时间预算"
		}
		for _, poi := range u.Members {
			result.Rejected = append(result.Rejected, model.RejectedPOI{
				POIID:  poi.ID,
				Name:   poi.Name,
				Reason: reason,
			})
		}
	}
	result.Statistics.RejectedPOIs = len(result.Rejected)

	// 有界二邻域改进
	s.improve(ctx, work, result.Statistics)

	result.DayOrders = work.DayOrders
	result.Objective = TotalCost(work)
	result.Duration = time.Since(startTime)
	return result, nil
}

// tryPlace 尝试把单位整体追加到某天末尾
// 成功时返回追加后的候选上下文和增量代价，失败时返回原因
func (s *Sequencer) tryPlace(work *constraint.Context, u *Unit, day int) (*constraint.Context, float64, string) {
	candidate := work.Clone()
	before := DayCost(candidate, day)

	for _, poi := range u.Members {
		ok, reason := s.constraintManager.CanAppend(candidate, poi, day)
		if !ok {
			return nil, 0, reason
		}
		candidate.Append(day, poi.ID)
	}

	return candidate, DayCost(candidate, day) - before, ""
}

// DayCost 计算某天顺序的加权代价
// 距离越短、相邻连贯度越高，代价越低
func DayCost(c *constraint.Context, day int) float64 {
	order := c.DayOrders[day]
	if len(order) == 0 {
		return 0
	}

	prefs := c.Prefs
	cost := 0.0

	first := c.POI(order[0])
	if prefs.Start != nil && prefs.Start.HasCoordinates() && first != nil && first.Location.HasCoordinates() {
		cost += prefs.DistanceWeight * prefs.Start.Distance(first.Location)
	}

	for i := 1; i < len(order); i++ {
		cost += prefs.DistanceWeight * c.Matrix.Distance(order[i-1], order[i])
		cost -= prefs.CoherenceWeight * c.Matrix.Coherence(order[i-1], order[i])
	}

	last := c.POI(order[len(order)-1])
	if prefs.End != nil && prefs.End.HasCoordinates() && last != nil && last.Location.HasCoordinates() {
		cost += prefs.DistanceWeight * prefs.End.Distance(last.Location)
	}

	return cost
}

// TotalCost 计算整个布局的加权代价
func TotalCost(c *constraint.Context) float64 {
	total := 0.0
	for day := range c.DayOrders {
		total += DayCost(c, day)
	}
	return total
}

// improve 对每天的顺序做有界二邻域改进
// 只接受严格改进且仍满足全部硬约束的翻转
func (s *Sequencer) improve(ctx context.Context, work *constraint.Context, stats *Statistics) {
	for pass := 0; pass < s.improvePasses; pass++ {
		if ctx.Err() != nil {
			return
		}
		stats.ImprovePasses++

		improved := false
		for day := range work.DayOrders {
			if s.improveDay(work, day, stats) {
				improved = true
			}
		}
		if !improved {
			return
		}
	}
}

// improveDay 对单天做一轮二邻域翻转
func (s *Sequencer) improveDay(work *constraint.Context, day int, stats *Statistics) bool {
	order := work.DayOrders[day]
	if len(order) < 3 {
		return false
	}

	improved := false
	for i := 0; i < len(order)-1; i++ {
		for j := i + 1; j < len(order); j++ {
			candidate := reverseSegment(order, i, j)

			orders := cloneOrders(work.DayOrders)
			orders[day] = candidate

			trial := work.Clone()
			trial.SetDayOrders(orders)

			if DayCost(trial, day) >= DayCost(work, day)-improveEpsilon {
				continue
			}
			if !s.constraintManager.ValidOrders(work, orders) {
				continue
			}

			work.SetDayOrders(orders)
			order = work.DayOrders[day]
			stats.ImprovedMoves++
			improved = true
		}
	}
	return improved
}

// PlacementUnits 把 POI 列表归并为放置单位
// 联票组整体成组，其余各自成组；按优先级降序、名称升序排列
func PlacementUnits(pois []*model.POI) []*Unit {
	groups := model.ComboGroupsOf(pois)
	grouped := make(map[uuid.UUID]bool)
	units := make([]*Unit, 0, len(pois))

	// 联票组按组ID排序保证确定性
	groupIDs := make([]string, 0, len(groups))
	for id := range groups {
		groupIDs = append(groupIDs, id)
	}
	sort.Strings(groupIDs)

	for _, id := range groupIDs {
		members := groups[id]
		priority := 0
		for _, m := range members {
			grouped[m.ID] = true
			if m.Priority > priority {
				priority = m.Priority
			}
		}
		units = append(units, &Unit{Members: members, Priority: priority})
	}

	for _, poi := range pois {
		if grouped[poi.ID] {
			continue
		}
		units = append(units, &Unit{Members: []*model.POI{poi}, Priority: poi.Priority})
	}

	sort.SliceStable(units, func(i, j int) bool {
		if units[i].Priority != units[j].Priority {
			return units[i].Priority > units[j].Priority
		}
		return model.LessPOI(units[i].Members[0], units[j].Members[0])
	})

	return units
}

// reverseSegment 返回翻转 [i,j] 区间后的新顺序
func reverseSegment(order []uuid.UUID, i, j int) []uuid.UUID {
	out := append([]uuid.UUID(nil), order...)
	for l, r := i, j; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// cloneOrders 深拷贝布局
func cloneOrders(orders [][]uuid.UUID) [][]uuid.UUID {
	out := make([][]uuid.UUID, len(orders))
	for i, o := range orders {
		out[i] = append([]uuid.UUID(nil), o...)
	}
	return out
}
