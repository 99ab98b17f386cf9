// Package reopt 提供重优化协调器
// 按替换请求的波及范围挑选增量策略，避免整轮重算
package reopt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/xingcheng/xingcheng/pkg/errors"
	"github.com/xingcheng/xingcheng/pkg/logger"
	"github.com/xingcheng/xingcheng/pkg/matrix"
	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
	"github.com/xingcheng/xingcheng/pkg/planner/exact"
	"github.com/xingcheng/xingcheng/pkg/planner/schedule"
	"github.com/xingcheng/xingcheng/pkg/planner/sequencer"
)

// 重优化策略
const (
	StrategyLocalSwap   = "local_swap"   // 单天小范围重插
	StrategyDayLevel    = "day_level"    // 受影响天重排
	StrategyFullResolve = "full_resolve" // 整体重算
)

// LocalSwapMaxDaySize 单天重插策略的天长上限
const LocalSwapMaxDaySize = 5

// Coordinator 重优化协调器
type Coordinator struct {
	constraintManager *constraint.Manager
	sequencer         *sequencer.Sequencer
	solver            *exact.Solver
	logger            *logger.PlannerLogger
}

// NewCoordinator 创建协调器
func NewCoordinator(cm *constraint.Manager, seq *sequencer.Sequencer, solver *exact.Solver) *Coordinator {
	return &Coordinator{
		constraintManager: cm,
		sequencer:         seq,
		solver:            solver,
		logger:            logger.NewPlannerLogger(),
	}
}

// Request 重优化请求
// POIs 是行程的全量 POI 元数据（含替换引入的新 POI）
type Request struct {
	Tour         *model.Tour
	POIs         []*model.POI
	Matrix       *matrix.Matrix
	Prefs        *model.Preferences
	Replacements []model.ReplacementRequest
}

// Apply 执行替换并返回新行程文档，原文档不被修改
// 校验失败时返回错误且不产生任何副作用
func (c *Coordinator) Apply(ctx context.Context, req *Request) (*model.Tour, error) {
	if req.Tour == nil {
		return nil, apperrors.InvalidInput("tour", "行程不能为空")
	}
	if len(req.Replacements) == 0 {
		return nil, apperrors.InvalidInput("replacements", "替换请求不能为空")
	}

	poiMap := model.POIsByID(req.POIs)

	// 全部校验先行，任何失败都保持行程原样
	if err := c.validate(req, poiMap); err != nil {
		return nil, err
	}

	// 新引入的 POI 先增量扩展矩阵
	c.extendMatrix(req)

	planCtx := constraint.NewContext(req.Tour.StartDate, len(req.Tour.Days), req.Prefs, req.Matrix, c.universe(req))
	orders := substituted(req.Tour.DayOrders(), req.Replacements)

	strategy := c.classify(req, poiMap)
	c.logger.ReoptStart(req.Tour.ID.String(), strategy, len(req.Replacements))

	var (
		newOrders [][]uuid.UUID
		rejected  []model.RejectedPOI
		ok        bool
	)

	switch strategy {
	case StrategyLocalSwap:
		newOrders, ok = c.localSwap(planCtx, orders, req.Replacements)
		if ok {
			rejected = mergeRejected(req.Tour.Rejected, nil, req.Replacements)
			break
		}
		strategy = StrategyDayLevel
		fallthrough
	case StrategyDayLevel:
		newOrders, rejected, ok = c.dayLevel(planCtx, orders, affectedDays(req), req.Replacements)
		if ok {
			rejected = mergeRejected(req.Tour.Rejected, rejected, req.Replacements)
			break
		}
		strategy = StrategyFullResolve
		fallthrough
	default:
		var err error
		newOrders, rejected, err = c.fullResolve(ctx, planCtx)
		if err != nil {
			return nil, err
		}
	}

	return c.compose(planCtx, req, strategy, newOrders, rejected), nil
}

// validate 校验替换请求
func (c *Coordinator) validate(req *Request, poiMap map[uuid.UUID]*model.POI) error {
	seen := make(map[uuid.UUID]bool)

	for _, r := range req.Replacements {
		if r.OriginalPOI == r.ReplacementPOI {
			return apperrors.InvalidReplacement(r.ReplacementPOI.String(), "替换与原 POI 相同")
		}
		if seen[r.OriginalPOI] {
			return apperrors.InvalidReplacement(r.OriginalPOI.String(), "同一原 POI 出现在多个替换请求中")
		}
		seen[r.OriginalPOI] = true

		_, _, origFound := req.Tour.FindVisit(r.OriginalPOI)
		_, _, replFound := req.Tour.FindVisit(r.ReplacementPOI)

		if !origFound {
			if replFound {
				// 幂等：原 POI 已被换出、替换 POI 已在行程中
				return apperrors.AlreadyApplied(r.ReplacementPOI.String())
			}
			if req.Tour.IsRejected(r.OriginalPOI) {
				return apperrors.InvalidReplacement(r.OriginalPOI.String(), "原 POI 未被安排，无法替换")
			}
			return apperrors.InvalidReplacement(r.OriginalPOI.String(), "原 POI 不在行程中")
		}
		if replFound {
			return apperrors.InvalidReplacement(r.ReplacementPOI.String(), "替换 POI 已在行程的其他位置")
		}
		if poiMap[r.ReplacementPOI] == nil {
			return apperrors.InvalidReplacement(r.ReplacementPOI.String(), "缺少替换 POI 的元数据")
		}
		if r.TargetDay >= len(req.Tour.Days) {
			return apperrors.InvalidReplacement(r.ReplacementPOI.String(), fmt.Sprintf("目标天 %d 超出行程范围", r.TargetDay))
		}
	}
	return nil
}

// extendMatrix 为替换引入的新 POI 增量扩展矩阵
// 只计算新旧配对，代价与已知 POI 数成正比
func (c *Coordinator) extendMatrix(req *Request) {
	known := make([]*model.POI, 0, len(req.POIs))
	fresh := make([]*model.POI, 0, len(req.Replacements))

	newIDs := make(map[uuid.UUID]bool)
	for _, r := range req.Replacements {
		newIDs[r.ReplacementPOI] = true
	}

	for _, poi := range req.POIs {
		if newIDs[poi.ID] {
			fresh = append(fresh, poi)
		} else {
			known = append(known, poi)
		}
	}

	for _, poi := range fresh {
		req.Matrix.Extend(poi, known)
		known = append(known, poi)
	}
}

// universe 返回替换后的行程 POI 全集（剔除被换出的原 POI）
func (c *Coordinator) universe(req *Request) []*model.POI {
	removed := make(map[uuid.UUID]bool, len(req.Replacements))
	for _, r := range req.Replacements {
		removed[r.OriginalPOI] = true
	}

	out := make([]*model.POI, 0, len(req.POIs))
	for _, poi := range req.POIs {
		if !removed[poi.ID] {
			out = append(out, poi)
		}
	}
	return out
}

// classify 按波及范围挑选策略
func (c *Coordinator) classify(req *Request, poiMap map[uuid.UUID]*model.POI) string {
	days := affectedDays(req)

	// 涉及硬约束能力的 POI 一律整体重算
	for _, r := range req.Replacements {
		for _, id := range []uuid.UUID{r.OriginalPOI, r.ReplacementPOI} {
			if poi := poiMap[id]; poi != nil && poi.HasHardCapabilities() {
				return StrategyFullResolve
			}
		}
	}

	if len(days) >= 3 {
		return StrategyFullResolve
	}

	if len(days) == 1 {
		crossDay := false
		for _, r := range req.Replacements {
			origDay, _, _ := req.Tour.FindVisit(r.OriginalPOI)
			if r.TargetDay >= 0 && r.TargetDay != origDay {
				crossDay = true
			}
		}
		if !crossDay && len(req.Tour.Days[days[0]].Visits) <= LocalSwapMaxDaySize {
			return StrategyLocalSwap
		}
	}

	return StrategyDayLevel
}

// affectedDays 返回受替换波及的天（升序去重）
func affectedDays(req *Request) []int {
	set := make(map[int]bool)
	for _, r := range req.Replacements {
		if day, _, found := req.Tour.FindVisit(r.OriginalPOI); found {
			set[day] = true
		}
		if r.TargetDay >= 0 {
			set[r.TargetDay] = true
		}
	}

	days := make([]int, 0, len(set))
	for d := range set {
		days = append(days, d)
	}
	for i := 0; i < len(days); i++ {
		for j := i + 1; j < len(days); j++ {
			if days[j] < days[i] {
				days[i], days[j] = days[j], days[i]
			}
		}
	}
	return days
}

// substituted 返回把原 POI 原位换成替换 POI 的布局
func substituted(orders [][]uuid.UUID, replacements []model.ReplacementRequest) [][]uuid.UUID {
	repl := make(map[uuid.UUID]uuid.UUID, len(replacements))
	for _, r := range replacements {
		repl[r.OriginalPOI] = r.ReplacementPOI
	}

	out := make([][]uuid.UUID, len(orders))
	for day, order := range orders {
		out[day] = make([]uuid.UUID, len(order))
		for i, id := range order {
			if to, hit := repl[id]; hit {
				out[day][i] = to
			} else {
				out[day][i] = id
			}
		}
	}
	return out
}

// localSwap 在单天内枚举替换 POI 的全部插入位置，取目标值最优的可行布局
// 其他天不被触碰
func (c *Coordinator) localSwap(planCtx *constraint.Context, orders [][]uuid.UUID, replacements []model.ReplacementRequest) ([][]uuid.UUID, bool) {
	r := replacements[0]
	day := -1
	for d, order := range orders {
		for _, id := range order {
			if id == r.ReplacementPOI {
				day = d
			}
		}
	}
	if day < 0 {
		return nil, false
	}

	// 取出替换 POI，留下当天其余顺序
	rest := make([]uuid.UUID, 0, len(orders[day])-1)
	for _, id := range orders[day] {
		if id != r.ReplacementPOI {
			rest = append(rest, id)
		}
	}

	bestCost := 0.0
	var best [][]uuid.UUID

	for pos := 0; pos <= len(rest); pos++ {
		candidate := make([]uuid.UUID, 0, len(rest)+1)
		candidate = append(candidate, rest[:pos]...)
		candidate = append(candidate, r.ReplacementPOI)
		candidate = append(candidate, rest[pos:]...)

		trial := cloneOrders(orders)
		trial[day] = candidate

		if !c.constraintManager.ValidOrders(planCtx, trial) {
			continue
		}

		evalCtx := planCtx.Clone()
		evalCtx.SetDayOrders(trial)
		cost := sequencer.DayCost(evalCtx, day)

		if best == nil || cost < bestCost {
			best = trial
			bestCost = cost
		}
	}

	return best, best != nil
}

// dayLevel 重排受影响的天，其余天保持原样
// 替换 POI 放不进去时放弃该策略，交给整体重算
func (c *Coordinator) dayLevel(planCtx *constraint.Context, orders [][]uuid.UUID, days []int, replacements []model.ReplacementRequest) ([][]uuid.UUID, []model.RejectedPOI, bool) {
	affected := make(map[int]bool, len(days))
	for _, d := range days {
		affected[d] = true
	}

	// 受影响天的 POI 汇总后重新放置
	var dayPOIs []*model.POI
	for _, d := range days {
		for _, id := range orders[d] {
			if poi := planCtx.POI(id); poi != nil {
				dayPOIs = append(dayPOIs, poi)
			}
		}
	}

	work := planCtx.Clone()
	base := cloneOrders(orders)
	for _, d := range days {
		base[d] = nil
	}
	work.SetDayOrders(base)

	units := sequencer.PlacementUnits(dayPOIs)
	var rejected []model.RejectedPOI

	// 记录每个单位最近一次放置失败的原因
	lastReason := make(map[*sequencer.Unit]string)

	for len(units) > 0 {
		bestUnit := -1
		bestCost := 0.0
		var bestCtx *constraint.Context

		for i, u := range units {
			for _, d := range days {
				candidate, cost, reason := c.tryAppend(work, u, d)
				if candidate == nil {
					lastReason[u] = reason
					continue
				}
				if bestUnit < 0 || cost < bestCost {
					bestUnit, bestCost, bestCtx = i, cost, candidate
				}
			}
		}

		if bestUnit < 0 {
			// 剩余单位放不下，带上具体失败原因
			for _, u := range units {
				reason := lastReason[u]
				if reason == "" {
					reason = "重排后当天无剩余时间预算"
				}
				for _, poi := range u.Members {
					rejected = append(rejected, model.RejectedPOI{
						POIID:  poi.ID,
						Name:   poi.Name,
						Reason: reason,
					})
				}
			}
			break
		}

		work = bestCtx
		units = append(units[:bestUnit], units[bestUnit+1:]...)
	}

	// 替换 POI 自己被挤出说明该策略不适用
	isRepl := make(map[uuid.UUID]bool, len(replacements))
	for _, r := range replacements {
		isRepl[r.ReplacementPOI] = true
	}
	for _, rj := range rejected {
		if isRepl[rj.POIID] {
			return nil, nil, false
		}
	}

	// 受影响天内做有界二邻域改进
	c.improveDays(work, days)

	return work.DayOrders, rejected, true
}

// tryAppend 尝试把单位整体追加到某天
// 失败时返回约束给出的原因
func (c *Coordinator) tryAppend(work *constraint.Context, u *sequencer.Unit, day int) (*constraint.Context, float64, string) {
	candidate := work.Clone()
	before := sequencer.DayCost(candidate, day)

	for _, poi := range u.Members {
		ok, reason := c.constraintManager.CanAppend(candidate, poi, day)
		if !ok {
			return nil, 0, reason
		}
		candidate.Append(day, poi.ID)
	}

	return candidate, sequencer.DayCost(candidate, day) - before, ""
}

// improveDays 对指定的天做有界二邻域改进
func (c *Coordinator) improveDays(work *constraint.Context, days []int) {
	const maxPasses = 10
	const epsilon = 1e-6

	for pass := 0; pass < maxPasses; pass++ {
		improved := false
		for _, day := range days {
			order := work.DayOrders[day]
			for i := 0; i < len(order)-1; i++ {
				for j := i + 1; j < len(order); j++ {
					candidate := append([]uuid.UUID(nil), order...)
					for l, r := i, j; l < r; l, r = l+1, r-1 {
						candidate[l], candidate[r] = candidate[r], candidate[l]
					}

					trial := cloneOrders(work.DayOrders)
					trial[day] = candidate

					evalCtx := work.Clone()
					evalCtx.SetDayOrders(trial)
					if sequencer.DayCost(evalCtx, day) >= sequencer.DayCost(work, day)-epsilon {
						continue
					}
					if !c.constraintManager.ValidOrders(work, trial) {
						continue
					}

					work.SetDayOrders(trial)
					order = work.DayOrders[day]
					improved = true
				}
			}
		}
		if !improved {
			return
		}
	}
}

// fullResolve 丢弃现有顺序，对全集重新求解
// 存在硬约束能力时走精确求解，失败回退启发式
func (c *Coordinator) fullResolve(ctx context.Context, planCtx *constraint.Context) ([][]uuid.UUID, []model.RejectedPOI, error) {
	hard := false
	for _, poi := range planCtx.POIs {
		if poi.HasHardCapabilities() {
			hard = true
			break
		}
	}

	seqResult, err := c.sequencer.Sequence(ctx, planCtx)
	if err != nil {
		return nil, nil, err
	}

	if hard {
		var warm [][]uuid.UUID
		if len(seqResult.Rejected) == 0 {
			warm = seqResult.DayOrders
		}
		exResult, err := c.solver.Solve(ctx, planCtx, warm)
		if err != nil {
			return nil, nil, err
		}
		if exResult.Status == exact.StatusOptimal || exResult.Status == exact.StatusFeasible {
			return exResult.DayOrders, nil, nil
		}
	}

	return seqResult.DayOrders, seqResult.Rejected, nil
}

// mergeRejected 合并原拒绝列表与新增拒绝，替换 POI 入选后移出拒绝列表
func mergeRejected(old, fresh []model.RejectedPOI, replacements []model.ReplacementRequest) []model.RejectedPOI {
	inRepl := make(map[uuid.UUID]bool)
	for _, r := range replacements {
		inRepl[r.ReplacementPOI] = true
	}

	out := make([]model.RejectedPOI, 0, len(old)+len(fresh))
	for _, r := range old {
		if !inRepl[r.POIID] {
			out = append(out, r)
		}
	}
	return append(out, fresh...)
}

// compose 组装新行程文档
func (c *Coordinator) compose(planCtx *constraint.Context, req *Request, strategy string, orders [][]uuid.UUID, rejected []model.RejectedPOI) *model.Tour {
	planCtx.SetDayOrders(orders)
	eval := c.constraintManager.Evaluate(planCtx)
	scores := schedule.ComputeScores(planCtx, eval)

	tour := req.Tour.Clone()
	tour.Days = schedule.BuildDays(planCtx)
	tour.Scores = scores
	tour.Rejected = rejected
	tour.AppendHistory(strategy, req.Replacements, scores)
	tour.UpdatedAt = time.Now()
	return tour
}

// cloneOrders 深拷贝布局
func cloneOrders(orders [][]uuid.UUID) [][]uuid.UUID {
	out := make([][]uuid.UUID, len(orders))
	for i, o := range orders {
		out[i] = append([]uuid.UUID(nil), o...)
	}
	return out
}
