// Package exact 提供精确求解器
// 对放置单位做分支定界的深度优先搜索，多工作协程共享当前最优解
package exact

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/xingcheng/xingcheng/pkg/logger"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
	"github.com/xingcheng/xingcheng/pkg/planner/sequencer"
)

const (
	// DefaultTimeBudget 默认求解时间预算
	DefaultTimeBudget = 30 * time.Second

	// DefaultGapLimit 提前接受的最优间隙阈值
	DefaultGapLimit = 0.05

	// costScale 目标值换算为千分位整数的比例
	costScale = 1000

	// nodeCheckInterval 每探索多少节点检查一次取消信号
	nodeCheckInterval = 256
)

// Status 求解状态
type Status string

const (
	StatusOptimal    Status = "optimal"    // 搜索完备，已证最优
	StatusFeasible   Status = "feasible"   // 时间或间隙截断，返回当前最优
	StatusInfeasible Status = "infeasible" // 无法安排全部 POI
	StatusTimeout    Status = "timeout"    // 超时且没有任何可行解
)

// Config 求解器配置
type Config struct {
	TimeBudget time.Duration `json:"time_budget"`
	GapLimit   float64       `json:"gap_limit"`
	Workers    int           `json:"workers"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		TimeBudget: DefaultTimeBudget,
		GapLimit:   DefaultGapLimit,
		Workers:    runtime.NumCPU(),
	}
}

// Result 求解结果
type Result struct {
	DayOrders      [][]uuid.UUID `json:"day_orders"`
	ObjectiveMilli int64         `json:"objective_milli"`
	Status         Status        `json:"status"`
	Gap            float64       `json:"gap"`
	Nodes          int64         `json:"nodes"`
	Duration       time.Duration `json:"duration"`
}

// Solver 精确求解器
type Solver struct {
	constraintManager *constraint.Manager
	logger            *logger.PlannerLogger
	cfg               Config
}

// NewSolver 创建精确求解器
func NewSolver(cm *constraint.Manager, cfg Config) *Solver {
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = DefaultTimeBudget
	}
	if cfg.GapLimit <= 0 {
		cfg.GapLimit = DefaultGapLimit
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Solver{
		constraintManager: cm,
		logger:            logger.NewPlannerLogger(),
		cfg:               cfg,
	}
}

// Name 返回求解器名称
func (s *Solver) Name() string {
	return "BranchAndBoundSolver"
}

// incumbent 工作协程共享的当前最优解
type incumbent struct {
	mu     sync.Mutex
	orders [][]uuid.UUID
	milli  int64
	found  bool
}

// update 尝试更新最优解，返回是否发生改进
func (b *incumbent) update(orders [][]uuid.UUID, milli int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.found && milli >= b.milli {
		return false
	}
	b.orders = cloneOrders(orders)
	b.milli = milli
	b.found = true
	return true
}

// best 读取当前最优解
func (b *incumbent) best() ([][]uuid.UUID, int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.orders, b.milli, b.found
}

// bound 读取剪枝界，未找到解时返回最大值
func (b *incumbent) bound() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.found {
		return math.MaxInt64
	}
	return b.milli
}

// Solve 求解布局，要求安排全部 POI
// warm 是可选的热启动布局，来自启发式定序器
func (s *Solver) Solve(ctx context.Context, planCtx *constraint.Context, warm [][]uuid.UUID) (*Result, error) {
	startTime := time.Now()

	if planCtx.DayCount <= 0 {
		return nil, fmt.Errorf("天数必须为正: %d", planCtx.DayCount)
	}

	units := sequencer.PlacementUnits(planCtx.POIs)
	result := &Result{Status: StatusInfeasible}

	if len(units) == 0 {
		result.Status = StatusOptimal
		result.DayOrders = make([][]uuid.UUID, planCtx.DayCount)
		result.Duration = time.Since(startTime)
		return result, nil
	}

	deadline, cancel := context.WithTimeout(ctx, s.cfg.TimeBudget)
	defer cancel()

	e := &search{
		solver:  s,
		units:   units,
		inc:     &incumbent{},
		ctx:     deadline,
		cancel:  cancel,
		lbMilli: unitBounds(planCtx, units),
	}
	for _, lb := range e.lbMilli {
		e.rootLB += lb
	}

	// 热启动：可行的定序器布局直接成为首个现任解
	if warm != nil && s.warmStartValid(planCtx, warm, units) {
		tmp := planCtx.Clone()
		tmp.SetDayOrders(warm)
		e.inc.update(warm, toMilli(sequencer.TotalCost(tmp)))
	}

	e.run(planCtx)

	result.Nodes = e.nodes.Load()
	result.Duration = time.Since(startTime)

	orders, milli, found := e.inc.best()

	switch {
	case found && deadline.Err() == nil:
		result.Status = StatusOptimal
	case found:
		result.Status = StatusFeasible
	case deadline.Err() != nil:
		result.Status = StatusTimeout
	default:
		result.Status = StatusInfeasible
	}

	if found {
		result.DayOrders = orders
		result.ObjectiveMilli = milli
		result.Gap = gap(milli, e.rootLB)
		if result.Status == StatusFeasible && result.Gap == 0 {
			result.Status = StatusOptimal
		}
		if result.Status == StatusOptimal {
			result.Gap = 0
		}
	}

	return result, nil
}

// warmStartValid 检查热启动布局是否覆盖全部 POI 且满足硬约束
func (s *Solver) warmStartValid(planCtx *constraint.Context, warm [][]uuid.UUID, units []*sequencer.Unit) bool {
	if len(warm) != planCtx.DayCount {
		return false
	}
	total := 0
	for _, u := range units {
		total += len(u.Members)
	}
	placed := 0
	for _, order := range warm {
		placed += len(order)
	}
	if placed != total {
		return false
	}
	return s.constraintManager.ValidOrders(planCtx, warm)
}

// search 一次求解的共享搜索状态
type search struct {
	solver     *Solver
	units      []*sequencer.Unit
	lbMilli    []int64
	rootLB     int64
	inc     *incumbent
	nodes   atomic.Int64
	ctx     context.Context
	cancel  context.CancelFunc
}

// rootTask 根节点的一个分支
type rootTask struct {
	unitIdx int // -1 表示关闭第 0 天
	work    *constraint.Context
	cost    float64
}

// run 生成根分支并由工作协程池并行探索
func (e *search) run(planCtx *constraint.Context) {
	base := planCtx.Clone()
	base.SetDayOrders(make([][]uuid.UUID, planCtx.DayCount))

	tasks := make([]rootTask, 0, len(e.units)+1)

	for i, u := range e.units {
		work, cost, ok := e.place(base, u, 0, 0)
		if !ok {
			continue
		}
		tasks = append(tasks, rootTask{unitIdx: i, work: work, cost: cost})
	}
	if planCtx.DayCount > 1 {
		// 第 0 天留空：某些 POI 可能只在之后的星期几开放
		tasks = append(tasks, rootTask{unitIdx: -1, work: base.Clone()})
	}

	workers := e.solver.cfg.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers < 1 {
		workers = 1
	}

	taskCh := make(chan rootTask)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				used := make([]bool, len(e.units))
				usedCount := 0
				day := 0
				if task.unitIdx >= 0 {
					used[task.unitIdx] = true
					usedCount = 1
				} else {
					day = 1
				}
				e.dfs(task.work, used, usedCount, day, task.cost)
			}
		}()
	}

	for _, task := range tasks {
		select {
		case taskCh <- task:
		case <-e.ctx.Done():
		}
		if e.ctx.Err() != nil {
			break
		}
	}
	close(taskCh)
	wg.Wait()
}

// dfs 深度优先分支定界
func (e *search) dfs(work *constraint.Context, used []bool, usedCount, day int, cost float64) {
	n := e.nodes.Add(1)
	if n%nodeCheckInterval == 0 && e.ctx.Err() != nil {
		return
	}

	if usedCount == len(e.units) {
		e.complete(work, cost)
		return
	}

	// 剪枝：当前代价加剩余下界不优于现任解
	lbRemain := int64(0)
	for i := range e.units {
		if !used[i] {
			lbRemain += e.lbMilli[i]
		}
	}
	if toMilli(cost)+lbRemain >= e.inc.bound() {
		return
	}

	for i, u := range e.units {
		if used[i] {
			continue
		}
		candidate, nextCost, ok := e.place(work, u, day, cost)
		if !ok {
			continue
		}
		used[i] = true
		e.dfs(candidate, used, usedCount+1, day, nextCost)
		used[i] = false

		if e.ctx.Err() != nil {
			return
		}
	}

	// 关闭当天，换下一天继续
	if day+1 < work.DayCount {
		e.dfs(work, used, usedCount, day+1, cost)
	}
}

// place 尝试把单位追加到某天末尾，返回候选上下文与累计代价
func (e *search) place(work *constraint.Context, u *sequencer.Unit, day int, cost float64) (*constraint.Context, float64, bool) {
	candidate := work.Clone()
	for _, poi := range u.Members {
		ok, _ := e.solver.constraintManager.CanAppend(candidate, poi, day)
		if !ok {
			return nil, 0, false
		}
		cost += appendCost(candidate, day, poi.ID)
		candidate.Append(day, poi.ID)
	}
	return candidate, cost, true
}

// complete 到达叶节点，完整布局成为候选现任解
func (e *search) complete(work *constraint.Context, cost float64) {
	if !e.solver.constraintManager.ValidOrders(work, work.DayOrders) {
		return
	}

	total := toMilli(cost + endLegsCost(work))
	if !e.inc.update(work.DayOrders, total) {
		return
	}

	// 间隙足够小则提前收敛
	if gap(total, e.rootLB) <= e.solver.cfg.GapLimit {
		e.cancel()
	}
}

// appendCost 计算把 POI 追加到某天末尾的进入代价
func appendCost(c *constraint.Context, day int, id uuid.UUID) float64 {
	prefs := c.Prefs
	order := c.DayOrders[day]

	if len(order) == 0 {
		poi := c.POI(id)
		if prefs.Start != nil && prefs.Start.HasCoordinates() && poi != nil && poi.Location.HasCoordinates() {
			return prefs.DistanceWeight * prefs.Start.Distance(poi.Location)
		}
		return 0
	}

	prev := order[len(order)-1]
	return prefs.DistanceWeight*c.Matrix.Distance(prev, id) -
		prefs.CoherenceWeight*c.Matrix.Coherence(prev, id)
}

// endLegsCost 计算各天末站到固定终点的返程代价
func endLegsCost(c *constraint.Context) float64 {
	prefs := c.Prefs
	if prefs.End == nil || !prefs.End.HasCoordinates() {
		return 0
	}

	cost := 0.0
	for _, order := range c.DayOrders {
		if len(order) == 0 {
			continue
		}
		last := c.POI(order[len(order)-1])
		if last != nil && last.Location.HasCoordinates() {
			cost += prefs.DistanceWeight * prefs.End.Distance(last.Location)
		}
	}
	return cost
}

// unitBounds 预计算每个单位的进入代价下界（千分位整数）
// 组内固定顺序的内部代价精确计入，进入边取全体前驱的最小值且不高于零
func unitBounds(c *constraint.Context, units []*sequencer.Unit) []int64 {
	prefs := c.Prefs
	bounds := make([]int64, len(units))

	for i, u := range units {
		head := u.Members[0]

		minEnter := 0.0
		for _, other := range c.POIs {
			if other.ID == head.ID {
				continue
			}
			edge := prefs.DistanceWeight*c.Matrix.Distance(other.ID, head.ID) -
				prefs.CoherenceWeight*c.Matrix.Coherence(other.ID, head.ID)
			if edge < minEnter {
				minEnter = edge
			}
		}

		internal := 0.0
		for j := 1; j < len(u.Members); j++ {
			internal += prefs.DistanceWeight*c.Matrix.Distance(u.Members[j-1].ID, u.Members[j].ID) -
				prefs.CoherenceWeight*c.Matrix.Coherence(u.Members[j-1].ID, u.Members[j].ID)
		}

		bounds[i] = toMilli(minEnter + internal)
	}
	return bounds
}

// gap 计算相对最优间隙
func gap(milli, lb int64) float64 {
	if milli <= lb {
		return 0
	}
	denom := math.Abs(float64(milli))
	if denom < 1 {
		denom = 1
	}
	return float64(milli-lb) / denom
}

// toMilli 换算为千分位整数
func toMilli(v float64) int64 {
	return int64(math.Round(v * costScale))
}

// cloneOrders 深拷贝布局
func cloneOrders(orders [][]uuid.UUID) [][]uuid.UUID {
	out := make([][]uuid.UUID, len(orders))
	for i, o := range orders {
		out[i] = append([]uuid.UUID(nil), o...)
	}
	return out
}
