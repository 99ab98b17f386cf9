// Package planner 行程规划引擎入口
// 组合矩阵、约束、定序器、精确求解器与重优化协调器
package planner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xingcheng/xingcheng/pkg/backup"
	apperrors "github.com/xingcheng/xingcheng/pkg/errors"
	"github.com/xingcheng/xingcheng/pkg/logger"
	"github.com/xingcheng/xingcheng/pkg/matrix"
	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint/builtin"
	"github.com/xingcheng/xingcheng/pkg/planner/exact"
	"github.com/xingcheng/xingcheng/pkg/planner/reopt"
	"github.com/xingcheng/xingcheng/pkg/planner/schedule"
	"github.com/xingcheng/xingcheng/pkg/planner/sequencer"
)

// 求解模式
const (
	ModeSimple     = "simple"     // 仅启发式定序
	ModeILP        = "ilp"        // 精确求解，失败回退启发式
	ModeReoptimize = "reoptimize" // 对已有行程做替换重优化
	ModeAuto       = "auto"       // 按 POI 能力自动选择
)

// Engine 行程规划引擎
// 同一行程的生成与替换调用按行程ID串行化
type Engine struct {
	constraintManager *constraint.Manager
	sequencer         *sequencer.Sequencer
	solver            *exact.Solver
	coordinator       *reopt.Coordinator
	logger            *logger.PlannerLogger

	lockMu sync.Mutex
	locks  map[uuid.UUID]*sync.Mutex
}

// NewEngine 创建引擎
// cm 为 nil 时使用内置默认约束集
func NewEngine(cm *constraint.Manager, cfg exact.Config) *Engine {
	if cm == nil {
		cm = builtin.NewDefaultManager()
	}
	seq := sequencer.NewSequencer(cm)
	solver := exact.NewSolver(cm, cfg)

	return &Engine{
		constraintManager: cm,
		sequencer:         seq,
		solver:            solver,
		coordinator:       reopt.NewCoordinator(cm, seq, solver),
		logger:            logger.NewPlannerLogger(),
		locks:             make(map[uuid.UUID]*sync.Mutex),
	}
}

// ConstraintManager 返回引擎使用的约束管理器
func (e *Engine) ConstraintManager() *constraint.Manager {
	return e.constraintManager
}

// GenerateRequest 行程生成请求
type GenerateRequest struct {
	TourID    uuid.UUID                       `json:"tour_id"` // 零值时自动分配
	Name      string                          `json:"name"`
	StartDate string                          `json:"start_date"` // YYYY-MM-DD
	DayCount  int                             `json:"day_count"`
	Mode      string                          `json:"mode"` // simple/ilp/auto，空值按 auto
	POIs      []*model.POI                    `json:"pois"`
	Prefs     *model.Preferences              `json:"preferences"`
	Backups   map[uuid.UUID][]model.BackupPOI `json:"backup_pois,omitempty"`
	Matrix    *matrix.Matrix                  `json:"-"` // 可复用已有矩阵，nil 时现场构建
}

// Generate 生成行程文档
func (e *Engine) Generate(ctx context.Context, req *GenerateRequest) (*model.Tour, error) {
	if err := validateGenerate(req); err != nil {
		return nil, err
	}

	tourID := req.TourID
	if tourID == uuid.Nil {
		tourID = uuid.New()
	}

	lock := e.lockFor(tourID)
	lock.Lock()
	defer lock.Unlock()

	startTime := time.Now()
	e.logger.StartPlan(tourID.String(), len(req.POIs), req.DayCount)

	m := req.Matrix
	if m == nil {
		m = matrix.Build(req.POIs, nil)
	}

	planCtx := constraint.NewContext(req.StartDate, req.DayCount, req.Prefs, m, req.POIs)

	mode := resolveMode(req.Mode, req.POIs)
	orders, rejected, diag, err := e.solve(ctx, tourID, planCtx, mode)
	if err != nil {
		return nil, err
	}

	planCtx.SetDayOrders(orders)
	eval := e.constraintManager.Evaluate(planCtx)
	scores := schedule.ComputeScores(planCtx, eval)

	backups := req.Backups
	if backups == nil {
		backups = e.recommendBackups(req.POIs, req.Prefs, rejected)
	}

	now := time.Now()
	tour := &model.Tour{
		ID:          tourID,
		Name:        req.Name,
		StartDate:   req.StartDate,
		Days:        schedule.BuildDays(planCtx),
		Scores:      scores,
		Rejected:    rejected,
		Backups:     backups,
		Diagnostics: diag,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	e.logger.PlanComplete(tourID.String(), time.Since(startTime), scores.Overall)
	return tour, nil
}

// ReplaceRequest 行程替换请求
type ReplaceRequest struct {
	Tour         *model.Tour                `json:"tour"`
	POIs         []*model.POI               `json:"pois"`
	Prefs        *model.Preferences         `json:"preferences"`
	Replacements []model.ReplacementRequest `json:"replacements"`
	Matrix       *matrix.Matrix             `json:"-"` // nil 时按全量 POI 现场构建
}

// Replace 对已有行程执行 POI 替换
// 返回新行程文档，原文档不被修改；校验失败时无副作用
func (e *Engine) Replace(ctx context.Context, req *ReplaceRequest) (*model.Tour, error) {
	if req.Tour == nil {
		return nil, apperrors.InvalidInput("tour", "行程不能为空")
	}

	lock := e.lockFor(req.Tour.ID)
	lock.Lock()
	defer lock.Unlock()

	m := req.Matrix
	if m == nil {
		m = matrix.Build(req.POIs, nil)
	}

	prefs := req.Prefs
	if prefs == nil {
		prefs = model.DefaultPreferences()
	}

	return e.coordinator.Apply(ctx, &reopt.Request{
		Tour:         req.Tour,
		POIs:         req.POIs,
		Matrix:       m,
		Prefs:        prefs,
		Replacements: req.Replacements,
	})
}

// solve 按模式求解，返回布局、落选列表与诊断
func (e *Engine) solve(ctx context.Context, tourID uuid.UUID, planCtx *constraint.Context, mode string) ([][]uuid.UUID, []model.RejectedPOI, *model.SolveDiagnostics, error) {
	seqResult, err := e.sequencer.Sequence(ctx, planCtx)
	if err != nil {
		return nil, nil, nil, err
	}

	if mode == ModeSimple {
		diag := &model.SolveDiagnostics{
			Status:    "heuristic",
			Exact:     false,
			ElapsedMs: seqResult.Duration.Milliseconds(),
		}
		return seqResult.DayOrders, seqResult.Rejected, diag, nil
	}

	// 精确求解面向全量 POI：启发式放不下的 POI 仍留在问题里，
	// 只有求解器证明全覆盖不可行（或超时）才回退启发式，落选由定序器给出
	var warm [][]uuid.UUID
	if len(seqResult.Rejected) == 0 {
		warm = seqResult.DayOrders
	}

	exactResult, err := e.solver.Solve(ctx, planCtx, warm)
	if err != nil {
		return nil, nil, nil, err
	}

	diag := &model.SolveDiagnostics{
		Status:    string(exactResult.Status),
		Exact:     true,
		ElapsedMs: exactResult.Duration.Milliseconds(),
		Gap:       exactResult.Gap,
	}

	switch exactResult.Status {
	case exact.StatusOptimal, exact.StatusFeasible:
		return exactResult.DayOrders, nil, diag, nil
	default:
		reason := fmt.Sprintf("精确求解 %s，回退启发式结果", exactResult.Status)
		e.logger.FallbackToHeuristic(tourID.String(), reason)
		diag.Exact = false
		diag.FallbackReason = reason
		return seqResult.DayOrders, seqResult.Rejected, diag, nil
	}
}

// recommendBackups 未提供备选时，把落选 POI 按相似度挂到已安排的 POI 名下
func (e *Engine) recommendBackups(pois []*model.POI, prefs *model.Preferences, rejected []model.RejectedPOI) map[uuid.UUID][]model.BackupPOI {
	if len(rejected) == 0 {
		return nil
	}

	rejectedSet := make(map[uuid.UUID]bool, len(rejected))
	for _, r := range rejected {
		rejectedSet[r.POIID] = true
	}

	pool := make([]*model.POI, 0, len(rejected))
	for _, poi := range pois {
		if rejectedSet[poi.ID] {
			pool = append(pool, poi)
		}
	}
	if len(pool) == 0 {
		return nil
	}

	recommender := backup.NewRecommender(nil)
	result := make(map[uuid.UUID][]model.BackupPOI)
	for _, poi := range pois {
		if rejectedSet[poi.ID] {
			continue
		}
		if backups := recommender.BackupsFor(poi, pool, prefs, nil); len(backups) > 0 {
			result[poi.ID] = backups
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// lockFor 返回行程专属互斥锁
func (e *Engine) lockFor(id uuid.UUID) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()

	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

// resolveMode 解析求解模式
// auto 按硬约束能力自动选择：有预约/联票/先后关系的走精确求解
func resolveMode(mode string, pois []*model.POI) string {
	if mode == "" {
		mode = ModeAuto
	}
	if mode != ModeAuto {
		return mode
	}
	for _, poi := range pois {
		if poi.HasHardCapabilities() {
			return ModeILP
		}
	}
	return ModeSimple
}

func validateGenerate(req *GenerateRequest) error {
	if req == nil {
		return apperrors.InvalidInput("request", "请求不能为空")
	}
	if len(req.POIs) == 0 {
		return apperrors.InvalidInput("pois", "POI 列表不能为空")
	}
	if req.DayCount <= 0 {
		return apperrors.InvalidInput("day_count", "天数必须为正")
	}
	if _, err := time.Parse("2006-01-02", req.StartDate); err != nil {
		return apperrors.New(apperrors.CodeInvalidTimeRange, "起始日期格式应为 YYYY-MM-DD").WithDetails(req.StartDate)
	}
	switch req.Mode {
	case "", ModeAuto, ModeSimple, ModeILP:
	case ModeReoptimize:
		return apperrors.InvalidInput("mode", "重优化请使用 Replace 接口")
	default:
		return apperrors.InvalidInput("mode", fmt.Sprintf("未知求解模式: %s", req.Mode))
	}
	return nil
}
