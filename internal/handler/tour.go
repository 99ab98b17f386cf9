// Package handler 提供HTTP请求处理器
// 处理器只做解码、调用引擎、编码，不承载规划逻辑
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/xingcheng/xingcheng/internal/constraints"
	"github.com/xingcheng/xingcheng/internal/metrics"
	"github.com/xingcheng/xingcheng/internal/repository"
	"github.com/xingcheng/xingcheng/pkg/errors"
	"github.com/xingcheng/xingcheng/pkg/matrix"
	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner"
	"github.com/xingcheng/xingcheng/pkg/stats"
	"github.com/xingcheng/xingcheng/pkg/validator"
)

// TourHandler 行程处理器
type TourHandler struct {
	engine *planner.Engine
	repo   repository.TourRepositoryInterface // 可为 nil，此时不落库
}

// NewTourHandler 创建行程处理器
func NewTourHandler(engine *planner.Engine, repo repository.TourRepositoryInterface) *TourHandler {
	return &TourHandler{engine: engine, repo: repo}
}

// GenerateRequest 行程生成请求
type GenerateRequest struct {
	Name        string                          `json:"name,omitempty"`
	StartDate   string                          `json:"start_date"`
	DayCount    int                             `json:"day_count"`
	Mode        string                          `json:"mode,omitempty"` // simple/ilp/auto
	POIs        []*model.POI                    `json:"pois"`
	Preferences *model.Preferences              `json:"preferences,omitempty"`
	Backups     map[uuid.UUID][]model.BackupPOI `json:"backup_pois,omitempty"`
}

// Generate 生成行程
func (h *TourHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	prefs := req.Preferences
	if prefs == nil {
		prefs = model.DefaultPreferences()
	}

	// 矩阵在此构建，成功后随行程一起落库，替换时按增量扩展复用
	m := matrix.Build(req.POIs, nil)

	start := time.Now()
	tour, err := h.engine.Generate(r.Context(), &planner.GenerateRequest{
		Name:      req.Name,
		StartDate: req.StartDate,
		DayCount:  req.DayCount,
		Mode:      req.Mode,
		POIs:      req.POIs,
		Prefs:     prefs,
		Backups:   req.Backups,
		Matrix:    m,
	})

	mode := req.Mode
	if mode == "" {
		mode = planner.ModeAuto
	}
	metrics.RecordPlanGeneration(mode, err == nil, time.Since(start))

	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	if tour.Diagnostics != nil {
		metrics.RecordSolverStatus(tour.Diagnostics.Status)
	}
	metrics.SetSolutionScore(tour.ID.String(), tour.Scores.Overall)
	metrics.SetRejectedPOIs(tour.ID.String(), len(tour.Rejected))

	if h.repo != nil {
		if err := h.repo.SaveWithMatrix(r.Context(), tour, m); err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "保存行程失败"))
			return
		}
	}

	respondJSON(w, http.StatusOK, tour)
}

// ReplaceRequest 行程替换请求
// Tour 缺省时按 TourID 从仓储加载
type ReplaceRequest struct {
	TourID       uuid.UUID                  `json:"tour_id,omitempty"`
	Tour         *model.Tour                `json:"tour,omitempty"`
	POIs         []*model.POI               `json:"pois"`
	Preferences  *model.Preferences         `json:"preferences,omitempty"`
	Replacements []model.ReplacementRequest `json:"replacements"`
}

// Replace 执行 POI 替换
func (h *TourHandler) Replace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req ReplaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	tour := req.Tour
	if tour == nil {
		if h.repo == nil || req.TourID == uuid.Nil {
			respondError(w, errors.New(errors.CodeInvalidInput, "缺少行程文档或行程ID"))
			return
		}
		loaded, err := h.repo.GetByID(r.Context(), req.TourID)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "加载行程失败"))
			return
		}
		if loaded == nil {
			respondError(w, errors.NotFound("行程", req.TourID.String()))
			return
		}
		tour = loaded
	}

	// 优先复用落库的矩阵，新 POI 由协调器增量扩展；缺失时才全量重建
	var m *matrix.Matrix
	if h.repo != nil {
		loaded, err := h.repo.GetMatrix(r.Context(), tour.ID)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "加载矩阵失败"))
			return
		}
		m = loaded
	}
	if m == nil {
		m = matrix.Build(req.POIs, nil)
	}

	updated, err := h.engine.Replace(r.Context(), &planner.ReplaceRequest{
		Tour:         tour,
		POIs:         req.POIs,
		Prefs:        req.Preferences,
		Replacements: req.Replacements,
		Matrix:       m,
	})

	strategy := "unknown"
	if updated != nil && len(updated.History) > 0 {
		strategy = updated.History[len(updated.History)-1].Strategy
	}
	metrics.RecordReoptStrategy(strategy, err == nil)

	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	metrics.SetSolutionScore(updated.ID.String(), updated.Scores.Overall)
	metrics.SetRejectedPOIs(updated.ID.String(), len(updated.Rejected))

	if h.repo != nil {
		if err := h.repo.SaveWithMatrix(r.Context(), updated, m); err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "保存行程失败"))
			return
		}
	}

	respondJSON(w, http.StatusOK, updated)
}

// ValidateRequest 行程验证请求
type ValidateRequest struct {
	Tour        *model.Tour        `json:"tour"`
	POIs        []*model.POI       `json:"pois"`
	Preferences *model.Preferences `json:"preferences,omitempty"`
}

// ValidateResponse 验证响应
type ValidateResponse struct {
	IsValid   bool                 `json:"is_valid"`
	Conflicts []validator.Conflict `json:"conflicts"`
}

// Validate 验证行程文档的不变量
func (h *TourHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if req.Tour == nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "行程文档不能为空"))
		return
	}

	prefs := req.Preferences
	if prefs == nil {
		prefs = model.DefaultPreferences()
	}

	v := validator.NewTourValidator(nil)
	conflicts := v.Validate(req.Tour, req.POIs, prefs)

	respondJSON(w, http.StatusOK, ValidateResponse{
		IsValid:   len(conflicts) == 0,
		Conflicts: conflicts,
	})
}

// StatsRequest 行程统计请求
type StatsRequest struct {
	Tour        *model.Tour        `json:"tour,omitempty"` // 为空时按 tour_id 从仓储加载
	TourID      uuid.UUID          `json:"tour_id,omitempty"`
	Preferences *model.Preferences `json:"preferences,omitempty"`
}

// StatsResponse 统计响应
type StatsResponse struct {
	Balance  *stats.BalanceMetrics  `json:"balance"`
	Coverage *stats.CoverageMetrics `json:"coverage"`
}

// Stats 计算行程的均衡性与覆盖率统计
func (h *TourHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req StatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}

	tour := req.Tour
	if tour == nil {
		if req.TourID == uuid.Nil {
			respondError(w, errors.New(errors.CodeInvalidInput, "需要提供行程文档或行程ID"))
			return
		}
		if h.repo == nil {
			respondError(w, errors.New(errors.CodeInternal, "仓储未配置"))
			return
		}
		loaded, err := h.repo.GetByID(r.Context(), req.TourID)
		if err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "加载行程失败"))
			return
		}
		if loaded == nil {
			respondError(w, errors.NotFound("行程", req.TourID.String()))
			return
		}
		tour = loaded
	}

	respondJSON(w, http.StatusOK, StatsResponse{
		Balance:  stats.NewBalanceAnalyzer().Analyze(tour),
		Coverage: stats.NewCoverageAnalyzer().Analyze(tour, req.Preferences),
	})
}

// ConstraintLibrary 返回约束库元数据
func (h *TourHandler) ConstraintLibrary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}
	respondJSON(w, http.StatusOK, constraints.LibraryResponse{Library: constraints.GetLibrary()})
}

// Get 按ID获取或删除行程
func (h *TourHandler) Get(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getByID(w, r)
	case http.MethodDelete:
		h.deleteByID(w, r)
	default:
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET/DELETE方法"))
	}
}

func (h *TourHandler) getByID(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		respondError(w, errors.New(errors.CodeInternal, "仓储未配置"))
		return
	}

	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的行程ID"))
		return
	}

	tour, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "加载行程失败"))
		return
	}
	if tour == nil {
		respondError(w, errors.NotFound("行程", id.String()))
		return
	}

	respondJSON(w, http.StatusOK, tour)
}

func (h *TourHandler) deleteByID(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		respondError(w, errors.New(errors.CodeInternal, "仓储未配置"))
		return
	}

	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的行程ID"))
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "删除行程失败"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": id})
}

// ListResponse 行程列表响应
type ListResponse struct {
	Tours []*model.Tour `json:"tours"`
	Total int           `json:"total"`
}

// List 列出行程，支持名称搜索与日期范围过滤
func (h *TourHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}
	if h.repo == nil {
		respondError(w, errors.New(errors.CodeInternal, "仓储未配置"))
		return
	}

	q := r.URL.Query()
	filter := repository.DefaultListFilter().WithDateRange(q.Get("start_date"), q.Get("end_date"))
	filter.Search = q.Get("search")
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		filter = filter.WithLimit(n)
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n >= 0 {
		filter = filter.WithOffset(n)
	}

	tours, total, err := h.repo.List(r.Context(), filter)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "查询行程列表失败"))
		return
	}
	if tours == nil {
		tours = []*model.Tour{}
	}

	respondJSON(w, http.StatusOK, ListResponse{Tours: tours, Total: total})
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}

// toAppError 将任意错误转为 AppError
func toAppError(err error) *errors.AppError {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr
	}
	return errors.Wrap(err, errors.CodeInternal, "内部错误")
}
