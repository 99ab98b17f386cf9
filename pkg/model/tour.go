// Package model 定义行程规划引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// TravelLeg 前往下一个 POI 的步行段
type TravelLeg struct {
	ToPOIID    uuid.UUID `json:"to_poi_id"`
	DistanceKm float64   `json:"distance_km"`
	Hours      float64   `json:"hours"`
}

// Visit 一次景点访问
type Visit struct {
	POIID   uuid.UUID  `json:"poi_id"`
	POIName string     `json:"poi_name"`
	Start   time.Time  `json:"start"`
	End     time.Time  `json:"end"`
	Leg     *TravelLeg `json:"leg,omitempty"` // 前往下一站的步行段，末站为空
}

// Day 行程中的一天
type Day struct {
	Index          int     `json:"index"` // 从0开始
	Date           string  `json:"date"`  // YYYY-MM-DD
	Visits         []Visit `json:"visits"`
	TotalHours     float64 `json:"total_hours"`      // 游览+步行总时长
	TotalWalkingKm float64 `json:"total_walking_km"` // 步行总距离
}

// POIIDs 返回当天访问的 POI 顺序
func (d *Day) POIIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(d.Visits))
	for i, v := range d.Visits {
		ids[i] = v.POIID
	}
	return ids
}

// Scores 行程综合评分，均归一化到 [0,1]
type Scores struct {
	Distance  float64 `json:"distance_score"`
	Coherence float64 `json:"coherence_score"`
	Overall   float64 `json:"overall_score"`
}

// RejectedPOI 未能安排的 POI 及其原因
type RejectedPOI struct {
	POIID  uuid.UUID `json:"poi_id"`
	Name   string    `json:"name"`
	Reason string    `json:"reason"`
}

// BackupPOI 备选 POI（按原 POI 维度透传）
type BackupPOI struct {
	POIID      uuid.UUID `json:"poi_id"`
	Name       string    `json:"name"`
	Similarity float64   `json:"similarity"`
}

// ReplacementRequest POI 替换请求
type ReplacementRequest struct {
	OriginalPOI    uuid.UUID `json:"original_poi"`
	ReplacementPOI uuid.UUID `json:"replacement_poi"`
	TargetDay      int       `json:"target_day"` // -1 表示不限定
}

// HistoryEntry 重规划历史条目（只追加，不改写）
type HistoryEntry struct {
	ID           uuid.UUID            `json:"id"`
	Timestamp    time.Time            `json:"timestamp"`
	Strategy     string               `json:"strategy"` // local_swap/day_level/full_resolve
	Replacements []ReplacementRequest `json:"replacements"`
	Scores       Scores               `json:"scores"`
}

// SolveDiagnostics 求解诊断信息
type SolveDiagnostics struct {
	Status         string  `json:"status"` // optimal/feasible/timeout/infeasible/heuristic
	Exact          bool    `json:"exact"`
	ElapsedMs      int64   `json:"elapsed_ms"`
	Gap            float64 `json:"gap"` // 相对最优间隙，仅精确求解有意义
	FallbackReason string  `json:"fallback_reason,omitempty"`
}

// Tour 行程文档
// 变更始终整体替换：先计算完整的新状态，成功后一次性换入
type Tour struct {
	ID          uuid.UUID                 `json:"id"`
	Name        string                    `json:"name,omitempty"`
	StartDate   string                    `json:"start_date"` // YYYY-MM-DD
	Days        []Day                     `json:"days"`
	Scores      Scores                    `json:"scores"`
	Rejected    []RejectedPOI             `json:"rejected_pois"`
	Backups     map[uuid.UUID][]BackupPOI `json:"backup_pois,omitempty"`
	History     []HistoryEntry            `json:"reoptimization_history"`
	Diagnostics *SolveDiagnostics         `json:"diagnostics,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// FindVisit 查找 POI 在行程中的位置
// 返回天索引、当天位置以及是否找到
func (t *Tour) FindVisit(poiID uuid.UUID) (dayIndex, position int, found bool) {
	for di := range t.Days {
		for pi, v := range t.Days[di].Visits {
			if v.POIID == poiID {
				return di, pi, true
			}
		}
	}
	return -1, -1, false
}

// IsRejected 检查 POI 是否在落选列表中
func (t *Tour) IsRejected(poiID uuid.UUID) bool {
	for _, r := range t.Rejected {
		if r.POIID == poiID {
			return true
		}
	}
	return false
}

// ScheduledPOIIDs 返回所有已安排的 POI
func (t *Tour) ScheduledPOIIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, d := range t.Days {
		ids = append(ids, d.POIIDs()...)
	}
	return ids
}

// DayOrders 返回按天分组的 POI 顺序
func (t *Tour) DayOrders() [][]uuid.UUID {
	orders := make([][]uuid.UUID, len(t.Days))
	for i := range t.Days {
		orders[i] = t.Days[i].POIIDs()
	}
	return orders
}

// Clone 深拷贝行程文档
// 重规划在副本上计算，成功后整体替换原文档
func (t *Tour) Clone() *Tour {
	clone := *t

	clone.Days = make([]Day, len(t.Days))
	for i, d := range t.Days {
		nd := d
		nd.Visits = make([]Visit, len(d.Visits))
		for j, v := range d.Visits {
			nv := v
			if v.Leg != nil {
				leg := *v.Leg
				nv.Leg = &leg
			}
			nd.Visits[j] = nv
		}
		clone.Days[i] = nd
	}

	clone.Rejected = append([]RejectedPOI(nil), t.Rejected...)
	clone.History = append([]HistoryEntry(nil), t.History...)

	if t.Backups != nil {
		clone.Backups = make(map[uuid.UUID][]BackupPOI, len(t.Backups))
		for k, v := range t.Backups {
			clone.Backups[k] = append([]BackupPOI(nil), v...)
		}
	}

	if t.Diagnostics != nil {
		diag := *t.Diagnostics
		clone.Diagnostics = &diag
	}

	return &clone
}

// AppendHistory 追加一条重规划历史
func (t *Tour) AppendHistory(strategy string, replacements []ReplacementRequest, scores Scores) {
	t.History = append(t.History, HistoryEntry{
		ID:           uuid.New(),
		Timestamp:    time.Now(),
		Strategy:     strategy,
		Replacements: append([]ReplacementRequest(nil), replacements...),
		Scores:       scores,
	})
}
