// Package matrix 提供 POI 两两距离与叙事连贯性矩阵
package matrix

import (
	"sync"

	"github.com/google/uuid"
	"github.com/xingcheng/xingcheng/pkg/model"
)

// FallbackDistanceKm 坐标缺失时的保底距离（公里）
// 坐标缺失不视为错误，按固定距离参与计算
const FallbackDistanceKm = 2.0

// Entry 一对 POI 的距离与连贯性
type Entry struct {
	DistanceKm float64 `json:"distance_km"`
	Coherence  float64 `json:"coherence_score"`
}

// Key 无序 POI 对的规范化键（A 的ID字典序小于 B）
type Key struct {
	A uuid.UUID `json:"a"`
	B uuid.UUID `json:"b"`
}

// NewKey 构造规范化键
func NewKey(a, b uuid.UUID) Key {
	if a.String() > b.String() {
		a, b = b, a
	}
	return Key{A: a, B: b}
}

// Matrix 两两距离/连贯性矩阵
// 条目只追加、写入后不再变更，可安全并发读取
type Matrix struct {
	mu      sync.RWMutex
	entries map[Key]Entry
	policy  CoherencePolicy
}

// New 创建空矩阵
func New(policy CoherencePolicy) *Matrix {
	if policy == nil {
		policy = DefaultCoherencePolicy{}
	}
	return &Matrix{
		entries: make(map[Key]Entry),
		policy:  policy,
	}
}

// Build 为 POI 列表构建完整矩阵
func Build(pois []*model.POI, policy CoherencePolicy) *Matrix {
	m := New(policy)
	for i := 0; i < len(pois); i++ {
		for j := i + 1; j < len(pois); j++ {
			m.add(pois[i], pois[j])
		}
	}
	return m
}

// Extend 为新增 POI 增量扩展矩阵
// 只计算 (新POI, 已有POI) 的配对，复杂度 O(|existing|)；
// 已缓存的条目不会被重算或覆盖。返回新增条目数。
func (m *Matrix) Extend(poi *model.POI, existing []*model.POI) int {
	added := 0
	for _, other := range existing {
		if other.ID == poi.ID {
			continue
		}
		if m.add(poi, other) {
			added++
		}
	}
	return added
}

// add 写入一对条目；已存在时不做任何变更
func (m *Matrix) add(a, b *model.POI) bool {
	key := NewKey(a.ID, b.ID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; exists {
		return false
	}

	m.entries[key] = Entry{
		DistanceKm: distanceBetween(a, b),
		Coherence:  clamp01(m.policy.Score(a, b)),
	}
	return true
}

// distanceBetween 计算两个 POI 的距离
// 任一方坐标缺失时使用保底距离
func distanceBetween(a, b *model.POI) float64 {
	if !a.Location.HasCoordinates() || !b.Location.HasCoordinates() {
		return FallbackDistanceKm
	}
	return a.Location.Distance(b.Location)
}

// Get 读取一对条目
func (m *Matrix) Get(a, b uuid.UUID) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[NewKey(a, b)]
	return e, ok
}

// Distance 读取两 POI 距离；未缓存时返回保底距离
func (m *Matrix) Distance(a, b uuid.UUID) float64 {
	if a == b {
		return 0
	}
	if e, ok := m.Get(a, b); ok {
		return e.DistanceKm
	}
	return FallbackDistanceKm
}

// Coherence 读取两 POI 连贯性；未缓存时返回 0
func (m *Matrix) Coherence(a, b uuid.UUID) float64 {
	if e, ok := m.Get(a, b); ok {
		return e.Coherence
	}
	return 0
}

// Len 返回条目数
func (m *Matrix) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Snapshot 导出全部条目的拷贝（用于持久化）
func (m *Matrix) Snapshot() map[Key]Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[Key]Entry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

// Restore 从持久化数据恢复矩阵
func Restore(entries map[Key]Entry, policy CoherencePolicy) *Matrix {
	m := New(policy)
	for k, v := range entries {
		m.entries[k] = v
	}
	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
