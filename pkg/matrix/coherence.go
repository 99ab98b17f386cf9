// Package matrix 提供 POI 两两距离与叙事连贯性矩阵
package matrix

import (
	"math"

	"github.com/xingcheng/xingcheng/pkg/model"
)

// CoherencePolicy 连贯性评分策略
// 实现必须确定性、有界 [0,1]；具体公式可插拔
type CoherencePolicy interface {
	// Score 评估两个 POI 顺序游览时的叙事契合度
	Score(a, b *model.POI) float64
}

// DefaultCoherencePolicy 默认连贯性策略
// 综合时代匹配、主题重叠与空间邻近三项
type DefaultCoherencePolicy struct{}

// 各项权重
const (
	eraWeight       = 0.4
	topicWeight     = 0.4
	proximityWeight = 0.2

	// proximityScaleKm 邻近度衰减尺度（公里）
	proximityScaleKm = 2.0
)

// Score 计算连贯性，确定性且始终落在 [0,1]
func (DefaultCoherencePolicy) Score(a, b *model.POI) float64 {
	score := eraWeight*eraMatch(a, b) +
		topicWeight*topicOverlap(a, b) +
		proximityWeight*proximity(a, b)
	return clamp01(score)
}

// eraMatch 时代标签完全一致得满分
func eraMatch(a, b *model.POI) float64 {
	if a.Era == "" || b.Era == "" {
		return 0.5 // 信息缺失时取中性值
	}
	if a.Era == b.Era {
		return 1.0
	}
	return 0
}

// topicOverlap 主题标签的 Jaccard 重叠度
func topicOverlap(a, b *model.POI) float64 {
	if len(a.Topics) == 0 || len(b.Topics) == 0 {
		return 0.5
	}

	set := make(map[string]bool, len(a.Topics))
	for _, t := range a.Topics {
		set[t] = true
	}

	common := 0
	for _, t := range b.Topics {
		if set[t] {
			common++
		}
	}

	union := len(a.Topics) + len(b.Topics) - common
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union)
}

// proximity 空间邻近度，距离按指数衰减
func proximity(a, b *model.POI) float64 {
	return math.Exp(-distanceBetween(a, b) / proximityScaleKm)
}
