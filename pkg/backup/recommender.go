package backup

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/xingcheng/xingcheng/pkg/errors"
	"github.com/xingcheng/xingcheng/pkg/matrix"
	"github.com/xingcheng/xingcheng/pkg/model"
)

// Recommender 备选 POI 推荐器
type Recommender struct {
	evaluator *Evaluator
}

// NewRecommender 创建备选推荐器
func NewRecommender(policy matrix.CoherencePolicy) *Recommender {
	return &Recommender{
		evaluator: NewEvaluator(policy),
	}
}

// Recommendation 备选推荐结果
type Recommendation struct {
	POI        *model.POI `json:"poi"`
	Score      float64    `json:"score"`
	Similarity float64    `json:"similarity"`
	Reason     string     `json:"reason"`
	Rank       int        `json:"rank"`
}

// RecommendOptions 推荐选项
type RecommendOptions struct {
	MaxRecommendations int                `json:"max_recommendations"`
	MinScore           float64            `json:"min_score"`
	ExcludePOIs        map[uuid.UUID]bool `json:"-"`
}

// DefaultRecommendOptions 默认推荐选项
func DefaultRecommendOptions() *RecommendOptions {
	return &RecommendOptions{
		MaxRecommendations: 5,
		MinScore:           40,
	}
}

// Recommend 为原 POI 从候选池中推荐备选
// 返回按得分降序排列的推荐列表
func (r *Recommender) Recommend(
	original *model.POI,
	candidates []*model.POI,
	prefs *model.Preferences,
	opts *RecommendOptions,
) []*Recommendation {
	if opts == nil {
		opts = DefaultRecommendOptions()
	}

	recommendations := make([]*Recommendation, 0)

	for _, candidate := range candidates {
		if candidate == nil || candidate.ID == original.ID {
			continue
		}
		if opts.ExcludePOIs != nil && opts.ExcludePOIs[candidate.ID] {
			continue
		}

		evaluation := r.evaluator.Evaluate(original, candidate, prefs)
		if !evaluation.Feasible {
			continue
		}
		if evaluation.Score < opts.MinScore {
			continue
		}

		recommendations = append(recommendations, &Recommendation{
			POI:        candidate,
			Score:      evaluation.Score,
			Similarity: evaluation.Similarity,
			Reason:     evaluation.Recommendation,
		})
	}

	// 按得分降序，得分相同按名称保证稳定
	sort.Slice(recommendations, func(i, j int) bool {
		if recommendations[i].Score != recommendations[j].Score {
			return recommendations[i].Score > recommendations[j].Score
		}
		return recommendations[i].POI.Name < recommendations[j].POI.Name
	})

	if opts.MaxRecommendations > 0 && len(recommendations) > opts.MaxRecommendations {
		recommendations = recommendations[:opts.MaxRecommendations]
	}

	for i, rec := range recommendations {
		rec.Rank = i + 1
	}

	return recommendations
}

// BackupsFor 生成可直接写入行程文档的备选列表
func (r *Recommender) BackupsFor(
	original *model.POI,
	candidates []*model.POI,
	prefs *model.Preferences,
	opts *RecommendOptions,
) []model.BackupPOI {
	recommendations := r.Recommend(original, candidates, prefs, opts)
	if len(recommendations) == 0 {
		return nil
	}

	backups := make([]model.BackupPOI, 0, len(recommendations))
	for _, rec := range recommendations {
		backups = append(backups, model.BackupPOI{
			POIID:      rec.POI.ID,
			Name:       rec.POI.Name,
			Similarity: rec.Similarity,
		})
	}
	return backups
}

// FindBestReplacement 查找最佳备选
func (r *Recommender) FindBestReplacement(
	original *model.POI,
	candidates []*model.POI,
	prefs *model.Preferences,
) (*Recommendation, error) {
	opts := &RecommendOptions{
		MaxRecommendations: 1,
		MinScore:           0,
	}

	recommendations := r.Recommend(original, candidates, prefs, opts)
	if len(recommendations) == 0 {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("没有找到 %s 的可行备选", original.Name))
	}

	return recommendations[0], nil
}
