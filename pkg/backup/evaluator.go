// Package backup 提供备选 POI 推荐功能
package backup

import (
	"math"

	"github.com/xingcheng/xingcheng/pkg/matrix"
	"github.com/xingcheng/xingcheng/pkg/model"
)

// Evaluator 备选评估器
type Evaluator struct {
	policy matrix.CoherencePolicy
}

// NewEvaluator 创建备选评估器
func NewEvaluator(policy matrix.CoherencePolicy) *Evaluator {
	if policy == nil {
		policy = matrix.DefaultCoherencePolicy{}
	}
	return &Evaluator{policy: policy}
}

// Evaluation 备选评估结果
type Evaluation struct {
	Feasible       bool    `json:"feasible"`
	Score          float64 `json:"score"`      // 0-100
	Similarity     float64 `json:"similarity"` // 0-1，用于备选透传
	Issues         []Issue `json:"issues"`
	Recommendation string  `json:"recommendation"`
}

// Issue 备选问题
type Issue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // error/warning/info
	Message  string `json:"message"`
}

// 各相似度维度权重
const (
	coherenceWeight = 0.5
	proximityWeight = 0.3
	durationWeight  = 0.2
)

// Evaluate 评估候选 POI 作为原 POI 备选的适合程度
func (e *Evaluator) Evaluate(original, candidate *model.POI, prefs *model.Preferences) *Evaluation {
	result := &Evaluation{
		Feasible: true,
		Issues:   make([]Issue, 0),
	}

	// 1. 基础检查
	if original == nil || candidate == nil {
		result.Feasible = false
		result.Issues = append(result.Issues, Issue{
			Type:     "invalid_request",
			Severity: "error",
			Message:  "无效的备选评估请求",
		})
		return result
	}
	if original.ID == candidate.ID {
		result.Feasible = false
		result.Issues = append(result.Issues, Issue{
			Type:     "self_replacement",
			Severity: "error",
			Message:  "候选与原 POI 相同",
		})
		return result
	}

	// 2. 检查候选是否全周闭馆
	if allWeekClosed(candidate) {
		result.Feasible = false
		result.Issues = append(result.Issues, Issue{
			Type:     "always_closed",
			Severity: "error",
			Message:  "候选 POI 全周闭馆: " + candidate.Name,
		})
		return result
	}

	// 3. 检查游览时长是否超出单日预算
	if prefs != nil && candidate.VisitHours > prefs.DayBudgetHours() {
		result.Feasible = false
		result.Issues = append(result.Issues, Issue{
			Type:     "over_budget",
			Severity: "error",
			Message:  "候选 POI 游览时长超出单日预算",
		})
		return result
	}

	// 4. 预订类候选给出提示但不拦截
	if candidate.Booking != nil && candidate.Booking.Required {
		result.Issues = append(result.Issues, Issue{
			Type:     "booking_required",
			Severity: "warning",
			Message:  "候选 POI 需要预订，替换前请确认预订窗口",
		})
	}

	// 5. 计算相似度
	coherence := e.policy.Score(original, candidate)
	proximity := proximityScore(original, candidate)
	duration := durationScore(original, candidate)

	result.Similarity = coherenceWeight*coherence + proximityWeight*proximity + durationWeight*duration
	result.Score = result.Similarity * 100

	// 预订提示轻微扣分
	if candidate.Booking != nil && candidate.Booking.Required {
		result.Score = math.Max(0, result.Score-5)
	}

	// 6. 生成建议
	result.Recommendation = e.generateRecommendation(result)

	return result
}

// allWeekClosed 候选是否一周七天均闭馆
func allWeekClosed(poi *model.POI) bool {
	if poi.OpeningHours == nil {
		return false
	}
	for weekday := 0; weekday < 7; weekday++ {
		if !poi.OpeningHours.IsClosedAllDay(weekday) {
			return false
		}
	}
	return true
}

// proximityScore 距离相似度，随距离指数衰减
func proximityScore(a, b *model.POI) float64 {
	if !a.Location.HasCoordinates() || !b.Location.HasCoordinates() {
		return 0.5
	}
	distKm := a.Location.Distance(b.Location)
	return math.Exp(-distKm / 3.0)
}

// durationScore 游览时长相似度
func durationScore(a, b *model.POI) float64 {
	longer := math.Max(a.VisitHours, b.VisitHours)
	if longer <= 0 {
		return 1.0
	}
	return 1.0 - math.Abs(a.VisitHours-b.VisitHours)/longer
}

// generateRecommendation 生成备选建议
func (e *Evaluator) generateRecommendation(result *Evaluation) string {
	if !result.Feasible {
		return "不建议作为备选，存在硬性问题"
	}

	if result.Score >= 80 {
		return "强烈推荐，与原 POI 高度相似"
	} else if result.Score >= 60 {
		return "可以作为备选，主题或位置略有差异"
	} else if result.Score >= 40 {
		return "谨慎选择，体验与原 POI 差异较大"
	}
	return "不推荐，相似度过低"
}

// CanReplace 快速检查候选是否可作为备选
func (e *Evaluator) CanReplace(original, candidate *model.POI, prefs *model.Preferences) (bool, string) {
	result := e.Evaluate(original, candidate, prefs)
	if !result.Feasible {
		if len(result.Issues) > 0 {
			return false, result.Issues[0].Message
		}
		return false, "无法作为备选"
	}
	return true, ""
}
