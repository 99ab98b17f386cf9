package schedule

import (
	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
)

// distanceNormalizerKm 距离得分的归一化基准：每天步行该公里数时得分 0.5
const distanceNormalizerKm = 10.0

// ComputeScores 计算行程的归一化评分
// 距离分随日均步行递减，连贯分取相邻访问的平均连贯度，
// 综合分按偏好权重混合并按软约束惩罚打折
func ComputeScores(planCtx *constraint.Context, eval *constraint.Result) model.Scores {
	prefs := planCtx.Prefs

	totalWalkKm := 0.0
	cohSum := 0.0
	transitions := 0

	for day := range planCtx.DayOrders {
		_, _, walkKm := planCtx.SimulateDay(day)
		totalWalkKm += walkKm

		order := planCtx.DayOrders[day]
		for i := 1; i < len(order); i++ {
			cohSum += planCtx.Matrix.Coherence(order[i-1], order[i])
			transitions++
		}
	}

	days := planCtx.DayCount
	if days < 1 {
		days = 1
	}

	distanceScore := 1.0 / (1.0 + totalWalkKm/(distanceNormalizerKm*float64(days)))

	coherenceScore := 1.0
	if transitions > 0 {
		coherenceScore = cohSum / float64(transitions)
	}

	wd, wc := prefs.DistanceWeight, prefs.CoherenceWeight
	if wd+wc == 0 {
		wd, wc = 1, 1
	}
	overall := (wd*distanceScore + wc*coherenceScore) / (wd + wc)

	if eval != nil {
		overall -= prefs.PenaltyWeight * (1.0 - eval.Score/100.0)
	}

	return model.Scores{
		Distance:  clamp01(distanceScore),
		Coherence: clamp01(coherenceScore),
		Overall:   clamp01(overall),
	}
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
