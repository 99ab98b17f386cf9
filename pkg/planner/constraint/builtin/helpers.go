package builtin

import (
	"github.com/google/uuid"
	"github.com/xingcheng/xingcheng/pkg/model"
	"github.com/xingcheng/xingcheng/pkg/planner/constraint"
)

// withAppended 返回把 POI 追加到某天末尾后的候选上下文
func withAppended(ctx *constraint.Context, poi *model.POI, day int) *constraint.Context {
	candidate := ctx.Clone()
	candidate.Append(day, poi.ID)
	return candidate
}

// inputIndex 返回 POI 在输入列表中的序号，不存在时返回 -1
func inputIndex(ctx *constraint.Context, id uuid.UUID) int {
	for i, poi := range ctx.POIs {
		if poi.ID == id {
			return i
		}
	}
	return -1
}
