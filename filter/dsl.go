package filter

import (
	"context"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pkg/dsl"
)

// DSLFilter 用 CEL 表达式过滤推荐结果。
// 表达式为"保留条件"：求值为 false 的推荐被移除。
//
// 示例：
//   - `rec.score >= 0.2` → 只留高相似度候选
//   - `rec.title != "Unknown"` → 丢掉没有元数据的候选
//   - `label.recall_source == "item_cf"` → 只留 CF 来源
type DSLFilter struct {
	// Expr 是 CEL 保留条件表达式；空表达式保留所有
	Expr string
}

func (f *DSLFilter) Name() string {
	return "filter.dsl"
}

func (f *DSLFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	rec *core.Recommendation,
) (bool, error) {
	if f.Expr == "" || rec == nil {
		return rec == nil, nil
	}
	keep, err := dsl.NewEval(rec, rctx).Evaluate(f.Expr)
	if err != nil {
		return false, err
	}
	return !keep, nil
}
