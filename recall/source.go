package recall

import (
	"context"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
)

// Source 表示一个可复用的推荐源（CF / 内容 / 热门 / ...）。
// 下游混排把多个 Source 的输出按 method/label 区分后再合并。
type Source interface {
	Name() string
	Recommend(ctx context.Context, rctx *core.RecommendContext) ([]*core.Recommendation, error)
}

// ItemCFSource 把 Engine 包装为 Source：种子取自请求用户的书架。
type ItemCFSource struct {
	Engine *Engine

	// N 返回条数（0 取 DefaultRecommendations）
	N int

	// MinSimilarity 相似度下限（0 值生效：表示不过滤负分以外的候选时传 0）
	MinSimilarity float64
}

func (s *ItemCFSource) Name() string { return "recall.item_cf" }

func (s *ItemCFSource) Recommend(ctx context.Context, rctx *core.RecommendContext) ([]*core.Recommendation, error) {
	if s.Engine == nil || rctx == nil || rctx.UserKey == "" {
		return nil, nil
	}
	return s.Engine.RecommendForUser(ctx, rctx.UserKey, s.N, s.MinSimilarity)
}

// SourceNode 把 Source 接入 Pipeline：忽略上游输入，产出该源的推荐。
// 放在 Node 链头部，后接 filter/rerank 节点。
type SourceNode struct {
	Source Source
}

func (n *SourceNode) Name() string        { return n.Source.Name() }
func (n *SourceNode) Kind() pipeline.Kind { return pipeline.KindRecall }

func (n *SourceNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Recommendation,
) ([]*core.Recommendation, error) {
	return n.Source.Recommend(ctx, rctx)
}
