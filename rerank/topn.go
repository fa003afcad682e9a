package rerank

import (
	"context"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，用于在过滤/阈值之后截取前 N 条推荐。
//
// 使用场景：
//   - 控制返回结果数量（首页 6 本、详情页 20 本）
//   - 混排后统一截断
type TopNNode struct {
	// N 要保留的推荐数量（Top N）
	// 如果 N <= 0，则返回所有推荐（不截断）
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	recs []*core.Recommendation,
) ([]*core.Recommendation, error) {
	if n.N <= 0 {
		return recs, nil
	}
	if len(recs) <= n.N {
		return recs, nil
	}
	return recs[:n.N], nil
}
