package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
)

// ThresholdNode 按相似度下限过滤并按得分降序稳定排序。
// 引擎出口已经按阈值过滤过一次；该节点用于混排后对合并列表再收口。
type ThresholdNode struct {
	// MinScore 得分下限：严格低于该值的推荐被移除
	MinScore float64
}

func (n *ThresholdNode) Name() string {
	return "rerank.threshold"
}

func (n *ThresholdNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *ThresholdNode) Process(
	_ context.Context,
	_ *core.RecommendContext,
	recs []*core.Recommendation,
) ([]*core.Recommendation, error) {
	out := make([]*core.Recommendation, 0, len(recs))
	for _, rec := range recs {
		if rec == nil || rec.Score < n.MinScore {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}
