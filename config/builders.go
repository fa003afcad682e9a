package config

import (
	"github.com/rushteam/bookrec/filter"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/pkg/conv"
	"github.com/rushteam/bookrec/rerank"
)

func init() {
	Register("filter.seen", buildSeenFilterNode)
	Register("filter.dsl", buildDSLFilterNode)
	Register("rerank.topn", buildTopNNode)
	Register("rerank.threshold", buildThresholdNode)
}

// buildSeenFilterNode 构建已读过滤节点。
// 配置只支持内存书目列表；按请求用户查书架的形态需要 LibrarySource 实例，走代码组装。
func buildSeenFilterNode(cfg map[string]interface{}) (pipeline.Node, error) {
	ids := conv.SliceAnyToString(cfg["book_ids"])
	if ids == nil {
		ids = []string{}
	}
	return &filter.FilterNode{
		Filters: []filter.Filter{&filter.SeenFilter{BookIDs: ids}},
	}, nil
}

func buildDSLFilterNode(cfg map[string]interface{}) (pipeline.Node, error) {
	expr := conv.ConfigGet[string](cfg, "expr", "")
	return &filter.FilterNode{
		Filters: []filter.Filter{&filter.DSLFilter{Expr: expr}},
	}, nil
}

func buildTopNNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.TopNNode{N: conv.ConfigGetInt(cfg, "n", 0)}, nil
}

func buildThresholdNode(cfg map[string]interface{}) (pipeline.Node, error) {
	return &rerank.ThresholdNode{
		MinScore: conv.ConfigGetFloat64(cfg, "min_score", 0),
	}, nil
}
