package config

import (
	"context"
	"testing"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/pipeline"
	"github.com/rushteam/bookrec/recall"
)

func testConfig(nodes []pipeline.NodeConfig) *pipeline.Config {
	cfg := &pipeline.Config{}
	cfg.Pipeline.Name = "test"
	cfg.Pipeline.Nodes = nodes
	return cfg
}

func TestDefaultFactory_BuildPipeline(t *testing.T) {
	cfg := testConfig([]pipeline.NodeConfig{
		{Type: "rerank.threshold", Config: map[string]interface{}{"min_score": 0.05}},
		{Type: "rerank.topn", Config: map[string]interface{}{"n": 2}},
	})

	if err := ValidatePipelineConfig(cfg); err != nil {
		t.Fatalf("ValidatePipelineConfig() error = %v", err)
	}

	p, err := cfg.BuildPipeline(DefaultFactory())
	if err != nil {
		t.Fatalf("BuildPipeline() error = %v", err)
	}

	recs := []*core.Recommendation{
		{ID: "a", Score: 0.9, Method: recall.MethodItemCF},
		{ID: "b", Score: 0.01, Method: recall.MethodItemCF},
		{ID: "c", Score: 0.5, Method: recall.MethodItemCF},
		{ID: "d", Score: 0.3, Method: recall.MethodItemCF},
	}
	out, err := p.Run(context.Background(), &core.RecommendContext{}, recs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// 阈值丢掉 b，TopN 截到 2 条，得分降序
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "c" {
		t.Errorf("unexpected pipeline output: %+v", out)
	}
}

func TestDefaultFactory_SeenAndDSLNodes(t *testing.T) {
	cfg := testConfig([]pipeline.NodeConfig{
		{Type: "filter.seen", Config: map[string]interface{}{
			"book_ids": []any{"/works/OL1W"},
		}},
		{Type: "filter.dsl", Config: map[string]interface{}{
			"expr": `rec.title != "Unknown"`,
		}},
	})

	p, err := cfg.BuildPipeline(DefaultFactory())
	if err != nil {
		t.Fatalf("BuildPipeline() error = %v", err)
	}

	recs := []*core.Recommendation{
		{ID: "/works/OL1W", Title: "Dune", Score: 0.9},
		{ID: "/works/OL2W", Title: "Hyperion", Score: 0.5},
		{ID: "/works/OL9W", Title: "Unknown", Score: 0.4},
	}
	out, err := p.Run(context.Background(), &core.RecommendContext{}, recs)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out) != 1 || out[0].ID != "/works/OL2W" {
		t.Errorf("unexpected pipeline output: %+v", out)
	}
}

func TestValidatePipelineConfig_UnsupportedType(t *testing.T) {
	cfg := testConfig([]pipeline.NodeConfig{
		{Type: "rank.dnn"},
	})
	if err := ValidatePipelineConfig(cfg); err == nil {
		t.Error("expected error for unsupported node type")
	}
}

func TestSupportedTypes(t *testing.T) {
	types := SupportedTypes()
	want := map[string]bool{
		"filter.seen": true, "filter.dsl": true,
		"rerank.topn": true, "rerank.threshold": true,
	}
	for _, typ := range types {
		delete(want, typ)
	}
	if len(want) != 0 {
		t.Errorf("missing registered types: %v", want)
	}
}
