package identity

import (
	"testing"

	"github.com/rushteam/bookrec/core"
)

func TestIndex_Resolve(t *testing.T) {
	books := []*core.Book{
		{ID: "/works/OL1W", SourceID: "sg-111-dune"},
		{ID: "OL2W", SourceID: "sg-222-hyperion"},
		{ID: "/works/OL3W"}, // 无评分源对应，解析到自身
	}
	sourceIDs := []string{
		"sg-333/works/OL4W-foundation", // 嵌入路径限定形式
		"sg-444-OL5W-snowcrash",        // 嵌入裸 key
		"sg-555-plainid",               // 无可提取的 Catalog key
	}

	ix := Build(books, sourceIDs)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"path-qualified catalog id", "/works/OL1W", "sg-111-dune"},
		{"bare form of path-qualified id", "OL1W", "sg-111-dune"},
		{"bare catalog id", "OL2W", "sg-222-hyperion"},
		{"path form of bare id", "/works/OL2W", "sg-222-hyperion"},
		{"catalog id without source id resolves to itself", "/works/OL3W", "/works/OL3W"},
		{"bare form without source id", "OL3W", "/works/OL3W"},
		{"embedded path key", "/works/OL4W", "sg-333/works/OL4W-foundation"},
		{"embedded path key bare form", "OL4W", "sg-333/works/OL4W-foundation"},
		{"embedded bare key", "OL5W", "sg-444-OL5W-snowcrash"},
		{"embedded bare key path form", "/works/OL5W", "sg-444-OL5W-snowcrash"},
		{"unknown id falls through unchanged", "OL999W", "OL999W"},
		{"non-catalog-shaped id unchanged", "whatever", "whatever"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ix.Resolve(tt.input); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// 往返不变式：同一条目的两种文本形式必须解析到同一个矩阵列键。
func TestIndex_ResolveRoundTrip(t *testing.T) {
	books := []*core.Book{
		{ID: "/works/OL10W", SourceID: "sg-10"},
		{ID: "OL11W", SourceID: "sg-11"},
		{ID: "/works/OL12W"},
	}
	ix := Build(books, nil)

	pairs := [][2]string{
		{"/works/OL10W", "OL10W"},
		{"/works/OL11W", "OL11W"},
		{"/works/OL12W", "OL12W"},
	}
	for _, p := range pairs {
		a, b := ix.Resolve(p[0]), ix.Resolve(p[1])
		if a != b {
			t.Errorf("Resolve(%q)=%q but Resolve(%q)=%q", p[0], a, p[1], b)
		}
	}
}

func TestIndex_Display(t *testing.T) {
	books := []*core.Book{
		{ID: "/works/OL1W", SourceID: "sg-111"},
	}
	sourceIDs := []string{"sg-333/works/OL4W-foundation"}
	ix := Build(books, sourceIDs)

	tests := []struct {
		name     string
		sourceID string
		want     string
	}{
		{"reverse mapping from catalog entry", "sg-111", "/works/OL1W"},
		{"reverse mapping from embedded key", "sg-333/works/OL4W-foundation", "/works/OL4W"},
		{"extraction fallback on unmapped id", "sg-999/works/OL7W-x", "/works/OL7W"},
		{"no mapping and no embedded key", "sg-000-opaque", "sg-000-opaque"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ix.Display(tt.sourceID); got != tt.want {
				t.Errorf("Display(%q) = %q, want %q", tt.sourceID, got, tt.want)
			}
		})
	}
}

func TestIndex_Collisions(t *testing.T) {
	// 两个评分源 ID 嵌入同一个 Catalog key：后写覆盖，且被计数
	sourceIDs := []string{
		"sg-1/works/OL1W-first",
		"sg-2/works/OL1W-second",
	}
	ix := Build(nil, sourceIDs)

	if got := ix.Resolve("OL1W"); got != "sg-2/works/OL1W-second" {
		t.Errorf("last registration should win, got %q", got)
	}
	if ix.Collisions() == 0 {
		t.Error("expected collision count > 0")
	}
}
