package recall

import (
	"context"
	"sync"
	"testing"

	"github.com/rushteam/bookrec/core"
)

// fakeCatalog / fakeRatings / fakeLibrary 是内存数据源，按固定顺序回放。

type fakeCatalog struct {
	books []*core.Book
	items []string
}

func (c *fakeCatalog) Books(context.Context) ([]*core.Book, error)     { return c.books, nil }
func (c *fakeCatalog) SourceItemIDs(context.Context) ([]string, error) { return c.items, nil }

type fakeRatings []struct {
	userKey string
	ratings []core.Rating
}

func (s fakeRatings) Each(_ context.Context, fn func(string, []core.Rating) bool) error {
	for _, u := range s {
		if !fn(u.userKey, u.ratings) {
			return nil
		}
	}
	return nil
}

type fakeLibrary map[string][]string

func (l fakeLibrary) RatedBooks(_ context.Context, userKey string) ([]string, error) {
	return l[userKey], nil
}

// 三本书、两个用户的基础场景：
// u1 评 (A=5, B=4)，u2 评 (A=1, B=2, C=5)。
// A、B 被两人以一致的相对顺序共同评分 → 正相似；C 与 A 无正向共同信号。
func newTestEngine(t *testing.T, lib fakeLibrary) *Engine {
	t.Helper()

	catalog := &fakeCatalog{
		books: []*core.Book{
			{ID: "/works/OL1W", SourceID: "sg-a", Title: "Dune", AuthorNames: []string{"Frank Herbert"}},
			{ID: "/works/OL2W", SourceID: "sg-b", Title: "Hyperion", AuthorNames: []string{"Dan Simmons"}},
			{ID: "/works/OL3W", SourceID: "sg-c", Title: "Neuromancer", AuthorNames: []string{"William Gibson"}},
		},
		items: []string{"sg-a", "sg-b", "sg-c"},
	}
	ratings := fakeRatings{
		{"u1", []core.Rating{{BookID: "sg-a", Value: 5}, {BookID: "sg-b", Value: 4}}},
		{"u2", []core.Rating{{BookID: "sg-a", Value: 1}, {BookID: "sg-b", Value: 2}, {BookID: "sg-c", Value: 5}}},
	}

	e, err := NewEngine(context.Background(), Config{
		Catalog: catalog,
		Ratings: ratings,
		Library: lib,
	})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

func TestEngine_RecommendForItems_BasicScenario(t *testing.T) {
	e := newTestEngine(t, nil)

	recs, err := e.RecommendForItems(context.Background(), []string{"/works/OL1W"}, 2, 0.0)
	if err != nil {
		t.Fatalf("RecommendForItems() error = %v", err)
	}
	if len(recs) == 0 {
		t.Fatal("expected at least one recommendation")
	}

	// B 必须排第一且为正相似；C 去均值后与 A 反向，不得排在 B 前
	if recs[0].ID != "/works/OL2W" {
		t.Errorf("top recommendation = %q, want /works/OL2W", recs[0].ID)
	}
	if recs[0].Score <= 0 {
		t.Errorf("top score = %v, want > 0", recs[0].Score)
	}
	if recs[0].Title != "Hyperion" || recs[0].Method != MethodItemCF {
		t.Errorf("unexpected metadata: %+v", recs[0])
	}
}

// 同一本书的两种文本形式必须产出相同的推荐。
func TestEngine_SeedFormVariants(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	long, err := e.RecommendForItems(ctx, []string{"/works/OL1W"}, 3, -2.0)
	if err != nil {
		t.Fatalf("long form error = %v", err)
	}
	short, err := e.RecommendForItems(ctx, []string{"OL1W"}, 3, -2.0)
	if err != nil {
		t.Fatalf("short form error = %v", err)
	}

	if len(long) != len(short) {
		t.Fatalf("result lengths differ: %d vs %d", len(long), len(short))
	}
	for i := range long {
		if long[i].ID != short[i].ID || long[i].Score != short[i].Score {
			t.Errorf("result %d differs: %+v vs %+v", i, long[i], short[i])
		}
	}
}

// 任何命名空间都不认识的种子：空结果而非报错。
func TestEngine_UnresolvableSeed(t *testing.T) {
	e := newTestEngine(t, nil)

	recs, err := e.RecommendForItems(context.Background(), []string{"no-such-book"}, 6, 0.05)
	if err != nil {
		t.Fatalf("RecommendForItems() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d recommendations, want 0", len(recs))
	}
}

// 自排除：种子自身绝不出现在结果里。
func TestEngine_SelfExclusion(t *testing.T) {
	e := newTestEngine(t, nil)

	seeds := []string{"/works/OL1W", "OL2W"}
	recs, err := e.RecommendForItems(context.Background(), seeds, 10, -2.0)
	if err != nil {
		t.Fatalf("RecommendForItems() error = %v", err)
	}
	for _, r := range recs {
		if r.ID == "/works/OL1W" || r.ID == "/works/OL2W" {
			t.Errorf("seed %q leaked into results", r.ID)
		}
	}
}

// 阈值律：返回的每条推荐得分都不低于 minSimilarity。
func TestEngine_ThresholdLaw(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	recs, err := e.RecommendForItems(ctx, []string{"/works/OL1W"}, 10, 0.1)
	if err != nil {
		t.Fatalf("RecommendForItems() error = %v", err)
	}
	for _, r := range recs {
		if r.Score < 0.1 {
			t.Errorf("recommendation %q score %v below threshold", r.ID, r.Score)
		}
	}

	// 阈值拉满后不应有任何结果
	none, err := e.RecommendForItems(ctx, []string{"/works/OL1W"}, 10, 1.1)
	if err != nil {
		t.Fatalf("RecommendForItems() error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d recommendations above impossible threshold", len(none))
	}
}

// 双种子合并分 = 两条单种子相似度行的算术平均（精确相等）。
func TestEngine_MeanOfTwoSeeds(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	fromA, err := e.RecommendForItems(ctx, []string{"/works/OL1W"}, 10, -2.0)
	if err != nil {
		t.Fatalf("seed A error = %v", err)
	}
	fromB, err := e.RecommendForItems(ctx, []string{"/works/OL2W"}, 10, -2.0)
	if err != nil {
		t.Fatalf("seed B error = %v", err)
	}
	combined, err := e.RecommendForItems(ctx, []string{"/works/OL1W", "/works/OL2W"}, 10, -2.0)
	if err != nil {
		t.Fatalf("combined error = %v", err)
	}

	scoreOf := func(recs []*core.Recommendation, id string) (float64, bool) {
		for _, r := range recs {
			if r.ID == id {
				return r.Score, true
			}
		}
		return 0, false
	}

	// 唯一的非种子候选是 C
	sa, okA := scoreOf(fromA, "/works/OL3W")
	sb, okB := scoreOf(fromB, "/works/OL3W")
	sc, okC := scoreOf(combined, "/works/OL3W")
	if !okA || !okB || !okC {
		t.Fatal("candidate C missing from one of the result sets")
	}
	if want := (sa + sb) / 2; sc != want {
		t.Errorf("combined score = %v, want exact mean %v", sc, want)
	}
}

// 幂等性：不带 force 的重复调用复用缓存，不触发重算。
func TestEngine_ComputeSimilarityIdempotent(t *testing.T) {
	e := newTestEngine(t, nil)
	ctx := context.Background()

	first, err := e.ComputeSimilarity(ctx, false)
	if err != nil {
		t.Fatalf("first compute error = %v", err)
	}
	second, err := e.ComputeSimilarity(ctx, false)
	if err != nil {
		t.Fatalf("second compute error = %v", err)
	}
	if first != second {
		t.Error("expected cached matrix to be reused")
	}
	if e.SimilarityBuilds() != 1 {
		t.Errorf("builds = %d, want 1", e.SimilarityBuilds())
	}

	if _, err := e.ComputeSimilarity(ctx, true); err != nil {
		t.Fatalf("forced compute error = %v", err)
	}
	if e.SimilarityBuilds() != 2 {
		t.Errorf("builds after force = %d, want 2", e.SimilarityBuilds())
	}
}

// 并发请求共享同一次在途计算。
func TestEngine_ComputeSimilaritySingleFlight(t *testing.T) {
	e := newTestEngine(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.ComputeSimilarity(context.Background(), false); err != nil {
				t.Errorf("ComputeSimilarity() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if e.SimilarityBuilds() != 1 {
		t.Errorf("builds = %d, want 1", e.SimilarityBuilds())
	}
}

// 零评分退化：相似度全零、推荐为空，全程不报错。
func TestEngine_EmptyRatings(t *testing.T) {
	catalog := &fakeCatalog{
		books: []*core.Book{
			{ID: "/works/OL1W", SourceID: "sg-a", Title: "Dune"},
			{ID: "/works/OL2W", SourceID: "sg-b", Title: "Hyperion"},
		},
		items: []string{"sg-a", "sg-b"},
	}
	e, err := NewEngine(context.Background(), Config{Catalog: catalog, Ratings: fakeRatings{}})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	sim, err := e.ComputeSimilarity(context.Background(), false)
	if err != nil {
		t.Fatalf("ComputeSimilarity() error = %v", err)
	}
	rows, cols := sim.Dims()
	if rows != 2 || cols != 2 {
		t.Fatalf("Dims() = (%d, %d), want (2, 2)", rows, cols)
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if sim.At(i, j) != 0 {
				t.Errorf("sim(%d,%d) = %v, want 0", i, j, sim.At(i, j))
			}
		}
	}

	recs, err := e.RecommendForItems(context.Background(), []string{"/works/OL1W"}, 6, 0.05)
	if err != nil {
		t.Fatalf("RecommendForItems() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("got %d recommendations from empty data", len(recs))
	}
}

func TestEngine_RecommendForUser(t *testing.T) {
	lib := fakeLibrary{"user-1": {"/works/OL1W"}}
	e := newTestEngine(t, lib)

	recs, err := e.RecommendForUser(context.Background(), "user-1", 2, 0.0)
	if err != nil {
		t.Fatalf("RecommendForUser() error = %v", err)
	}
	if len(recs) == 0 || recs[0].ID != "/works/OL2W" {
		t.Errorf("unexpected results: %+v", recs)
	}

	// 书架为空的用户降级为空结果
	none, err := e.RecommendForUser(context.Background(), "nobody", 2, 0.0)
	if err != nil {
		t.Fatalf("RecommendForUser(nobody) error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("got %d recommendations for unknown user", len(none))
	}
}

func TestEngine_RecommendForEachRatedBook(t *testing.T) {
	lib := fakeLibrary{"user-1": {"/works/OL1W", "/works/OL2W"}}
	e := newTestEngine(t, lib)

	byBook, err := e.RecommendForEachRatedBook(context.Background(), "user-1", 3)
	if err != nil {
		t.Fatalf("RecommendForEachRatedBook() error = %v", err)
	}
	if len(byBook) == 0 {
		t.Fatal("expected per-book recommendations")
	}
	for seed, recs := range byBook {
		if len(recs) == 0 {
			t.Errorf("seed %q has empty list, should have been omitted", seed)
		}
		for _, r := range recs {
			if r.SourceBook != seed {
				t.Errorf("rec %q carries source %q, want %q", r.ID, r.SourceBook, seed)
			}
		}
	}
}

// 评分源里有、目录里没有的书：输出最小记录而不是丢弃候选。
func TestEngine_UnknownMetadataFallback(t *testing.T) {
	catalog := &fakeCatalog{
		books: []*core.Book{
			{ID: "/works/OL1W", SourceID: "sg-a", Title: "Dune", AuthorNames: []string{"Frank Herbert"}},
			{ID: "/works/OL3W", SourceID: "sg-c", Title: "Neuromancer"},
		},
		// sg-x 嵌入 OL9W，但目录中没有这本书
		items: []string{"sg-a", "sg-x/works/OL9W-mystery", "sg-c"},
	}
	ratings := fakeRatings{
		{"u1", []core.Rating{{BookID: "sg-a", Value: 5}, {BookID: "sg-x/works/OL9W-mystery", Value: 5}, {BookID: "sg-c", Value: 1}}},
		{"u2", []core.Rating{{BookID: "sg-a", Value: 4}, {BookID: "sg-x/works/OL9W-mystery", Value: 4}, {BookID: "sg-c", Value: 2}}},
	}
	e, err := NewEngine(context.Background(), Config{Catalog: catalog, Ratings: ratings})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	recs, err := e.RecommendForItems(context.Background(), []string{"/works/OL1W"}, 3, 0.0)
	if err != nil {
		t.Fatalf("RecommendForItems() error = %v", err)
	}

	var unknown *core.Recommendation
	for _, r := range recs {
		if r.ID == "/works/OL9W" {
			unknown = r
		}
	}
	if unknown == nil {
		t.Fatalf("expected /works/OL9W among results: %+v", recs)
	}
	if unknown.Title != "Unknown" {
		t.Errorf("title = %q, want Unknown", unknown.Title)
	}
	if unknown.AuthorNames == nil || len(unknown.AuthorNames) != 0 {
		t.Errorf("author names = %v, want empty non-nil list", unknown.AuthorNames)
	}
}

func TestNormalizeSeeds(t *testing.T) {
	rating := 4.5
	seeds := []Seed{
		IDSeed("/works/OL1W"),
		EntrySeed{BookID: "/works/OL2W", Rating: &rating},
		EntrySeed{BookID: "/works/OL3W"}, // 未评分，丢弃
		IDSeed(""),
		nil,
	}
	got := NormalizeSeeds(seeds)
	want := []string{"/works/OL1W", "/works/OL2W"}
	if len(got) != len(want) {
		t.Fatalf("NormalizeSeeds() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("NormalizeSeeds()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
