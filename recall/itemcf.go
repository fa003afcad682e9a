package recall

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/rushteam/bookrec/core"
	"github.com/rushteam/bookrec/identity"
	"github.com/rushteam/bookrec/matrix"
	"github.com/rushteam/bookrec/pkg/utils"
)

// MethodItemCF 是物品协同过滤的来源判别值，供下游混排区分推荐来源。
const MethodItemCF = "item_cf"

const (
	// DefaultRecommendations 是单次请求的默认返回条数
	DefaultRecommendations = 6

	// DefaultMinSimilarity 是默认相似度下限；调用方按场景在 0.05~0.2 之间调
	DefaultMinSimilarity = 0.05
)

// Config 是 Engine 的构造配置。
type Config struct {
	// Catalog 提供目录元数据与物品 ID 全集（必填）
	Catalog core.CatalogSource

	// Ratings 按用户流式提供评分（必填）
	Ratings core.RatingSource

	// Library 提供应用用户的已评分书目（用户级推荐需要，可为空）
	Library core.LibrarySource

	// BatchSize 是相似度计算的批大小（0 取 matrix.DefaultBatchSize）
	BatchSize int

	// Logger 为 nil 时使用 slog 默认 logger
	Logger *slog.Logger
}

// Engine 是基于物品的协同过滤推荐引擎（Item-CF, i2i）。
//
// 核心思想："被同一批用户喜欢的书，相互相似"
//
// 链路：
//  1. 初始化：一次性加载目录，构建 ID 对齐表、列索引与元数据表
//  2. 首次请求：流式构建用户×物品稀疏评分矩阵 → adjusted cosine →
//     稠密物品×物品相似度矩阵，缓存于引擎实例
//  3. 请求期：种子解析 → 合并相似度行 → 排序、去种子、卡阈值 → 回填元数据
//
// 并发模型：相似度矩阵构建完成后只读，可被并发请求共享；
// 重算由 singleflight 保护，同一时刻至多一次全量计算在途。
type Engine struct {
	catalog core.CatalogSource
	ratings core.RatingSource
	library core.LibrarySource

	batchSize int
	logger    *slog.Logger

	index   *identity.Index
	columns map[string]int // Rating-Source ID -> 列号
	colToID []string       // 列号 -> Rating-Source ID
	meta    map[string]*core.Book

	mu     sync.RWMutex
	sim    *mat.Dense
	group  singleflight.Group
	builds int // 相似度全量计算次数（观测/测试用）
}

// NewEngine 加载目录并构建 ID 对齐表。
// 目录数据取不到是致命错误：引擎没有目录无法工作。
func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Catalog == nil || cfg.Ratings == nil {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput,
			"recall: catalog and rating sources are required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	books, err := cfg.Catalog.Books(ctx)
	if err != nil {
		return nil, err
	}
	itemIDs, err := cfg.Catalog.SourceItemIDs(ctx)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		catalog:   cfg.Catalog,
		ratings:   cfg.Ratings,
		library:   cfg.Library,
		batchSize: cfg.BatchSize,
		logger:    logger,
		index:     identity.Build(books, itemIDs),
		columns:   matrix.NewColumnIndex(itemIDs),
		meta:      make(map[string]*core.Book, len(books)*2),
	}

	e.colToID = make([]string, len(e.columns))
	for id, col := range e.columns {
		e.colToID[col] = id
	}

	// 元数据同时落在多种 ID 形式下，回填时按 精确 → 裸 key → 路径限定 查找
	for _, b := range books {
		if b == nil || b.ID == "" {
			continue
		}
		e.meta[b.ID] = b
		switch {
		case strings.HasPrefix(b.ID, identity.WorkPrefix):
			e.meta[strings.TrimPrefix(b.ID, identity.WorkPrefix)] = b
		default:
			e.meta[identity.WorkPrefix+b.ID] = b
		}
	}

	if n := e.index.Collisions(); n > 0 {
		logger.Warn("identifier index built with overwritten mappings",
			"collisions", n, "entries", e.index.Len())
	}
	logger.Info("catalog loaded",
		"books", len(books), "items", len(e.columns), "id_forms", e.index.Len())
	return e, nil
}

// Index 返回引擎的 ID 对齐表（只读）。
func (e *Engine) Index() *identity.Index { return e.index }

// Items 返回矩阵列空间的物品数。
func (e *Engine) Items() int { return len(e.columns) }

// SimilarityBuilds 返回相似度矩阵被全量计算的次数。
func (e *Engine) SimilarityBuilds() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.builds
}

// Invalidate 丢弃缓存的相似度矩阵，下次请求触发重算。
func (e *Engine) Invalidate() {
	e.mu.Lock()
	e.sim = nil
	e.mu.Unlock()
}

// ComputeSimilarity 返回物品×物品相似度矩阵。
//
// force 为 false 且缓存存在时直接复用；重算经 singleflight 归并，
// 并发请求共享同一次在途计算。矩阵返回后只读。
func (e *Engine) ComputeSimilarity(ctx context.Context, force bool) (*mat.Dense, error) {
	if force {
		e.Invalidate()
	} else {
		e.mu.RLock()
		sim := e.sim
		e.mu.RUnlock()
		if sim != nil {
			return sim, nil
		}
	}

	v, err, _ := e.group.Do("similarity", func() (any, error) {
		// 在途期间可能已有别的调用算完
		e.mu.RLock()
		sim := e.sim
		e.mu.RUnlock()
		if sim != nil {
			return sim, nil
		}
		return e.computeSimilarity(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*mat.Dense), nil
}

func (e *Engine) computeSimilarity(ctx context.Context) (*mat.Dense, error) {
	start := time.Now()

	b := &matrix.Builder{Columns: e.columns, Logger: e.logger}
	m, err := b.Build(ctx, e.ratings)
	if err != nil {
		return nil, err
	}
	if m.NNZ() == 0 {
		e.logger.Warn("rating matrix is empty, similarity matrix will be all zeros")
	}

	sim := matrix.AdjustedCosine(m, e.batchSize, func(done, total int) {
		e.logger.Info("computing item similarities", "done", done, "total", total)
	})

	e.mu.Lock()
	e.sim = sim
	e.builds++
	e.mu.Unlock()

	e.logger.Info("similarity matrix computed",
		"items", len(e.columns), "elapsed", time.Since(start))
	return sim, nil
}

// RecommendForItems 对一组种子书返回至多 n 条推荐。
//
// 种子经对齐表解析到矩阵列；解析失败的种子告警后跳过，全部失败返回空结果。
// 候选得分是各种子相似度行的算术平均（均值而非求和，量纲不随种子数漂移）。
// 排序降序、同分按原始列号稳定；种子自身与得分低于 minSimilarity 的候选被排除。
func (e *Engine) RecommendForItems(ctx context.Context, seedIDs []string, n int, minSimilarity float64) ([]*core.Recommendation, error) {
	if n <= 0 {
		n = DefaultRecommendations
	}

	seedCols := e.resolveSeeds(seedIDs)
	if len(seedCols) == 0 {
		return []*core.Recommendation{}, nil
	}

	sim, err := e.ComputeSimilarity(ctx, false)
	if err != nil {
		return nil, err
	}

	nItems := len(e.columns)
	combined := make([]float64, nItems)
	for col := range seedCols {
		floats.Add(combined, sim.RawRowView(col))
	}
	floats.Scale(1/float64(len(seedCols)), combined)

	order := make([]int, nItems)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return combined[order[i]] > combined[order[j]]
	})

	recs := make([]*core.Recommendation, 0, n)
	for _, col := range order {
		if _, isSeed := seedCols[col]; isSeed {
			continue
		}
		// 降序排列：一旦跌破阈值，后面不会再有合格候选
		if combined[col] < minSimilarity {
			break
		}
		recs = append(recs, e.buildRecommendation(col, combined[col]))
		if len(recs) >= n {
			break
		}
	}
	return recs, nil
}

// RecommendForBook 是单种子入口，结果记录种子来源。
func (e *Engine) RecommendForBook(ctx context.Context, bookID string, n int, minSimilarity float64) ([]*core.Recommendation, error) {
	recs, err := e.RecommendForItems(ctx, []string{bookID}, n, minSimilarity)
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		r.SourceBook = bookID
	}
	return recs, nil
}

// RecommendForUser 以用户书架上已评分的书为种子做推荐。
// 书架取不到或为空时降级为空结果，不上抛。
func (e *Engine) RecommendForUser(ctx context.Context, userKey string, n int, minSimilarity float64) ([]*core.Recommendation, error) {
	rated := e.ratedBooks(ctx, userKey)
	if len(rated) == 0 {
		return []*core.Recommendation{}, nil
	}
	return e.RecommendForItems(ctx, rated, n, minSimilarity)
}

// RecommendForEachRatedBook 对用户书架上的每本书各出一组推荐。
// 返回 map[种子书 ID] → 推荐列表；空列表的种子不出现在结果里。
func (e *Engine) RecommendForEachRatedBook(ctx context.Context, userKey string, nPerBook int) (map[string][]*core.Recommendation, error) {
	rated := e.ratedBooks(ctx, userKey)
	out := make(map[string][]*core.Recommendation, len(rated))
	for _, bookID := range rated {
		recs, err := e.RecommendForBook(ctx, bookID, nPerBook, DefaultMinSimilarity)
		if err != nil {
			return nil, err
		}
		if len(recs) > 0 {
			out[bookID] = recs
		}
	}
	return out, nil
}

func (e *Engine) ratedBooks(ctx context.Context, userKey string) []string {
	if e.library == nil || userKey == "" {
		return nil
	}
	rated, err := e.library.RatedBooks(ctx, userKey)
	if err != nil {
		e.logger.Warn("failed to load user's rated books", "user", userKey, "err", err)
		return nil
	}
	return rated
}

// resolveSeeds 把种子 ID 解析为矩阵列号集合，解析失败的告警后丢弃。
func (e *Engine) resolveSeeds(seedIDs []string) map[int]struct{} {
	cols := make(map[int]struct{}, len(seedIDs))
	for _, id := range seedIDs {
		if id == "" {
			continue
		}
		sid := e.index.Resolve(id)
		col, ok := e.columns[sid]
		if !ok {
			e.logger.Warn("seed book not found in rating matrix", "id", id, "resolved", sid)
			continue
		}
		cols[col] = struct{}{}
	}
	return cols
}

// buildRecommendation 把矩阵列映射回 Catalog 展示 ID 并回填元数据。
// 元数据查找顺序：精确 → 裸 key → 路径限定；都找不到时输出最小记录。
func (e *Engine) buildRecommendation(col int, score float64) *core.Recommendation {
	sourceID := e.colToID[col]
	displayID := e.index.Display(sourceID)

	var b *core.Book
	if m, ok := e.meta[displayID]; ok {
		b = m
	} else if m, ok := e.meta[strings.TrimPrefix(displayID, identity.WorkPrefix)]; ok {
		b = m
	} else if m, ok := e.meta[identity.WorkPrefix+displayID]; ok {
		b = m
	}

	rec := &core.Recommendation{
		ID:     displayID,
		Score:  score,
		Method: MethodItemCF,
	}
	if b != nil {
		rec.Title = b.Title
		rec.AuthorNames = b.AuthorNames
		rec.Description = b.Description
		rec.CoverID = b.CoverID
	} else {
		rec.Title = "Unknown"
		rec.AuthorNames = []string{}
	}
	rec.PutLabel("recall_source", utils.Label{Value: MethodItemCF, Source: "recall"})
	return rec
}
