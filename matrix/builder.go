package matrix

import (
	"context"
	"log/slog"
	"math"

	"github.com/rushteam/bookrec/core"
)

// progressMilestones 是构建过程的日志里程碑（按用户数触发）。
// 数十万行的数据集逐行打日志会淹没输出，只在固定节点汇报。
var progressMilestones = []int{1000, 5000, 10000, 50000, 100000}

// Builder 把按用户流式到达的评分记录组装为稀疏的用户×物品矩阵。
//
// 列空间由 Columns 固定（目录全集，不依赖某物品是否有评分）；
// 行号按用户首次出现的顺序分配，只有至少一条可解析评分的用户占行。
// 该层原生消费 Rating-Source ID，不经过 identity 解析。
type Builder struct {
	// Columns 是 Rating-Source ID 到列号的映射（由 NewColumnIndex 构建）
	Columns map[string]int

	// Progress 在到达里程碑时回调（可选）
	Progress func(users, ratings int)

	// Logger 为 nil 时使用 slog 默认 logger
	Logger *slog.Logger

	malformed  int // 缺 ID 或评分值非法的记录数
	unresolved int // 列空间中不存在的物品记录数
}

// NewColumnIndex 从评分源物品 ID 全集构建列索引，重复 ID 保留首次出现的列号。
func NewColumnIndex(sourceIDs []string) map[string]int {
	cols := make(map[string]int, len(sourceIDs))
	for _, id := range sourceIDs {
		if id == "" {
			continue
		}
		if _, ok := cols[id]; !ok {
			cols[id] = len(cols)
		}
	}
	return cols
}

// Build 遍历评分源并组装 CSR 矩阵。
//
// 形状恒为 (max(1, 有评分用户数), len(Columns))；零条评分时返回对应形状的
// 全零矩阵而非报错。无法落列或值非法的记录静默丢弃并计数。
// ctx 取消时终止遍历并返回 ctx.Err()。
func (b *Builder) Build(ctx context.Context, src core.RatingSource) (*CSR, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	coo := NewCOO(len(b.Columns))
	users, ratings := 0, 0
	nextMilestone := 0

	err := src.Each(ctx, func(userKey string, list []core.Rating) bool {
		if ctx.Err() != nil {
			return false
		}

		row := users
		resolved := false
		for _, r := range list {
			if r.BookID == "" || math.IsNaN(r.Value) {
				b.malformed++
				continue
			}
			col, ok := b.Columns[r.BookID]
			if !ok {
				b.unresolved++
				continue
			}
			coo.Append(row, col, r.Value)
			ratings++
			resolved = true
		}
		if resolved {
			users++
		}

		if nextMilestone < len(progressMilestones) && users >= progressMilestones[nextMilestone] {
			logger.Info("building rating matrix",
				"users", users, "ratings", ratings, "milestone", progressMilestones[nextMilestone])
			if b.Progress != nil {
				b.Progress(users, ratings)
			}
			nextMilestone++
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	nRows := users
	if nRows < 1 {
		nRows = 1
	}
	m := coo.ToCSR(nRows)

	logger.Info("rating matrix built",
		"users", nRows, "items", len(b.Columns), "ratings", ratings,
		"malformed", b.malformed, "unresolved", b.unresolved)
	return m, nil
}

// Malformed 返回缺 ID 或评分值非法而被丢弃的记录数。
func (b *Builder) Malformed() int { return b.malformed }

// Unresolved 返回因列空间中不存在而被丢弃的记录数。
func (b *Builder) Unresolved() int { return b.unresolved }
