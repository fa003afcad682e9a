package core

import "context"

// CatalogSource 提供目录数据：全部书目元数据与评分源命名空间下的物品 ID 全集。
// 引擎初始化时一次性取回；取不到视为致命错误。
type CatalogSource interface {
	// Books 返回全部目录条目（含 Catalog ID 与可选的 Rating-Source ID）
	Books(ctx context.Context) ([]*Book, error)

	// SourceItemIDs 返回评分源命名空间下的全部物品 ID（矩阵列全集）
	SourceItemIDs(ctx context.Context) ([]string, error)
}

// RatingSource 按用户流式提供评分列表。
//
// Each 依次回调每个至少有一条评分的用户；fn 返回 false 时提前终止遍历。
// 回调是同步的：引擎核心不做网络 I/O，分页/游标由实现自行处理。
type RatingSource interface {
	Each(ctx context.Context, fn func(userKey string, ratings []Rating) bool) error
}

// LibrarySource 提供应用侧用户的已评分书目（用户级推荐的种子来源）。
// 仅返回确有评分的条目；用户不存在时返回空列表而非错误。
type LibrarySource interface {
	RatedBooks(ctx context.Context, userKey string) ([]string, error)
}
