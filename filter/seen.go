package filter

import (
	"context"

	"github.com/rushteam/bookrec/core"
)

// SeenFilter 过滤用户已经读过/评过的书，避免把书架上的书再推回去。
// 书目列表可以直接给内存列表，也可以从 LibrarySource 按请求用户取。
type SeenFilter struct {
	// BookIDs 是内存中的已读书目 ID 列表（Catalog ID 任意文本形式）
	BookIDs []string

	// Library 从数据源按请求用户取已评分书目（可选）
	Library core.LibrarySource

	// Resolve 归一 ID 的回调（通常传 identity.Index 的 Resolve）；
	// 为 nil 时按原文比对
	Resolve func(id string) string
}

func (f *SeenFilter) Name() string {
	return "filter.seen"
}

func (f *SeenFilter) ShouldFilter(
	ctx context.Context,
	rctx *core.RecommendContext,
	rec *core.Recommendation,
) (bool, error) {
	if rec == nil {
		return true, nil
	}

	recID := f.normalize(rec.ID)
	for _, id := range f.BookIDs {
		if f.normalize(id) == recID {
			return true, nil
		}
	}

	if f.Library != nil && rctx != nil && rctx.UserKey != "" {
		rated, err := f.Library.RatedBooks(ctx, rctx.UserKey)
		if err != nil {
			// 书架取不到时放行，过滤是尽力而为
			return false, nil
		}
		for _, id := range rated {
			if f.normalize(id) == recID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *SeenFilter) normalize(id string) string {
	if f.Resolve != nil {
		return f.Resolve(id)
	}
	return id
}
