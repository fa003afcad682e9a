package store

import (
	"context"
	"encoding/json"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/bookrec/core"
)

// DatasetAdapter 把任意 core.Store 暴露为引擎的数据源接口
// （core.CatalogSource / core.RatingSource / core.LibrarySource）。
//
// 键空间（JSON 文档）：
//   - 目录 ID 全集：    {KeyPrefix}:catalog            → []string（Catalog ID）
//   - 单本书元数据：    {KeyPrefix}:book:{catalogID}   → core.Book
//   - 评分源物品全集：  {KeyPrefix}:items              → []string（Rating-Source ID）
//   - 有评分用户全集：  {KeyPrefix}:users              → []string（userKey）
//   - 单用户评分列表：  {KeyPrefix}:ratings:{userKey}  → []core.Rating
//   - 应用用户已读书：  {KeyPrefix}:library:{userKey}  → []string（Catalog ID）
type DatasetAdapter struct {
	store core.Store

	// KeyPrefix 是存储 key 的前缀
	KeyPrefix string

	// PageSize 是批量读取的分页大小（0 取默认 1000）
	PageSize int
}

// NewDatasetAdapter 创建一个基于 core.Store 的数据集适配器。
func NewDatasetAdapter(s core.Store, keyPrefix string) *DatasetAdapter {
	if keyPrefix == "" {
		keyPrefix = "bookrec"
	}
	return &DatasetAdapter{
		store:     s,
		KeyPrefix: keyPrefix,
	}
}

func (a *DatasetAdapter) pageSize() int {
	if a.PageSize > 0 {
		return a.PageSize
	}
	return 1000
}

func (a *DatasetAdapter) getList(ctx context.Context, key string) ([]string, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return []string{}, nil
		}
		return nil, err
	}
	var result []string
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Books 实现 core.CatalogSource：分页并发取回全部书目元数据。
func (a *DatasetAdapter) Books(ctx context.Context) ([]*core.Book, error) {
	ids, err := a.getList(ctx, a.KeyPrefix+":catalog")
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		books = make([]*core.Book, 0, len(ids))
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)

	size := a.pageSize()
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		page := ids[start:end]

		eg.Go(func() error {
			keys := make([]string, len(page))
			for i, id := range page {
				keys[i] = a.KeyPrefix + ":book:" + id
			}
			docs, err := a.store.BatchGet(egCtx, keys)
			if err != nil {
				return err
			}
			local := make([]*core.Book, 0, len(page))
			for i, id := range page {
				data, ok := docs[keys[i]]
				if !ok {
					continue
				}
				var b core.Book
				if err := json.Unmarshal(data, &b); err != nil {
					continue // 坏文档跳过，不中断整个目录加载
				}
				if b.ID == "" {
					b.ID = id
				}
				local = append(local, &b)
			}
			mu.Lock()
			books = append(books, local...)
			mu.Unlock()
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return books, nil
}

// SourceItemIDs 实现 core.CatalogSource。
func (a *DatasetAdapter) SourceItemIDs(ctx context.Context) ([]string, error) {
	return a.getList(ctx, a.KeyPrefix+":items")
}

// Each 实现 core.RatingSource：按用户列表顺序分页取回评分文档并同步回调。
// 没有评分文档的用户直接跳过。
func (a *DatasetAdapter) Each(ctx context.Context, fn func(userKey string, ratings []core.Rating) bool) error {
	users, err := a.getList(ctx, a.KeyPrefix+":users")
	if err != nil {
		return err
	}

	size := a.pageSize()
	for start := 0; start < len(users); start += size {
		end := start + size
		if end > len(users) {
			end = len(users)
		}
		page := users[start:end]

		keys := make([]string, len(page))
		for i, u := range page {
			keys[i] = a.KeyPrefix + ":ratings:" + u
		}
		docs, err := a.store.BatchGet(ctx, keys)
		if err != nil {
			return err
		}

		for i, u := range page {
			data, ok := docs[keys[i]]
			if !ok {
				continue
			}
			var ratings []core.Rating
			if err := json.Unmarshal(data, &ratings); err != nil {
				continue
			}
			if len(ratings) == 0 {
				continue
			}
			if !fn(u, ratings) {
				return nil
			}
		}
	}
	return nil
}

// RatedBooks 实现 core.LibrarySource。用户不存在时返回空列表而非错误。
func (a *DatasetAdapter) RatedBooks(ctx context.Context, userKey string) ([]string, error) {
	return a.getList(ctx, a.KeyPrefix+":library:"+userKey)
}

var (
	_ core.CatalogSource = (*DatasetAdapter)(nil)
	_ core.RatingSource  = (*DatasetAdapter)(nil)
	_ core.LibrarySource = (*DatasetAdapter)(nil)
)

// Interaction 是 SetupDataset 的输入：一条用户对书的评分。
type Interaction struct {
	UserKey string
	BookID  string // Rating-Source ID
	Rating  float64
}

// SetupDataset 辅助函数：把一份目录与交互数据写入 Store。
// 测试和示例里配合 MemoryStore 使用；也可用于向 Redis 预灌数据。
func SetupDataset(ctx context.Context, a *DatasetAdapter, books []*core.Book, interactions []Interaction) error {
	catalogIDs := make([]string, 0, len(books))
	kvs := make(map[string][]byte)

	for _, b := range books {
		data, err := json.Marshal(b)
		if err != nil {
			return err
		}
		kvs[a.KeyPrefix+":book:"+b.ID] = data
		catalogIDs = append(catalogIDs, b.ID)
	}

	userRatings := make(map[string][]core.Rating)
	userOrder := make([]string, 0)
	itemSeen := make(map[string]bool)
	itemList := make([]string, 0)

	for _, b := range books {
		if b.SourceID != "" && !itemSeen[b.SourceID] {
			itemSeen[b.SourceID] = true
			itemList = append(itemList, b.SourceID)
		}
	}
	for _, inter := range interactions {
		if _, ok := userRatings[inter.UserKey]; !ok {
			userOrder = append(userOrder, inter.UserKey)
		}
		userRatings[inter.UserKey] = append(userRatings[inter.UserKey],
			core.Rating{BookID: inter.BookID, Value: inter.Rating})
		if !itemSeen[inter.BookID] {
			itemSeen[inter.BookID] = true
			itemList = append(itemList, inter.BookID)
		}
	}

	for user, ratings := range userRatings {
		data, err := json.Marshal(ratings)
		if err != nil {
			return err
		}
		kvs[a.KeyPrefix+":ratings:"+user] = data
	}

	for key, val := range map[string]any{
		a.KeyPrefix + ":catalog": catalogIDs,
		a.KeyPrefix + ":items":   itemList,
		a.KeyPrefix + ":users":   userOrder,
	} {
		data, err := json.Marshal(val)
		if err != nil {
			return err
		}
		kvs[key] = data
	}

	return a.store.BatchSet(ctx, kvs)
}

// SetLibrary 写入一个应用用户的已评分书目（Catalog ID 列表）。
func SetLibrary(ctx context.Context, a *DatasetAdapter, userKey string, bookIDs []string) error {
	data, err := json.Marshal(bookIDs)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, a.KeyPrefix+":library:"+userKey, data)
}
