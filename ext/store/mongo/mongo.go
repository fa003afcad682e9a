// Package mongo 把 MongoDB 暴露为引擎的数据源接口。
//
// 采集侧（抓取/登录自动化工具）把目录与评分写入 MongoDB；
// 引擎侧只读这几个集合：
//   - {CatalogDatabase}.books：目录元数据（_id 为 Catalog ID，book_id 为可选的评分源 ID）
//   - {RatingsDatabase}.books：评分源物品全集（book_id）
//   - {RatingsDatabase}.users：评分源用户（username + book_ratings 数组）
//   - {CatalogDatabase}.users：应用用户（finishedBooks 数组，含 bookId/rating）
//
// 放在 ext/ 下：依赖 mongo-driver，不想用 MongoDB 的部署不必引入。
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rushteam/bookrec/core"
)

// Config 是 MongoDB 数据源的连接配置。
type Config struct {
	// URI 是 MongoDB 连接串（必填）
	URI string

	// CatalogDatabase 是目录/应用库名（默认 "test"）
	CatalogDatabase string

	// RatingsDatabase 是评分采集库名（默认 "storygraph_data"）
	RatingsDatabase string

	// CursorBatchSize 是游标分批大小（默认 1000）
	CursorBatchSize int32
}

// Source 实现 core.CatalogSource / core.RatingSource / core.LibrarySource。
type Source struct {
	client *mongo.Client
	cfg    Config
}

// New 连接 MongoDB 并校验连通性。后端不可达对引擎初始化是致命的。
func New(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.URI == "" {
		return nil, core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput,
			"mongo: uri is required")
	}
	if cfg.CatalogDatabase == "" {
		cfg.CatalogDatabase = "test"
	}
	if cfg.RatingsDatabase == "" {
		cfg.RatingsDatabase = "storygraph_data"
	}
	if cfg.CursorBatchSize <= 0 {
		cfg.CursorBatchSize = 1000
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStoreUnavailable, err)
	}
	return &Source{client: client, cfg: cfg}, nil
}

// Close 关闭连接。
func (s *Source) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Source) catalogBooks() *mongo.Collection {
	return s.client.Database(s.cfg.CatalogDatabase).Collection("books")
}

func (s *Source) sourceBooks() *mongo.Collection {
	return s.client.Database(s.cfg.RatingsDatabase).Collection("books")
}

func (s *Source) sourceUsers() *mongo.Collection {
	return s.client.Database(s.cfg.RatingsDatabase).Collection("users")
}

func (s *Source) appUsers() *mongo.Collection {
	return s.client.Database(s.cfg.CatalogDatabase).Collection("users")
}

// Books 实现 core.CatalogSource。
func (s *Source) Books(ctx context.Context) ([]*core.Book, error) {
	cur, err := s.catalogBooks().Find(ctx, bson.M{}, options.Find().
		SetProjection(bson.M{"_id": 1, "book_id": 1, "title": 1, "author_names": 1, "description": 1, "cover_id": 1}).
		SetBatchSize(s.cfg.CursorBatchSize))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var books []*core.Book
	for cur.Next(ctx) {
		var b core.Book
		if err := cur.Decode(&b); err != nil {
			continue // 坏文档跳过，不中断整个目录加载
		}
		if b.ID == "" {
			continue
		}
		books = append(books, &b)
	}
	return books, cur.Err()
}

// SourceItemIDs 实现 core.CatalogSource。
func (s *Source) SourceItemIDs(ctx context.Context) ([]string, error) {
	cur, err := s.sourceBooks().Find(ctx, bson.M{}, options.Find().
		SetProjection(bson.M{"book_id": 1}).
		SetBatchSize(s.cfg.CursorBatchSize))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			BookID string `bson:"book_id"`
		}
		if err := cur.Decode(&doc); err != nil || doc.BookID == "" {
			continue
		}
		ids = append(ids, doc.BookID)
	}
	return ids, cur.Err()
}

// Each 实现 core.RatingSource：游标分批遍历所有有评分的用户。
// rating 为 null 的条目在这里丢弃，不进入矩阵构建。
func (s *Source) Each(ctx context.Context, fn func(userKey string, ratings []core.Rating) bool) error {
	cur, err := s.sourceUsers().Find(ctx,
		bson.M{"book_ratings": bson.M{"$exists": true, "$ne": bson.A{}}},
		options.Find().
			SetProjection(bson.M{"username": 1, "book_ratings": 1}).
			SetBatchSize(s.cfg.CursorBatchSize))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	seq := 0
	for cur.Next(ctx) {
		var doc struct {
			Username    string `bson:"username"`
			BookRatings []struct {
				BookID string   `bson:"book_id"`
				Rating *float64 `bson:"rating"`
			} `bson:"book_ratings"`
		}
		if err := cur.Decode(&doc); err != nil {
			continue
		}

		userKey := doc.Username
		if userKey == "" {
			userKey = fmt.Sprintf("user_%d", seq)
		}
		seq++

		ratings := make([]core.Rating, 0, len(doc.BookRatings))
		for _, r := range doc.BookRatings {
			if r.BookID == "" || r.Rating == nil {
				continue
			}
			ratings = append(ratings, core.Rating{BookID: r.BookID, Value: *r.Rating})
		}
		if len(ratings) == 0 {
			continue
		}
		if !fn(userKey, ratings) {
			return nil
		}
	}
	return cur.Err()
}

// RatedBooks 实现 core.LibrarySource：取应用用户 finishedBooks 中确有评分的书。
// userKey 是 ObjectId 十六进制形式时按 ObjectId 查，否则按字符串主键查。
// 用户不存在返回空列表而非错误。
func (s *Source) RatedBooks(ctx context.Context, userKey string) ([]string, error) {
	var id any = userKey
	if oid, err := primitive.ObjectIDFromHex(userKey); err == nil {
		id = oid
	}

	var doc struct {
		FinishedBooks []struct {
			BookID string   `bson:"bookId"`
			Rating *float64 `bson:"rating"`
		} `bson:"finishedBooks"`
	}
	err := s.appUsers().FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	rated := make([]string, 0, len(doc.FinishedBooks))
	for _, b := range doc.FinishedBooks {
		if b.BookID == "" || b.Rating == nil {
			continue
		}
		rated = append(rated, b.BookID)
	}
	return rated, nil
}

var (
	_ core.CatalogSource = (*Source)(nil)
	_ core.RatingSource  = (*Source)(nil)
	_ core.LibrarySource = (*Source)(nil)
)
