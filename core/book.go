package core

import "github.com/rushteam/bookrec/pkg/utils"

// Book 是目录中的一本书，引擎运行期间不可变。
//
// 两套 ID 命名空间：
//   - ID: Catalog ID（元数据目录命名空间，如 OpenLibrary 的 /works/OL123W 或 OL123W）
//   - SourceID: Rating-Source ID（评分采集系统的原生 ID，可为空，需通过 identity 包对齐）
type Book struct {
	ID          string   `json:"id" bson:"_id"`
	SourceID    string   `json:"source_id,omitempty" bson:"book_id,omitempty"`
	Title       string   `json:"title" bson:"title"`
	AuthorNames []string `json:"author_names" bson:"author_names"`
	Description string   `json:"description,omitempty" bson:"description,omitempty"`
	CoverID     string   `json:"cover_id,omitempty" bson:"cover_id,omitempty"`
}

// Rating 是单条评分记录：(物品, 分值)。
// BookID 处于 Rating-Source 命名空间；Value 的量纲由数据源决定，引擎不做范围校验。
type Rating struct {
	BookID string  `json:"book_id" bson:"book_id"`
	Value  float64 `json:"rating" bson:"rating"`
}

// Recommendation 是引擎输出边界上的唯一结构。
//
// Method 是来源判别字段（如 "item_cf"），供下游混排逻辑区分 CF 推荐与内容推荐；
// SourceBook 仅在按书 fan-out 推荐时填充，表示该结果来自哪个种子书。
type Recommendation struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title"`
	AuthorNames []string               `json:"author_names"`
	Description string                 `json:"description,omitempty"`
	CoverID     string                 `json:"cover_id,omitempty"`
	Score       float64                `json:"similarity_score"`
	Method      string                 `json:"method"`
	SourceBook  string                 `json:"source_book,omitempty"`
	Labels      map[string]utils.Label `json:"labels,omitempty"`
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (r *Recommendation) PutLabel(key string, lbl utils.Label) {
	if r.Labels == nil {
		r.Labels = make(map[string]utils.Label)
	}
	if old, ok := r.Labels[key]; ok {
		r.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	r.Labels[key] = lbl
}
