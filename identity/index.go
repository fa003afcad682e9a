// Package identity 对齐两套独立的书目 ID 命名空间。
//
// 目录命名空间（Catalog ID）内部又有两种文本形式：路径限定形式（/works/OL123W）
// 与裸 key 形式（OL123W）。评分源命名空间（Rating-Source ID）是采集系统自造的
// ID，有时会把 Catalog key 作为子串嵌在其中。Index 把所有观测到的文本形式
// 归一到唯一的矩阵列键（Rating-Source ID），并维护反向的展示映射。
package identity

import (
	"regexp"
	"strings"

	"github.com/rushteam/bookrec/core"
)

// WorkPrefix 是 Catalog ID 的路径限定前缀。
const WorkPrefix = "/works/"

var (
	// bareKeyPattern 匹配裸 key 形式的 Catalog ID（如 OL123W）
	bareKeyPattern = regexp.MustCompile(`^OL\d+W$`)

	// embeddedKeyPattern 从任意字符串中提取嵌入的 Catalog key
	embeddedKeyPattern = regexp.MustCompile(`(OL\d+W)`)

	// embeddedPathPattern 从任意字符串中提取嵌入的路径限定形式
	embeddedPathPattern = regexp.MustCompile(`/works/(OL\d+W)`)
)

// Index 是双向 ID 对齐表。引擎生命周期内构建一次，之后只读。
//
// 不变式：无论给出哪种文本形式，Resolve 都落到同一个矩阵列键。
// 解析失败是静默的：返回原始 ID，调用方按"矩阵中不存在"处理。
type Index struct {
	forward map[string]string // 任意观测形式 -> Rating-Source ID（矩阵列键）
	reverse map[string]string // Rating-Source ID -> 首选的 Catalog 展示形式

	collisions int // forward 表中被后写覆盖的次数（数据质量信号）
}

// Build 从目录条目与评分源物品 ID 全集构建对齐表。
//
// 注册规则：
//   - 每个目录条目：原样注册；路径限定形式补注册裸 key，裸 key 形式补注册
//     路径限定形式。条目携带 SourceID 时，两种形式都指向该 SourceID，并注册
//     反向映射。
//   - 每个评分源 ID：若其中嵌有可识别的 Catalog key 子串，则把提取出的裸 key
//     与路径限定形式都注册为指向该评分源 ID，并注册反向映射。
//
// 同一 Catalog key 被多个评分源 ID 嵌入时后写覆盖（沿用数据源的既有语义），
// 覆盖次数通过 Collisions 暴露，由调用方决定是否告警。
func Build(books []*core.Book, sourceIDs []string) *Index {
	ix := &Index{
		forward: make(map[string]string),
		reverse: make(map[string]string),
	}

	for _, b := range books {
		if b == nil || b.ID == "" {
			continue
		}
		id := b.ID

		// 无评分源对应时目录 ID 解析到自身
		target := id
		if b.SourceID != "" {
			target = b.SourceID
		}

		ix.register(id, target)
		switch {
		case strings.HasPrefix(id, WorkPrefix):
			ix.register(strings.TrimPrefix(id, WorkPrefix), target)
		case bareKeyPattern.MatchString(id):
			ix.register(WorkPrefix+id, target)
		}

		if b.SourceID != "" {
			ix.reverse[b.SourceID] = id
		}
	}

	for _, sid := range sourceIDs {
		if sid == "" {
			continue
		}
		key := extractKey(sid)
		if key == "" {
			continue
		}
		ix.register(key, sid)
		ix.register(WorkPrefix+key, sid)
		ix.reverse[sid] = WorkPrefix + key
	}

	return ix
}

func (ix *Index) register(form, target string) {
	if old, ok := ix.forward[form]; ok && old != target {
		ix.collisions++
	}
	ix.forward[form] = target
}

// Resolve 把任意文本形式的 ID 归一到矩阵列键。
//
// 解析顺序：精确匹配 → 补路径前缀重试 → 去路径前缀重试 → 原样返回。
func (ix *Index) Resolve(id string) string {
	if target, ok := ix.forward[id]; ok {
		return target
	}

	if !strings.HasPrefix(id, WorkPrefix) && bareKeyPattern.MatchString(id) {
		if target, ok := ix.forward[WorkPrefix+id]; ok {
			return target
		}
	}

	if strings.HasPrefix(id, WorkPrefix) {
		if target, ok := ix.forward[strings.TrimPrefix(id, WorkPrefix)]; ok {
			return target
		}
	}

	return id
}

// Display 把矩阵列键（Rating-Source ID）映射回首选的 Catalog 展示形式。
// 无反向映射时尝试从评分源 ID 中提取嵌入的 Catalog key；再失败则原样返回。
func (ix *Index) Display(sourceID string) string {
	if catalogID, ok := ix.reverse[sourceID]; ok {
		return catalogID
	}
	if m := embeddedPathPattern.FindStringSubmatch(sourceID); m != nil {
		return WorkPrefix + m[1]
	}
	return sourceID
}

// Collisions 返回构建期间 forward 表被覆盖的次数。
func (ix *Index) Collisions() int { return ix.collisions }

// Len 返回 forward 表的条目数。
func (ix *Index) Len() int { return len(ix.forward) }

// extractKey 从评分源 ID 中提取嵌入的 Catalog key；优先路径限定形式。
func extractKey(sourceID string) string {
	if m := embeddedPathPattern.FindStringSubmatch(sourceID); m != nil {
		return m[1]
	}
	if m := embeddedKeyPattern.FindStringSubmatch(sourceID); m != nil {
		return m[1]
	}
	return ""
}
