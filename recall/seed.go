package recall

// Seed 是 API 边界上的种子输入变体。
//
// 上游传来的种子有两种形态：纯 ID 字符串，或书架条目 {bookId, rating}。
// 变体在进入引擎前经 NormalizeSeeds 一次性归一为 ID 列表，
// 引擎内部不再出现形态判断。
type Seed interface {
	seedID() string
}

// IDSeed 是纯 ID 形态的种子。
type IDSeed string

func (s IDSeed) seedID() string { return string(s) }

// EntrySeed 是书架条目形态的种子：未评分（Rating 为 nil）的条目不作为种子。
type EntrySeed struct {
	BookID string
	Rating *float64
}

func (s EntrySeed) seedID() string {
	if s.Rating == nil {
		return ""
	}
	return s.BookID
}

// NormalizeSeeds 把种子变体归一为 ID 列表，丢弃空 ID 与未评分条目。
func NormalizeSeeds(seeds []Seed) []string {
	ids := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if s == nil {
			continue
		}
		if id := s.seedID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
