package matrix

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultBatchSize 是相似度计算的默认批大小（行数）。
const DefaultBatchSize = 500

// AdjustedCosine 把稀疏的用户×物品评分矩阵变换为稠密的物品×物品相似度矩阵。
//
// 算法：
//  1. 每个用户对其非零评分减去个人均值，消除打分尺度偏差
//     （把什么都打 5 星的用户拉回到和其他人可比的量纲）
//  2. 转置为物品-主序
//  3. 两两计算 cosine：sim(i,j) = vi·vj / (‖vi‖·‖vj‖)，零范数向量相似度取 0
//  4. 按 batchSize 行分批累加进最终输出，除最终的 n×n 结果外不产生
//     任何 n² 级中间态
//
// 退化情形：评分矩阵无任何非零元素时返回全零 n×n 矩阵，而非报错。
// 输出对称：sim(i,j) 与 sim(j,i) 写入同一次计算结果，严格相等。
func AdjustedCosine(ratings *CSR, batchSize int, progress func(done, total int)) *mat.Dense {
	_, nItems := ratings.Dims()
	sim := mat.NewDense(nItems, nItems, nil)
	if ratings.NNZ() == 0 {
		return sim
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	items := ratings.CenterRows().Transpose()

	norms := make([]float64, nItems)
	for i := 0; i < nItems; i++ {
		norms[i] = math.Sqrt(items.dotRows(i, i))
	}

	for start := 0; start < nItems; start += batchSize {
		end := start + batchSize
		if end > nItems {
			end = nItems
		}
		for i := start; i < end; i++ {
			if norms[i] == 0 {
				continue
			}
			sim.Set(i, i, 1)
			for j := i + 1; j < nItems; j++ {
				if norms[j] == 0 {
					continue
				}
				dot := items.dotRows(i, j)
				if dot == 0 {
					continue
				}
				s := dot / (norms[i] * norms[j])
				sim.Set(i, j, s)
				sim.Set(j, i, s)
			}
		}
		if progress != nil {
			progress(end, nItems)
		}
	}
	return sim
}
