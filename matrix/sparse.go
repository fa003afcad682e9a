// Package matrix 实现 CF 引擎的数值底座：稀疏评分矩阵的构建、
// 按用户去均值（centering），以及分批的物品-物品 adjusted cosine 相似度。
package matrix

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// COO 是坐标格式的稀疏矩阵累加器：三条平行数组 (value, row, col)。
// 构建阶段只做 append，不产生任何稠密中间态，用户量到数十万时依然可行。
type COO struct {
	nCols  int
	values []float64
	rowIdx []int
	colIdx []int
}

// NewCOO 创建一个列数固定的累加器；行数在 ToCSR 时给定。
func NewCOO(nCols int) *COO {
	return &COO{nCols: nCols}
}

// Append 追加一个非零元素。不去重：上游保证每个 (row, col) 至多一条有效记录。
func (c *COO) Append(row, col int, v float64) {
	c.values = append(c.values, v)
	c.rowIdx = append(c.rowIdx, row)
	c.colIdx = append(c.colIdx, col)
}

// NNZ 返回已累加的元素个数。
func (c *COO) NNZ() int { return len(c.values) }

// ToCSR 压缩为按行存储的 CSR 矩阵。
// 每行内列索引升序排列（dot 的双指针归并依赖该不变式）。
func (c *COO) ToCSR(nRows int) *CSR {
	m := &CSR{
		nRows:  nRows,
		nCols:  c.nCols,
		rowPtr: make([]int, nRows+1),
		colIdx: make([]int, len(c.colIdx)),
		values: make([]float64, len(c.values)),
	}

	// 按行计数 → 前缀和 → 散射
	for _, r := range c.rowIdx {
		m.rowPtr[r+1]++
	}
	for i := 1; i <= nRows; i++ {
		m.rowPtr[i] += m.rowPtr[i-1]
	}
	next := make([]int, nRows)
	copy(next, m.rowPtr[:nRows])
	for k, r := range c.rowIdx {
		p := next[r]
		m.colIdx[p] = c.colIdx[k]
		m.values[p] = c.values[k]
		next[r]++
	}

	for i := 0; i < nRows; i++ {
		sortRow(m.colIdx[m.rowPtr[i]:m.rowPtr[i+1]], m.values[m.rowPtr[i]:m.rowPtr[i+1]])
	}
	return m
}

// CSR 是按行压缩的稀疏矩阵。构建完成后只读。
type CSR struct {
	nRows, nCols int
	rowPtr       []int
	colIdx       []int
	values       []float64
}

// Dims 返回 (行数, 列数)。
func (m *CSR) Dims() (int, int) { return m.nRows, m.nCols }

// NNZ 返回存储的元素个数。
func (m *CSR) NNZ() int { return len(m.values) }

// Row 返回第 i 行的列索引与值（底层切片，调用方不得修改）。
func (m *CSR) Row(i int) (cols []int, vals []float64) {
	return m.colIdx[m.rowPtr[i]:m.rowPtr[i+1]], m.values[m.rowPtr[i]:m.rowPtr[i+1]]
}

// CenterRows 返回按行去均值的副本：每行对其非零元素减去该行非零元素的均值。
// 零元素代表"未评分"而非评分为零，不参与均值也不被平移。
func (m *CSR) CenterRows() *CSR {
	out := &CSR{
		nRows:  m.nRows,
		nCols:  m.nCols,
		rowPtr: m.rowPtr,
		colIdx: m.colIdx,
		values: make([]float64, len(m.values)),
	}

	nonzero := make([]float64, 0, 64)
	for i := 0; i < m.nRows; i++ {
		lo, hi := m.rowPtr[i], m.rowPtr[i+1]
		nonzero = nonzero[:0]
		for _, v := range m.values[lo:hi] {
			if v != 0 {
				nonzero = append(nonzero, v)
			}
		}
		if len(nonzero) == 0 {
			continue
		}
		mean := stat.Mean(nonzero, nil)
		for k := lo; k < hi; k++ {
			if m.values[k] != 0 {
				out.values[k] = m.values[k] - mean
			}
		}
	}
	return out
}

// Transpose 返回转置矩阵（物品-主序）。每行列索引保持升序。
func (m *CSR) Transpose() *CSR {
	t := &CSR{
		nRows:  m.nCols,
		nCols:  m.nRows,
		rowPtr: make([]int, m.nCols+1),
		colIdx: make([]int, len(m.colIdx)),
		values: make([]float64, len(m.values)),
	}

	for _, c := range m.colIdx {
		t.rowPtr[c+1]++
	}
	for i := 1; i <= m.nCols; i++ {
		t.rowPtr[i] += t.rowPtr[i-1]
	}
	next := make([]int, m.nCols)
	copy(next, t.rowPtr[:m.nCols])
	// 按原行号升序散射：转置后每行的列索引天然升序
	for r := 0; r < m.nRows; r++ {
		for k := m.rowPtr[r]; k < m.rowPtr[r+1]; k++ {
			c := m.colIdx[k]
			p := next[c]
			t.colIdx[p] = r
			t.values[p] = m.values[k]
			next[c]++
		}
	}
	return t
}

// dotRows 计算第 i、j 两行的内积，双指针归并交集。
func (m *CSR) dotRows(i, j int) float64 {
	ci, vi := m.Row(i)
	cj, vj := m.Row(j)
	var sum float64
	a, b := 0, 0
	for a < len(ci) && b < len(cj) {
		switch {
		case ci[a] == cj[b]:
			sum += vi[a] * vj[b]
			a++
			b++
		case ci[a] < cj[b]:
			a++
		default:
			b++
		}
	}
	return sum
}

func sortRow(cols []int, vals []float64) {
	sort.Sort(&rowSorter{cols: cols, vals: vals})
}

type rowSorter struct {
	cols []int
	vals []float64
}

func (s *rowSorter) Len() int           { return len(s.cols) }
func (s *rowSorter) Less(i, j int) bool { return s.cols[i] < s.cols[j] }
func (s *rowSorter) Swap(i, j int) {
	s.cols[i], s.cols[j] = s.cols[j], s.cols[i]
	s.vals[i], s.vals[j] = s.vals[j], s.vals[i]
}
