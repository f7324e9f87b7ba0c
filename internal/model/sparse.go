// Package model holds the Go-native formats of the trained artifacts used by
// the URL classifier: the TF-IDF vectorizer, the gradient-boosted tree
// ensemble and the label encoder. All three are loaded from JSON once at
// startup and are read-only afterwards.
package model

import (
	"fmt"
	"sort"
)

// SparseVector is a single-row sparse matrix. Indices are ascending and
// unique; absent columns are implicit zeros.
type SparseVector struct {
	Width   int
	Indices []int
	Values  []float64
}

// NewSparseFromDense builds a sparse row from a dense slice, dropping zeros.
func NewSparseFromDense(dense []float64) SparseVector {
	v := SparseVector{Width: len(dense)}
	for i, x := range dense {
		if x != 0 {
			v.Indices = append(v.Indices, i)
			v.Values = append(v.Values, x)
		}
	}
	return v
}

// NewSparseFromMap builds a sparse row of the given width from a column→value
// map. Zero values are dropped.
func NewSparseFromMap(width int, cols map[int]float64) (SparseVector, error) {
	v := SparseVector{Width: width}
	for idx, x := range cols {
		if idx < 0 || idx >= width {
			return SparseVector{}, fmt.Errorf("column %d out of range [0,%d)", idx, width)
		}
		if x != 0 {
			v.Indices = append(v.Indices, idx)
		}
	}
	sort.Ints(v.Indices)
	v.Values = make([]float64, len(v.Indices))
	for i, idx := range v.Indices {
		v.Values[i] = cols[idx]
	}
	return v, nil
}

// Lookup returns the stored value for column idx and whether it is present.
func (v SparseVector) Lookup(idx int) (float64, bool) {
	i := sort.SearchInts(v.Indices, idx)
	if i < len(v.Indices) && v.Indices[i] == idx {
		return v.Values[i], true
	}
	return 0, false
}

// NNZ is the number of stored entries.
func (v SparseVector) NNZ() int { return len(v.Indices) }

// Dense expands the row to a dense slice of length Width.
func (v SparseVector) Dense() []float64 {
	out := make([]float64, v.Width)
	for i, idx := range v.Indices {
		out[idx] = v.Values[i]
	}
	return out
}

// HStack concatenates rows horizontally: columns of later rows are shifted
// by the combined width of the rows before them.
func HStack(rows ...SparseVector) SparseVector {
	var out SparseVector
	for _, r := range rows {
		for i, idx := range r.Indices {
			out.Indices = append(out.Indices, out.Width+idx)
			out.Values = append(out.Values, r.Values[i])
		}
		out.Width += r.Width
	}
	return out
}
