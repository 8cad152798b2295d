// Package vector holds the sparse feature vector type shared by the catalog
// and the similarity engine.
package vector

import (
	"fmt"
	"math"
)

// Sparse is a sparse row of a TF-IDF style feature matrix. Indices are
// strictly increasing column positions; Values holds the weight at the
// matching position.
type Sparse struct {
	Indices []int32
	Values  []float32
}

// NewSparse validates indices against dim and returns the vector.
func NewSparse(indices []int32, values []float32, dim int) (Sparse, error) {
	if len(indices) != len(values) {
		return Sparse{}, fmt.Errorf("vector: %d indices for %d values", len(indices), len(values))
	}
	prev := int32(-1)
	for _, idx := range indices {
		if idx < 0 || int(idx) >= dim {
			return Sparse{}, fmt.Errorf("vector: column %d outside [0, %d)", idx, dim)
		}
		if idx <= prev {
			return Sparse{}, fmt.Errorf("vector: columns not strictly increasing at %d", idx)
		}
		prev = idx
	}
	return Sparse{Indices: indices, Values: values}, nil
}

// FromDense builds a Sparse from a dense slice, dropping zeros.
func FromDense(dense []float32) Sparse {
	var s Sparse
	for i, v := range dense {
		if v != 0 {
			s.Indices = append(s.Indices, int32(i))
			s.Values = append(s.Values, v)
		}
	}
	return s
}

// Len returns the number of stored (non-zero) entries.
func (s Sparse) Len() int { return len(s.Indices) }

// Dot returns the dot product of two sparse vectors.
func Dot(a, b Sparse) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += float64(a.Values[i]) * float64(b.Values[j])
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Norm returns the Euclidean magnitude of s.
func Norm(s Sparse) float64 {
	var sum float64
	for _, v := range s.Values {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b, or 0 when either vector
// has zero magnitude.
func Cosine(a, b Sparse) float64 {
	return CosineWithNorms(a, b, Norm(a), Norm(b))
}

// CosineWithNorms is Cosine with precomputed magnitudes.
func CosineWithNorms(a, b Sparse, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}
	s := Dot(a, b) / (normA * normB)
	if math.IsNaN(s) {
		return 0
	}
	return s
}
