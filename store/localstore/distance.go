package localstore

import (
	"math"

	"github.com/fastpoint/fastpoint/model"
)

// Portable scoring kernels. Higher is better for every returned score;
// Euclid is negated so one descending sort order serves all metrics.

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func cosine(a, b []float32) float32 {
	var dotP, na, nb float32
	for i := range a {
		dotP += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dotP / float32(math.Sqrt(float64(na))*math.Sqrt(float64(nb)))
}

func negSquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return -sum
}

func denseScorer(distance model.Distance) func(a, b []float32) float32 {
	switch distance {
	case model.DistanceDot:
		return dot
	case model.DistanceEuclid:
		return negSquaredL2
	default:
		return cosine
	}
}

// sparseDot scores two sparse vectors by dot product over shared indices.
// Both index sequences are sorted ascending.
func sparseDot(a, b model.SparseVector) float32 {
	var sum float32
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] < b.Indices[j]:
			i++
		case a.Indices[i] > b.Indices[j]:
			j++
		default:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		}
	}
	return sum
}
