package cluster

import (
	"math"
	"strings"

	"github.com/teranos/embcluster/errors"
)

// Metric is a distance function between two equal-length vectors.
type Metric func(a, b []float32) float64

// Euclidean returns the L2 distance.
func Euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Cosine returns 1 - cosine similarity. Zero vectors are at distance 1 from everything.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom == 0 {
		return 1
	}
	return 1 - dot/denom
}

// ParseMetric maps a configured metric name to its function.
// An empty name selects Euclidean.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(name) {
	case "", "euclidean", "l2":
		return Euclidean, nil
	case "cosine":
		return Cosine, nil
	default:
		return nil, errors.Newf("unknown distance metric %q (supported: euclidean, cosine)", name)
	}
}

func checkMatrix(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return errors.NewDimensionMismatch(i, dim, len(v))
		}
	}
	return nil
}
