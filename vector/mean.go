package vector

import "github.com/teranos/embcluster/errors"

// Mean returns the coordinate-wise arithmetic mean of vectors.
// Sums accumulate in float64; a single vector is returned as an exact copy.
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, errors.New("mean of zero vectors")
	}

	dim := len(vectors[0])
	if len(vectors) == 1 {
		out := make([]float32, dim)
		copy(out, vectors[0])
		return out, nil
	}

	sums := make([]float64, dim)
	for _, v := range vectors {
		if len(v) != dim {
			return nil, errors.NewDimensionMismatch(nil, dim, len(v))
		}
		for j, f := range v {
			sums[j] += float64(f)
		}
	}

	n := float64(len(vectors))
	out := make([]float32, dim)
	for j, s := range sums {
		out[j] = float32(s / n)
	}
	return out, nil
}
