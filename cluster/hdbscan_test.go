package cluster

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/embcluster/errors"
)

// twoGroups is six 2-D points: three around (0,0) and three around (10,10).
// Each group is symmetric about its center so the mean is exact.
func twoGroups() [][]float32 {
	return [][]float32{
		{-0.1, 0}, {0.1, 0}, {0, 0},
		{9.9, 10}, {10.1, 10}, {10, 10},
	}
}

func TestHDBSCAN_TwoTightGroups(t *testing.T) {
	h, err := NewHDBSCAN(3, 0, Euclidean)
	require.NoError(t, err)

	labels, err := h.Cluster(twoGroups())
	require.NoError(t, err)
	require.NoError(t, Validate(labels, 6))

	assert.GreaterOrEqual(t, labels[0], 0)
	assert.GreaterOrEqual(t, labels[3], 0)
	assert.Equal(t, labels[0], labels[1])
	assert.Equal(t, labels[0], labels[2])
	assert.Equal(t, labels[3], labels[4])
	assert.Equal(t, labels[3], labels[5])
	assert.NotEqual(t, labels[0], labels[3])
}

func TestHDBSCAN_Outlier(t *testing.T) {
	points := append(twoGroups(), []float32{50, -50})
	h, err := NewHDBSCAN(3, 0, nil)
	require.NoError(t, err)

	labels, err := h.Cluster(points)
	require.NoError(t, err)

	assert.Equal(t, Noise, labels[6])
	s := Summarize(labels)
	assert.Equal(t, 2, s.Clusters)
	assert.Equal(t, 1, s.Noise)
}

func TestHDBSCAN_TooFewPoints(t *testing.T) {
	h, err := NewHDBSCAN(5, 0, nil)
	require.NoError(t, err)

	labels, err := h.Cluster(twoGroups()[:4])
	require.NoError(t, err)
	assert.Equal(t, []int{Noise, Noise, Noise, Noise}, labels)

	labels, err = h.Cluster(nil)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestHDBSCAN_SingleGroupIsNoise(t *testing.T) {
	// One dense blob has no internal split, and the root is never a cluster
	h, err := NewHDBSCAN(3, 0, nil)
	require.NoError(t, err)

	labels, err := h.Cluster([][]float32{{0, 0}, {0, 0.1}, {0.1, 0}})
	require.NoError(t, err)
	assert.True(t, Summarize(labels).AllNoise())
}

func TestHDBSCAN_Duplicates(t *testing.T) {
	points := [][]float32{
		{1, 1}, {1, 1}, {1, 1},
		{-4, 7}, {-4, 7}, {-4, 7},
	}
	h, err := NewHDBSCAN(3, 0, nil)
	require.NoError(t, err)

	labels, err := h.Cluster(points)
	require.NoError(t, err)
	s := Summarize(labels)
	assert.Equal(t, 2, s.Clusters)
	assert.Equal(t, 0, s.Noise)
}

func TestHDBSCAN_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var points [][]float32
	for _, c := range [][2]float32{{0, 0}, {20, 0}, {0, 20}} {
		for i := 0; i < 15; i++ {
			points = append(points, []float32{
				c[0] + float32(rng.NormFloat64()),
				c[1] + float32(rng.NormFloat64()),
			})
		}
	}

	h, err := NewHDBSCAN(5, 0, nil)
	require.NoError(t, err)

	first, err := h.Cluster(points)
	require.NoError(t, err)
	second, err := h.Cluster(points)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Sub-blob splits are allowed, but no label may span two blobs
	assert.GreaterOrEqual(t, Summarize(first).Clusters, 3)
	blobOf := make(map[int]int)
	for i, l := range first {
		if l == Noise {
			continue
		}
		if b, ok := blobOf[l]; ok {
			assert.Equal(t, b, i/15, "label %d spans blobs", l)
		}
		blobOf[l] = i / 15
	}
}

func TestHDBSCAN_RaggedMatrix(t *testing.T) {
	h, err := NewHDBSCAN(2, 0, nil)
	require.NoError(t, err)

	_, err = h.Cluster([][]float32{{1, 2}, {1}})
	assert.True(t, errors.IsDimensionMismatch(err))
}

func TestDBSCAN_TwoTightGroups(t *testing.T) {
	d, err := NewDBSCAN(1.0, 3, Euclidean)
	require.NoError(t, err)

	labels, err := d.Cluster(append(twoGroups(), []float32{50, 50}))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1, Noise}, labels)
}

func TestDBSCAN_Cosine(t *testing.T) {
	d, err := NewDBSCAN(0.01, 2, Cosine)
	require.NoError(t, err)

	labels, err := d.Cluster([][]float32{{1, 0}, {2, 0}, {0, 1}, {0, 3}, {1, 1}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1, 1, Noise}, labels)
}
