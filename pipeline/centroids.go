package pipeline

import (
	"github.com/teranos/embcluster/storage"
	"github.com/teranos/embcluster/vector"
)

// Centroids groups members by cluster id and averages each group.
// Noise members never contribute.
func Centroids(members []storage.Member) (map[int][]float32, error) {
	groups := make(map[int][][]float32)
	for _, m := range members {
		if m.ClusterID < 0 {
			continue
		}
		groups[m.ClusterID] = append(groups[m.ClusterID], m.Vector)
	}

	centroids := make(map[int][]float32, len(groups))
	for id, vecs := range groups {
		mean, err := vector.Mean(vecs)
		if err != nil {
			return nil, err
		}
		centroids[id] = mean
	}
	return centroids, nil
}
