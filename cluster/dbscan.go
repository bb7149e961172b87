package cluster

import "github.com/teranos/embcluster/errors"

// DBSCAN groups points that have at least MinPoints neighbours (itself
// included) within Epsilon.
type DBSCAN struct {
	Epsilon   float64
	MinPoints int
	Metric    Metric
}

// NewDBSCAN validates parameters and returns a DBSCAN engine.
func NewDBSCAN(eps float64, minPts int, metric Metric) (*DBSCAN, error) {
	if eps <= 0 {
		return nil, errors.Newf("dbscan epsilon must be > 0, got %g", eps)
	}
	if minPts < 1 {
		return nil, errors.Newf("dbscan min points must be >= 1, got %d", minPts)
	}
	if metric == nil {
		metric = Euclidean
	}
	return &DBSCAN{Epsilon: eps, MinPoints: minPts, Metric: metric}, nil
}

// Cluster labels vectors; clusters are numbered from 0 in discovery order.
func (d *DBSCAN) Cluster(vectors [][]float32) ([]int, error) {
	if err := checkMatrix(vectors); err != nil {
		return nil, err
	}

	const undefined = -2

	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = undefined
	}
	next := 0

	for i := 0; i < n; i++ {
		if labels[i] != undefined {
			continue
		}

		neighbors := d.rangeQuery(vectors, i)
		if len(neighbors) < d.MinPoints {
			labels[i] = Noise
			continue
		}

		id := next
		next++
		labels[i] = id

		seed := make([]int, 0, len(neighbors))
		for _, j := range neighbors {
			if j != i {
				seed = append(seed, j)
			}
		}

		for len(seed) > 0 {
			q := seed[0]
			seed = seed[1:]

			if labels[q] == Noise {
				// Border point: joins the cluster but does not expand it
				labels[q] = id
			}
			if labels[q] != undefined {
				continue
			}
			labels[q] = id

			qNeighbors := d.rangeQuery(vectors, q)
			if len(qNeighbors) >= d.MinPoints {
				seed = append(seed, qNeighbors...)
			}
		}
	}

	return labels, nil
}

func (d *DBSCAN) rangeQuery(vectors [][]float32, idx int) []int {
	var result []int
	q := vectors[idx]
	for i, v := range vectors {
		if d.Metric(q, v) <= d.Epsilon {
			result = append(result, i)
		}
	}
	return result
}
