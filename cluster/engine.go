// Package cluster provides density-based clustering engines behind a single
// matrix-in, labels-out contract.
//
// An Engine maps n vectors to n labels. A label is a non-negative cluster
// index or Noise. Engines in this package are deterministic for a fixed input
// order, so re-running over unchanged data reproduces the same labelling.
package cluster

import (
	"sort"
	"strings"

	"github.com/teranos/embcluster/errors"
)

// Noise is the reserved label for points not assigned to any cluster.
const Noise = -1

// Engine clusters a vector matrix. len(labels) must equal len(vectors).
type Engine interface {
	Cluster(vectors [][]float32) ([]int, error)
}

// EngineFunc adapts a plain function to Engine.
type EngineFunc func(vectors [][]float32) ([]int, error)

// Cluster calls f(vectors).
func (f EngineFunc) Cluster(vectors [][]float32) ([]int, error) {
	return f(vectors)
}

// Config selects and tunes an engine.
type Config struct {
	Algorithm      string  // "hdbscan" or "dbscan"
	Metric         string  // "euclidean" or "cosine"
	MinClusterSize int     // hdbscan: smallest group reported as a cluster
	MinSamples     int     // hdbscan: neighbourhood size for core distance (0 = MinClusterSize)
	Epsilon        float64 // dbscan: neighbourhood radius
	MinPoints      int     // dbscan: neighbours needed for a core point (0 = MinClusterSize)
}

// Algorithm names accepted by New.
const (
	AlgorithmHDBSCAN = "hdbscan"
	AlgorithmDBSCAN  = "dbscan"
)

// New builds the engine named by cfg.Algorithm.
func New(cfg Config) (Engine, error) {
	metric, err := ParseMetric(cfg.Metric)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(cfg.Algorithm) {
	case AlgorithmHDBSCAN, "":
		return NewHDBSCAN(cfg.MinClusterSize, cfg.MinSamples, metric)
	case AlgorithmDBSCAN:
		minPts := cfg.MinPoints
		if minPts <= 0 {
			minPts = cfg.MinClusterSize
		}
		return NewDBSCAN(cfg.Epsilon, minPts, metric)
	default:
		return nil, errors.WithHint(
			errors.Newf("unknown clustering algorithm %q", cfg.Algorithm),
			"supported algorithms: hdbscan, dbscan")
	}
}

// Validate checks the engine contract: one label per input row, and every
// label either Noise or a non-negative cluster index.
func Validate(labels []int, n int) error {
	if len(labels) != n {
		return errors.AssertionFailedf("clustering returned %d labels for %d vectors", len(labels), n)
	}
	for i, l := range labels {
		if l < Noise {
			return errors.AssertionFailedf("invalid label %d at index %d", l, i)
		}
	}
	return nil
}

// Summary describes a labelling.
type Summary struct {
	Points   int
	Clusters int
	Noise    int
	Sizes    map[int]int // cluster label -> member count, noise excluded
}

// Summarize counts clusters and noise points in labels.
func Summarize(labels []int) Summary {
	s := Summary{Points: len(labels), Sizes: make(map[int]int)}
	for _, l := range labels {
		if l == Noise {
			s.Noise++
			continue
		}
		s.Sizes[l]++
	}
	s.Clusters = len(s.Sizes)
	return s
}

// AllNoise reports whether no label names a cluster.
func (s Summary) AllNoise() bool {
	return s.Clusters == 0
}

// Labels returns the cluster labels in ascending order.
func (s Summary) Labels() []int {
	out := make([]int, 0, len(s.Sizes))
	for l := range s.Sizes {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}
