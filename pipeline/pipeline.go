// Package pipeline runs one batch re-clustering of an embeddings table:
// ensure schema, fetch, cluster, write assignments, write centroids.
//
// Every stage commits on its own. A failure stops the run where it is; the
// next run recomputes everything from the stored vectors, so re-running
// repairs a run that died between the assignment and centroid stages.
package pipeline

import (
	"context"
	"time"

	"github.com/teranos/embcluster/cluster"
	"github.com/teranos/embcluster/errors"
	"github.com/teranos/embcluster/logger"
	"github.com/teranos/embcluster/storage"
)

// Store is the table access the pipeline needs. *storage.Table implements it.
type Store interface {
	EnsureSchema(ctx context.Context) error
	FetchEmbeddings(ctx context.Context) (*storage.Batch, error)
	WriteAssignments(ctx context.Context, ids []any, labels []int) (int64, error)
	FetchAssigned(ctx context.Context) ([]storage.Member, error)
	WriteCentroids(ctx context.Context, centroids map[int][]float32) error
}

// Options tunes a run.
type Options struct {
	// DryRun fetches and clusters but writes nothing, schema included.
	DryRun bool
}

// Pipeline wires a store to a clustering engine.
type Pipeline struct {
	store  Store
	engine cluster.Engine
	opts   Options
}

// New returns a Pipeline over store and engine.
func New(store Store, engine cluster.Engine, opts Options) *Pipeline {
	return &Pipeline{store: store, engine: engine, opts: opts}
}

// Run executes one full recompute. The returned report is never nil; on
// error it holds the last state reached.
func (p *Pipeline) Run(ctx context.Context, rc *RunContext) (*Report, error) {
	log := rc.Logger
	report := &Report{
		RunID:     rc.ID,
		State:     StateStart,
		DryRun:    p.opts.DryRun,
		StartedAt: time.Now(),
	}
	defer func() { report.FinishedAt = time.Now() }()

	advance := func(s State) {
		report.State = s
		log.Debugw("Pipeline state", logger.FieldState, s)
	}

	if !p.opts.DryRun {
		start := time.Now()
		if err := p.store.EnsureSchema(ctx); err != nil {
			return report, errors.Wrap(err, "ensure schema")
		}
		report.record("schema", start)
		advance(StateSchemaReady)
	}

	start := time.Now()
	batch, err := p.store.FetchEmbeddings(ctx)
	if err != nil {
		return report, errors.Wrap(err, "fetch embeddings")
	}
	report.record("fetch", start)
	report.Rows = batch.Len()
	advance(StateFetched)

	if batch.Len() == 0 {
		log.Warnw("No embeddings found, nothing to cluster")
		advance(StateEmpty)
		return report, nil
	}
	if len(batch.IDs) != len(batch.Vectors) {
		return report, errors.AssertionFailedf("fetched %d ids but %d vectors", len(batch.IDs), len(batch.Vectors))
	}

	start = time.Now()
	labels, err := p.engine.Cluster(batch.Vectors)
	if err != nil {
		return report, errors.Wrap(err, "cluster embeddings")
	}
	if err := cluster.Validate(labels, batch.Len()); err != nil {
		return report, err
	}
	report.record("cluster", start)

	summary := cluster.Summarize(labels)
	report.Clusters = summary.Clusters
	report.Noise = summary.Noise
	report.Sizes = summary.Sizes
	advance(StateClustered)

	log.Infow("Clustering complete",
		logger.FieldRows, summary.Points,
		logger.FieldClusters, summary.Clusters,
		logger.FieldNoise, summary.Noise,
	)

	if summary.AllNoise() {
		log.Warnw("No valid clusters found, every embedding is noise; table left unchanged",
			logger.FieldRows, summary.Points)
		advance(StateNoValidClusters)
		return report, nil
	}

	if p.opts.DryRun {
		log.Infow("Dry run, skipping writes", logger.FieldDryRun, true)
		return report, nil
	}

	start = time.Now()
	updated, err := p.store.WriteAssignments(ctx, batch.IDs, labels)
	if err != nil {
		return report, errors.Wrap(err, "write cluster assignments")
	}
	report.Updated = updated
	report.record("assign", start)
	advance(StateAssignmentsWritten)

	start = time.Now()
	if err := p.writeCentroids(ctx, rc); err != nil {
		return report, err
	}
	report.record("centroids", start)
	advance(StateCentroidsWritten)

	return report, nil
}

func (p *Pipeline) writeCentroids(ctx context.Context, rc *RunContext) error {
	members, err := p.store.FetchAssigned(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch assigned embeddings")
	}

	centroids, err := Centroids(members)
	if err != nil {
		return errors.Wrap(err, "compute centroids")
	}

	for id, c := range centroids {
		rc.Logger.Debugw("Centroid computed", logger.FieldClusterID, id, logger.FieldDimensions, len(c))
	}

	if err := p.store.WriteCentroids(ctx, centroids); err != nil {
		return errors.Wrap(err, "write centroids")
	}
	rc.Logger.Infow("Centroids updated", logger.FieldClusters, len(centroids))
	return nil
}
