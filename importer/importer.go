// Package importer turns batches of paths into committed resources.
//
// Every batch is resolved with bounded concurrency, deduplicated in input
// order, committed to the store in one transaction and only then pushed to
// the projection as one batch.
package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mc-resource-manager/projection"
	"mc-resource-manager/resolver"
	"mc-resource-manager/resource"
	"mc-resource-manager/store"
)

const DefaultConcurrency = 4

// Resolver resolves one path; *resolver.Resolver implements it.
type Resolver interface {
	Resolve(ctx context.Context, path string) resolver.Result
}

// Failure is a path that could not be imported.
type Failure struct {
	Path string
	Err  error
}

// Duplicate is a path whose content was already imported earlier in the same batch.
type Duplicate struct {
	Path string
	Hash string
	// Of is the earlier path of the batch that carried the same content.
	Of string
}

// Result enumerates the outcome of every path of a batch.
type Result struct {
	BatchID      string
	Imported     []resource.Resource
	Updated      []resource.Resource
	Unrecognized []string
	Failed       []Failure
	Duplicates   []Duplicate
	// Replaced are records dropped because their path now holds other content.
	Replaced []resource.Resource
}

type Options struct {
	Resolver    Resolver
	Store       *store.Store
	Projection  *projection.Projection
	Concurrency int
	Progress    Progress
	Registerer  prometheus.Registerer
	Logger      *zap.SugaredLogger
}

type Importer struct {
	resolver    Resolver
	store       *store.Store
	projection  *projection.Projection
	concurrency int
	progress    Progress
	metrics     *metrics
	log         *zap.SugaredLogger

	// commitMu keeps store commits and their projection updates in the same order.
	commitMu sync.Mutex
}

func New(opts Options) *Importer {
	im := &Importer{
		resolver:    opts.Resolver,
		store:       opts.Store,
		projection:  opts.Projection,
		concurrency: opts.Concurrency,
		progress:    opts.Progress,
		metrics:     newMetrics(opts.Registerer),
		log:         opts.Logger,
	}
	if im.concurrency <= 0 {
		im.concurrency = DefaultConcurrency
	}
	if im.progress == nil {
		im.progress = silentProgress{}
	}
	if im.log == nil {
		im.log = zap.NewNop().Sugar()
	}
	if im.projection == nil {
		im.projection = projection.New()
	}
	return im
}

// Projection returns the mirror the importer keeps up to date.
func (im *Importer) Projection() *projection.Projection {
	return im.projection
}

// ImportFiles imports paths as one batch. Per-file problems are reported in
// the result; an error means nothing of the batch was committed or projected.
func (im *Importer) ImportFiles(ctx context.Context, paths []string) (*Result, error) {
	batchID := uuid.NewString()
	im.progress.Start(batchID, len(paths))
	im.log.Infow("Import batch started", zap.String("batch", batchID), zap.Int("files", len(paths)))

	results := im.resolveAll(ctx, paths)
	if err := ctx.Err(); err != nil {
		im.metrics.batches.WithLabelValues("cancelled").Inc()
		im.log.Infow("Import batch cancelled", zap.String("batch", batchID))
		return nil, fmt.Errorf("import batch %s: %w", batchID, err)
	}

	res, candidates := partition(batchID, paths, results)

	im.commitMu.Lock()
	defer im.commitMu.Unlock()

	outcomes, err := im.store.CommitBatch(ctx, candidates)
	if err != nil {
		im.metrics.batches.WithLabelValues("failed").Inc()
		im.log.Errorw("Import batch commit failed", zap.String("batch", batchID), zap.Error(err))
		return nil, fmt.Errorf("import batch %s: %w", batchID, err)
	}

	ops := make([]projection.Op, 0, len(outcomes))
	for _, out := range outcomes {
		for _, old := range out.Replaced {
			res.Replaced = append(res.Replaced, old)
			ops = append(ops, projection.RemoveIdentity(old.Domain, old.Hash))
		}
		if out.Created {
			res.Imported = append(res.Imported, out.Resource)
		} else {
			res.Updated = append(res.Updated, out.Resource)
		}
		ops = append(ops, projection.Upsert(out.Resource))
	}
	im.projection.Apply(projection.Batch{ID: batchID, Ops: ops})

	im.metrics.batches.WithLabelValues("committed").Inc()
	im.metrics.record(res)
	im.progress.Committed(res)
	im.log.Infow("Import batch committed",
		zap.String("batch", batchID),
		zap.Int("imported", len(res.Imported)),
		zap.Int("updated", len(res.Updated)),
		zap.Int("unrecognized", len(res.Unrecognized)),
		zap.Int("failed", len(res.Failed)),
		zap.Int("duplicates", len(res.Duplicates)),
		zap.Int("replaced", len(res.Replaced)),
	)
	return res, nil
}

func (im *Importer) resolveAll(ctx context.Context, paths []string) []resolver.Result {
	results := make([]resolver.Result, len(paths))
	var g errgroup.Group
	g.SetLimit(im.concurrency)
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			r := im.resolver.Resolve(ctx, path)
			im.metrics.resolveDuration.Observe(time.Since(start).Seconds())
			results[i] = r
			if r.Outcome == resolver.Failed {
				im.log.Warnw("Failed to resolve file", zap.String("path", path), zap.Error(r.Err))
			}
			im.progress.Resolved(path, r.Outcome, r.Err)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

type identity struct {
	domain resource.Domain
	hash   string
}

// partition sorts results into the result lists in input order and returns
// the resources to commit. The first path carrying a given content wins.
func partition(batchID string, paths []string, results []resolver.Result) (*Result, []resource.Resource) {
	res := &Result{BatchID: batchID}
	seen := make(map[identity]string)
	var candidates []resource.Resource
	for i, r := range results {
		path := paths[i]
		switch r.Outcome {
		case resolver.Recognized:
			key := identity{r.Resource.Domain, r.Resource.Hash}
			if of, dup := seen[key]; dup {
				res.Duplicates = append(res.Duplicates, Duplicate{Path: path, Hash: key.hash, Of: of})
				continue
			}
			seen[key] = path
			candidates = append(candidates, *r.Resource)
		case resolver.Unrecognized:
			res.Unrecognized = append(res.Unrecognized, path)
		default:
			res.Failed = append(res.Failed, Failure{Path: path, Err: r.Err})
		}
	}
	return res, candidates
}
