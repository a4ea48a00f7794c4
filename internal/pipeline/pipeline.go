package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/couchcryptid/purple-haze-etl/internal/observability"
	"golang.org/x/sync/errgroup"
)

// Extractor lists the raw exports to process.
type Extractor interface {
	Extract(ctx context.Context) ([]domain.FileRef, error)
}

// SeriesLoader parses one raw export.
type SeriesLoader interface {
	Load(ref domain.FileRef) (*domain.Series, error)
}

// TractIndex maps coordinates to census tracts.
type TractIndex interface {
	// Tracts lists every tract id; each gets a report row.
	Tracts() []string
	// Locate returns the tracts containing the point.
	Locate(lat, lon float64) []string
}

// ReportLoader writes a finished report to a destination.
type ReportLoader interface {
	Name() string
	LoadReport(ctx context.Context, report domain.Report) error
}

// Options tunes a pipeline run.
type Options struct {
	Workers      int
	Threshold    float64
	IncludeSmoke bool
}

// Pipeline orchestrates one extract-aggregate-load pass over a raw data
// directory.
type Pipeline struct {
	extractor  Extractor
	loader     SeriesLoader
	index      TractIndex
	aggregator *domain.TractAggregator
	sinks      []ReportLoader
	opts       Options
	logger     *slog.Logger
	metrics    *observability.Metrics

	last atomic.Pointer[domain.Report]
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, l SeriesLoader, idx TractIndex, agg *domain.TractAggregator, sinks []ReportLoader, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pipeline{
		extractor:  e,
		loader:     l,
		index:      idx,
		aggregator: agg,
		sinks:      sinks,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
	}
}

// CheckReadiness returns nil once a report has been produced.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.last.Load() == nil {
		return errors.New("pipeline has not produced a report yet")
	}
	return nil
}

// LastReport returns the most recent report.
func (p *Pipeline) LastReport() (domain.Report, bool) {
	r := p.last.Load()
	if r == nil {
		return domain.Report{}, false
	}
	return *r, true
}

// Run executes one pass: discover files, match them to tracts, aggregate each
// tract, and hand the report to every sink. Bad files and tracts are logged and
// skipped; the returned error covers extraction, cancellation, and sink
// failures.
func (p *Pipeline) Run(ctx context.Context) (domain.Report, error) {
	p.logger.Info("pipeline started", "workers", p.opts.Workers, "threshold", p.opts.Threshold, "include_smoke", p.opts.IncludeSmoke)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	refs, err := p.extractor.Extract(ctx)
	if err != nil {
		return domain.Report{}, fmt.Errorf("extract: %w", err)
	}
	p.metrics.FilesDiscovered.Add(float64(len(refs)))

	files, byTract := p.assign(refs)

	tracts := p.index.Tracts()
	rows := make([]domain.TractAggregate, len(tracts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i, id := range tracts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = p.transformTract(gctx, id, byTract[id])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Report{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Report{}, err
	}

	report := domain.NewReport(files, rows)
	p.last.Store(&report)
	p.logger.Info("report built", "files", len(files), "tracts", len(rows))

	return report, p.load(ctx, report)
}

// assign parses every file name and buckets the files by tract. Files whose
// names do not parse, or that fall outside every tract, are skipped.
func (p *Pipeline) assign(refs []domain.FileRef) ([]domain.IdentityRow, map[string][]domain.FileRef) {
	files := make([]domain.IdentityRow, 0, len(refs))
	byTract := make(map[string][]domain.FileRef)
	for _, ref := range refs {
		id, err := domain.ParseIdentity(ref.Name())
		if err != nil {
			p.logger.Warn("unparseable file name, skipping", "file", ref.Name(), "error", err)
			p.metrics.FilesRejected.WithLabelValues("name").Inc()
			continue
		}
		files = append(files, id.Row())

		tracts := p.index.Locate(id.Lat, id.Lon)
		if len(tracts) == 0 {
			p.logger.Debug("file outside every tract", "file", ref.Name(), "lat", id.Lat, "lon", id.Lon)
			p.metrics.FilesRejected.WithLabelValues("tract").Inc()
			continue
		}
		for _, t := range tracts {
			byTract[t] = append(byTract[t], ref)
		}
	}
	return files, byTract
}

func (p *Pipeline) load(ctx context.Context, report domain.Report) error {
	var errs []error
	for _, s := range p.sinks {
		if err := s.LoadReport(ctx, report); err != nil {
			p.logger.Error("load report failed", "sink", s.Name(), "error", err)
			p.metrics.SinkWrites.WithLabelValues(s.Name(), "error").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		p.metrics.SinkWrites.WithLabelValues(s.Name(), "success").Inc()
	}
	return errors.Join(errs...)
}
