package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/purple-haze-etl/internal/domain"
)

// transformTract loads a tract's exports, assembles its sensors, and computes
// the summary row. Failures are recorded on the row rather than returned.
func (p *Pipeline) transformTract(ctx context.Context, tractID string, refs []domain.FileRef) domain.TractAggregate {
	start := time.Now()
	defer func() { p.metrics.TractDuration.Observe(time.Since(start).Seconds()) }()

	row, err := p.aggregateTract(ctx, tractID, refs)
	if err != nil {
		p.logger.Warn("tract aggregation failed", "tract_id", tractID, "files", len(refs), "error", err)
		p.metrics.TractsProcessed.WithLabelValues("error").Inc()
		row.TractID = tractID
		row.FileCount = len(refs)
		row.Threshold = p.opts.Threshold
		row.IncludeSmoke = p.opts.IncludeSmoke
		row.Error = err.Error()
		return row
	}

	p.logger.Debug("tract aggregated", "tract_id", tractID, "sensors", row.SensorCount, "outdoor", row.OutdoorCount, "invalidated", row.InvalidatedSensors)
	p.metrics.TractsProcessed.WithLabelValues("success").Inc()
	return row
}

func (p *Pipeline) aggregateTract(ctx context.Context, tractID string, refs []domain.FileRef) (domain.TractAggregate, error) {
	series := make([]*domain.Series, 0, len(refs))
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return domain.TractAggregate{}, err
		}
		s, err := p.loader.Load(ref)
		if err != nil {
			return domain.TractAggregate{}, err
		}
		p.metrics.SeriesLoaded.Inc()
		series = append(series, s)
	}

	sensors, err := domain.GroupSensors(series)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			p.metrics.SensorsRejected.WithLabelValues(reasonLabel(ve.Reason)).Inc()
		}
		return domain.TractAggregate{}, err
	}
	p.metrics.SensorsBuilt.Add(float64(len(sensors)))

	row, err := p.aggregator.Aggregate(tractID, len(refs), sensors, p.opts.Threshold, p.opts.IncludeSmoke)
	if err != nil {
		return row, err
	}
	p.metrics.SensorsInvalidated.Add(float64(row.InvalidatedSensors))
	return row, nil
}

func reasonLabel(reason error) string {
	switch {
	case errors.Is(reason, domain.ErrStreamCount):
		return "stream_count"
	case errors.Is(reason, domain.ErrIdentityMismatch):
		return "identity_mismatch"
	case errors.Is(reason, domain.ErrInvalidChannel):
		return "invalid_channel"
	case errors.Is(reason, domain.ErrInvalidDatasetKind):
		return "invalid_dataset_kind"
	case errors.Is(reason, domain.ErrMissingPrimary):
		return "missing_primary"
	case errors.Is(reason, domain.ErrDuplicateStream):
		return "duplicate_stream"
	case errors.Is(reason, domain.ErrConflictingLocation):
		return "conflicting_location"
	default:
		return "other"
	}
}
