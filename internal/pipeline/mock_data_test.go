package pipeline_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/purple-haze-etl/internal/adapter/cache"
	"github.com/couchcryptid/purple-haze-etl/internal/adapter/filesink"
	"github.com/couchcryptid/purple-haze-etl/internal/adapter/filesource"
	"github.com/couchcryptid/purple-haze-etl/internal/adapter/geo"
	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/couchcryptid/purple-haze-etl/internal/mockdata"
	"github.com/couchcryptid/purple-haze-etl/internal/observability"
	"github.com/couchcryptid/purple-haze-etl/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPipeline_MockData runs the pipeline end to end over generated exports
// spanning the start of the smoke window, with and without smoke hours.
func TestPipeline_MockData(t *testing.T) {
	start := time.Date(2020, time.September, 7, 0, 0, 0, 0, time.UTC)
	const hours = 72

	dir := t.TempDir()
	dataDir := filepath.Join(dir, "raw")
	tractsPath := filepath.Join(dir, "tracts.geojson")
	sc := mockdata.NewScenario(42, 2, 2, 2, hours, start)
	_, err := sc.Write(dataDir, tractsPath, "NAME10", mockdata.Options{Gzip: true})
	require.NoError(t, err)

	idx, err := geo.LoadTracts(tractsPath, "NAME10")
	require.NoError(t, err)
	agg, err := domain.NewTractAggregator(start, start.Add(hours*time.Hour), domain.DefaultSmoke)
	require.NoError(t, err)

	metrics := observability.NewMetricsForTesting()
	loader := cache.NewCachedLoader(cache.LoaderFunc(domain.LoadSeries), 64, metrics)

	run := func(includeSmoke bool, outDir string) domain.Report {
		sink, err := filesink.NewWriter(outDir, filesink.FormatCSV, discardLogger())
		require.NoError(t, err)
		p := pipeline.New(
			filesource.Dir{Path: dataDir, Pattern: "*.csv.gz"},
			loader,
			idx,
			agg,
			[]pipeline.ReportLoader{sink},
			pipeline.Options{Workers: 4, Threshold: 100, IncludeSmoke: includeSmoke},
			discardLogger(),
			metrics,
		)
		report, err := p.Run(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, sink.TractsPath())
		assert.FileExists(t, sink.FilesPath())
		return report
	}

	withSmoke := run(true, filepath.Join(dir, "with"))
	withoutSmoke := run(false, filepath.Join(dir, "without"))

	assert.Len(t, withSmoke.Files, 4*len(sc.Sensors))
	require.Len(t, withSmoke.Tracts, len(sc.Tracts))
	require.Len(t, withoutSmoke.Tracts, len(sc.Tracts))

	for i, with := range withSmoke.Tracts {
		without := withoutSmoke.Tracts[i]
		require.Equal(t, with.TractID, without.TractID)
		assert.Empty(t, with.Error, with.TractID)
		assert.Equal(t, 8, with.FileCount, with.TractID)
		assert.Equal(t, 2, with.SensorCount, with.TractID)

		if with.OutdoorCount == 0 {
			assert.False(t, with.MeanAQI.Valid, with.TractID)
			assert.False(t, with.Exposure.Valid, with.TractID)
			continue
		}

		require.True(t, with.MeanAQI.Valid, with.TractID)
		require.True(t, without.MeanAQI.Valid, with.TractID)
		assert.Greater(t, with.MeanAQI.Float64, without.MeanAQI.Float64, with.TractID)

		// 48 of 72 hours fall in the smoke window and exceed the threshold.
		assert.InDelta(t, 960, with.Exposure.Float64, 1e-9, with.TractID)
		assert.InDelta(t, 0, without.Exposure.Float64, 1e-9, with.TractID)
	}

	files := float64(4 * len(sc.Sensors))
	assert.InDelta(t, files, testutil.ToFloat64(metrics.SeriesCache.WithLabelValues("miss")), 0)
	assert.InDelta(t, files, testutil.ToFloat64(metrics.SeriesCache.WithLabelValues("hit")), 0, "second run is served from cache")
}
