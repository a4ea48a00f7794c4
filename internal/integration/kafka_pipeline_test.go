//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/purple-haze-etl/internal/adapter/cache"
	"github.com/couchcryptid/purple-haze-etl/internal/adapter/filesource"
	"github.com/couchcryptid/purple-haze-etl/internal/adapter/geo"
	"github.com/couchcryptid/purple-haze-etl/internal/adapter/kafka"
	"github.com/couchcryptid/purple-haze-etl/internal/config"
	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/couchcryptid/purple-haze-etl/internal/observability"
	"github.com/couchcryptid/purple-haze-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-tract-summaries"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("test-cluster"))
	require.NoError(t, err, "start kafka container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cc, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cc.Close()

	require.NoError(t, cc.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// writeSensor writes the four exports of one outdoor sensor with a constant
// PM2.5 of pm25 over n hours.
func writeSensor(t *testing.T, dir, name string, lat, lon float64, n int, pm25 float64) {
	t.Helper()
	for _, suffix := range []string{"", " B"} {
		for _, kind := range []string{"Primary", "Secondary"} {
			file := fmt.Sprintf("%s%s (outside) (%g %g) %s Real Time 05_01_2020 11_01_2020.csv", name, suffix, lat, lon, kind)
			body := "created_at,PM1.0_ATM_ug/m3,PM2.5_ATM_ug/m3,PM10.0_ATM_ug/m3\n"
			start := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
			for i := 0; i < n; i++ {
				body += fmt.Sprintf("%s UTC,1.0,%g,3.0\n", start.Add(time.Duration(i)*time.Hour).Format("2006-01-02 15:04:05"), pm25)
			}
			require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644))
		}
	}
}

const tractsJSON = `{"type": "FeatureCollection", "features": [
  {"type": "Feature", "properties": {"NAME10": "1"},
   "geometry": {"type": "Polygon", "coordinates": [[[-123, 47], [-122, 47], [-122, 48], [-123, 48], [-123, 47]]]}},
  {"type": "Feature", "properties": {"NAME10": "2"},
   "geometry": {"type": "Polygon", "coordinates": [[[-121, 47], [-120, 47], [-120, 48], [-121, 48], [-121, 47]]]}}
]}`

// TestPipelineToKafka runs the whole pipeline over a generated directory and
// reads the tract summaries back from the topic.
func TestPipelineToKafka(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	dir := t.TempDir()
	writeSensor(t, dir, "Lakeside", 47.6, -122.3, 48, 12.0)
	idx, err := geo.ReadTracts(strings.NewReader(tractsJSON), "NAME10")
	require.NoError(t, err)

	agg, err := domain.NewTractAggregator(domain.DefaultStudyStart, domain.DefaultStudyStart.Add(48*time.Hour), domain.DefaultSmoke)
	require.NoError(t, err)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	writer := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(
		filesource.Dir{Path: dir, Pattern: "*.csv"},
		cache.NewCachedLoader(cache.LoaderFunc(domain.LoadSeries), 16, metrics),
		idx,
		agg,
		[]pipeline.ReportLoader{writer},
		pipeline.Options{Workers: 2, Threshold: 100, IncludeSmoke: true},
		discardLogger(),
		metrics,
	)

	report, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Tracts, 2)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	got := make(map[string]domain.TractAggregate)
	for len(got) < 2 {
		readCtx, readCancel := context.WithTimeout(ctx, 30*time.Second)
		msg, err := consumer.ReadMessage(readCtx)
		readCancel()
		require.NoError(t, err, "read from topic")

		var row domain.TractAggregate
		require.NoError(t, json.Unmarshal(msg.Value, &row))
		assert.Equal(t, row.TractID, string(msg.Key))
		got[row.TractID] = row
	}

	one := got["1"]
	assert.Equal(t, 4, one.FileCount)
	assert.Equal(t, 1, one.OutdoorCount)
	require.True(t, one.MeanAQI.Valid)
	assert.InDelta(t, 50, one.MeanAQI.Float64, 1e-6)
	require.True(t, one.Exposure.Valid)
	assert.InDelta(t, 0, one.Exposure.Float64, 1e-9)

	two := got["2"]
	assert.Equal(t, 0, two.FileCount)
	assert.False(t, two.MeanAQI.Valid)
	assert.False(t, two.Exposure.Valid)
}
