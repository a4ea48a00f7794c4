package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/couchcryptid/purple-haze-etl/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataDir         string `envconfig:"DATA_DIR" default:"./data/purple_air" validate:"required"`
	FilePattern     string `envconfig:"FILE_PATTERN" default:"*.csv*" validate:"required"`
	TractsGeoJSON   string `envconfig:"TRACTS_GEOJSON" default:"./data/tracts.geojson" validate:"required"`
	TractIDProperty string `envconfig:"TRACT_ID_PROPERTY" default:"NAME10" validate:"required"`

	StudyStart   Timestamp `envconfig:"STUDY_START" default:"2020-05-01T00:00:00"`
	StudyEnd     Timestamp `envconfig:"STUDY_END" default:"2020-11-02T00:00:00"`
	SmokeStart   Timestamp `envconfig:"SMOKE_START" default:"2020-09-08T00:00:00"`
	SmokeEnd     Timestamp `envconfig:"SMOKE_END" default:"2020-09-19T23:00:00"`
	IncludeSmoke bool      `envconfig:"INCLUDE_SMOKE" default:"true"`
	AQIThreshold Threshold `envconfig:"AQI_THRESHOLD" default:"100"`

	Workers         int    `envconfig:"WORKERS" default:"4" validate:"min=1,max=256"`
	SeriesCacheSize int    `envconfig:"SERIES_CACHE_SIZE" default:"512" validate:"min=1"`
	OutputDir       string `envconfig:"OUTPUT_DIR" default:"./out" validate:"required"`
	OutputFormat    string `envconfig:"OUTPUT_FORMAT" default:"csv" validate:"oneof=csv parquet"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"tract-aqi-summaries" validate:"required"`

	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
	ServeAfterRun   bool          `envconfig:"SERVE_AFTER_RUN" default:"false"`
}

// Timestamp decodes a wall-clock time in any layout domain.ParseTimestamp
// accepts.
type Timestamp struct {
	time.Time
}

// Decode implements envconfig.Decoder.
func (t *Timestamp) Decode(value string) error {
	parsed, err := domain.ParseTimestamp(value)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Threshold is an AQI exposure threshold parsed from text.
type Threshold float64

// Decode implements envconfig.Decoder.
func (t *Threshold) Decode(value string) error {
	v, err := domain.ParseThreshold(value)
	if err != nil {
		return err
	}
	*t = Threshold(v)
	return nil
}

// KafkaEnabled reports whether tract rows should be published.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// SmokeWindow returns the configured smoke period.
func (c *Config) SmokeWindow() domain.Window {
	return domain.Window{Start: c.SmokeStart.Time, End: c.SmokeEnd.Time}
}

// Load reads configuration from the environment, seeded from a .env file when
// one is present, and validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.KafkaBrokers = parseBrokers(cfg.KafkaBrokers)

	validate := validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("envconfig"); name != "" {
			return name
		}
		return f.Name
	})
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if !cfg.StudyEnd.After(cfg.StudyStart.Time) {
		return nil, errors.New("STUDY_END must be after STUDY_START")
	}
	if cfg.SmokeEnd.Before(cfg.SmokeStart.Time) {
		return nil, errors.New("SMOKE_END must not precede SMOKE_START")
	}

	return &cfg, nil
}

func parseBrokers(raw []string) []string {
	var out []string
	for _, b := range raw {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
