package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/flood-risk-service/internal/adapter/fanfar"
	"github.com/couchcryptid/flood-risk-service/internal/adapter/openmeteo"
	"github.com/couchcryptid/flood-risk-service/internal/adapter/wigos"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string

	RefreshInterval time.Duration
	CacheTTL        time.Duration

	// Definition files. Empty selects the embedded defaults.
	SchemaPath  string
	RulesPath   string
	SchemaWatch bool

	ClosureMaxPasses    int
	GraphMaxIndividuals int
	ZoneKind            string

	// Upstream sources.
	SourceTimeout   time.Duration
	SourceCacheSize int

	WigosBaseURL   string
	WigosStationID string

	OpenMeteoBaseURL string
	Latitude         float64
	Longitude        float64

	FanfarBaseURL string
	FanfarModel   string
	FanfarSubID   int
	FanfarY       float64
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers:   sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "flood-risk-assessments"),

		SchemaPath: os.Getenv("SCHEMA_PATH"),
		RulesPath:  os.Getenv("RULES_PATH"),
		ZoneKind:   sharedcfg.EnvOrDefault("ZONE_KIND", "Zone"),

		WigosBaseURL:     sharedcfg.EnvOrDefault("WIGOS_BASE_URL", wigos.DefaultBaseURL),
		WigosStationID:   sharedcfg.EnvOrDefault("WIGOS_STATION_ID", wigos.DefaultStationID),
		OpenMeteoBaseURL: sharedcfg.EnvOrDefault("OPEN_METEO_BASE_URL", openmeteo.DefaultBaseURL),
		FanfarBaseURL:    sharedcfg.EnvOrDefault("FANFAR_BASE_URL", fanfar.DefaultBaseURL),
		FanfarModel:      sharedcfg.EnvOrDefault("FANFAR_MODEL", fanfar.DefaultModel),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg.KafkaEnabled, err = parseBool("KAFKA_ENABLED", false)
	collect(err)
	cfg.SchemaWatch, err = parseBool("SCHEMA_WATCH", false)
	collect(err)

	cfg.RefreshInterval, err = parseDuration("REFRESH_INTERVAL", 290*time.Second)
	collect(err)
	cfg.CacheTTL, err = parseDuration("CACHE_TTL", 300*time.Second)
	collect(err)
	cfg.SourceTimeout, err = parseDuration("SOURCE_TIMEOUT", 10*time.Second)
	collect(err)

	cfg.ClosureMaxPasses, err = parseInt("CLOSURE_MAX_PASSES", 0, 0)
	collect(err)
	cfg.GraphMaxIndividuals, err = parseInt("GRAPH_MAX_INDIVIDUALS", 30, 1)
	collect(err)
	cfg.SourceCacheSize, err = parseInt("SOURCE_CACHE_SIZE", 24, 1)
	collect(err)
	cfg.FanfarSubID, err = parseInt("FANFAR_SUBID", fanfar.DefaultSubID, 1)
	collect(err)

	cfg.Latitude, err = parseFloat("LATITUDE", openmeteo.DefaultLatitude)
	collect(err)
	cfg.Longitude, err = parseFloat("LONGITUDE", openmeteo.DefaultLongitude)
	collect(err)
	cfg.FanfarY, err = parseFloat("FANFAR_Y", fanfar.DefaultY)
	collect(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_ENABLED is true")
		}
	}
	if cfg.RefreshInterval > cfg.CacheTTL {
		return nil, fmt.Errorf("REFRESH_INTERVAL (%s) must not exceed CACHE_TTL (%s)", cfg.RefreshInterval, cfg.CacheTTL)
	}
	if cfg.SchemaWatch && cfg.SchemaPath == "" && cfg.RulesPath == "" {
		return nil, errors.New("SCHEMA_WATCH requires SCHEMA_PATH or RULES_PATH")
	}

	return cfg, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseInt(key string, def, lowest int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lowest {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, lowest)
	}
	return n, nil
}

func parseFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: must be a number", key)
	}
	return f, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: must be true or false", key)
	}
	return b, nil
}
