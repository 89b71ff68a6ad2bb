// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New builds a Config populated with defaults; Load layers file and env on top.
// - Validation failures wrap ErrInvalidConfig; provider failures wrap ErrLoadConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Storage drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Notification transports.
const (
	NotifierLog   = "log"
	NotifierKafka = "kafka"
	NotifierMQTT  = "mqtt"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory notification queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of notification delivery workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets how many idempotency keys are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// CellLevel is the s2 cell level used to serialise create-or-merge decisions.
	CellLevel int `koanf:"cell_level"`

	SpatialRadiusM   float64 `koanf:"spatial_radius_m"`
	AutoMergeRadiusM float64 `koanf:"auto_merge_radius_m"`
	DedupRadiusM     float64 `koanf:"dedup_radius_m"`
	TitleSimilarity  float64 `koanf:"title_similarity"`

	// RoleWeights overrides the trust weight per reporter role.
	RoleWeights map[string]float64 `koanf:"role_weights"`

	// ClassifierURL is the image classification endpoint. Empty disables it.
	ClassifierURL         string  `koanf:"classifier_url"`
	ClassifierTimeoutMS   int     `koanf:"classifier_timeout_ms"`
	ClassifierRPS         float64 `koanf:"classifier_rps"`
	ClassifierMaxFailures int     `koanf:"classifier_max_failures"`
	ClassifierResetMS     int     `koanf:"classifier_reset_ms"`

	// StoreDriver is one of memory, sqlite, postgres.
	StoreDriver string `koanf:"store_driver"`
	StoreDSN    string `koanf:"store_dsn"`

	// Notifier is one of log, kafka, mqtt.
	Notifier string `koanf:"notifier"`

	// KafkaBrokers is a comma-separated broker list.
	KafkaBrokers       string `koanf:"kafka_brokers"`
	KafkaActivityTopic string `koanf:"kafka_activity_topic"`
	KafkaEventTopic    string `koanf:"kafka_event_topic"`

	MQTTBroker      string `koanf:"mqtt_broker"`
	MQTTClientID    string `koanf:"mqtt_client_id"`
	MQTTTopicPrefix string `koanf:"mqtt_topic_prefix"`

	// MaxImageBytes caps uploaded image size.
	MaxImageBytes int64 `koanf:"max_image_bytes"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":9080",
		QueueSize:             10_000,
		WorkerCount:           runtime.NumCPU() * 2,
		DedupeSize:            100_000,
		CellLevel:             13,
		SpatialRadiusM:        500,
		AutoMergeRadiusM:      50,
		DedupRadiusM:          500,
		TitleSimilarity:       0.85,
		RoleWeights:           map[string]float64{},
		ClassifierTimeoutMS:   5000,
		ClassifierRPS:         20,
		ClassifierMaxFailures: 5,
		ClassifierResetMS:     30_000,
		StoreDriver:           StoreMemory,
		Notifier:              NotifierLog,
		KafkaActivityTopic:    "admin_log",
		KafkaEventTopic:       "event_update",
		MQTTClientID:          "truthfuse",
		MQTTTopicPrefix:       "truthfuse",
		MaxImageBytes:         10 << 20,
	}
}

// Brokers splits KafkaBrokers into trimmed, non-empty addresses.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.CellLevel < 0 || c.CellLevel > 30:
		return fmt.Errorf("%w: cell_level must be within [0, 30]", ErrInvalidConfig)
	case c.SpatialRadiusM <= 0 || c.DedupRadiusM <= 0:
		return fmt.Errorf("%w: radii must be positive", ErrInvalidConfig)
	case c.AutoMergeRadiusM > c.SpatialRadiusM:
		return fmt.Errorf("%w: auto_merge_radius_m exceeds spatial_radius_m", ErrInvalidConfig)
	case c.TitleSimilarity <= 0 || c.TitleSimilarity > 1:
		return fmt.Errorf("%w: title_similarity must be within (0, 1]", ErrInvalidConfig)
	case c.ClassifierTimeoutMS <= 0:
		return fmt.Errorf("%w: classifier_timeout_ms must be positive", ErrInvalidConfig)
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StoreSQLite, StorePostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: store_dsn is required for %s", ErrInvalidConfig, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}

	switch c.Notifier {
	case NotifierLog:
	case NotifierKafka:
		if len(c.Brokers()) == 0 {
			return fmt.Errorf("%w: kafka_brokers is required for the kafka notifier", ErrInvalidConfig)
		}
	case NotifierMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("%w: mqtt_broker is required for the mqtt notifier", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown notifier %q", ErrInvalidConfig, c.Notifier)
	}
	return nil
}
