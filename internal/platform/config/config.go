package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName     string        `yaml:"service_name"`
	HTTPPort        string        `yaml:"http_port"`
	PostgresDSN     string        `yaml:"postgres_dsn"`
	KafkaBrokers    []string      `yaml:"kafka_brokers"`
	OperatorAddress string        `yaml:"operator_address"`
	EventsTopic     string        `yaml:"events_topic"`
	OutboxInterval  time.Duration `yaml:"outbox_interval"`

	EnableOutboxRelay bool `yaml:"enable_outbox_relay"`
	EnableEventFeed   bool `yaml:"enable_event_feed"`
}

// Load resolves configuration from an optional CONFIG_FILE YAML overlay and
// the environment; environment values win.
func Load() (Config, error) {
	cfg := Config{
		ServiceName:       "tokenmart",
		HTTPPort:          "8080",
		KafkaBrokers:      []string{"localhost:9092"},
		OperatorAddress:   "tokenmart-operator",
		EventsTopic:       "marketplace.events",
		OutboxInterval:    time.Second,
		EnableOutboxRelay: true,
		EnableEventFeed:   true,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv("SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		cfg.HTTPPort = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.PostgresDSN = v
	}
	if v := os.Getenv("OPERATOR_ADDRESS"); v != "" {
		cfg.OperatorAddress = v
	}
	if v := os.Getenv("EVENTS_TOPIC"); v != "" {
		cfg.EventsTopic = v
	}
	if v := os.Getenv("OUTBOX_INTERVAL"); v != "" {
		interval, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parse OUTBOX_INTERVAL: %w", err)
		}
		cfg.OutboxInterval = interval
	}

	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		var brokers []string
		for _, value := range strings.Split(raw, ",") {
			value = strings.TrimSpace(value)
			if value != "" {
				brokers = append(brokers, value)
			}
		}
		if len(brokers) > 0 {
			cfg.KafkaBrokers = brokers
		}
	}

	cfg.EnableOutboxRelay = envBool("ENABLE_OUTBOX_RELAY", cfg.EnableOutboxRelay)
	cfg.EnableEventFeed = envBool("ENABLE_EVENT_FEED", cfg.EnableEventFeed)
	return cfg, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
