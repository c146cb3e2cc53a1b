// Package config handles configuration loading for nettriage.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"nettriage/internal/correlation"
	"nettriage/internal/detect"
	"nettriage/internal/kafka"
)

// Config holds the complete application configuration.
type Config struct {
	Logging    LoggingConfig      `yaml:"logging"`
	Kafka      KafkaConfig        `yaml:"kafka"`
	RISLive    RISLiveConfig      `yaml:"rislive"`
	Topology   TopologyConfig     `yaml:"topology"`
	Aggregator AggregatorConfig   `yaml:"aggregator"`
	Detector   DetectorConfig     `yaml:"detector"`
	Correlator correlation.Config `yaml:"correlator"`
	Redis      RedisConfig        `yaml:"redis"`
	Alerting   AlertingConfig     `yaml:"alerting"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Text  bool   `yaml:"text"`  // text handler instead of JSON
}

// KafkaConfig holds the shared connection settings plus the topics used by
// each pipeline surface. Connection carries no topic of its own; the
// pipeline binds it per topic with WithTopic.
type KafkaConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Connection kafka.Config `yaml:"connection"`
	BGPTopic   string       `yaml:"bgp_topic"`
	SNMPTopic  string       `yaml:"snmp_topic"`
	AlertTopic string       `yaml:"alert_topic"`
}

// RISLiveConfig holds the optional RIS Live WebSocket source settings.
type RISLiveConfig struct {
	Enabled   bool   `yaml:"enabled"`
	URL       string `yaml:"url"`       // empty selects the public endpoint
	Collector string `yaml:"collector"` // e.g. rrc00
	Buffer    int    `yaml:"buffer"`    // update channel capacity
}

// TopologyConfig holds topology graph settings.
type TopologyConfig struct {
	Path     string `yaml:"path"`      // YAML topology file, optional
	MaxDepth int    `yaml:"max_depth"` // blast radius traversal depth
}

// AggregatorConfig holds time-bin aggregation settings.
type AggregatorConfig struct {
	BinSeconds    float64 `yaml:"bin_seconds"`
	ChurnPrefixes int     `yaml:"churn_prefixes"` // max prefixes tracked for AS-path churn
	HistoryLen    int     `yaml:"history_len"`    // per-series detector history length
}

// DetectorConfig selects a detector per source.
type DetectorConfig struct {
	BGP  detect.Config `yaml:"bgp"`
	SNMP detect.Config `yaml:"snmp"`
}

// RedisConfig holds optional Redis settings for cross-instance alert dedup.
// When disabled the correlator uses its in-memory dedup store.
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// AlertingConfig holds alert manager and delivery settings.
type AlertingConfig struct {
	RetentionPeriod   time.Duration   `yaml:"retention_period"`
	MaxAlerts         int             `yaml:"max_alerts"`
	EscalationEnabled bool            `yaml:"escalation_enabled"`
	Webhooks          []WebhookConfig `yaml:"webhooks"`
	Slack             SlackConfig     `yaml:"slack"`
}

// WebhookConfig holds one outbound webhook destination.
type WebhookConfig struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// SlackConfig holds Slack notification settings.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
	Username   string `yaml:"username"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Kafka: KafkaConfig{
			Enabled:    true,
			Connection: *kafka.DefaultConfig(),
			BGPTopic:   "telemetry.bgp",
			SNMPTopic:  "telemetry.snmp",
			AlertTopic: "alerts.enriched",
		},
		RISLive: RISLiveConfig{
			Collector: "rrc00",
			Buffer:    4096,
		},
		Topology: TopologyConfig{
			MaxDepth: 3,
		},
		Aggregator: AggregatorConfig{
			BinSeconds:    60,
			ChurnPrefixes: 100000,
			HistoryLen:    64,
		},
		Detector: DetectorConfig{
			BGP:  detect.DefaultConfig(),
			SNMP: detect.DefaultConfig(),
		},
		Correlator: correlation.DefaultConfig(),
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "nettriage:dedup:",
		},
		Alerting: AlertingConfig{
			RetentionPeriod:   24 * time.Hour,
			MaxAlerts:         10000,
			EscalationEnabled: true,
		},
	}
}

// Load reads the config file named by NETTRIAGE_CONFIG_PATH (default
// configs/config.yaml), applies environment overrides, and returns the
// result. A missing file is not an error; defaults apply.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := os.Getenv("NETTRIAGE_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("NETTRIAGE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if brokers := os.Getenv("NETTRIAGE_KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Connection.Brokers = splitAndTrim(brokers, ",")
	}
	if group := os.Getenv("NETTRIAGE_KAFKA_GROUP"); group != "" {
		c.Kafka.Connection.ConsumerGroup = group
	}
	if topic := os.Getenv("NETTRIAGE_ALERT_TOPIC"); topic != "" {
		c.Kafka.AlertTopic = topic
	}
	if path := os.Getenv("NETTRIAGE_TOPOLOGY_PATH"); path != "" {
		c.Topology.Path = path
	}
	if bin := os.Getenv("NETTRIAGE_BIN_SECONDS"); bin != "" {
		if v, err := strconv.ParseFloat(bin, 64); err == nil {
			c.Aggregator.BinSeconds = v
		}
	}
	if enabled := os.Getenv("NETTRIAGE_REDIS_ENABLED"); enabled == "true" {
		c.Redis.Enabled = true
	}
	if addr := os.Getenv("NETTRIAGE_REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if pass := os.Getenv("NETTRIAGE_REDIS_PASSWORD"); pass != "" {
		c.Redis.Password = pass
	}
	if url := os.Getenv("NETTRIAGE_SLACK_WEBHOOK"); url != "" {
		c.Alerting.Slack.Enabled = true
		c.Alerting.Slack.WebhookURL = url
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Kafka.Enabled {
		if c.Kafka.BGPTopic == "" && c.Kafka.SNMPTopic == "" {
			return fmt.Errorf("kafka enabled but no input topics configured")
		}
		probe := c.Kafka.Connection
		topic := c.Kafka.BGPTopic
		if topic == "" {
			topic = c.Kafka.SNMPTopic
		}
		probe.Topic = topic
		if err := probe.Validate(); err != nil {
			return fmt.Errorf("kafka connection: %w", err)
		}
	}

	if !c.Kafka.Enabled && !c.RISLive.Enabled {
		return fmt.Errorf("no telemetry source enabled")
	}
	if c.RISLive.Enabled && c.RISLive.Collector == "" {
		return fmt.Errorf("rislive enabled but no collector configured")
	}

	if c.Aggregator.BinSeconds <= 0 {
		return fmt.Errorf("aggregator bin_seconds must be positive, got %v", c.Aggregator.BinSeconds)
	}
	if c.Aggregator.HistoryLen < 2 {
		return fmt.Errorf("aggregator history_len must be at least 2, got %d", c.Aggregator.HistoryLen)
	}

	if _, err := detect.New(c.Detector.BGP); err != nil {
		return fmt.Errorf("detector bgp: %w", err)
	}
	if _, err := detect.New(c.Detector.SNMP); err != nil {
		return fmt.Errorf("detector snmp: %w", err)
	}

	if c.Correlator.WindowSeconds <= 0 {
		return fmt.Errorf("correlator window_seconds must be positive, got %v", c.Correlator.WindowSeconds)
	}
	if c.Correlator.MinConfidence < 0 || c.Correlator.MinConfidence > 1 {
		return fmt.Errorf("correlator min_confidence must be in [0,1], got %v", c.Correlator.MinConfidence)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis enabled but no addr configured")
	}

	if c.Topology.MaxDepth < 1 {
		return fmt.Errorf("topology max_depth must be at least 1, got %d", c.Topology.MaxDepth)
	}

	for _, wh := range c.Alerting.Webhooks {
		if wh.URL == "" {
			return fmt.Errorf("webhook %q has no url", wh.Name)
		}
	}
	if c.Alerting.Slack.Enabled && c.Alerting.Slack.WebhookURL == "" {
		return fmt.Errorf("slack enabled but no webhook_url configured")
	}

	return nil
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
