package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.Aggregator.BinSeconds != 60 {
		t.Errorf("BinSeconds = %v, want 60", cfg.Aggregator.BinSeconds)
	}
	if cfg.Correlator.WindowSeconds != 60 {
		t.Errorf("WindowSeconds = %v, want 60", cfg.Correlator.WindowSeconds)
	}
	if cfg.Kafka.BGPTopic == "" || cfg.Kafka.SNMPTopic == "" || cfg.Kafka.AlertTopic == "" {
		t.Error("default kafka topics must be set")
	}
}

func TestLoad_FromFile(t *testing.T) {
	content := `
logging:
  level: debug
kafka:
  enabled: true
  bgp_topic: custom.bgp
  connection:
    brokers: ["broker-1:9092", "broker-2:9092"]
aggregator:
  bin_seconds: 30
correlator:
  window_seconds: 120
  min_confidence: 0.5
topology:
  path: /etc/nettriage/topology.yaml
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NETTRIAGE_CONFIG_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Kafka.BGPTopic != "custom.bgp" {
		t.Errorf("BGPTopic = %q, want custom.bgp", cfg.Kafka.BGPTopic)
	}
	// Unset fields keep their defaults.
	if cfg.Kafka.SNMPTopic != "telemetry.snmp" {
		t.Errorf("SNMPTopic = %q, want default telemetry.snmp", cfg.Kafka.SNMPTopic)
	}
	if len(cfg.Kafka.Connection.Brokers) != 2 {
		t.Errorf("Brokers = %v, want two entries", cfg.Kafka.Connection.Brokers)
	}
	if cfg.Aggregator.BinSeconds != 30 {
		t.Errorf("BinSeconds = %v, want 30", cfg.Aggregator.BinSeconds)
	}
	if cfg.Correlator.MinConfidence != 0.5 {
		t.Errorf("MinConfidence = %v, want 0.5", cfg.Correlator.MinConfidence)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("NETTRIAGE_CONFIG_PATH", "/nonexistent/config.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want defaults for a missing file", err)
	}
	if cfg.Aggregator.BinSeconds != 60 {
		t.Errorf("BinSeconds = %v, want default 60", cfg.Aggregator.BinSeconds)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NETTRIAGE_CONFIG_PATH", "/nonexistent/config.yaml")
	t.Setenv("NETTRIAGE_LOG_LEVEL", "warn")
	t.Setenv("NETTRIAGE_KAFKA_BROKERS", "b1:9092, b2:9092 ,b3:9092")
	t.Setenv("NETTRIAGE_BIN_SECONDS", "15")
	t.Setenv("NETTRIAGE_REDIS_ENABLED", "true")
	t.Setenv("NETTRIAGE_REDIS_ADDR", "redis-0:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
	want := []string{"b1:9092", "b2:9092", "b3:9092"}
	if len(cfg.Kafka.Connection.Brokers) != len(want) {
		t.Fatalf("Brokers = %v, want %v", cfg.Kafka.Connection.Brokers, want)
	}
	for i := range want {
		if cfg.Kafka.Connection.Brokers[i] != want[i] {
			t.Errorf("Brokers[%d] = %q, want %q", i, cfg.Kafka.Connection.Brokers[i], want[i])
		}
	}
	if cfg.Aggregator.BinSeconds != 15 {
		t.Errorf("BinSeconds = %v, want 15", cfg.Aggregator.BinSeconds)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis-0:6379" {
		t.Errorf("Redis = %+v, want enabled at redis-0:6379", cfg.Redis)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}, wantErr: false},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name: "no sources",
			mutate: func(c *Config) {
				c.Kafka.Enabled = false
				c.RISLive.Enabled = false
			},
			wantErr: true,
		},
		{
			name: "rislive only",
			mutate: func(c *Config) {
				c.Kafka.Enabled = false
				c.RISLive.Enabled = true
			},
			wantErr: false,
		},
		{
			name: "rislive without collector",
			mutate: func(c *Config) {
				c.RISLive.Enabled = true
				c.RISLive.Collector = ""
			},
			wantErr: true,
		},
		{
			name:    "unknown detector method",
			mutate:  func(c *Config) { c.Detector.BGP.Method = "prophet" },
			wantErr: true,
		},
		{
			name:    "zero bin seconds",
			mutate:  func(c *Config) { c.Aggregator.BinSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "negative correlation window",
			mutate:  func(c *Config) { c.Correlator.WindowSeconds = -1 },
			wantErr: true,
		},
		{
			name:    "min confidence out of range",
			mutate:  func(c *Config) { c.Correlator.MinConfidence = 1.5 },
			wantErr: true,
		},
		{
			name: "kafka without topics",
			mutate: func(c *Config) {
				c.Kafka.BGPTopic = ""
				c.Kafka.SNMPTopic = ""
			},
			wantErr: true,
		},
		{
			name: "redis enabled without addr",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Addr = ""
			},
			wantErr: true,
		},
		{
			name: "webhook without url",
			mutate: func(c *Config) {
				c.Alerting.Webhooks = []WebhookConfig{{Name: "ops"}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
