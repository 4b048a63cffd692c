package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Hermes    HermesConfig    `yaml:"hermes"`
	Analyst   AnalystConfig   `yaml:"analyst"`
	Redis     RedisConfig     `yaml:"redis"`
	Probe     ProbeConfig     `yaml:"probe"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	MetricsPort    int      `yaml:"metrics_port"`
	AdminToken     string   `yaml:"admin_token"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type AnalystConfig struct {
	URL       string `yaml:"url"`
	Token     string `yaml:"token"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// DefaultDomain is used for issue analysis when the backend detected none.
	DefaultDomain string `yaml:"default_domain"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ProbeConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// TrustClientID keys limits on X-Client-ID instead of the remote host.
	TrustClientID bool `yaml:"trust_client_id"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) AnalystTimeout() time.Duration {
	return time.Duration(c.Analyst.TimeoutMs) * time.Millisecond
}

func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           8600,
			MetricsPort:    8601,
			AllowedOrigins: []string{"*"},
			MaxUploadMB:    32,
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Analyst: AnalystConfig{
			URL:           "http://localhost:5000",
			TimeoutMs:     30000,
			DefaultDomain: "Data",
		},
		Probe: ProbeConfig{
			Enabled:  true,
			Schedule: "@every 1m",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PRISM_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("PRISM_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("PRISM_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("PRISM_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("PRISM_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("PRISM_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("PRISM_ANALYST_URL"); v != "" {
		cfg.Analyst.URL = v
	}
	if v := os.Getenv("PRISM_ANALYST_TOKEN"); v != "" {
		cfg.Analyst.Token = v
	}
	if v := os.Getenv("PRISM_ANALYST_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analyst.TimeoutMs = n
		}
	}
	if v := os.Getenv("PRISM_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PRISM_PROBE_SCHEDULE"); v != "" {
		cfg.Probe.Schedule = v
	}
	if v := os.Getenv("PRISM_PROBE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Probe.Enabled = b
		}
	}
	if v := os.Getenv("PRISM_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("PRISM_RATE_LIMIT_TRUST_CLIENT_ID"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RateLimit.TrustClientID = b
		}
	}
	if v := os.Getenv("PRISM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
