package config

import (
	"log"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Run       RunConfig       `yaml:"run"`
	Sync      SyncConfig      `yaml:"sync"`
	Cache     CacheConfig     `yaml:"cache"`
	Events    EventsConfig    `yaml:"events"`
	Webhooks  WebhooksConfig  `yaml:"webhooks"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

type ServerConfig struct {
	Port             string   `yaml:"port"`
	Env              string   `yaml:"env"`
	CORSAllowOrigins []string `yaml:"cors_allow_origins"`
}

type RunConfig struct {
	DeadlineSeconds int    `yaml:"deadline_seconds"`
	ReportDir       string `yaml:"report_dir"`
}

type SyncConfig struct {
	MaxRecords            int `yaml:"max_records"`
	StaleAfterHours       int `yaml:"stale_after_hours"`
	ResyncIntervalMinutes int `yaml:"resync_interval_minutes"`
	ResyncBatchSize       int `yaml:"resync_batch_size"`
}

type CacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
}

type EventsConfig struct {
	PubSubProject string `yaml:"pubsub_project"`
	PubSubTopic   string `yaml:"pubsub_topic"`
}

type WebhooksConfig struct {
	Workers   int               `yaml:"workers"`
	Endpoints []WebhookEndpoint `yaml:"endpoints"`
}

// WebhookEndpoint seeds a subscription at startup, so deployments can wire
// fixed consumers without calling the management API first.
type WebhookEndpoint struct {
	URL    string   `yaml:"url"`
	Events []string `yaml:"events"`
	Secret string   `yaml:"secret"`
}

type RateLimitConfig struct {
	MaxCallsPerMinute int `yaml:"max_calls_per_minute"`
	BurstSize         int `yaml:"burst_size"`
}

// Default returns the configuration the service runs with when no file is
// present. Environment-specific concerns (ports, credentials) stay in the
// environment; the defaults here only shape behavior.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:             "8080",
			Env:              "development",
			CORSAllowOrigins: []string{"*"},
		},
		Run: RunConfig{
			DeadlineSeconds: 120,
			ReportDir:       ".",
		},
		Sync: SyncConfig{
			MaxRecords:            500,
			StaleAfterHours:       24,
			ResyncIntervalMinutes: 60,
			ResyncBatchSize:       10,
		},
		Webhooks: WebhooksConfig{
			Workers: 4,
		},
		RateLimit: RateLimitConfig{
			MaxCallsPerMinute: 60,
			BurstSize:         120,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault loads the file when it exists and silently falls back to
// defaults when it doesn't. A file that exists but fails to parse is fatal;
// running with half a config is worse than not starting.
func LoadOrDefault(path string) *Config {
	cfg, err := LoadConfig(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default()
		}
		log.Fatalf("Failed to load config %s: %v", path, err)
	}
	return cfg
}
