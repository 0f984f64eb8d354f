package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	HOS        HOSConfig        `yaml:"hos"`
	ELD        ELDConfig        `yaml:"eld"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RequestIPHeader string  `yaml:"request_ip_header"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// HOSConfig holds the carrier-level rule parameters.
type HOSConfig struct {
	// CycleDays is 7 (60-hour limit) or 8 (70-hour limit).
	CycleDays int `yaml:"cycle_days"`
	// HomeTerminalTimezone is the default IANA zone for cycle day boundaries
	// when a driver has no home terminal zone of their own.
	HomeTerminalTimezone string `yaml:"home_terminal_timezone"`
}

// ELDConfig holds the vendor feed poller configuration.
type ELDConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
	HTTPProxy       string        `yaml:"http_proxy"`
	Timezone        string        `yaml:"timezone"`
	Request         ELDRequest    `yaml:"request"`

	// Vendor status-code value lists mapped onto the four duty statuses.
	CodeOffDutyValues []int `yaml:"code_off_duty_values"`
	CodeSleeperValues []int `yaml:"code_sleeper_values"`
	CodeDrivingValues []int `yaml:"code_driving_values"`
	CodeOnDutyValues  []int `yaml:"code_on_duty_values"`
}

// ELDRequest defines the HTTP request for the vendor feed.
type ELDRequest struct {
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers"`
	PageSize int               `yaml:"pageSize"`
	Payload  map[string]any    `yaml:"payload"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.HOS.CycleDays != 7 && cfg.HOS.CycleDays != 8 {
		if cfg.HOS.CycleDays != 0 {
			log.Printf("hos.cycle_days must be 7 or 8, got %d; defaulting to 8", cfg.HOS.CycleDays)
		}
		cfg.HOS.CycleDays = 8
	}
	if cfg.HOS.HomeTerminalTimezone == "" {
		cfg.HOS.HomeTerminalTimezone = "UTC"
	}

	if cfg.ELD.IntervalSeconds <= 0 {
		cfg.ELD.IntervalSeconds = 60
	}
	cfg.ELD.Interval = time.Duration(cfg.ELD.IntervalSeconds) * time.Second

	if cfg.ELD.Request.PageSize <= 0 {
		cfg.ELD.Request.PageSize = 100
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
