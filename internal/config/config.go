package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Dataset   DatasetConfig   `yaml:"dataset" envconfig:"DATASET"`
	S3        S3Config        `yaml:"s3" envconfig:"S3"`
	Dashboard DashboardConfig `yaml:"dashboard" envconfig:"DASHBOARD"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// DatasetConfig describes where the funding dataset comes from and how
// reports built from it are cached.
type DatasetConfig struct {
	// Source is a local path or an s3://bucket/key URI.
	Source string `yaml:"source" envconfig:"SOURCE"`
	// Sheet selects the worksheet of an xlsx source.
	Sheet string `yaml:"sheet" envconfig:"SHEET"`
	// ReloadInterval re-reads the source periodically. Zero disables it.
	ReloadInterval time.Duration `yaml:"reload_interval" envconfig:"RELOAD_INTERVAL"`
	// MaxBytes caps the raw size read from the source.
	MaxBytes  int64         `yaml:"max_bytes" envconfig:"MAX_BYTES"`
	CacheTTL  time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL"`
	CacheSize int           `yaml:"cache_size" envconfig:"CACHE_SIZE"`
}

// S3Config configures access to S3 or an S3-compatible store.
type S3Config struct {
	Region          string        `yaml:"region" envconfig:"REGION"`
	Endpoint        string        `yaml:"endpoint" envconfig:"ENDPOINT"`
	AccessKeyID     string        `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string        `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY"`
	PathStyle       bool          `yaml:"path_style" envconfig:"PATH_STYLE"`
	MaxFailures     uint32        `yaml:"max_failures" envconfig:"MAX_FAILURES"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" envconfig:"BREAKER_TIMEOUT"`
}

// DashboardConfig contains report defaults
type DashboardConfig struct {
	DefaultLayout  string `yaml:"default_layout" envconfig:"DEFAULT_LAYOUT"`
	LayoutsFile    string `yaml:"layouts_file" envconfig:"LAYOUTS_FILE"`
	PredictionFrom int    `yaml:"prediction_from" envconfig:"PREDICTION_FROM"`
	PredictionTo   int    `yaml:"prediction_to" envconfig:"PREDICTION_TO"`
	MaxConcurrency int    `yaml:"max_concurrency" envconfig:"MAX_CONCURRENCY"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT"`
}

// Load builds the configuration from defaults, then the config file if one
// is found, then FUNDSCOPE_* environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML values onto cfg. Keys missing from the file
// keep their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive")
	}

	// JSON is the only supported log format
	c.Logging.Format = "json"

	switch strings.ToLower(c.Logging.Output) {
	case "console", "stdout":
		c.Logging.Output = "console"
	case "file", "both":
		c.Logging.Output = strings.ToLower(c.Logging.Output)
		if c.Logging.FilePath == "" {
			c.Logging.FilePath = DefaultLogFile
		}
	default:
		return fmt.Errorf("invalid logging output %q (console, file or both)", c.Logging.Output)
	}

	if strings.TrimSpace(c.Dataset.Source) == "" {
		return fmt.Errorf("dataset source is required")
	}

	if c.Dataset.ReloadInterval < 0 {
		return fmt.Errorf("dataset reload interval must not be negative")
	}

	if c.Dataset.MaxBytes <= 0 {
		return fmt.Errorf("dataset max bytes must be positive")
	}

	if c.Dataset.CacheSize < 0 {
		return fmt.Errorf("dataset cache size must not be negative")
	}

	if c.Dashboard.DefaultLayout == "" {
		return fmt.Errorf("dashboard default layout is required")
	}

	if c.Dashboard.PredictionFrom > c.Dashboard.PredictionTo {
		return fmt.Errorf("prediction window %d-%d is inverted", c.Dashboard.PredictionFrom, c.Dashboard.PredictionTo)
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  DefaultRequestTimeout,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultRateLimit,
				Burst:   DefaultBurstSize,
			},
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   "json",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Dataset: DatasetConfig{
			Source:    DefaultDatasetSource,
			MaxBytes:  DefaultDatasetMaxBytes,
			CacheTTL:  ReportCacheDuration,
			CacheSize: DefaultCacheSize,
		},
		S3: S3Config{
			Region:         "us-east-1",
			MaxFailures:    3,
			BreakerTimeout: 30 * time.Second,
		},
		Dashboard: DashboardConfig{
			DefaultLayout:  DefaultLayout,
			PredictionFrom: DefaultPredictionFrom,
			PredictionTo:   DefaultPredictionTo,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  WebSocketReadBufferSize,
			WriteBufferSize: WebSocketWriteBufferSize,
			PingPeriod:      WebSocketPingPeriod,
			PongWait:        WebSocketPongWait,
		},
	}
}
