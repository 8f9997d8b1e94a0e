package config

import "time"

// Application constants
const (
	AppName    = "FundScope"
	AppVersion = "1.0.0"

	// EnvPrefix namespaces every environment variable, e.g. FUNDSCOPE_SERVER_PORT.
	EnvPrefix = "FUNDSCOPE"

	// Rate Limiting
	DefaultRateLimit = 100 // requests per second
	DefaultBurstSize = 50

	// Timeouts
	DefaultRequestTimeout = 60 * time.Second
	WebSocketPingPeriod   = 30 * time.Second
	WebSocketPongWait     = 60 * time.Second

	// WebSocket Buffer Sizes
	WebSocketReadBufferSize  = 1024
	WebSocketWriteBufferSize = 1024

	// Dataset
	DefaultDatasetSource   = "data/startups_dset.csv"
	DefaultDatasetMaxBytes = 256 << 20
	ReportCacheDuration    = 10 * time.Minute
	DefaultCacheSize       = 256

	// Dashboard
	DefaultLayout         = "classic"
	DefaultPredictionFrom = 2018
	DefaultPredictionTo   = 2023

	// Log Settings
	DefaultLogLevel = "info"
	DefaultLogFile  = "logs/fundscope.log"

	// Endpoints
	APIBasePath       = "/api"
	MetricsEndpoint   = "/metrics"
	WebSocketEndpoint = "/ws"
)
