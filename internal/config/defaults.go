package config

// Default values for configuration options. Layer 0 of the
// file-then-env-then-flag override chain; chosen to be safe starting
// points that work without any config file present.
const (
	defaultDatabasePath      = "coulddrive-sync.db"
	defaultDispatcherTick    = "30s"
	defaultExecutionWindow   = "5m"
	defaultWorkerPoolSize    = 8
	defaultMaxDepth          = 100
	defaultSpeed             = "normal"
	defaultResourceRefresh   = "24h"
	defaultLogLevel          = "info"
	defaultLogFormat         = "auto"
	defaultConnectTimeout    = "10s"
	defaultDataTimeout       = "60s"
	defaultUserAgent         = "coulddrive-sync/1.0"
)

// DefaultConfig returns a Config populated with all default values. It is
// both the decode target for TOML (so unset fields keep defaults) and the
// fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Database:   defaultDatabaseConfig(),
		Dispatcher: defaultDispatcherConfig(),
		Sync:       defaultSyncConfig(),
		Logging:    defaultLoggingConfig(),
		Network:    defaultNetworkConfig(),
	}
}

func defaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{Path: defaultDatabasePath}
}

func defaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Tick:            defaultDispatcherTick,
		ExecutionWindow: defaultExecutionWindow,
		WorkerPoolSize:  defaultWorkerPoolSize,
	}
}

func defaultSyncConfig() SyncConfig {
	return SyncConfig{
		MaxDepth:              defaultMaxDepth,
		DefaultSpeed:          defaultSpeed,
		ResourceRefreshWindow: defaultResourceRefresh,
	}
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
	}
}

func defaultNetworkConfig() NetworkConfig {
	return NetworkConfig{
		ConnectTimeout: defaultConnectTimeout,
		DataTimeout:    defaultDataTimeout,
		UserAgent:      defaultUserAgent,
	}
}
