// Package config implements TOML configuration loading, validation, and
// thread-safe reload for coulddrive-sync.
package config

// Config is the top-level configuration structure.
type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Dispatcher DispatcherConfig `toml:"dispatcher"`
	Sync       SyncConfig       `toml:"sync"`
	Logging    LoggingConfig    `toml:"logging"`
	Network    NetworkConfig    `toml:"network"`
}

// DatabaseConfig controls the SQLite persistence layer.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// DispatcherConfig controls the cron scheduler's tick and eligibility
// window.
type DispatcherConfig struct {
	Tick             string `toml:"tick"`
	ExecutionWindow  string `toml:"execution_window"`
	WorkerPoolSize   int    `toml:"worker_pool_size"`
}

// SyncConfig controls the diff-and-apply core's defaults.
type SyncConfig struct {
	MaxDepth              int    `toml:"max_depth"`
	DefaultSpeed           string `toml:"default_speed"`
	ResourceRefreshWindow   string `toml:"resource_refresh_window"`
}

// LoggingConfig controls log output behavior.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
}

// NetworkConfig controls provider HTTP client behavior.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout"`
	DataTimeout    string `toml:"data_timeout"`
	UserAgent      string `toml:"user_agent"`
}
