package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "COULDDRIVE_SYNC_CONFIG"
	EnvDatabase = "COULDDRIVE_SYNC_DATABASE"
)

// EnvOverrides holds values derived from environment variables. Resolved by
// ReadEnvOverrides and made available to callers; does not modify Config.
type EnvOverrides struct {
	ConfigPath   string // COULDDRIVE_SYNC_CONFIG: override config file path
	DatabasePath string // COULDDRIVE_SYNC_DATABASE: override database path
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv(EnvConfig),
		DatabasePath: os.Getenv(EnvDatabase),
	}
}
