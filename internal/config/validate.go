package config

import (
	"errors"
	"fmt"
	"time"
)

// Validation range constants.
const (
	minWorkerPoolSize  = 1
	maxWorkerPoolSize  = 64
	minDispatcherTick  = 1 * time.Second
	minExecutionWindow = 1 * time.Minute
	minMaxDepth        = 1
	maxMaxDepth        = 1000
	minConnectTimeout  = 1 * time.Second
	minDataTimeout     = 5 * time.Second
)

var validSpeeds = map[string]bool{
	"slow":   true,
	"normal": true,
	"fast":   true,
}

// Validate checks all configuration values and returns every error found,
// so a user can fix all issues from one report instead of one at a time.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateDispatcher(&cfg.Dispatcher)...)
	errs = append(errs, validateSync(&cfg.Sync)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)

	return errors.Join(errs...)
}

func validateDispatcher(d *DispatcherConfig) []error {
	var errs []error

	tick, err := time.ParseDuration(d.Tick)
	if err != nil {
		errs = append(errs, fmt.Errorf("dispatcher.tick: %w", err))
	} else if tick < minDispatcherTick {
		errs = append(errs, fmt.Errorf("dispatcher.tick: must be at least %s, got %s", minDispatcherTick, tick))
	}

	window, err := time.ParseDuration(d.ExecutionWindow)
	if err != nil {
		errs = append(errs, fmt.Errorf("dispatcher.execution_window: %w", err))
	} else if window < minExecutionWindow {
		errs = append(errs, fmt.Errorf("dispatcher.execution_window: must be at least %s, got %s", minExecutionWindow, window))
	}

	if d.WorkerPoolSize < minWorkerPoolSize || d.WorkerPoolSize > maxWorkerPoolSize {
		errs = append(errs, fmt.Errorf("dispatcher.worker_pool_size: must be between %d and %d, got %d",
			minWorkerPoolSize, maxWorkerPoolSize, d.WorkerPoolSize))
	}

	return errs
}

func validateSync(s *SyncConfig) []error {
	var errs []error

	if s.MaxDepth < minMaxDepth || s.MaxDepth > maxMaxDepth {
		errs = append(errs, fmt.Errorf("sync.max_depth: must be between %d and %d, got %d",
			minMaxDepth, maxMaxDepth, s.MaxDepth))
	}

	if !validSpeeds[s.DefaultSpeed] {
		errs = append(errs, fmt.Errorf("sync.default_speed: must be one of slow/normal/fast, got %q", s.DefaultSpeed))
	}

	if _, err := time.ParseDuration(s.ResourceRefreshWindow); err != nil {
		errs = append(errs, fmt.Errorf("sync.resource_refresh_window: %w", err))
	}

	return errs
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	connect, err := time.ParseDuration(n.ConnectTimeout)
	if err != nil {
		errs = append(errs, fmt.Errorf("network.connect_timeout: %w", err))
	} else if connect < minConnectTimeout {
		errs = append(errs, fmt.Errorf("network.connect_timeout: must be at least %s, got %s", minConnectTimeout, connect))
	}

	data, err := time.ParseDuration(n.DataTimeout)
	if err != nil {
		errs = append(errs, fmt.Errorf("network.data_timeout: %w", err))
	} else if data < minDataTimeout {
		errs = append(errs, fmt.Errorf("network.data_timeout: must be at least %s, got %s", minDataTimeout, data))
	}

	return errs
}
