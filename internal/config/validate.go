package config

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRootRequired is returned when sync.root is empty.
	ErrRootRequired = errors.New("config: sync.root is required")
	// ErrInvalidLogLevel is returned for an unrecognized logging.level.
	ErrInvalidLogLevel = errors.New("config: invalid logging.level")
	// ErrInvalidLogFormat is returned for an unrecognized logging.format.
	ErrInvalidLogFormat = errors.New("config: invalid logging.format")
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"auto": true, "text": true, "json": true}

// Validate checks a fully-resolved Config for internally consistent,
// actionable values. It does not touch the filesystem or network.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Sync.Root == "" {
		errs = append(errs, ErrRootRequired)
	}

	if _, err := time.ParseDuration(cfg.Sync.DebounceInterval); err != nil {
		errs = append(errs, fmt.Errorf("config: sync.debounce_interval %q: %w", cfg.Sync.DebounceInterval, err))
	}

	if cfg.Peers.TransferWorkers < 1 {
		errs = append(errs, fmt.Errorf("config: peers.transfer_workers must be >= 1, got %d", cfg.Peers.TransferWorkers))
	}

	if !validLogLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, cfg.Logging.Level))
	}

	if !validLogFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogFormat, cfg.Logging.Format))
	}

	return errors.Join(errs...)
}
