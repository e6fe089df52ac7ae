package database

import (
	"strings"
	"time"
)

const (
	defaultRetryAttempts = 3
	defaultRetryDelay    = 100 * time.Millisecond
	maxRetryDelay        = 2 * time.Second
)

type retryConfig struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
}

func defaultRetryConfig() retryConfig {
	return retryConfig{
		maxAttempts:  defaultRetryAttempts,
		initialDelay: defaultRetryDelay,
		maxDelay:     maxRetryDelay,
		multiplier:   2.0,
	}
}

// isRetryable reports whether the error is transient SQLite contention.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"database is locked",
		"busy",
		"timeout",
		"temporary",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// withRetry runs fn with exponential backoff on retryable errors. A
// non-retryable error returns immediately.
func withRetry(cfg retryConfig, fn func() error) error {
	var lastErr error
	delay := cfg.initialDelay
	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		if attempt < cfg.maxAttempts {
			time.Sleep(delay)
			delay = time.Duration(float64(delay) * cfg.multiplier)
			if delay > cfg.maxDelay {
				delay = cfg.maxDelay
			}
		}
	}
	return lastErr
}
