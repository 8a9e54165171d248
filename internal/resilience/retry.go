// Copyright 2025 Analyst Assist Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package resilience provides the bounded retry executor used around outbound
// Sonar API calls, and the error taxonomy shared by the HTTP handlers.
package resilience

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts is the default number of invocations before giving up
	DefaultMaxAttempts = 3
	// DefaultDelay is the fixed delay between attempts
	DefaultDelay = 1 * time.Second
)

// RetryConfig holds configuration for the bounded retry executor
type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryConfig returns the standard policy: 3 attempts, 1s apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
	}
}

// RetryFunc is an operation that can be retried
type RetryFunc func(ctx context.Context) error

// Retry invokes fn up to cfg.MaxAttempts times with a fixed delay between
// attempts. The delay is not exponential and carries no jitter. After the final
// failed attempt the last error is returned unchanged, so callers can inspect
// it without unwrapping. The inter-attempt sleep respects context cancellation.
func Retry(ctx context.Context, logger *zap.Logger, cfg RetryConfig, fn RetryFunc) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("Operation succeeded after retry",
					zap.Int("attempt", attempt),
					zap.Int("max_attempts", cfg.MaxAttempts))
			}
			return nil
		}

		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		logger.Warn("Operation failed, retrying after delay",
			zap.Error(err),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("delay", cfg.Delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.Delay):
		}
	}

	logger.Error("All retry attempts exhausted",
		zap.Error(lastErr),
		zap.Int("max_attempts", cfg.MaxAttempts))

	return lastErr
}
