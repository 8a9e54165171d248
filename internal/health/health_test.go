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

package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestManager_Check(t *testing.T) {
	logger := zap.NewNop()
	manager := NewManager("analyst-assist", "1.0.0", logger)

	manager.AddCheckerFunc("feedback_db", func(ctx context.Context) CheckResult {
		return CheckResult{
			Status:    StatusHealthy,
			Timestamp: time.Now(),
		}
	})

	manager.AddCheckerFunc("sonar", func(ctx context.Context) CheckResult {
		return CheckResult{
			Status:    StatusUnhealthy,
			Error:     "service is down",
			Timestamp: time.Now(),
		}
	})

	result := manager.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Errorf("Expected status to be unhealthy, got %s", result.Status)
	}

	if result.Service != "analyst-assist" {
		t.Errorf("Expected service to be analyst-assist, got %s", result.Service)
	}

	if result.Version != "1.0.0" {
		t.Errorf("Expected version to be 1.0.0, got %s", result.Version)
	}

	if len(result.Dependencies) != 2 {
		t.Errorf("Expected 2 dependencies, got %d", len(result.Dependencies))
	}

	if result.Dependencies["feedback_db"].Status != StatusHealthy {
		t.Errorf("Expected feedback_db to be healthy, got %s", result.Dependencies["feedback_db"].Status)
	}

	if result.Dependencies["sonar"].Error != "service is down" {
		t.Errorf("Expected error message, got %s", result.Dependencies["sonar"].Error)
	}
}

func TestManager_Check_AllHealthy(t *testing.T) {
	logger := zap.NewNop()
	manager := NewManager("analyst-assist", "1.0.0", logger)

	manager.AddCheckerFunc("service1", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Timestamp: time.Now()}
	})
	manager.AddCheckerFunc("service2", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Timestamp: time.Now()}
	})

	result := manager.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("Expected status to be healthy, got %s", result.Status)
	}

	if result.Uptime <= 0 {
		t.Error("Expected a positive uptime")
	}

	if result.Metadata["go_version"] == nil {
		t.Error("Expected go_version metadata")
	}
}

func TestManager_Check_Degraded(t *testing.T) {
	logger := zap.NewNop()
	manager := NewManager("analyst-assist", "1.0.0", logger)

	manager.AddCheckerFunc("ok", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Timestamp: time.Now()}
	})
	manager.AddCheckerFunc("slow", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded, Timestamp: time.Now()}
	})

	result := manager.Check(context.Background())

	if result.Status != StatusDegraded {
		t.Errorf("Expected status to be degraded, got %s", result.Status)
	}
}

func TestManager_Check_NoCheckers(t *testing.T) {
	logger := zap.NewNop()
	manager := NewManager("analyst-assist", "1.0.0", logger)

	result := manager.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("Expected status to be healthy with no checkers, got %s", result.Status)
	}

	if len(result.Dependencies) != 0 {
		t.Errorf("Expected no dependencies, got %d", len(result.Dependencies))
	}
}

func TestDatabaseChecker(t *testing.T) {
	checker := DatabaseChecker("feedback", func(ctx context.Context) error {
		return nil
	})

	result := checker.Check(context.Background())

	if result.Status != StatusHealthy {
		t.Errorf("Expected healthy status, got %s", result.Status)
	}

	if result.Metadata["database"] != "feedback" {
		t.Errorf("Expected database metadata, got %v", result.Metadata)
	}
}

func TestDatabaseChecker_Failure(t *testing.T) {
	checker := DatabaseChecker("feedback", func(ctx context.Context) error {
		return errors.New("database is locked")
	})

	result := checker.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status, got %s", result.Status)
	}

	if result.Error == "" {
		t.Error("Expected an error message")
	}
}

func TestUpstreamChecker_TemporaryFailureDegrades(t *testing.T) {
	checker := UpstreamChecker("sonar", func(ctx context.Context) error {
		return errors.New("connection refused")
	})

	result := checker.Check(context.Background())

	if result.Status != StatusDegraded {
		t.Errorf("Expected degraded status for temporary error, got %s", result.Status)
	}
}

func TestUpstreamChecker_PermanentFailure(t *testing.T) {
	checker := UpstreamChecker("sonar", func(ctx context.Context) error {
		return errors.New("invalid API key")
	})

	result := checker.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy status for permanent error, got %s", result.Status)
	}
}

func TestIsTemporaryError(t *testing.T) {
	tests := []struct {
		err       error
		temporary bool
	}{
		{nil, false},
		{errors.New("timeout waiting for response"), true},
		{errors.New("connection refused"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("unauthorized"), false},
	}

	for _, tt := range tests {
		if got := isTemporaryError(tt.err); got != tt.temporary {
			t.Errorf("isTemporaryError(%v) = %v, want %v", tt.err, got, tt.temporary)
		}
	}
}
