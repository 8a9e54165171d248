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

// Package main provides the analyst assistant HTTP service: free-text
// analyst questions and CSV dataset analysis backed by the Perplexity
// Sonar API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kishanraj41/analyst-assist/internal/analyst"
	"github.com/kishanraj41/analyst-assist/internal/config"
	"github.com/kishanraj41/analyst-assist/internal/feedback"
	"github.com/kishanraj41/analyst-assist/internal/health"
	"github.com/kishanraj41/analyst-assist/internal/history"
	"github.com/kishanraj41/analyst-assist/internal/resilience"
	"github.com/kishanraj41/analyst-assist/internal/sonar"
)

// Version is the service version reported by the health endpoint.
const Version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "analyst-assist",
		Short: "Analyst assistant service backed by the Perplexity Sonar API",
	}

	var configPath string
	var port int

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath, port)
		},
	}
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to configuration file")
	serveCmd.Flags().IntVar(&port, "port", 0, "listen port (overrides configuration)")

	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serve(configPath string, portOverride int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if portOverride > 0 {
		cfg.Server.Port = portOverride
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	sonarClient, err := sonar.NewClient(cfg.Sonar.APIKey, logger,
		sonar.WithBaseURL(cfg.Sonar.Endpoint))
	if err != nil {
		return fmt.Errorf("failed to create Sonar client: %w", err)
	}

	historyStore := history.NewStore(history.Config{
		MaxUsers: cfg.History.MaxUsers,
		TTL:      cfg.History.TTL,
	})

	orchestrator := analyst.New(sonarClient, historyStore, logger, analyst.Options{
		Model:        cfg.Sonar.Model,
		MaxTokens:    cfg.Sonar.MaxTokens,
		Temperature:  float32(cfg.Sonar.Temperature),
		StrictSchema: true,
		Retry: resilience.RetryConfig{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Delay:       cfg.Retry.Delay,
		},
	})

	feedbackLogger, err := feedback.NewLogger(feedback.Config{
		StorageType: cfg.Feedback.StorageType,
		FilePath:    cfg.Feedback.FilePath,
		DBPath:      cfg.Feedback.DBPath,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create feedback logger: %w", err)
	}
	defer func() { _ = feedbackLogger.Close() }()

	healthManager := health.NewManager("analyst-assist", Version, logger)
	healthManager.AddChecker("feedback_store", health.DatabaseChecker(
		cfg.Feedback.StorageType, feedbackLogger.Ping))
	healthManager.AddChecker("sonar", health.UpstreamChecker("sonar",
		func(ctx context.Context) error {
			if cfg.Sonar.APIKey == "" {
				return fmt.Errorf("sonar API key not configured")
			}
			return nil
		}))

	if err := config.WatchConfig(configPath, func(newCfg *config.Config) {
		logger.Info("Configuration reloaded",
			zap.String("model", newCfg.Sonar.Model),
			zap.String("log_level", newCfg.Logging.Level))
	}); err != nil {
		logger.Warn("Configuration hot reload unavailable", zap.Error(err))
	}

	server := NewServer(cfg, logger, orchestrator, feedbackLogger, healthManager)

	logger.Info("Starting analyst assistant service",
		zap.Int("port", cfg.Server.Port),
		zap.String("model", cfg.Sonar.Model))

	if err := server.Router().Run(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}

// buildLogger constructs the zap logger from the logging configuration.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	if cfg.Format == "text" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if cfg.Output != "" {
		zapCfg.OutputPaths = []string{cfg.Output}
	}

	return zapCfg.Build()
}
