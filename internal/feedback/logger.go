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

// Package feedback records user feedback on analyst responses. Storage is
// append-only and separate from conversation state: entries are an audit
// trail, never replayed as context. File and SQLite backends are supported.
package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	StorageTypeFile   = "file"
	StorageTypeSQLite = "sqlite"
)

// Record is one feedback entry on an analyst response.
type Record struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	Feedback  string    `json:"feedback"`
	Endpoint  string    `json:"endpoint,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds configuration for feedback storage
type Config struct {
	StorageType string `json:"storage_type"` // StorageTypeFile or StorageTypeSQLite
	FilePath    string `json:"file_path"`    // Path for file storage
	DBPath      string `json:"db_path"`      // Path for SQLite database
}

// Logger persists feedback records to the configured backend.
type Logger struct {
	config Config
	logger *zap.Logger
	db     *sql.DB
	mu     sync.RWMutex
}

// NewLogger creates a feedback logger for the configured backend.
func NewLogger(config Config, logger *zap.Logger) (*Logger, error) {
	fl := &Logger{
		config: config,
		logger: logger,
	}

	switch config.StorageType {
	case StorageTypeFile:
		if err := fl.initFileStorage(); err != nil {
			return nil, fmt.Errorf("failed to initialize file storage: %w", err)
		}
	case StorageTypeSQLite:
		if err := fl.initSQLiteStorage(); err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.StorageType)
	}

	return fl, nil
}

func (fl *Logger) initFileStorage() error {
	dir := filepath.Dir(fl.config.FilePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create feedback directory: %w", err)
	}

	if _, err := os.Stat(fl.config.FilePath); os.IsNotExist(err) {
		file, err := os.Create(fl.config.FilePath)
		if err != nil {
			return fmt.Errorf("failed to create feedback file: %w", err)
		}
		_ = file.Close()
	}

	return nil
}

func (fl *Logger) initSQLiteStorage() error {
	dir := filepath.Dir(fl.config.DBPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create feedback database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fl.config.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS feedback (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			query TEXT NOT NULL,
			feedback TEXT NOT NULL,
			endpoint TEXT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create feedback table: %w", err)
	}

	fl.db = db
	return nil
}

// Log records a feedback entry.
func (fl *Logger) Log(userID, query, feedback string) error {
	return fl.LogForEndpoint(userID, query, feedback, "")
}

// LogForEndpoint records a feedback entry tagged with the endpoint it
// concerns.
func (fl *Logger) LogForEndpoint(userID, query, feedback, endpoint string) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	record := Record{
		ID:        generateFeedbackID(),
		UserID:    userID,
		Query:     query,
		Feedback:  feedback,
		Endpoint:  endpoint,
		Timestamp: time.Now(),
	}

	switch fl.config.StorageType {
	case StorageTypeFile:
		return fl.logToFile(record)
	case StorageTypeSQLite:
		return fl.logToSQLite(record)
	default:
		return fmt.Errorf("unsupported storage type: %s", fl.config.StorageType)
	}
}

func (fl *Logger) logToFile(record Record) error {
	file, err := os.OpenFile(fl.config.FilePath, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open feedback file: %w", err)
	}
	defer func() { _ = file.Close() }()

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal feedback: %w", err)
	}

	if _, err := file.WriteString(string(jsonData) + "\n"); err != nil {
		return fmt.Errorf("failed to write feedback to file: %w", err)
	}

	fl.logger.Info("Feedback logged to file",
		zap.String("id", record.ID),
		zap.String("user_id", record.UserID),
		zap.String("feedback", record.Feedback))

	return nil
}

func (fl *Logger) logToSQLite(record Record) error {
	if fl.db == nil {
		return fmt.Errorf("SQLite database not initialized")
	}

	insertSQL := `
		INSERT INTO feedback (id, user_id, query, feedback, endpoint, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := fl.db.Exec(insertSQL,
		record.ID,
		record.UserID,
		record.Query,
		record.Feedback,
		record.Endpoint,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback into SQLite: %w", err)
	}

	fl.logger.Info("Feedback logged to SQLite",
		zap.String("id", record.ID),
		zap.String("user_id", record.UserID),
		zap.String("feedback", record.Feedback))

	return nil
}

// Recent retrieves the most recent feedback entries (SQLite only).
func (fl *Logger) Recent(limit int) ([]Record, error) {
	if fl.config.StorageType != StorageTypeSQLite {
		return nil, fmt.Errorf("Recent only supported for SQLite storage")
	}

	if fl.db == nil {
		return nil, fmt.Errorf("SQLite database not initialized")
	}

	fl.mu.RLock()
	defer fl.mu.RUnlock()

	query := `
		SELECT id, user_id, query, feedback, endpoint, timestamp
		FROM feedback
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := fl.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var record Record
		var endpoint sql.NullString

		err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.Query,
			&record.Feedback,
			&endpoint,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}

		if endpoint.Valid {
			record.Endpoint = endpoint.String
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback rows: %w", err)
	}

	return records, nil
}

// Stats returns per-feedback-value counts (SQLite only).
func (fl *Logger) Stats() (map[string]int, error) {
	if fl.config.StorageType != StorageTypeSQLite {
		return nil, fmt.Errorf("Stats only supported for SQLite storage")
	}

	if fl.db == nil {
		return nil, fmt.Errorf("SQLite database not initialized")
	}

	fl.mu.RLock()
	defer fl.mu.RUnlock()

	query := `
		SELECT feedback, COUNT(*) as count
		FROM feedback
		GROUP BY feedback
	`

	rows, err := fl.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[string]int)
	for rows.Next() {
		var feedback string
		var count int

		if err := rows.Scan(&feedback, &count); err != nil {
			return nil, fmt.Errorf("failed to scan feedback stats row: %w", err)
		}

		stats[feedback] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback stats rows: %w", err)
	}

	return stats, nil
}

// Ping verifies the storage backend is reachable.
func (fl *Logger) Ping(ctx context.Context) error {
	fl.mu.RLock()
	defer fl.mu.RUnlock()

	switch fl.config.StorageType {
	case StorageTypeFile:
		_, err := os.Stat(fl.config.FilePath)
		return err
	case StorageTypeSQLite:
		if fl.db == nil {
			return fmt.Errorf("SQLite database not initialized")
		}
		return fl.db.PingContext(ctx)
	default:
		return fmt.Errorf("unsupported storage type: %s", fl.config.StorageType)
	}
}

// Close closes the feedback logger and any open resources
func (fl *Logger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.db != nil {
		return fl.db.Close()
	}

	return nil
}

var feedbackSeq uint64

func generateFeedbackID() string {
	return fmt.Sprintf("feedback_%d_%d", time.Now().UnixNano(), atomic.AddUint64(&feedbackSeq, 1))
}
