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

// Package history provides the in-memory per-user conversation store used to
// replay prior turns as context on follow-up queries. The store is bounded:
// a fixed number of users are retained with least-recently-used eviction, and
// idle histories expire after a configurable TTL. Histories are process-local
// and lost on restart.
package history

import (
	"sync"
	"time"
)

const (
	// RoleUser marks a turn authored by the user
	RoleUser = "user"
	// RoleAssistant marks a turn authored by the model
	RoleAssistant = "assistant"
	// RoleSystem marks the system prompt turn
	RoleSystem = "system"
)

// Turn is one message in a conversation. Immutable once appended.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config bounds the store. MaxUsers caps the number of distinct user
// histories; TTL expires histories idle longer than the duration. A zero TTL
// disables expiry.
type Config struct {
	MaxUsers int
	TTL      time.Duration
}

// DefaultConfig returns the standard bounds.
func DefaultConfig() Config {
	return Config{
		MaxUsers: 1000,
		TTL:      30 * time.Minute,
	}
}

type entry struct {
	turns      []Turn
	lastAccess time.Time
}

// Store is a mutex-guarded per-user conversation history table.
type Store struct {
	config  Config
	entries map[string]*entry
	mu      sync.Mutex
	now     func() time.Time
}

// NewStore creates a bounded conversation store.
func NewStore(config Config) *Store {
	if config.MaxUsers < 1 {
		config.MaxUsers = 1
	}
	return &Store{
		config:  config,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Append adds a turn to the user's history, creating the history if absent.
// When the user table is full, the least recently used history is evicted.
func (s *Store) Append(userID string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	e, ok := s.entries[userID]
	if !ok {
		if len(s.entries) >= s.config.MaxUsers {
			s.evictOldestLocked()
		}
		e = &entry{}
		s.entries[userID] = e
	}

	e.turns = append(e.turns, turn)
	e.lastAccess = now
}

// History returns the user's accumulated turns in insertion order. Expired
// histories read as empty. The returned slice is a copy.
func (s *Store) History(userID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok {
		return []Turn{}
	}

	now := s.now()
	if s.config.TTL > 0 && now.Sub(e.lastAccess) > s.config.TTL {
		delete(s.entries, userID)
		return []Turn{}
	}

	e.lastAccess = now
	turns := make([]Turn, len(e.turns))
	copy(turns, e.turns)
	return turns
}

// Len reports how many user histories are currently retained.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup drops all histories idle longer than the TTL.
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.TTL <= 0 {
		return
	}

	now := s.now()
	for userID, e := range s.entries {
		if now.Sub(e.lastAccess) > s.config.TTL {
			delete(s.entries, userID)
		}
	}
}

func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldestTime time.Time

	for userID, e := range s.entries {
		if oldestID == "" || e.lastAccess.Before(oldestTime) {
			oldestID = userID
			oldestTime = e.lastAccess
		}
	}

	if oldestID != "" {
		delete(s.entries, oldestID)
	}
}
