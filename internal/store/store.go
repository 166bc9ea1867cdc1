// Package store persists session research history and action items with
// SQLite so a conversation session survives process restarts. The core
// pipeline does not depend on it; callers wire it in through the research
// observer hook.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"parley/internal/insight"
	"parley/internal/research"
)

// SessionStore is a SQLite-backed archive of one capture session.
type SessionStore struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// NewSessionStore initializes the SQLite database at the given path.
func NewSessionStore(path string) (*SessionStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SessionStore{db: db, dbPath: path}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// initialize creates the required tables.
func (s *SessionStore) initialize() error {
	searchTable := `
	CREATE TABLE IF NOT EXISTS searches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		results TEXT NOT NULL,
		result_count INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);`
	if _, err := s.db.Exec(searchTable); err != nil {
		return fmt.Errorf("failed to create searches table: %w", err)
	}

	actionTable := `
	CREATE TABLE IF NOT EXISTS action_items (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		priority TEXT NOT NULL,
		assigned_to TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);`
	if _, err := s.db.Exec(actionTable); err != nil {
		return fmt.Errorf("failed to create action_items table: %w", err)
	}
	return nil
}

// SaveSearch archives one completed search.
func (s *SessionStore) SaveSearch(entry research.HistoryEntry) error {
	results, err := json.Marshal(entry.Results)
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO searches (query, results, result_count, created_at) VALUES (?, ?, ?, ?)`,
		entry.Query, string(results), len(entry.Results), entry.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save search: %w", err)
	}
	return nil
}

// RecentSearches returns up to limit archived searches, newest first.
func (s *SessionStore) RecentSearches(limit int) ([]research.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT query, results, created_at FROM searches ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query searches: %w", err)
	}
	defer rows.Close()

	var entries []research.HistoryEntry
	for rows.Next() {
		var entry research.HistoryEntry
		var results string
		var createdAt time.Time
		if err := rows.Scan(&entry.Query, &results, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		if err := json.Unmarshal([]byte(results), &entry.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results: %w", err)
		}
		entry.Timestamp = createdAt
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SaveActionItems upserts the given action items by ID.
func (s *SessionStore) SaveActionItems(items []insight.ActionItem) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, item := range items {
		_, err := tx.Exec(
			`INSERT INTO action_items (id, text, priority, assigned_to, completed, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET completed = excluded.completed`,
			item.ID, item.Text, string(item.Priority), item.AssignedTo, item.Completed, item.CreatedAt.UTC(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to save action item: %w", err)
		}
	}
	return tx.Commit()
}

// OpenActionItems returns all items not yet marked completed, oldest first.
func (s *SessionStore) OpenActionItems() ([]insight.ActionItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, text, priority, assigned_to, completed, created_at
		 FROM action_items WHERE completed = 0 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query action items: %w", err)
	}
	defer rows.Close()

	var items []insight.ActionItem
	for rows.Next() {
		var item insight.ActionItem
		var priority string
		if err := rows.Scan(&item.ID, &item.Text, &priority, &item.AssignedTo, &item.Completed, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan action item: %w", err)
		}
		item.Priority = insight.Priority(priority)
		items = append(items, item)
	}
	return items, rows.Err()
}

// Close releases the database handle.
func (s *SessionStore) Close() error {
	return s.db.Close()
}
