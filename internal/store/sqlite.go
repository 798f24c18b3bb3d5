package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lifedash/lifedash/pkg/types"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists usage log entries to a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store at the given path
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrent write performance
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS usage_log (
			id TEXT PRIMARY KEY,
			ts INTEGER NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL DEFAULT '',
			input_tokens INTEGER NOT NULL DEFAULT 0,
			output_tokens INTEGER NOT NULL DEFAULT 0,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			tool_calls TEXT NOT NULL DEFAULT '[]',
			question_preview TEXT NOT NULL DEFAULT '',
			answer_preview TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			used_fallback INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_usage_log_ts ON usage_log(ts)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Append writes one usage log entry. Entries are never updated or deleted.
func (s *SQLiteStore) Append(entry *types.UsageLogEntry) error {
	toolCalls, err := json.Marshal(entry.ToolCalls)
	if err != nil {
		return fmt.Errorf("failed to marshal tool calls: %w", err)
	}

	usedFallback := 0
	if entry.UsedFallback {
		usedFallback = 1
	}

	_, err = s.db.Exec(`
		INSERT INTO usage_log (
			id, ts, provider, model, input_tokens, output_tokens,
			latency_ms, tool_calls, question_preview, answer_preview,
			status, used_fallback
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UnixMilli(),
		entry.Provider,
		entry.Model,
		entry.InputTokens,
		entry.OutputTokens,
		entry.LatencyMs,
		string(toolCalls),
		entry.QuestionPreview,
		entry.AnswerPreview,
		entry.Status,
		usedFallback,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage entry: %w", err)
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]types.UsageLogEntry, error) {
	entries := make([]types.UsageLogEntry, 0)
	for rows.Next() {
		var entry types.UsageLogEntry
		var ts int64
		var toolCalls string
		var usedFallback int

		err := rows.Scan(
			&entry.ID,
			&ts,
			&entry.Provider,
			&entry.Model,
			&entry.InputTokens,
			&entry.OutputTokens,
			&entry.LatencyMs,
			&toolCalls,
			&entry.QuestionPreview,
			&entry.AnswerPreview,
			&entry.Status,
			&usedFallback,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage entry: %w", err)
		}

		entry.Timestamp = time.UnixMilli(ts)
		entry.UsedFallback = usedFallback != 0
		if err := json.Unmarshal([]byte(toolCalls), &entry.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool calls for %s: %w", entry.ID, err)
		}

		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

const selectColumns = `id, ts, provider, model, input_tokens, output_tokens,
	latency_ms, tool_calls, question_preview, answer_preview, status, used_fallback`

// QueryRange returns entries at or after since, oldest first.
func (s *SQLiteStore) QueryRange(since time.Time) ([]types.UsageLogEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+selectColumns+` FROM usage_log WHERE ts >= ? ORDER BY ts ASC`,
		since.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage range: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// QueryRecent returns the newest entries, newest first.
func (s *SQLiteStore) QueryRecent(limit int) ([]types.UsageLogEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+selectColumns+` FROM usage_log ORDER BY ts DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent usage: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}
