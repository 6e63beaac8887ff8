/**
 * Local scan history for the PhotoScan CLI
 *
 * A single-file SQLite store so the CLI can dedup re-scans and show history
 * without PostgreSQL. One row per distinct photo, keyed by content hash;
 * re-scans refresh the row and bump the scan counter.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shelfwise/catalog/photoscan-worker/internal/attributes"
	"github.com/shelfwise/catalog/photoscan-worker/internal/errors"
)

const historySchema = `
-- Performance and reliability settings
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;

-- Scans table: one row per distinct photo, keyed by content hash
CREATE TABLE IF NOT EXISTS scans (
    image_hash TEXT PRIMARY KEY,
    path TEXT NOT NULL,
    title TEXT,
    transcript TEXT NOT NULL DEFAULT '',
    language TEXT,
    attributes TEXT NOT NULL DEFAULT '[]',
    warnings TEXT NOT NULL DEFAULT '[]',
    confidence REAL NOT NULL DEFAULT 0,
    scan_count INTEGER NOT NULL DEFAULT 1,
    first_scanned_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    last_scanned_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_scans_last ON scans(last_scanned_at DESC);
`

// HistoryStore is the CLI-local scan history.
type HistoryStore struct {
	db   *sql.DB
	path string
}

// ScanEntry is one completed scan ready for the history store.
type ScanEntry struct {
	ImageHash  string
	Path       string
	Title      string
	Transcript string
	Language   string
	Attributes []attributes.Attribute
	Warnings   []errors.Warning
	Confidence float64
}

// HistoryEntry is the read-side projection of one history row.
type HistoryEntry struct {
	ImageHash     string          `json:"imageHash"`
	Path          string          `json:"path"`
	Title         string          `json:"title,omitempty"`
	Transcript    string          `json:"transcript"`
	Language      string          `json:"language,omitempty"`
	Attributes    json.RawMessage `json:"attributes"`
	Warnings      json.RawMessage `json:"warnings,omitempty"`
	Confidence    float64         `json:"confidence"`
	ScanCount     int             `json:"scanCount"`
	FirstScanned  time.Time       `json:"firstScannedAt"`
	LastScanned   time.Time       `json:"lastScannedAt"`
}

// DefaultHistoryPath returns the per-user history location.
func DefaultHistoryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".photoscan", "history.db"), nil
}

// NewHistoryStore opens or creates the history database. An empty path
// selects the default per-user location.
func NewHistoryStore(path string) (*HistoryStore, error) {
	if path == "" {
		defaultPath, err := DefaultHistoryPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := db.Exec(historySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}

	return &HistoryStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (h *HistoryStore) Path() string {
	return h.path
}

// RecordScan upserts one scan. Re-scans of the same photo refresh the row
// and bump the scan counter; first_scanned_at stays at the original scan.
func (h *HistoryStore) RecordScan(ctx context.Context, entry *ScanEntry) error {
	if entry == nil {
		return fmt.Errorf("entry is required")
	}

	if entry.ImageHash == "" {
		return fmt.Errorf("image hash is required")
	}

	attributesJSON, err := json.Marshal(entry.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	warningsJSON, err := json.Marshal(entry.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO scans (image_hash, path, title, transcript, language, attributes, warnings, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(image_hash) DO UPDATE SET
			path = excluded.path,
			title = excluded.title,
			transcript = excluded.transcript,
			language = excluded.language,
			attributes = excluded.attributes,
			warnings = excluded.warnings,
			confidence = excluded.confidence,
			scan_count = scan_count + 1,
			last_scanned_at = CURRENT_TIMESTAMP
	`, entry.ImageHash, entry.Path, entry.Title, entry.Transcript, entry.Language,
		string(attributesJSON), string(warningsJSON), entry.Confidence)
	if err != nil {
		return fmt.Errorf("failed to record scan: %w", err)
	}

	return nil
}

// GetScanByHash returns the history row for one photo, or nil when the
// photo has not been scanned.
func (h *HistoryStore) GetScanByHash(ctx context.Context, imageHash string) (*HistoryEntry, error) {
	if imageHash == "" {
		return nil, fmt.Errorf("image hash is required")
	}

	var entry HistoryEntry
	var attributesJSON, warningsJSON string
	err := h.db.QueryRowContext(ctx, `
		SELECT image_hash, path, COALESCE(title, ''), transcript, COALESCE(language, ''),
		       attributes, warnings, confidence, scan_count, first_scanned_at, last_scanned_at
		FROM scans
		WHERE image_hash = ?
	`, imageHash).Scan(
		&entry.ImageHash, &entry.Path, &entry.Title, &entry.Transcript, &entry.Language,
		&attributesJSON, &warningsJSON, &entry.Confidence, &entry.ScanCount,
		&entry.FirstScanned, &entry.LastScanned,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get scan: %w", err)
	}

	entry.Attributes = json.RawMessage(attributesJSON)
	entry.Warnings = json.RawMessage(warningsJSON)

	return &entry, nil
}

// RecentScans lists history rows, most recently scanned first.
func (h *HistoryStore) RecentScans(ctx context.Context, limit int) ([]*HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT image_hash, path, COALESCE(title, ''), transcript, COALESCE(language, ''),
		       attributes, warnings, confidence, scan_count, first_scanned_at, last_scanned_at
		FROM scans
		ORDER BY last_scanned_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scans: %w", err)
	}
	defer rows.Close()

	var entries []*HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var attributesJSON, warningsJSON string
		if err := rows.Scan(
			&entry.ImageHash, &entry.Path, &entry.Title, &entry.Transcript, &entry.Language,
			&attributesJSON, &warningsJSON, &entry.Confidence, &entry.ScanCount,
			&entry.FirstScanned, &entry.LastScanned,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entry.Attributes = json.RawMessage(attributesJSON)
		entry.Warnings = json.RawMessage(warningsJSON)
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	return entries, nil
}

// Close closes the history database.
func (h *HistoryStore) Close() error {
	if h.db != nil {
		return h.db.Close()
	}
	return nil
}
