package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/shelfwise/catalog/photoscan-worker/internal/attributes"
	"github.com/shelfwise/catalog/photoscan-worker/internal/errors"
)

func newTestHistoryStore(t *testing.T) *HistoryStore {
	t.Helper()

	store, err := NewHistoryStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func TestHistoryStoreRecordAndGet(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()

	entry := &ScanEntry{
		ImageHash:  "abc123",
		Path:       "/photos/lamp.jpg",
		Title:      "Desk Lamp",
		Transcript: "RED PLASTIC LAMP",
		Language:   "en",
		Attributes: []attributes.Attribute{
			{Kind: attributes.KindColor, Value: "red", Confidence: 0.9, Source: "label"},
		},
		Warnings: []errors.Warning{
			{Code: errors.ErrorStrategyDegraded, Source: "embossed", Message: "strategy timed out"},
		},
		Confidence: 0.82,
	}

	if err := store.RecordScan(ctx, entry); err != nil {
		t.Fatalf("RecordScan() error = %v", err)
	}

	got, err := store.GetScanByHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetScanByHash() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetScanByHash() = nil, want entry")
	}

	if got.Path != "/photos/lamp.jpg" {
		t.Errorf("path = %q, want /photos/lamp.jpg", got.Path)
	}
	if got.Title != "Desk Lamp" {
		t.Errorf("title = %q, want Desk Lamp", got.Title)
	}
	if got.Transcript != "RED PLASTIC LAMP" {
		t.Errorf("transcript = %q, want RED PLASTIC LAMP", got.Transcript)
	}
	if got.Language != "en" {
		t.Errorf("language = %q, want en", got.Language)
	}
	if got.Confidence != 0.82 {
		t.Errorf("confidence = %v, want 0.82", got.Confidence)
	}
	if got.ScanCount != 1 {
		t.Errorf("scan count = %d, want 1", got.ScanCount)
	}
	if got.FirstScanned.IsZero() || got.LastScanned.IsZero() {
		t.Error("scan timestamps not populated")
	}

	var storedAttrs []attributes.Attribute
	if err := json.Unmarshal(got.Attributes, &storedAttrs); err != nil {
		t.Fatalf("attributes did not round-trip: %v", err)
	}
	if len(storedAttrs) != 1 || storedAttrs[0].Value != "red" {
		t.Errorf("attributes = %v, want one red color", storedAttrs)
	}

	var storedWarnings []errors.Warning
	if err := json.Unmarshal(got.Warnings, &storedWarnings); err != nil {
		t.Fatalf("warnings did not round-trip: %v", err)
	}
	if len(storedWarnings) != 1 || storedWarnings[0].Code != errors.ErrorStrategyDegraded {
		t.Errorf("warnings = %v, want one STRATEGY_DEGRADED", storedWarnings)
	}
}

func TestHistoryStoreRescanRefreshesRow(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()

	first := &ScanEntry{ImageHash: "dup456", Path: "/photos/a.jpg", Transcript: "FIRST PASS", Confidence: 0.5}
	if err := store.RecordScan(ctx, first); err != nil {
		t.Fatalf("RecordScan(first) error = %v", err)
	}

	second := &ScanEntry{ImageHash: "dup456", Path: "/photos/copy/a.jpg", Transcript: "SECOND PASS", Confidence: 0.7}
	if err := store.RecordScan(ctx, second); err != nil {
		t.Fatalf("RecordScan(second) error = %v", err)
	}

	got, err := store.GetScanByHash(ctx, "dup456")
	if err != nil {
		t.Fatalf("GetScanByHash() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetScanByHash() = nil, want entry")
	}

	if got.ScanCount != 2 {
		t.Errorf("scan count = %d, want 2", got.ScanCount)
	}
	if got.Path != "/photos/copy/a.jpg" {
		t.Errorf("path = %q, want refreshed path", got.Path)
	}
	if got.Transcript != "SECOND PASS" {
		t.Errorf("transcript = %q, want SECOND PASS", got.Transcript)
	}
	if got.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", got.Confidence)
	}

	entries, err := store.RecentScans(ctx, 10)
	if err != nil {
		t.Fatalf("RecentScans() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("history rows = %d, want 1 after rescan", len(entries))
	}
}

func TestHistoryStoreRecentScansLimits(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()

	hashes := []string{"h1", "h2", "h3"}
	for _, hash := range hashes {
		entry := &ScanEntry{ImageHash: hash, Path: "/photos/" + hash + ".jpg", Transcript: hash}
		if err := store.RecordScan(ctx, entry); err != nil {
			t.Fatalf("RecordScan(%s) error = %v", hash, err)
		}
	}

	entries, err := store.RecentScans(ctx, 2)
	if err != nil {
		t.Fatalf("RecentScans() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("RecentScans(2) returned %d rows, want 2", len(entries))
	}

	all, err := store.RecentScans(ctx, 0)
	if err != nil {
		t.Fatalf("RecentScans(0) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("RecentScans(0) returned %d rows, want all 3", len(all))
	}

	seen := make(map[string]bool)
	for _, entry := range all {
		seen[entry.ImageHash] = true
	}
	for _, hash := range hashes {
		if !seen[hash] {
			t.Errorf("hash %s missing from history", hash)
		}
	}
}

func TestHistoryStoreGetMissingReturnsNil(t *testing.T) {
	store := newTestHistoryStore(t)

	got, err := store.GetScanByHash(context.Background(), "never-scanned")
	if err != nil {
		t.Fatalf("GetScanByHash() error = %v", err)
	}
	if got != nil {
		t.Errorf("GetScanByHash() = %v, want nil for unknown hash", got)
	}
}

func TestHistoryStoreValidatesInput(t *testing.T) {
	store := newTestHistoryStore(t)
	ctx := context.Background()

	if err := store.RecordScan(ctx, nil); err == nil {
		t.Error("RecordScan(nil) succeeded, want error")
	}
	if err := store.RecordScan(ctx, &ScanEntry{Path: "/photos/x.jpg"}); err == nil {
		t.Error("RecordScan() without hash succeeded, want error")
	}
	if _, err := store.GetScanByHash(ctx, ""); err == nil {
		t.Error("GetScanByHash(\"\") succeeded, want error")
	}
}
