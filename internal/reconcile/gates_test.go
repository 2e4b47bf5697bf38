package reconcile

import (
	"testing"
	"time"

	"github.com/franz/music-reconciler/internal/store"
)

func TestScanDue(t *testing.T) {
	now := time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name         string
		lastScanDate string
		due          bool
	}{
		{"never scanned", "", true},
		{"scanned today", "2026-08-15", false},
		{"scanned yesterday", "2026-08-14", true},
		{"scanned last month", "2026-07-15", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScanDue(tt.lastScanDate, now); got != tt.due {
				t.Errorf("ScanDue(%q) = %v, want %v", tt.lastScanDate, got, tt.due)
			}
		})
	}
}

func TestRetryDue(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	pending := false
	synced := true

	sixDaysAgo := now.Add(-6 * 24 * time.Hour)
	exactlySevenDaysAgo := now.Add(-RetryCoolDown)
	eightDaysAgo := now.Add(-8 * 24 * time.Hour)

	tests := []struct {
		name string
		rec  store.TrackedAlbum
		due  bool
	}{
		{
			"baseline entry never eligible",
			store.TrackedAlbum{Baseline: true},
			false,
		},
		{
			"synced record never eligible",
			store.TrackedAlbum{Synced: &synced, LastRetryAt: &eightDaysAgo},
			false,
		},
		{
			"pending, never retried",
			store.TrackedAlbum{Synced: &pending},
			true,
		},
		{
			"pending, retried 6 days ago",
			store.TrackedAlbum{Synced: &pending, LastRetryAt: &sixDaysAgo},
			false,
		},
		{
			"pending, retried exactly 7 days ago",
			store.TrackedAlbum{Synced: &pending, LastRetryAt: &exactlySevenDaysAgo},
			true,
		},
		{
			"pending, retried 8 days ago",
			store.TrackedAlbum{Synced: &pending, LastRetryAt: &eightDaysAgo},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RetryDue(&tt.rec, now); got != tt.due {
				t.Errorf("RetryDue() = %v, want %v", got, tt.due)
			}
		})
	}
}
