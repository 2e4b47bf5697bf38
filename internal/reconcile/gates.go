package reconcile

import (
	"time"

	"github.com/franz/music-reconciler/internal/store"
)

// RetryCoolDown is the minimum time between retry attempts for one item
const RetryCoolDown = 7 * 24 * time.Hour

// ScanDue reports whether a full discovery pass should run: at most one per
// calendar day, and only a completed scan consumes the day
func ScanDue(lastScanDate string, now time.Time) bool {
	return lastScanDate != now.Format(store.DateLayout)
}

// RetryDue reports whether a pending record is eligible for another attempt.
// Baseline entries and synced records are never eligible; a record that has
// never been retried is immediately eligible.
func RetryDue(a *store.TrackedAlbum, now time.Time) bool {
	if !a.Pending() {
		return false
	}
	if a.LastRetryAt == nil {
		return true
	}
	return now.Sub(*a.LastRetryAt) >= RetryCoolDown
}

// daysSince is used for event logging only
func daysSince(t *time.Time, now time.Time) float64 {
	if t == nil {
		return -1
	}
	return now.Sub(*t).Hours() / 24
}
