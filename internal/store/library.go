package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/franz/music-reconciler/internal/util"
)

// DateLayout is the calendar-date format used for the scan cursor
const DateLayout = "2006-01-02"

// TrackedAlbum is one tracked item: an artist/title pair observed in the
// source catalog, with its resolution and reconciliation state
type TrackedAlbum struct {
	ItemKey          string
	ArtistName       string
	AlbumTitle       string
	ArtistMBID       string
	ReleaseGroupMBID string
	DiscoveredAt     time.Time
	Baseline         bool
	Synced           *bool      // nil only for baseline entries
	LastRetryAt      *time.Time // nil until the item is retried after discovery
}

// Resolved reports whether both canonical identifiers are present.
// They are set together or not at all.
func (a *TrackedAlbum) Resolved() bool {
	return a.ArtistMBID != "" && a.ReleaseGroupMBID != ""
}

// Pending reports whether this record still needs reconciliation work
func (a *TrackedAlbum) Pending() bool {
	return !a.Baseline && a.Synced != nil && !*a.Synced
}

// ItemKey derives the stable composite key for an artist/title pair
func ItemKey(artist, album string) string {
	return artist + "|" + album
}

// Library is the in-memory authoritative copy of the store. It has a single
// owner (the cycle engine); nothing else mutates it.
type Library struct {
	Albums map[string]*TrackedAlbum

	// LastScanDate is the calendar date of the last completed scan,
	// empty if no scan has ever completed
	LastScanDate string
}

// NewLibrary returns an empty library
func NewLibrary() *Library {
	return &Library{Albums: make(map[string]*TrackedAlbum)}
}

// Empty reports whether no albums are tracked yet. An empty library at scan
// start triggers first-run baseline seeding.
func (l *Library) Empty() bool {
	return len(l.Albums) == 0
}

// Add inserts a record under its item key
func (l *Library) Add(a *TrackedAlbum) {
	l.Albums[a.ItemKey] = a
}

// Has reports whether an item key is already tracked
func (l *Library) Has(key string) bool {
	_, ok := l.Albums[key]
	return ok
}

// PendingAlbums returns all non-baseline records still awaiting
// reconciliation, in no particular order
func (l *Library) PendingAlbums() []*TrackedAlbum {
	var out []*TrackedAlbum
	for _, a := range l.Albums {
		if a.Pending() {
			out = append(out, a)
		}
	}
	return out
}

// Load reconstructs the library from the database. Any failure is logged and
// yields an empty library; a broken store is never fatal.
func (s *Store) Load() *Library {
	lib := NewLibrary()

	rows, err := s.db.Query(`
		SELECT item_key, artist_name, album_title, artist_mbid, release_group_mbid,
		       discovered_at, baseline, synced, last_retry_at
		FROM tracked_albums
	`)
	if err != nil {
		util.WarnLog("Store: failed to read tracked albums, starting empty: %v", err)
		return NewLibrary()
	}
	defer rows.Close()

	for rows.Next() {
		a := &TrackedAlbum{}
		var baseline int
		var synced sql.NullInt64
		var lastRetry sql.NullTime

		err := rows.Scan(&a.ItemKey, &a.ArtistName, &a.AlbumTitle,
			&a.ArtistMBID, &a.ReleaseGroupMBID,
			&a.DiscoveredAt, &baseline, &synced, &lastRetry)
		if err != nil {
			util.WarnLog("Store: failed to scan row, starting empty: %v", err)
			return NewLibrary()
		}

		a.Baseline = baseline != 0
		if synced.Valid {
			v := synced.Int64 != 0
			a.Synced = &v
		}
		if lastRetry.Valid {
			t := lastRetry.Time
			a.LastRetryAt = &t
		}

		lib.Albums[a.ItemKey] = a
	}
	if err := rows.Err(); err != nil {
		util.WarnLog("Store: failed reading tracked albums, starting empty: %v", err)
		return NewLibrary()
	}

	var date sql.NullString
	err = s.db.QueryRow("SELECT last_scan_date FROM scan_state WHERE id = 1").Scan(&date)
	if err != nil && err != sql.ErrNoRows {
		util.WarnLog("Store: failed to read scan cursor: %v", err)
	}
	if date.Valid {
		lib.LastScanDate = date.String
	}

	return lib
}

// Save writes the full library snapshot in a single transaction. The whole
// mapping is rewritten so the file always holds a consistent snapshot.
// Called once per cycle; failures are the caller's to log, never fatal.
func (s *Store) Save(lib *Library) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM tracked_albums"); err != nil {
		return fmt.Errorf("failed to clear tracked albums: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO tracked_albums
		(item_key, artist_name, album_title, artist_mbid, release_group_mbid,
		 discovered_at, baseline, synced, last_retry_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range lib.Albums {
		baseline := 0
		if a.Baseline {
			baseline = 1
		}
		var synced interface{}
		if a.Synced != nil {
			if *a.Synced {
				synced = 1
			} else {
				synced = 0
			}
		}
		var lastRetry interface{}
		if a.LastRetryAt != nil {
			lastRetry = *a.LastRetryAt
		}

		_, err := stmt.Exec(a.ItemKey, a.ArtistName, a.AlbumTitle,
			a.ArtistMBID, a.ReleaseGroupMBID,
			a.DiscoveredAt, baseline, synced, lastRetry)
		if err != nil {
			return fmt.Errorf("failed to insert %s: %w", a.ItemKey, err)
		}
	}

	if lib.LastScanDate != "" {
		_, err = tx.Exec(`
			INSERT INTO scan_state (id, last_scan_date) VALUES (1, ?)
			ON CONFLICT(id) DO UPDATE SET last_scan_date = excluded.last_scan_date
		`, lib.LastScanDate)
		if err != nil {
			return fmt.Errorf("failed to save scan cursor: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return nil
}
