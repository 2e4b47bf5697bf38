package lidarr

import (
	"context"
	"fmt"
	"time"

	"github.com/franz/music-reconciler/internal/util"
)

// SettleDelay is how long to wait after a metadata refresh before re-querying
// the album list; the refresh runs asynchronously on the target.
const SettleDelay = 3 * time.Second

// Outcome is the result of one reconciliation attempt for a single album
type Outcome int

const (
	// OutcomePending means the attempt did not complete; the item stays
	// eligible for a later retry
	OutcomePending Outcome = iota

	// OutcomeSynced means the album is monitored and searched, already has
	// files, or needs no further action
	OutcomeSynced
)

func (o Outcome) String() string {
	if o == OutcomeSynced {
		return "synced"
	}
	return "pending"
}

// Reconciler walks one album through the target system's state machine:
// ensure the artist exists, ensure the album is visible, monitored, and
// searched (or already downloaded).
type Reconciler struct {
	client      *Client
	cfg         *util.TargetConfig
	settleDelay time.Duration
}

// NewReconciler creates a Reconciler over a client
func NewReconciler(client *Client, cfg *util.TargetConfig) *Reconciler {
	return &Reconciler{
		client:      client,
		cfg:         cfg,
		settleDelay: SettleDelay,
	}
}

// Ensure drives one resolved album to "monitored and searched, or already
// complete". Errors are logged by the caller; any error implies
// OutcomePending and never aborts the surrounding batch.
func (r *Reconciler) Ensure(ctx context.Context, artistMBID, rgMBID, artistName string) (Outcome, error) {
	// Connectivity gate: if the target is down, defer the whole item
	if err := r.client.Ping(ctx); err != nil {
		util.WarnLog("Lidarr: unreachable, deferring '%s': %v", artistName, err)
		return OutcomePending, nil
	}

	artist, err := r.ensureArtist(ctx, artistMBID, artistName)
	if err != nil {
		return OutcomePending, err
	}

	return r.ensureAlbum(ctx, artist, rgMBID)
}

// ensureArtist looks up the artist by canonical ID, creating it if absent
func (r *Reconciler) ensureArtist(ctx context.Context, mbid, name string) (*Artist, error) {
	artist, err := r.client.ArtistByMBID(ctx, mbid)
	if err != nil {
		return nil, fmt.Errorf("artist lookup failed: %w", err)
	}
	if artist != nil {
		return artist, nil
	}

	util.InfoLog("Lidarr: adding artist '%s' (%s)", name, mbid)
	created, err := r.client.AddArtist(ctx, mbid, name, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("artist creation failed: %w", err)
	}
	return created, nil
}

// ensureAlbum makes the album visible, monitored, and searched
func (r *Reconciler) ensureAlbum(ctx context.Context, artist *Artist, rgMBID string) (Outcome, error) {
	album, err := r.client.AlbumByReleaseGroup(ctx, artist.ID, rgMBID)
	if err != nil {
		return OutcomePending, fmt.Errorf("album lookup failed: %w", err)
	}

	if album != nil {
		return r.monitorAndSearch(ctx, artist, album)
	}

	// Not listed yet: refresh the artist's metadata, give the target time
	// to settle, then look once more
	util.InfoLog("Lidarr: album %s not listed under '%s', refreshing", rgMBID, artist.ArtistName)
	if err := r.client.RefreshArtist(ctx, artist.ID); err != nil {
		return OutcomePending, fmt.Errorf("artist refresh failed: %w", err)
	}

	select {
	case <-time.After(r.settleDelay):
	case <-ctx.Done():
		return OutcomePending, ctx.Err()
	}

	album, err = r.client.AlbumByReleaseGroup(ctx, artist.ID, rgMBID)
	if err != nil {
		return OutcomePending, fmt.Errorf("album re-query failed: %w", err)
	}
	if album == nil {
		// The target's own catalog may not list the release yet
		util.InfoLog("Lidarr: album %s still not listed, will retry later", rgMBID)
		return OutcomePending, nil
	}

	return r.monitorAndSearch(ctx, artist, album)
}

// monitorAndSearch takes a visible album to its final state
func (r *Reconciler) monitorAndSearch(ctx context.Context, artist *Artist, album *Album) (Outcome, error) {
	if album.HasFiles() {
		util.DebugLog("Lidarr: '%s' already has files, nothing to do", album.Title)
		return OutcomeSynced, nil
	}

	if !album.Monitored {
		if err := r.client.SetAlbumMonitored(ctx, album.ID, true); err != nil {
			return OutcomePending, fmt.Errorf("failed to monitor album: %w", err)
		}
		util.InfoLog("Lidarr: monitoring '%s' by '%s'", album.Title, artist.ArtistName)
	}

	if err := r.client.SearchAlbum(ctx, album.ID); err != nil {
		return OutcomePending, fmt.Errorf("failed to queue search: %w", err)
	}
	util.InfoLog("Lidarr: search queued for '%s' by '%s'", album.Title, artist.ArtistName)

	return OutcomeSynced, nil
}
