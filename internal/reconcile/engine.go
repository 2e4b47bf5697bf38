// Package reconcile drives one full reconciliation cycle: enumerate the
// source catalog, resolve unseen albums to canonical identifiers, push them
// into the target system, and retry stale pending items.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/franz/music-reconciler/internal/lidarr"
	"github.com/franz/music-reconciler/internal/musicbrainz"
	"github.com/franz/music-reconciler/internal/report"
	"github.com/franz/music-reconciler/internal/roon"
	"github.com/franz/music-reconciler/internal/store"
	"github.com/franz/music-reconciler/internal/util"
)

const (
	// PageSize is the number of items requested per catalog page
	PageSize = 100

	// PageDelay spaces out page fetches to respect the source's rate limits
	PageDelay = 500 * time.Millisecond

	// ItemDelay spaces out per-item resolution attempts to respect the
	// lookup service's rate limits
	ItemDelay = 1200 * time.Millisecond
)

// Resolver maps an artist/title pair to canonical identifiers
type Resolver interface {
	Resolve(ctx context.Context, title, artist string) (*musicbrainz.Match, error)
}

// Target drives the target system's state machine for one resolved album
type Target interface {
	Ensure(ctx context.Context, artistMBID, rgMBID, artistName string) (lidarr.Outcome, error)
}

// Config holds engine configuration
type Config struct {
	Store    *store.Store
	Library  *store.Library
	Browser  roon.Browser
	Resolver Resolver
	Target   Target
	Logger   *report.EventLogger

	// Overridable in tests; zero values take the package defaults
	PageSize  int
	PageDelay time.Duration
	ItemDelay time.Duration

	// Progress draws a progress bar during discovery when on a TTY
	Progress bool
}

// Engine owns the library for the duration of a cycle. Nothing else mutates
// it, so no locking is needed.
type Engine struct {
	store    *store.Store
	lib      *store.Library
	browser  roon.Browser
	resolver Resolver
	target   Target
	logger   *report.EventLogger

	pageSize  int
	pageDelay time.Duration
	itemDelay time.Duration
	progress  bool
}

// New creates an Engine
func New(cfg *Config) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = PageSize
	}
	if cfg.PageDelay == 0 {
		cfg.PageDelay = PageDelay
	}
	if cfg.ItemDelay == 0 {
		cfg.ItemDelay = ItemDelay
	}

	return &Engine{
		store:     cfg.Store,
		lib:       cfg.Library,
		browser:   cfg.Browser,
		resolver:  cfg.Resolver,
		target:    cfg.Target,
		logger:    cfg.Logger,
		pageSize:  cfg.PageSize,
		pageDelay: cfg.PageDelay,
		itemDelay: cfg.ItemDelay,
		progress:  cfg.Progress,
	}
}

// Result summarizes one cycle
type Result struct {
	Total      int // items reported by the source catalog
	Baseline   int // items seeded on the first-ever scan
	Known      int // items already tracked
	Discovered int // newly tracked items
	Resolved   int // items that gained canonical identifiers
	Synced     int // items fully reconciled this cycle
	Pending    int // items left for a later retry
	Abandoned  int // items marked never-retry after unrecoverable errors
	Retried    int // pending items re-attempted this cycle
}

// RunCycle performs one full scan: discovery, processing of new items, the
// retry pass for stale pending items, and a single store save at the end.
// A session-expired or canceled scan aborts without advancing the scan date
// and without saving, so the next cycle repeats the whole pass.
func (e *Engine) RunCycle(ctx context.Context) (*Result, error) {
	result := &Result{}
	firstRun := e.lib.Empty()
	startedAt := time.Now()

	util.InfoLog("Starting scan cycle (first run: %t, %d tracked)", firstRun, len(e.lib.Albums))

	items, err := e.enumerate(ctx)
	if err != nil {
		if errors.Is(err, util.ErrSessionExpired) {
			util.WarnLog("Scan aborted: browse session expired, will retry next cycle")
		}
		return result, err
	}
	result.Total = len(items)

	newAlbums := e.classify(items, firstRun, result)

	if !firstRun && len(newAlbums) > 0 {
		util.InfoLog("Processing %d newly discovered albums", len(newAlbums))
		if err := e.processAll(ctx, newAlbums, result); err != nil {
			return result, err
		}
	}

	if !firstRun {
		// Items already attempted this cycle are excluded; a fresh failure
		// waits until the next cycle at the earliest
		attempted := make(map[string]bool, len(newAlbums))
		for _, rec := range newAlbums {
			attempted[rec.ItemKey] = true
		}
		if err := e.retryPass(ctx, attempted, result); err != nil {
			return result, err
		}
	}

	// The scan date only advances on a completed cycle
	e.lib.LastScanDate = startedAt.Format(store.DateLayout)

	if err := e.store.Save(e.lib); err != nil {
		util.WarnLog("Failed to persist store: %v", err)
	}

	e.logger.LogCycle(result.Discovered, result.Baseline, result.Synced, result.Pending, result.Retried)
	util.SuccessLog("Cycle complete: %d total, %d new, %d baseline, %d synced, %d pending, %d retried",
		result.Total, result.Discovered, result.Baseline, result.Synced, result.Pending, result.Retried)

	return result, nil
}

// RetryOnly runs just the retry pass and saves, without discovery
func (e *Engine) RetryOnly(ctx context.Context) (*Result, error) {
	result := &Result{}

	if err := e.retryPass(ctx, nil, result); err != nil {
		return result, err
	}

	if err := e.store.Save(e.lib); err != nil {
		util.WarnLog("Failed to persist store: %v", err)
	}

	return result, nil
}

// enumerate walks the source catalog's listing in fixed-size pages, in
// strictly ascending offset order, until the reported total is exhausted
func (e *Engine) enumerate(ctx context.Context) ([]roon.Item, error) {
	var all []roon.Item
	var bar *progressbar.ProgressBar

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, total, err := e.browser.Albums(ctx, offset, e.pageSize)
		if err != nil {
			return nil, fmt.Errorf("page fetch at offset %d: %w", offset, err)
		}

		if bar == nil && e.progress && total > 0 && isatty.IsTerminal(os.Stderr.Fd()) && !util.IsQuiet() {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Discovering"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionThrottle(200*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
		}
		if bar != nil {
			bar.Add(len(items))
		}

		all = append(all, items...)
		offset += len(items)

		if offset >= total || len(items) == 0 {
			break
		}

		select {
		case <-time.After(e.pageDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if bar != nil {
		bar.Finish()
	}

	util.InfoLog("Catalog listing complete: %d items", len(all))
	return all, nil
}

// classify sorts enumerated items into baseline seeds, known items, and new
// records. New records are added to the library immediately; they are
// persisted with the rest of the snapshot at cycle end.
func (e *Engine) classify(items []roon.Item, firstRun bool, result *Result) []*store.TrackedAlbum {
	var newAlbums []*store.TrackedAlbum
	now := time.Now()

	for _, item := range items {
		key := store.ItemKey(item.Artist, item.Album)

		if e.lib.Has(key) {
			result.Known++
			continue
		}

		if firstRun {
			// The entire existing library is absorbed without resolution;
			// seeding it downstream would be a resolution storm
			e.lib.Add(&store.TrackedAlbum{
				ItemKey:      key,
				ArtistName:   item.Artist,
				AlbumTitle:   item.Album,
				DiscoveredAt: now,
				Baseline:     true,
			})
			e.logger.LogBaseline(key, item.Artist, item.Album)
			result.Baseline++
			continue
		}

		pending := false
		rec := &store.TrackedAlbum{
			ItemKey:      key,
			ArtistName:   item.Artist,
			AlbumTitle:   item.Album,
			DiscoveredAt: now,
			Synced:       &pending,
		}
		e.lib.Add(rec)
		e.logger.LogDiscover(key, item.Artist, item.Album)
		util.InfoLog("Discovered: %s - %s", item.Artist, item.Album)
		result.Discovered++
		newAlbums = append(newAlbums, rec)
	}

	return newAlbums
}

// processAll runs the resolve/reconcile pipeline over a batch, spacing out
// items to respect the lookup service's rate limits
func (e *Engine) processAll(ctx context.Context, albums []*store.TrackedAlbum, result *Result) error {
	for i, rec := range albums {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.processItem(ctx, rec, result)

		if i < len(albums)-1 {
			select {
			case <-time.After(e.itemDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// processItem takes one record through resolution and reconciliation.
// All failures are contained here; a bad item never aborts the batch.
func (e *Engine) processItem(ctx context.Context, rec *store.TrackedAlbum, result *Result) {
	if !rec.Resolved() {
		m, err := e.resolver.Resolve(ctx, rec.AlbumTitle, rec.ArtistName)
		if err != nil {
			if errors.Is(err, util.ErrMalformedResponse) {
				// Permanently broken input: mark synced so the retry gate
				// never picks it up again
				done := true
				rec.Synced = &done
				e.logger.LogAbandon(rec.ItemKey, err.Error())
				util.WarnLog("Abandoning '%s': %v", rec.ItemKey, err)
				result.Abandoned++
				return
			}
			util.WarnLog("Resolution error for '%s': %v", rec.ItemKey, err)
		}

		if m == nil {
			pending := false
			rec.Synced = &pending
			e.logger.LogResolve(rec.ItemKey, "", "", 0, false)
			util.DebugLog("No match yet for '%s'", rec.ItemKey)
			result.Pending++
			return
		}

		// Both canonical IDs are set together, never one alone
		rec.ArtistMBID = m.ArtistMBID
		rec.ReleaseGroupMBID = m.ReleaseGroupMBID
		e.logger.LogResolve(rec.ItemKey, m.ArtistMBID, m.ReleaseGroupMBID, m.Score, true)
		result.Resolved++
	}

	outcome, err := e.target.Ensure(ctx, rec.ArtistMBID, rec.ReleaseGroupMBID, rec.ArtistName)
	if err != nil {
		util.WarnLog("Reconciliation error for '%s': %v", rec.ItemKey, err)
	}
	e.logger.LogReconcile(rec.ItemKey, outcome.String(), err)

	synced := outcome == lidarr.OutcomeSynced
	rec.Synced = &synced
	if synced {
		result.Synced++
	} else {
		result.Pending++
	}
}

// retryPass re-attempts every pending record that has cooled down, except
// those whose keys appear in skip
func (e *Engine) retryPass(ctx context.Context, skip map[string]bool, result *Result) error {
	now := time.Now()

	var due []*store.TrackedAlbum
	for _, rec := range e.lib.PendingAlbums() {
		if skip[rec.ItemKey] {
			continue
		}
		if RetryDue(rec, now) {
			due = append(due, rec)
		}
	}

	if len(due) == 0 {
		return nil
	}
	util.InfoLog("Retrying %d pending albums", len(due))

	for i, rec := range due {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.logger.LogRetry(rec.ItemKey, daysSince(rec.LastRetryAt, now))
		retryTime := time.Now()
		rec.LastRetryAt = &retryTime
		result.Retried++

		e.processItem(ctx, rec, result)

		if i < len(due)-1 {
			select {
			case <-time.After(e.itemDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return nil
}
