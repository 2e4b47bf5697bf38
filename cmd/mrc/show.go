package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/franz/music-reconciler/internal/reconcile"
	"github.com/franz/music-reconciler/internal/store"
	"github.com/franz/music-reconciler/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the tracked album state",
	Long: `Display the tracking database in a human-readable format.

Shows counts per state (baseline, synced, pending, unresolved) and
lists pending albums with their retry eligibility.

Use this to see what the next cycle will work on.`,
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)

	showCmd.Flags().Bool("pending-only", false, "show only pending albums")
	showCmd.Flags().Bool("all", false, "list every tracked album")
}

func runShow(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	pendingOnly, _ := cmd.Flags().GetBool("pending-only")
	listAll, _ := cmd.Flags().GetBool("all")

	dbPath := viper.GetString("db")
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	lib := db.Load()
	if lib.Empty() {
		util.WarnLog("No tracked albums yet. Run 'mrc scan' first.")
		return nil
	}

	albums := sortedAlbums(lib)
	now := time.Now()

	var baseline, synced, pending, resolved int
	for _, a := range albums {
		switch {
		case a.Baseline:
			baseline++
		case a.Synced != nil && *a.Synced:
			synced++
		default:
			pending++
		}
		if a.Resolved() {
			resolved++
		}
	}

	if !pendingOnly {
		util.InfoLog("=== Tracked Albums ===")
		util.InfoLog("Database: %s", dbPath)
		util.InfoLog("Last scan: %s", lastScanLabel(lib))
		util.InfoLog("")
		util.InfoLog("Total: %d", len(albums))
		util.InfoLog("  Baseline: %d", baseline)
		util.InfoLog("  Synced: %d", synced)
		util.InfoLog("  Pending: %d", pending)
		util.InfoLog("  With canonical IDs: %d", resolved)
		fmt.Println()
	}

	shown := 0
	for _, a := range albums {
		isPending := a.Pending()
		if pendingOnly && !isPending {
			continue
		}
		if !listAll && !pendingOnly && !isPending {
			continue
		}
		shown++

		fmt.Printf("  %s %s - %s\n", stateMark(a), a.ArtistName, a.AlbumTitle)
		if a.Resolved() {
			fmt.Printf("     Artist MBID:  %s\n", a.ArtistMBID)
			fmt.Printf("     Release group: %s\n", a.ReleaseGroupMBID)
		}
		if isPending {
			if reconcile.RetryDue(a, now) {
				fmt.Printf("     Retry: due now\n")
			} else {
				next := a.LastRetryAt.Add(reconcile.RetryCoolDown)
				fmt.Printf("     Retry: in %s\n", time.Until(next).Round(time.Hour))
			}
		}
	}

	if shown == 0 && (pendingOnly || !listAll) {
		util.SuccessLog("Nothing pending")
	}
	if !listAll && !pendingOnly {
		fmt.Println()
		util.InfoLog("To list every tracked album: mrc show --all")
	}

	return nil
}

// sortedAlbums returns the library in a stable artist/title order
func sortedAlbums(lib *store.Library) []*store.TrackedAlbum {
	albums := make([]*store.TrackedAlbum, 0, len(lib.Albums))
	for _, a := range lib.Albums {
		albums = append(albums, a)
	}
	sort.Slice(albums, func(i, j int) bool {
		return albums[i].ItemKey < albums[j].ItemKey
	})
	return albums
}

func stateMark(a *store.TrackedAlbum) string {
	switch {
	case a.Baseline:
		return "○"
	case a.Synced != nil && *a.Synced:
		return "✓"
	default:
		return "…"
	}
}
