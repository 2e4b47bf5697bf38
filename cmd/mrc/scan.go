package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/franz/music-reconciler/internal/util"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single reconciliation cycle now",
	Long: `Run one full cycle immediately, regardless of when the last one ran.

This command:
1. Enumerates the source catalog page by page
2. On the first ever run, seeds every album as a baseline entry
3. Resolves newly discovered albums to canonical identifiers
4. Pushes resolved albums into the target system
5. Retries pending albums whose cool-down has passed
6. Saves the updated tracking state

Use --refresh to ask the source bridge for a fresh browse session first.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Bool("refresh", false, "refresh the source browse session before scanning")
	scanCmd.Flags().Bool("no-progress", false, "disable the progress bar")
}

func runScan(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	refresh, _ := cmd.Flags().GetBool("refresh")
	noProgress, _ := cmd.Flags().GetBool("no-progress")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(!noProgress)
	if err != nil {
		return err
	}
	defer p.close()

	if refresh {
		util.InfoLog("Requesting a fresh browse session")
		if err := p.browser.Refresh(ctx); err != nil {
			util.WarnLog("Session refresh failed: %v", err)
		}
	}

	startTime := time.Now()

	result, err := p.engine.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("cycle failed: %w", err)
	}

	printResult(result)
	util.InfoLog("Total time: %v", time.Since(startTime).Round(time.Millisecond))

	return nil
}
