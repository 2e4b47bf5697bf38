package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/franz/music-reconciler/internal/util"
	"github.com/spf13/cobra"
)

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-attempt pending albums without a full catalog scan",
	Long: `Run only the retry pass over tracked albums that are still pending.

Each pending album whose cool-down has passed is resolved (if it has
no canonical identifiers yet) and pushed through the target system
again. Albums retried less than a week ago are skipped.`,
	RunE: runRetry,
}

func init() {
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(false)
	if err != nil {
		return err
	}
	defer p.close()

	pending := p.lib.PendingAlbums()
	if len(pending) == 0 {
		util.InfoLog("Nothing pending, all tracked albums are settled")
		return nil
	}
	util.InfoLog("%d albums pending", len(pending))

	result, err := p.engine.RetryOnly(ctx)
	if err != nil {
		return fmt.Errorf("retry pass failed: %w", err)
	}

	if result.Retried == 0 {
		util.InfoLog("No pending album has cooled down yet")
		return nil
	}

	printResult(result)
	return nil
}
