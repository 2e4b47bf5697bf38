package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/franz/music-reconciler/internal/reconcile"
	"github.com/franz/music-reconciler/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// checkInterval is how often the daemon checks whether a scan is due
const checkInterval = time.Hour

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconciler as a long-lived daemon",
	Long: `Run continuously, performing one reconciliation cycle per day.

Every hour the daemon checks whether a cycle has already run today.
If not, it enumerates the source catalog, processes new albums, and
retries stale pending ones. An aborted cycle (expired browse session,
unreachable source) does not count; the daemon tries again on the
next check.

Stop with SIGINT or SIGTERM; an in-flight cycle aborts without saving
partial state.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Duration("interval", checkInterval, "how often to check whether a scan is due")
	viper.BindPFlag("interval", runCmd.Flags().Lookup("interval"))
}

func runDaemon(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := newPipeline(false)
	if err != nil {
		return err
	}
	defer p.close()

	interval := viper.GetDuration("interval")
	if interval <= 0 {
		interval = checkInterval
	}

	util.InfoLog("Daemon started (check interval: %v)", interval)

	// First check happens immediately, then on the ticker
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if reconcile.ScanDue(p.lib.LastScanDate, time.Now()) {
			result, err := p.engine.RunCycle(ctx)
			switch {
			case errors.Is(err, context.Canceled):
				util.InfoLog("Shutting down")
				return nil
			case err != nil:
				util.WarnLog("Cycle failed, will retry: %v", err)
			default:
				printResult(result)
			}
		} else {
			util.DebugLog("Scan already ran today (%s), sleeping", p.lib.LastScanDate)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			util.InfoLog("Shutting down")
			return nil
		}
	}
}
