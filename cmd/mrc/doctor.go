package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/franz/music-reconciler/internal/lidarr"
	"github.com/franz/music-reconciler/internal/roon"
	"github.com/franz/music-reconciler/internal/store"
	"github.com/franz/music-reconciler/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks on the environment and configuration",
	Long: `Run diagnostic checks to ensure mrc can operate correctly.

This command checks:
- Database accessibility and integrity
- SQLite version compatibility
- Source catalog bridge reachability
- Target system reachability and API key
- Artifacts directory writability

Use this command to troubleshoot issues before running mrc operations.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

type checkResult struct {
	name    string
	message string
	error   bool
	warning bool
}

func runDoctor(cmd *cobra.Command, args []string) error {
	applyLogLevel()

	util.InfoLog("=== MRC Doctor - System Diagnostics ===")
	util.InfoLog("")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results := []checkResult{}

	// 1. Check SQLite
	results = append(results, checkSQLite())

	// 2. Check database file
	results = append(results, checkDatabase(viper.GetString("db")))

	// 3. Check artifacts directory
	results = append(results, checkArtifactsDir(util.GetArtifactsDir()))

	// 4. Check source bridge
	if sourceURL, err := util.GetSourceURL(); err != nil {
		results = append(results, checkResult{
			name:    "Source bridge",
			warning: true,
			message: "not configured (set roon.url)",
		})
	} else {
		results = append(results, checkSourceBridge(ctx, sourceURL))
	}

	// 5. Check target system
	if targetCfg, err := util.GetTargetConfig(); err != nil {
		results = append(results, checkResult{
			name:    "Target system",
			warning: true,
			message: fmt.Sprintf("not configured (%v)", err),
		})
	} else {
		results = append(results, checkTarget(ctx, targetCfg.BaseURL, targetCfg.APIKey))
	}

	// Print results
	util.InfoLog("")
	util.InfoLog("=== Diagnostic Results ===")
	util.InfoLog("")

	hasErrors := false
	hasWarnings := false

	for _, r := range results {
		symbol := "✓"
		if r.error {
			symbol = "✗"
			hasErrors = true
		} else if r.warning {
			symbol = "⚠"
			hasWarnings = true
		}

		line := fmt.Sprintf("[%s] %s", symbol, r.name)
		if r.message != "" {
			line += fmt.Sprintf(": %s", r.message)
		}

		if r.error {
			util.ErrorLog("%s", line)
		} else if r.warning {
			util.WarnLog("%s", line)
		} else {
			util.SuccessLog("%s", line)
		}
	}

	util.InfoLog("")
	if hasErrors {
		util.ErrorLog("Some critical checks failed. Resolve errors before running mrc.")
		return fmt.Errorf("system diagnostics failed")
	} else if hasWarnings {
		util.WarnLog("Some checks produced warnings. Review them before proceeding.")
	} else {
		util.SuccessLog("All checks passed! System is ready.")
	}

	return nil
}

// checkSQLite verifies the embedded SQLite engine
func checkSQLite() checkResult {
	version := store.SQLiteVersion()
	if version == "" {
		return checkResult{
			name:    "SQLite",
			error:   true,
			message: "unable to determine version",
		}
	}

	return checkResult{
		name:    "SQLite",
		message: fmt.Sprintf("version %s (built-in)", version),
	}
}

// checkDatabase verifies database file accessibility
func checkDatabase(dbPath string) checkResult {
	if dbPath == "" {
		return checkResult{
			name:    "Database",
			warning: true,
			message: "no database path specified (use --db flag or config)",
		}
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return checkResult{
				name:    "Database",
				message: fmt.Sprintf("%s (will be created on first run)", dbPath),
			}
		}
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot access %s: %v", dbPath, err),
		}
	}

	if !info.Mode().IsRegular() {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("%s is not a regular file", dbPath),
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("cannot open %s: %v", dbPath, err),
		}
	}
	defer db.Close()

	if err := db.CheckIntegrity(); err != nil {
		return checkResult{
			name:    "Database",
			error:   true,
			message: fmt.Sprintf("integrity check failed: %v", err),
		}
	}

	lib := db.Load()
	return checkResult{
		name:    "Database",
		message: fmt.Sprintf("%s (%d tracked albums, last scan: %s)", dbPath, len(lib.Albums), lastScanLabel(lib)),
	}
}

// checkArtifactsDir verifies the event log directory is writable
func checkArtifactsDir(dir string) checkResult {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("cannot create %s: %v", dir, err),
		}
	}

	testFile := filepath.Join(dir, ".mrc_write_test")
	f, err := os.Create(testFile)
	if err != nil {
		return checkResult{
			name:    "Artifacts directory",
			error:   true,
			message: fmt.Sprintf("cannot write to %s: %v", dir, err),
		}
	}
	f.Close()
	os.Remove(testFile)

	return checkResult{
		name:    "Artifacts directory",
		message: fmt.Sprintf("%s (writable)", dir),
	}
}

// checkSourceBridge verifies the source catalog answers a minimal listing
func checkSourceBridge(ctx context.Context, baseURL string) checkResult {
	client := roon.NewBridgeClient(baseURL)

	_, total, err := client.Albums(ctx, 0, 1)
	if err != nil {
		return checkResult{
			name:    "Source bridge",
			error:   true,
			message: fmt.Sprintf("cannot list albums at %s: %v", baseURL, err),
		}
	}

	return checkResult{
		name:    "Source bridge",
		message: fmt.Sprintf("%s (%d albums)", baseURL, total),
	}
}

// checkTarget verifies the target system accepts our API key
func checkTarget(ctx context.Context, baseURL, apiKey string) checkResult {
	client := lidarr.NewClient(baseURL, apiKey)

	if err := client.Ping(ctx); err != nil {
		return checkResult{
			name:    "Target system",
			error:   true,
			message: fmt.Sprintf("cannot reach %s: %v", baseURL, err),
		}
	}

	return checkResult{
		name:    "Target system",
		message: baseURL,
	}
}
