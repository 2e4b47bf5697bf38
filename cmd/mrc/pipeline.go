package main

import (
	"fmt"

	"github.com/franz/music-reconciler/internal/lidarr"
	"github.com/franz/music-reconciler/internal/musicbrainz"
	"github.com/franz/music-reconciler/internal/reconcile"
	"github.com/franz/music-reconciler/internal/report"
	"github.com/franz/music-reconciler/internal/roon"
	"github.com/franz/music-reconciler/internal/store"
	"github.com/franz/music-reconciler/internal/util"
	"github.com/spf13/viper"
)

// pipeline bundles everything a reconciliation command needs
type pipeline struct {
	db       *store.Store
	lib      *store.Library
	browser  roon.Browser
	engine   *reconcile.Engine
	logger   *report.EventLogger
	resolver *musicbrainz.Client
}

// applyLogLevel sets the console log level from the global flags
func applyLogLevel() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

// newPipeline wires the full stack from configuration: the state store, the
// source browser, the lookup client, the target reconciler, and the engine.
// Call close when done.
func newPipeline(progress bool) (*pipeline, error) {
	sourceURL, err := util.GetSourceURL()
	if err != nil {
		return nil, err
	}

	targetCfg, err := util.GetTargetConfig()
	if err != nil {
		return nil, err
	}

	dbPath := viper.GetString("db")
	util.InfoLog("Opening database: %s", dbPath)

	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	lib := db.Load()
	util.InfoLog("Tracking %d albums (last scan: %s)", len(lib.Albums), lastScanLabel(lib))

	logLevel := report.LevelInfo
	if viper.GetBool("quiet") {
		logLevel = report.LevelWarning
	} else if viper.GetBool("verbose") {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger(util.GetArtifactsDir(), logLevel)
	if err != nil {
		util.WarnLog("Failed to create event logger: %v", err)
		logger = report.NullLogger()
	}
	if logger.Path() != "" {
		util.InfoLog("Event log: %s", logger.Path())
	}

	resolver := musicbrainz.NewClient()
	target := lidarr.NewReconciler(lidarr.NewClient(targetCfg.BaseURL, targetCfg.APIKey), targetCfg)
	browser := roon.NewBridgeClient(sourceURL)

	engine := reconcile.New(&reconcile.Config{
		Store:    db,
		Library:  lib,
		Browser:  browser,
		Resolver: resolver,
		Target:   target,
		Logger:   logger,
		Progress: progress,
	})

	return &pipeline{
		db:       db,
		lib:      lib,
		browser:  browser,
		engine:   engine,
		logger:   logger,
		resolver: resolver,
	}, nil
}

func (p *pipeline) close() {
	p.resolver.Close()
	p.logger.Close()
	p.db.Close()
}

func lastScanLabel(lib *store.Library) string {
	if lib.LastScanDate == "" {
		return "never"
	}
	return lib.LastScanDate
}

func printResult(result *reconcile.Result) {
	util.InfoLog("")
	util.SuccessLog("=== Cycle Summary ===")
	util.InfoLog("Catalog items: %d", result.Total)
	if result.Baseline > 0 {
		util.InfoLog("  Baseline seeded: %d", result.Baseline)
	}
	util.InfoLog("  Already tracked: %d", result.Known)
	util.InfoLog("  Newly discovered: %d", result.Discovered)
	if result.Resolved > 0 {
		util.InfoLog("  Resolved: %d", result.Resolved)
	}
	if result.Synced > 0 {
		util.InfoLog("  Synced: %d", result.Synced)
	}
	if result.Pending > 0 {
		util.InfoLog("  Pending: %d", result.Pending)
	}
	if result.Retried > 0 {
		util.InfoLog("  Retried: %d", result.Retried)
	}
	if result.Abandoned > 0 {
		util.WarnLog("  Abandoned: %d", result.Abandoned)
	}
}
