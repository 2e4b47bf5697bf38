package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/franz/music-reconciler/internal/store"
)

func TestCheckSQLite(t *testing.T) {
	result := checkSQLite()

	if result.error {
		t.Errorf("SQLite check failed: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected version information in message")
	}
}

func TestCheckDatabase_NonExistent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nonexistent.db")

	result := checkDatabase(dbPath)

	// Should not error, the database is created on first run
	if result.error {
		t.Errorf("non-existent database check should not error: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected message about database creation")
	}
}

func TestCheckDatabase_Existing(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	lib := store.NewLibrary()
	lib.Add(&store.TrackedAlbum{
		ItemKey:      store.ItemKey("The Beatles", "Abbey Road"),
		ArtistName:   "The Beatles",
		AlbumTitle:   "Abbey Road",
		DiscoveredAt: time.Now(),
		Baseline:     true,
	})
	if err := db.Save(lib); err != nil {
		t.Fatalf("failed to save test library: %v", err)
	}
	db.Close()

	result := checkDatabase(dbPath)

	if result.error {
		t.Errorf("database check failed: %s", result.message)
	}
	if result.message == "" {
		t.Error("expected message with database info")
	}
}

func TestCheckDatabase_Empty(t *testing.T) {
	result := checkDatabase("")

	if !result.warning {
		t.Error("expected warning for empty database path")
	}
}

func TestCheckArtifactsDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "artifacts")

	result := checkArtifactsDir(dir)

	if result.error {
		t.Errorf("artifacts dir check failed: %s", result.message)
	}

	// Verify directory was created
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("expected directory to be created")
	}
}

func TestCheckSourceBridge_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"artist":"The Beatles","album":"Abbey Road"}],"total":42}`))
	}))
	defer srv.Close()

	result := checkSourceBridge(context.Background(), srv.URL)

	if result.error {
		t.Errorf("source bridge check failed: %s", result.message)
	}
}

func TestCheckSourceBridge_Down(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	result := checkSourceBridge(context.Background(), srv.URL)

	if !result.error {
		t.Error("expected error for unreachable bridge")
	}
}

func TestCheckTarget_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"version":"2.0.0"}`))
	}))
	defer srv.Close()

	result := checkTarget(context.Background(), srv.URL, "test-key")

	if result.error {
		t.Errorf("target check failed: %s", result.message)
	}
}

func TestCheckTarget_BadKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	result := checkTarget(context.Background(), srv.URL, "wrong-key")

	if !result.error {
		t.Error("expected error for rejected API key")
	}
}
