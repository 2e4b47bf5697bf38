package lidarr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/franz/music-reconciler/internal/util"
)

func testTargetConfig() *util.TargetConfig {
	return &util.TargetConfig{
		BaseURL:           "unused",
		APIKey:            "test-key",
		RootFolder:        "/music",
		QualityProfileID:  1,
		MetadataProfileID: 1,
	}
}

// fakeTarget is a scriptable stand-in for the target system's API
type fakeTarget struct {
	mu       sync.Mutex
	statusOK bool

	artists []Artist
	albums  map[int][]Album // keyed by artist ID

	// albums made visible only after a RefreshArtist command
	afterRefresh map[int][]Album

	commands  []string
	monitored []int
	added     []string

	failAddArtist bool
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{
		statusOK:     true,
		albums:       make(map[int][]Album),
		afterRefresh: make(map[int][]Album),
	}
}

func (f *fakeTarget) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/system/status", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.statusOK {
			http.Error(w, "down", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"version": "2.0.0"})
	})

	mux.HandleFunc("/api/v1/artist", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Header.Get("X-Api-Key") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		switch r.Method {
		case http.MethodGet:
			mbid := r.URL.Query().Get("mbId")
			var out []Artist
			for _, a := range f.artists {
				if mbid == "" || a.ForeignArtistID == mbid {
					out = append(out, a)
				}
			}
			json.NewEncoder(w).Encode(out)
		case http.MethodPost:
			if f.failAddArtist {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			var req addArtistRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad add artist payload: %v", err)
			}
			if req.AddOptions.SearchForMissingAlbums {
				t.Error("artist creation must not trigger a missing-album search")
			}
			if !req.Monitored {
				t.Error("created artists must be monitored")
			}
			created := Artist{
				ID:              len(f.artists) + 1,
				ArtistName:      req.ArtistName,
				ForeignArtistID: req.ForeignArtistID,
				Monitored:       true,
			}
			f.artists = append(f.artists, created)
			f.added = append(f.added, req.ForeignArtistID)
			json.NewEncoder(w).Encode(created)
		}
	})

	mux.HandleFunc("/api/v1/album", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		artistID, err := strconv.Atoi(r.URL.Query().Get("artistId"))
		if err != nil {
			http.Error(w, "bad artistId", http.StatusBadRequest)
			return
		}
		albums := f.albums[artistID]
		if albums == nil {
			albums = []Album{}
		}
		json.NewEncoder(w).Encode(albums)
	})

	mux.HandleFunc("/api/v1/album/monitor", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var req struct {
			AlbumIDs  []int `json:"albumIds"`
			Monitored bool  `json:"monitored"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.monitored = append(f.monitored, req.AlbumIDs...)
		for artistID, albums := range f.albums {
			for i := range albums {
				for _, id := range req.AlbumIDs {
					if albums[i].ID == id {
						albums[i].Monitored = req.Monitored
					}
				}
			}
			f.albums[artistID] = albums
		}
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("/api/v1/command", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var req struct {
			Name     string `json:"name"`
			ArtistID int    `json:"artistId"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		f.commands = append(f.commands, req.Name)
		if req.Name == "RefreshArtist" {
			if extra, ok := f.afterRefresh[req.ArtistID]; ok {
				f.albums[req.ArtistID] = append(f.albums[req.ArtistID], extra...)
				delete(f.afterRefresh, req.ArtistID)
			}
		}
		w.WriteHeader(http.StatusCreated)
	})

	return mux
}

func newTestReconciler(t *testing.T, f *fakeTarget) (*Reconciler, *httptest.Server) {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, "test-key")
	client.retry = &util.RetryConfig{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}

	r := NewReconciler(client, testTargetConfig())
	r.settleDelay = time.Millisecond
	return r, srv
}

func countCommands(f *fakeTarget, name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.commands {
		if c == name {
			n++
		}
	}
	return n
}

func TestHasFiles(t *testing.T) {
	tests := []struct {
		name     string
		album    Album
		expected bool
	}{
		{
			"track with file flag",
			Album{Tracks: []Track{{HasFile: false}, {HasFile: true}}},
			true,
		},
		{
			"positive file count",
			Album{Statistics: &Statistics{TrackCount: 10, TrackFileCount: 3}},
			true,
		},
		{
			"fully accounted tracks",
			Album{Statistics: &Statistics{TrackCount: 12, TrackFileCount: 0, PercentOfTracks: 100}},
			true,
		},
		{
			"no files despite track count",
			Album{Statistics: &Statistics{TrackCount: 12, TrackFileCount: 0, PercentOfTracks: 50}},
			false,
		},
		{
			"no statistics at all",
			Album{},
			false,
		},
		{
			"zero tracks",
			Album{Statistics: &Statistics{TrackCount: 0, PercentOfTracks: 100}},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.album.HasFiles(); got != tt.expected {
				t.Errorf("HasFiles() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEnsureTargetUnreachable(t *testing.T) {
	f := newFakeTarget()
	f.statusOK = false
	r, _ := newTestReconciler(t, f)

	outcome, err := r.Ensure(context.Background(), "mbid-a", "rg-1", "Artist")
	if err != nil {
		t.Fatalf("unreachable target must not error: %v", err)
	}
	if outcome != OutcomePending {
		t.Errorf("expected pending, got %v", outcome)
	}
	if len(f.commands) != 0 {
		t.Errorf("no commands expected when target is down, got %v", f.commands)
	}
}

func TestEnsureAlbumAlreadyDownloaded(t *testing.T) {
	f := newFakeTarget()
	f.artists = []Artist{{ID: 1, ArtistName: "Artist", ForeignArtistID: "mbid-a", Monitored: true}}
	f.albums[1] = []Album{{
		ID: 10, Title: "Album", ForeignAlbumID: "rg-1", Monitored: true,
		Statistics: &Statistics{TrackCount: 10, TrackFileCount: 10, PercentOfTracks: 100},
	}}
	r, _ := newTestReconciler(t, f)

	outcome, err := r.Ensure(context.Background(), "mbid-a", "rg-1", "Artist")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if outcome != OutcomeSynced {
		t.Errorf("expected synced, got %v", outcome)
	}
	if len(f.commands) != 0 || len(f.monitored) != 0 {
		t.Error("downloaded album must not trigger monitor or search")
	}
}

func TestEnsureUnmonitoredAlbumGetsMonitoredAndSearched(t *testing.T) {
	f := newFakeTarget()
	f.artists = []Artist{{ID: 1, ArtistName: "Artist", ForeignArtistID: "mbid-a", Monitored: true}}
	f.albums[1] = []Album{{
		ID: 10, Title: "Album", ForeignAlbumID: "rg-1", Monitored: false,
		Statistics: &Statistics{TrackCount: 10},
	}}
	r, _ := newTestReconciler(t, f)

	outcome, err := r.Ensure(context.Background(), "mbid-a", "rg-1", "Artist")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if outcome != OutcomeSynced {
		t.Errorf("expected synced, got %v", outcome)
	}
	if len(f.monitored) != 1 || f.monitored[0] != 10 {
		t.Errorf("expected album 10 to be monitored, got %v", f.monitored)
	}
	if countCommands(f, "AlbumSearch") != 1 {
		t.Errorf("expected one AlbumSearch, got %v", f.commands)
	}
}

func TestEnsureMonitoredAlbumOnlySearched(t *testing.T) {
	f := newFakeTarget()
	f.artists = []Artist{{ID: 1, ArtistName: "Artist", ForeignArtistID: "mbid-a", Monitored: true}}
	f.albums[1] = []Album{{
		ID: 10, Title: "Album", ForeignAlbumID: "rg-1", Monitored: true,
		Statistics: &Statistics{TrackCount: 10},
	}}
	r, _ := newTestReconciler(t, f)

	outcome, err := r.Ensure(context.Background(), "mbid-a", "rg-1", "Artist")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if outcome != OutcomeSynced {
		t.Errorf("expected synced, got %v", outcome)
	}
	if len(f.monitored) != 0 {
		t.Error("already-monitored album must not be re-monitored")
	}
	if countCommands(f, "AlbumSearch") != 1 {
		t.Errorf("expected one AlbumSearch, got %v", f.commands)
	}
}

func TestEnsureMissingAlbumAppearsAfterRefresh(t *testing.T) {
	f := newFakeTarget()
	f.artists = []Artist{{ID: 1, ArtistName: "Artist", ForeignArtistID: "mbid-a", Monitored: true}}
	f.afterRefresh[1] = []Album{{
		ID: 10, Title: "Album", ForeignAlbumID: "rg-1", Monitored: false,
		Statistics: &Statistics{TrackCount: 10},
	}}
	r, _ := newTestReconciler(t, f)

	outcome, err := r.Ensure(context.Background(), "mbid-a", "rg-1", "Artist")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if outcome != OutcomeSynced {
		t.Errorf("expected synced after refresh, got %v", outcome)
	}
	if countCommands(f, "RefreshArtist") != 1 {
		t.Errorf("expected one RefreshArtist, got %v", f.commands)
	}
	if len(f.monitored) != 1 {
		t.Errorf("expected album to be monitored after refresh, got %v", f.monitored)
	}
	if countCommands(f, "AlbumSearch") != 1 {
		t.Errorf("expected one AlbumSearch after refresh, got %v", f.commands)
	}
}

func TestEnsureAlbumStillMissingAfterRefresh(t *testing.T) {
	f := newFakeTarget()
	f.artists = []Artist{{ID: 1, ArtistName: "Artist", ForeignArtistID: "mbid-a", Monitored: true}}
	r, _ := newTestReconciler(t, f)

	outcome, err := r.Ensure(context.Background(), "mbid-a", "rg-unknown", "Artist")
	if err != nil {
		t.Fatalf("still-missing album must not error: %v", err)
	}
	if outcome != OutcomePending {
		t.Errorf("expected pending, got %v", outcome)
	}
	if countCommands(f, "RefreshArtist") != 1 {
		t.Errorf("expected one RefreshArtist, got %v", f.commands)
	}
	if countCommands(f, "AlbumSearch") != 0 {
		t.Errorf("no search expected for invisible album, got %v", f.commands)
	}
}

func TestEnsureCreatesMissingArtist(t *testing.T) {
	f := newFakeTarget()
	f.afterRefresh[1] = []Album{{
		ID: 10, Title: "Album", ForeignAlbumID: "rg-1", Monitored: false,
		Statistics: &Statistics{TrackCount: 10},
	}}
	r, _ := newTestReconciler(t, f)

	outcome, err := r.Ensure(context.Background(), "mbid-new", "rg-1", "New Artist")
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}
	if outcome != OutcomeSynced {
		t.Errorf("expected synced, got %v", outcome)
	}
	if len(f.added) != 1 || f.added[0] != "mbid-new" {
		t.Errorf("expected artist mbid-new to be created, got %v", f.added)
	}
}

func TestEnsureArtistCreationFailureIsPending(t *testing.T) {
	f := newFakeTarget()
	f.failAddArtist = true
	r, _ := newTestReconciler(t, f)

	outcome, err := r.Ensure(context.Background(), "mbid-new", "rg-1", "New Artist")
	if err == nil {
		t.Fatal("expected error from failed artist creation")
	}
	if outcome != OutcomePending {
		t.Errorf("expected pending, got %v", outcome)
	}
}
