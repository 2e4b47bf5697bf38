// Package lidarr drives the target management system: it ensures resolved
// albums exist, are monitored, and have a search queued.
package lidarr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/franz/music-reconciler/internal/util"
)

// RequestTimeout bounds a single request attempt; retries are on top of this
const RequestTimeout = 10 * time.Second

// Client is a thin wrapper over the target system's v1 API.
// Every call is retried with exponential backoff on transient failures.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      *util.RetryConfig
}

// NewClient creates a client for the given base URL and API key
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: RequestTimeout,
		},
		retry: util.DefaultRetryConfig(),
	}
}

// Artist is the subset of the artist resource the reconciler needs
type Artist struct {
	ID               int    `json:"id"`
	ArtistName       string `json:"artistName"`
	ForeignArtistID  string `json:"foreignArtistId"`
	Monitored        bool   `json:"monitored"`
	RootFolderPath   string `json:"rootFolderPath,omitempty"`
	QualityProfileID int    `json:"qualityProfileId,omitempty"`
	MetadataProfileID int   `json:"metadataProfileId,omitempty"`
}

// addArtistRequest is the creation payload. Artists are always created
// monitored but without an immediate missing-album search; searching is the
// reconciler's decision per album.
type addArtistRequest struct {
	ArtistName        string          `json:"artistName"`
	ForeignArtistID   string          `json:"foreignArtistId"`
	Monitored         bool            `json:"monitored"`
	RootFolderPath    string          `json:"rootFolderPath"`
	QualityProfileID  int             `json:"qualityProfileId"`
	MetadataProfileID int             `json:"metadataProfileId"`
	AddOptions        artistAddOptions `json:"addOptions"`
}

type artistAddOptions struct {
	Monitor                string `json:"monitor"`
	SearchForMissingAlbums bool   `json:"searchForMissingAlbums"`
}

// Album is the subset of the album resource the reconciler needs
type Album struct {
	ID             int         `json:"id"`
	Title          string      `json:"title"`
	ForeignAlbumID string      `json:"foreignAlbumId"`
	Monitored      bool        `json:"monitored"`
	Statistics     *Statistics `json:"statistics"`
	Media          []struct {
		Tracks []Track `json:"tracks"`
	} `json:"media,omitempty"`
	Tracks []Track `json:"tracks,omitempty"`
}

// Statistics summarizes track/file counts for an album
type Statistics struct {
	TrackCount      int     `json:"trackCount"`
	TrackFileCount  int     `json:"trackFileCount"`
	PercentOfTracks float64 `json:"percentOfTracks"`
}

// Track is a single track with its downloaded-file flag
type Track struct {
	ID      int  `json:"id"`
	HasFile bool `json:"hasFile"`
}

// HasFiles reports whether the album already has downloaded content:
// any track with a file, else a positive file count, else a fully
// accounted-for track list.
func (a *Album) HasFiles() bool {
	for _, t := range a.Tracks {
		if t.HasFile {
			return true
		}
	}
	for _, m := range a.Media {
		for _, t := range m.Tracks {
			if t.HasFile {
				return true
			}
		}
	}

	if a.Statistics == nil {
		return false
	}
	if a.Statistics.TrackFileCount > 0 {
		return true
	}
	return a.Statistics.TrackCount > 0 && a.Statistics.PercentOfTracks >= 100
}

// Ping probes the status endpoint to check connectivity.
// No retry here: an unreachable target defers the whole item, it does not
// burn the backoff budget.
func (c *Client) Ping(ctx context.Context) error {
	var status struct {
		Version string `json:"version"`
	}
	if err := c.doOnce(ctx, http.MethodGet, "/api/v1/system/status", nil, &status); err != nil {
		return fmt.Errorf("%w: %v", util.ErrUnavailable, err)
	}
	return nil
}

// ArtistByMBID looks up an artist by its canonical MusicBrainz ID.
// Returns (nil, nil) when the artist is not present.
func (c *Client) ArtistByMBID(ctx context.Context, mbid string) (*Artist, error) {
	var artists []Artist
	path := "/api/v1/artist?mbId=" + url.QueryEscape(mbid)
	if err := c.do(ctx, http.MethodGet, path, nil, &artists, "lookup artist"); err != nil {
		return nil, err
	}

	for i := range artists {
		if artists[i].ForeignArtistID == mbid {
			return &artists[i], nil
		}
	}
	return nil, nil
}

// AddArtist creates a monitored artist with the configured profiles
func (c *Client) AddArtist(ctx context.Context, mbid, name string, cfg *util.TargetConfig) (*Artist, error) {
	req := addArtistRequest{
		ArtistName:        name,
		ForeignArtistID:   mbid,
		Monitored:         true,
		RootFolderPath:    cfg.RootFolder,
		QualityProfileID:  cfg.QualityProfileID,
		MetadataProfileID: cfg.MetadataProfileID,
		AddOptions: artistAddOptions{
			Monitor:                "all",
			SearchForMissingAlbums: false,
		},
	}

	var created Artist
	if err := c.do(ctx, http.MethodPost, "/api/v1/artist", req, &created, "add artist"); err != nil {
		return nil, err
	}
	return &created, nil
}

// AlbumByReleaseGroup finds the album with the given release-group ID under
// an artist. Returns (nil, nil) when the album is not listed.
func (c *Client) AlbumByReleaseGroup(ctx context.Context, artistID int, rgMBID string) (*Album, error) {
	var albums []Album
	path := fmt.Sprintf("/api/v1/album?artistId=%d", artistID)
	if err := c.do(ctx, http.MethodGet, path, nil, &albums, "list albums"); err != nil {
		return nil, err
	}

	for i := range albums {
		if albums[i].ForeignAlbumID == rgMBID {
			return &albums[i], nil
		}
	}
	return nil, nil
}

// SetAlbumMonitored flips the monitored flag on a set of albums
func (c *Client) SetAlbumMonitored(ctx context.Context, albumID int, monitored bool) error {
	req := struct {
		AlbumIDs  []int `json:"albumIds"`
		Monitored bool  `json:"monitored"`
	}{
		AlbumIDs:  []int{albumID},
		Monitored: monitored,
	}
	return c.do(ctx, http.MethodPut, "/api/v1/album/monitor", req, nil, "monitor album")
}

// RefreshArtist queues a metadata refresh for an artist
func (c *Client) RefreshArtist(ctx context.Context, artistID int) error {
	req := struct {
		Name     string `json:"name"`
		ArtistID int    `json:"artistId"`
	}{
		Name:     "RefreshArtist",
		ArtistID: artistID,
	}
	return c.do(ctx, http.MethodPost, "/api/v1/command", req, nil, "refresh artist")
}

// SearchAlbum queues a search for an album
func (c *Client) SearchAlbum(ctx context.Context, albumID int) error {
	req := struct {
		Name     string `json:"name"`
		AlbumIDs []int  `json:"albumIds"`
	}{
		Name:     "AlbumSearch",
		AlbumIDs: []int{albumID},
	}
	return c.do(ctx, http.MethodPost, "/api/v1/command", req, nil, "search album")
}

// do issues a request with retry/backoff on transient failures
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}, name string) error {
	return util.Retry(c.retry, func() error {
		return c.doOnce(ctx, method, path, body, out)
	}, name)
}

// doOnce issues a single request attempt
func (c *Client) doOnce(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	urlStr := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return &util.HTTPError{StatusCode: resp.StatusCode, URL: urlStr}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
