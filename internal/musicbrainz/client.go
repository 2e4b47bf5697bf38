// Package musicbrainz resolves artist/title pairs to canonical MusicBrainz
// identifiers via the release search endpoint.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/franz/music-reconciler/internal/match"
	"github.com/franz/music-reconciler/internal/util"
)

const (
	// DefaultBaseURL is the MusicBrainz API base URL
	DefaultBaseURL = "https://musicbrainz.org/ws/2"

	// UserAgent identifies this application to MusicBrainz
	// MusicBrainz requires a proper user agent
	UserAgent = "music-reconciler/1.0 (https://github.com/franz/music-reconciler)"

	// RateLimit is the maximum request rate (MusicBrainz requires 1 req/sec)
	RateLimit = 1 * time.Second

	// RequestTimeout bounds a single lookup request
	RequestTimeout = 8 * time.Second
)

// luceneSpecials are the characters reserved by the search query grammar
const luceneSpecials = `+-&|!(){}[]^"~*?:\/`

// Client queries the MusicBrainz search API with rate limiting
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	rateLimiter *time.Ticker
}

// NewClient creates a client against the public MusicBrainz API
func NewClient() *Client {
	return newClient(DefaultBaseURL, RateLimit)
}

// newClient is the configurable constructor used by tests
func newClient(baseURL string, rate time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: RequestTimeout,
		},
		baseURL:     baseURL,
		userAgent:   UserAgent,
		rateLimiter: time.NewTicker(rate),
	}
}

// Close releases resources used by the client
func (c *Client) Close() {
	if c.rateLimiter != nil {
		c.rateLimiter.Stop()
	}
}

// Match holds the canonical identifiers of an accepted candidate
type Match struct {
	ArtistMBID       string
	ReleaseGroupMBID string
	ArtistName       string
	Title            string
	Score            int
}

// releaseSearchResult mirrors the fields of the release search response that
// the resolver consumes
type releaseSearchResult struct {
	Releases []release `json:"releases"`
	Count    int       `json:"count"`
}

type release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	ArtistCredit []artistCredit `json:"artist-credit"`
	ReleaseGroup *releaseGroup  `json:"release-group"`
}

type artistCredit struct {
	Name   string `json:"name"`
	Artist *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

type releaseGroup struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PrimaryType string `json:"primary-type"`
}

// EscapeQuery escapes every character reserved by the search query grammar
func EscapeQuery(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(luceneSpecials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// buildQuery assembles the free-text search query for a title/artist pair
func buildQuery(title, artist string) string {
	return fmt.Sprintf("release:%s AND artist:%s", EscapeQuery(title), EscapeQuery(artist))
}

// Resolve maps an artist/title pair to canonical identifiers.
//
// A nil Match with a nil error means "not found yet": transport errors,
// timeouts, empty result sets, and candidates below the acceptance threshold
// all land here and are retried on a later cycle. ErrMalformedResponse is
// returned only for undecodable bodies, so the caller can stop retrying
// permanently broken input.
func (c *Client) Resolve(ctx context.Context, title, artist string) (*Match, error) {
	if title == "" || artist == "" {
		return nil, nil
	}

	c.waitForRateLimit(ctx)

	query := url.QueryEscape(buildQuery(title, artist))
	urlStr := fmt.Sprintf("%s/release/?query=%s&fmt=json&limit=10", c.baseURL, query)

	util.DebugLog("MusicBrainz: searching release '%s' by '%s'", title, artist)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, nil
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		util.WarnLog("MusicBrainz: request failed for '%s' / '%s': %v", title, artist, err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		util.WarnLog("MusicBrainz: status %d for '%s' / '%s'", resp.StatusCode, title, artist)
		return nil, nil
	}

	var result releaseSearchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		util.WarnLog("MusicBrainz: undecodable response for '%s' / '%s': %v", title, artist, err)
		return nil, fmt.Errorf("%w: %v", util.ErrMalformedResponse, err)
	}

	return c.selectBest(title, artist, result.Releases), nil
}

// selectBest scores every candidate and returns the strongest acceptable one
func (c *Client) selectBest(title, artist string, releases []release) *Match {
	var best *release
	bestScore := -1

	for i := range releases {
		cand := &releases[i]
		candArtist := cand.creditedArtist()
		score := match.Score(title, artist, cand.Title, candArtist)
		if score > bestScore {
			bestScore = score
			best = cand
		}
	}

	if best == nil || !match.Accepted(bestScore) {
		util.DebugLog("MusicBrainz: no acceptable candidate for '%s' / '%s' (best score %d)",
			title, artist, bestScore)
		return nil
	}

	// Both canonical IDs are required downstream; a high-scoring candidate
	// without them is still a miss
	if best.ReleaseGroup == nil || best.ReleaseGroup.ID == "" {
		util.DebugLog("MusicBrainz: best candidate '%s' has no release group", best.Title)
		return nil
	}
	if len(best.ArtistCredit) == 0 || best.ArtistCredit[0].Artist == nil || best.ArtistCredit[0].Artist.ID == "" {
		util.DebugLog("MusicBrainz: best candidate '%s' has no artist credit", best.Title)
		return nil
	}

	m := &Match{
		ArtistMBID:       best.ArtistCredit[0].Artist.ID,
		ReleaseGroupMBID: best.ReleaseGroup.ID,
		ArtistName:       best.ArtistCredit[0].Name,
		Title:            best.Title,
		Score:            bestScore,
	}
	util.DebugLog("MusicBrainz: matched '%s' / '%s' -> rg %s, artist %s (score %d)",
		title, artist, m.ReleaseGroupMBID, m.ArtistMBID, m.Score)
	return m
}

// creditedArtist returns the first credited artist name, or empty
func (r *release) creditedArtist() string {
	if len(r.ArtistCredit) == 0 {
		return ""
	}
	return r.ArtistCredit[0].Name
}

// waitForRateLimit blocks until the next request slot or context cancellation
func (c *Client) waitForRateLimit(ctx context.Context) {
	select {
	case <-c.rateLimiter.C:
	case <-ctx.Done():
	}
}
