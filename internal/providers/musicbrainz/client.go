// Package musicbrainz implements the C1/C3 MusicBrainz client: release-group
// type lookups and recording search used by identity resolution and signal
// fetching (spec §4.2 step 3, §4.3). Grounded on the teacher's
// internal/api/musicbrainz client, generalized onto the shared rate-limited
// transport in internal/providers/httpbase.
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"albumscan/internal/providers/httpbase"
)

const (
	baseURL   = "https://musicbrainz.org/ws/2/"
	userAgent = "albumscan/1.0 ( albumscan@example.invalid )"

	// MusicBrainz's rate limit is a hard 1 req/sec (spec §4.1).
	defaultRateLimit = time.Second
	defaultBurst     = 1
	defaultRetries   = 3
	defaultInitial   = 1 * time.Second
	defaultMaxDelay  = 4 * time.Second
	defaultTimeout   = 5 * time.Second
)

// Client wraps httpbase.Client with MusicBrainz's typed operations.
type Client struct {
	base *httpbase.Client
}

// New constructs a MusicBrainz client. MusicBrainz is anonymous and
// identified by User-Agent, so New takes no credentials.
func New(debug bool) *Client {
	return &Client{base: httpbase.New(httpbase.Config{
		Provider:     "musicbrainz",
		BaseURL:      baseURL,
		UserAgent:    userAgent,
		Timeout:      defaultTimeout,
		RateLimit:    defaultRateLimit,
		BurstLimit:   defaultBurst,
		MaxRetries:   defaultRetries,
		InitialDelay: defaultInitial,
		MaxDelay:     defaultMaxDelay,
		Debug:        debug,
	})}
}

// Provider name, for rate-limit/error-reporting.
func (c *Client) Provider() string { return c.base.Provider() }

// ArtistCredit is a MusicBrainz artist-credit entry.
type ArtistCredit struct {
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

// ReleaseGroup is the subset of a MusicBrainz release-group needed by C3/C6:
// its primary type and secondary types (spec §4.3, §4.6).
type ReleaseGroup struct {
	ID              string   `json:"id"`
	PrimaryType     string   `json:"primary-type"`
	SecondaryTypes  []string `json:"secondary-types"`
}

// Release is a MusicBrainz release.
type Release struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Date         string         `json:"date"`
	ArtistCredit []ArtistCredit `json:"artist-credit"`
	ReleaseGroup ReleaseGroup   `json:"release-group"`
}

// Recording is a MusicBrainz recording (track).
type Recording struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Length       int            `json:"length"` // milliseconds
	ArtistCredit []ArtistCredit `json:"artist-credit"`
	Releases     []Release      `json:"releases"`
}

// SearchRecording resolves a recording MBID by artist/album/title (spec §4.2 step 3).
func (c *Client) SearchRecording(ctx context.Context, artist, album, title string) (*Recording, error) {
	query := buildRecordingQuery(artist, album, title)
	path := fmt.Sprintf("recording?query=%s&fmt=json&limit=1", url.QueryEscape(query))

	body, err := c.base.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Recordings []Recording `json:"recordings"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("musicbrainz: unmarshal recording search: %w", err)
	}
	if len(result.Recordings) == 0 {
		return nil, fmt.Errorf("musicbrainz: no recording found for %s - %s", artist, title)
	}
	return &result.Recordings[0], nil
}

// SearchRecordingByISRC resolves a recording by ISRC.
func (c *Client) SearchRecordingByISRC(ctx context.Context, isrc string) (*Recording, error) {
	query := fmt.Sprintf("isrc:%q", isrc)
	path := fmt.Sprintf("recording?query=%s&fmt=json&limit=1", url.QueryEscape(query))

	body, err := c.base.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Recordings []Recording `json:"recordings"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("musicbrainz: unmarshal isrc search: %w", err)
	}
	if len(result.Recordings) == 0 {
		return nil, fmt.Errorf("musicbrainz: no recording found for isrc %s", isrc)
	}
	return &result.Recordings[0], nil
}

// SearchReleaseGroup resolves an album's release-group MBID by artist+title
// (spec §4.2/§4.3: the album-level counterpart of SearchRecording, feeding
// the album_ctx classification in spec §4.5/§4.6 with provider metadata
// rather than title heuristics alone).
func (c *Client) SearchReleaseGroup(ctx context.Context, artist, album string) (*ReleaseGroup, error) {
	query := fmt.Sprintf("artist:%q AND releasegroup:%q", artist, album)
	path := fmt.Sprintf("release-group?query=%s&fmt=json&limit=1", url.QueryEscape(query))

	body, err := c.base.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		ReleaseGroups []ReleaseGroup `json:"release-groups"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("musicbrainz: unmarshal release-group search: %w", err)
	}
	if len(result.ReleaseGroups) == 0 {
		return nil, fmt.Errorf("musicbrainz: no release group found for %s - %s", artist, album)
	}
	return &result.ReleaseGroups[0], nil
}

// GetReleaseGroupType fetches the primary/secondary release-group types for a
// release group MBID (spec §4.3: "musicbrainz.release_group.primary_type").
func (c *Client) GetReleaseGroupType(ctx context.Context, releaseGroupID string) (*ReleaseGroup, error) {
	if releaseGroupID == "" {
		return nil, fmt.Errorf("musicbrainz: release group id required")
	}
	path := fmt.Sprintf("release-group/%s?fmt=json", releaseGroupID)

	body, err := c.base.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var rg ReleaseGroup
	if err := json.Unmarshal(body, &rg); err != nil {
		return nil, fmt.Errorf("musicbrainz: unmarshal release-group: %w", err)
	}
	return &rg, nil
}

// GetRecordingPrimaryType looks up a recording by MBID with its releases and
// release-groups embedded, returning the primary type of its first associated
// release group (spec §4.3 "musicbrainz.release_group.primary_type", §4.6
// MusicBrainz "single" source). Returns "" if the recording has no releases.
func (c *Client) GetRecordingPrimaryType(ctx context.Context, recordingID string) (string, error) {
	if recordingID == "" {
		return "", fmt.Errorf("musicbrainz: recording id required")
	}
	path := fmt.Sprintf("recording/%s?inc=releases+release-groups&fmt=json", recordingID)

	body, err := c.base.Get(ctx, path, nil)
	if err != nil {
		return "", err
	}

	var recording Recording
	if err := json.Unmarshal(body, &recording); err != nil {
		return "", fmt.Errorf("musicbrainz: unmarshal recording: %w", err)
	}
	if len(recording.Releases) == 0 {
		return "", nil
	}
	return recording.Releases[0].ReleaseGroup.PrimaryType, nil
}

func buildRecordingQuery(artist, album, title string) string {
	if album == "" {
		return fmt.Sprintf("artist:%q AND recording:%q", artist, title)
	}
	return fmt.Sprintf("artist:%q AND release:%q AND recording:%q", artist, album, title)
}
