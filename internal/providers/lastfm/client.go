// Package lastfm implements the C1/C3 Last.fm client: track listener/playcount
// signals and top tags (spec §4.1, §4.3). Grounded on the teacher's
// musicbrainz client style, generalized onto internal/providers/httpbase, with
// the query-param shape taken from the unofficial rate limit and
// url.Values-based request construction seen in the pack's lastfm clients.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"albumscan/internal/providers/httpbase"
)

const (
	baseURL = "https://ws.audioscrobbler.com/2.0/"

	// Last.fm's unofficial rate limit is ~5 req/sec (spec §4.1).
	defaultRateLimit = 200 * time.Millisecond
	defaultBurst     = 1
	defaultRetries   = 3
	defaultInitial   = 1 * time.Second
	defaultMaxDelay  = 8 * time.Second
	defaultTimeout   = 10 * time.Second
)

// Client wraps httpbase.Client with Last.fm's typed operations.
type Client struct {
	base   *httpbase.Client
	apiKey string
}

// New constructs a Last.fm client bound to an API key.
func New(apiKey string, debug bool) *Client {
	return &Client{
		apiKey: apiKey,
		base: httpbase.New(httpbase.Config{
			Provider:     "lastfm",
			BaseURL:      baseURL,
			UserAgent:    "albumscan/1.0",
			Timeout:      defaultTimeout,
			RateLimit:    defaultRateLimit,
			BurstLimit:   defaultBurst,
			MaxRetries:   defaultRetries,
			InitialDelay: defaultInitial,
			MaxDelay:     defaultMaxDelay,
			Debug:        debug,
			Token:        apiKey,
		}),
	}
}

// Provider name.
func (c *Client) Provider() string { return c.base.Provider() }

// UpdateAPIKey replaces the API key used on the next request (spec §9).
func (c *Client) UpdateAPIKey(apiKey string) {
	c.apiKey = apiKey
	c.base.UpdateCredentials("", "", apiKey)
}

// TrackInfo is the subset of track.getInfo C3/C4 consume.
type TrackInfo struct {
	Listeners int64
	PlayCount int64
	TopTags   []string
}

type trackGetInfoResponse struct {
	Track struct {
		Listeners string `json:"listeners"`
		Playcount string `json:"playcount"`
		TopTags   struct {
			Tag []struct {
				Name string `json:"name"`
			} `json:"tag"`
		} `json:"toptags"`
	} `json:"track"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// GetTrackInfo fetches listeners/playcount/top-tags for one track (spec §4.3).
func (c *Client) GetTrackInfo(ctx context.Context, artist, track string) (*TrackInfo, error) {
	_, _, apiKey := c.base.Credentials()
	if apiKey == "" {
		apiKey = c.apiKey
	}

	params := url.Values{}
	params.Set("method", "track.getInfo")
	params.Set("artist", artist)
	params.Set("track", track)
	params.Set("api_key", apiKey)
	params.Set("format", "json")
	params.Set("autocorrect", "1")

	path := "?" + params.Encode()
	body, err := c.base.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var resp trackGetInfoResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("lastfm: unmarshal track.getInfo: %w", err)
	}
	if resp.Error != 0 {
		return nil, fmt.Errorf("lastfm: track.getInfo error %d: %s", resp.Error, resp.Message)
	}

	listeners, _ := strconv.ParseInt(resp.Track.Listeners, 10, 64)
	playcount, _ := strconv.ParseInt(resp.Track.Playcount, 10, 64)

	tags := make([]string, 0, len(resp.Track.TopTags.Tag))
	for _, t := range resp.Track.TopTags.Tag {
		tags = append(tags, t.Name)
	}

	return &TrackInfo{Listeners: listeners, PlayCount: playcount, TopTags: tags}, nil
}
