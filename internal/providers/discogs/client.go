// Package discogs implements the C1/C3 Discogs client: release format and
// community-activity lookups (spec §4.1, §4.3). No Discogs example ships in
// the retrieval pack; DTOs and transport follow the same shape established by
// internal/providers/musicbrainz, the closest analog (MBID-keyed release
// lookups over a rate-limited anonymous/token JSON API).
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"albumscan/internal/providers/httpbase"
)

const (
	baseURL = "https://api.discogs.com/"

	// Discogs documents 60 req/min for authenticated requests (spec §4.1).
	defaultRateLimit = time.Minute / 60
	defaultBurst     = 2
	defaultRetries   = 3
	defaultInitial   = 1 * time.Second
	defaultMaxDelay  = 8 * time.Second
	defaultTimeout   = 10 * time.Second
)

// Client wraps httpbase.Client with Discogs's typed operations.
type Client struct {
	base  *httpbase.Client
	token string
}

// New constructs a Discogs client bound to a personal access token.
func New(token string, debug bool) *Client {
	return &Client{
		token: token,
		base: httpbase.New(httpbase.Config{
			Provider:     "discogs",
			BaseURL:      baseURL,
			UserAgent:    "albumscan/1.0",
			Timeout:      defaultTimeout,
			RateLimit:    defaultRateLimit,
			BurstLimit:   defaultBurst,
			MaxRetries:   defaultRetries,
			InitialDelay: defaultInitial,
			MaxDelay:     defaultMaxDelay,
			Debug:        debug,
			Token:        token,
		}),
	}
}

// Provider name.
func (c *Client) Provider() string { return c.base.Provider() }

// UpdateToken replaces the auth token used on the next request (spec §9).
func (c *Client) UpdateToken(token string) {
	c.token = token
	c.base.UpdateCredentials("", "", token)
}

// Release is the subset of a Discogs release C3/C6 consume: its format list
// (used to detect "single"/"12\"" pressings) and community counts.
type Release struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Year     int      `json:"year"`
	Formats  []Format `json:"formats"`
	Videos   []Video  `json:"videos"`
	Community struct {
		Have int `json:"have"`
		Want int `json:"want"`
	} `json:"community"`
}

// Format is one physical/digital format entry on a release.
type Format struct {
	Name         string   `json:"name"`
	Qty          string   `json:"qty"`
	Descriptions []string `json:"descriptions"`
}

// Video is a linked video (used as a weak "has official video" single signal).
type Video struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

type searchResponse struct {
	Results []struct {
		ID   int    `json:"id"`
		Type string `json:"type"`
	} `json:"results"`
}

// SearchRelease resolves a Discogs release ID by artist/title (spec §4.2
// step 4).
func (c *Client) SearchRelease(ctx context.Context, artist, title string) (int, error) {
	_, _, token := c.base.Credentials()
	if token == "" {
		token = c.token
	}
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Discogs token=" + token
	}

	path := fmt.Sprintf("database/search?artist=%s&release_title=%s&type=release",
		url.QueryEscape(artist), url.QueryEscape(title))

	body, err := c.base.Get(ctx, path, headers)
	if err != nil {
		return 0, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("discogs: unmarshal search: %w", err)
	}
	if len(resp.Results) == 0 {
		return 0, fmt.Errorf("discogs: no release found for %s - %s", artist, title)
	}
	return resp.Results[0].ID, nil
}

// GetRelease fetches full release details by Discogs release ID (spec §4.3:
// "discogs.formats", "discogs.community").
func (c *Client) GetRelease(ctx context.Context, releaseID int) (*Release, error) {
	_, _, token := c.base.Credentials()
	if token == "" {
		token = c.token
	}
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Discogs token=" + token
	}

	path := fmt.Sprintf("releases/%d", releaseID)
	body, err := c.base.Get(ctx, path, headers)
	if err != nil {
		return nil, err
	}

	var rel Release
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("discogs: unmarshal release: %w", err)
	}
	return &rel, nil
}

// IsSingleFormat reports whether any of the release's formats are tagged
// "Single" (spec §4.6: "any format entry has type == 'Single' or name
// contains 'Single'"). Discogs' JSON API exposes this as a format description
// rather than a distinct "type" field, so both name and descriptions are
// checked.
func (r *Release) IsSingleFormat() bool {
	for _, f := range r.Formats {
		if strings.Contains(strings.ToLower(f.Name), "single") {
			return true
		}
		for _, d := range f.Descriptions {
			if strings.EqualFold(d, "Single") {
				return true
			}
		}
	}
	return false
}
