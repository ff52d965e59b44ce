// Package spotify implements the C1/C3 Spotify client: artist/track identity
// resolution, popularity, album type, and audio features (spec §4.2 step 1-2,
// §4.3). Grounded on the teacher's spotify.go (zmb3/spotify/v2 +
// golang.org/x/oauth2/clientcredentials), generalized onto a shared rate
// limiter so concurrent album fetches never exceed Spotify's request budget.
package spotify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	gospotify "github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"albumscan/internal/shared"
)

// Spotify's client-credentials app rate limit is approximated at 180 req/min
// (spec §4.1).
const (
	defaultRateLimit = time.Minute / 180
	defaultBurst     = 5
)

// Client wraps the zmb3 Spotify SDK client with rate limiting and a
// runtime-replaceable credential pair (spec §9, §4.1).
type Client struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	sdk     *gospotify.Client

	clientID     string
	clientSecret string
	debug        bool
}

// New constructs a Spotify client. Call Authenticate before issuing requests.
func New(clientID, clientSecret string, debug bool) *Client {
	return &Client{
		limiter:      rate.NewLimiter(rate.Every(defaultRateLimit), defaultBurst),
		clientID:     clientID,
		clientSecret: clientSecret,
		debug:        debug,
	}
}

// Authenticate fetches a client-credentials token and (re)builds the
// underlying SDK client. It must be called again after UpdateCredentials for
// the new credentials to take effect (spec §4.1: "credentials may be replaced
// at runtime — must rebuild or update the client").
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	id, secret := c.clientID, c.clientSecret
	c.mu.Unlock()

	cfg := &clientcredentials.Config{
		ClientID:     id,
		ClientSecret: secret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := cfg.Token(ctx)
	if err != nil {
		return &shared.ProviderError{Provider: "spotify", Kind: shared.ErrUnauthorized, Err: err}
	}

	httpClient := spotifyauth.New().Client(ctx, token)

	c.mu.Lock()
	c.sdk = gospotify.New(httpClient)
	c.mu.Unlock()
	return nil
}

// UpdateCredentials replaces the client ID/secret. Authenticate must be called
// again afterward to rebuild the SDK client (no singleton caching, spec §9).
func (c *Client) UpdateCredentials(clientID, clientSecret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientID = clientID
	c.clientSecret = clientSecret
}

func (c *Client) sdkClient() (*gospotify.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sdk == nil {
		return nil, &shared.ProviderError{Provider: "spotify", Kind: shared.ErrUnauthorized, Err: fmt.Errorf("not authenticated")}
	}
	return c.sdk, nil
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// classify converts a zmb3/spotify SDK error into a typed *shared.ProviderError.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if spErr, ok := err.(gospotify.Error); ok {
		switch spErr.Status {
		case 429:
			return &shared.ProviderError{Provider: "spotify", Kind: shared.ErrRateLimited, StatusCode: spErr.Status, Err: err}
		case 401, 403:
			return &shared.ProviderError{Provider: "spotify", Kind: shared.ErrUnauthorized, StatusCode: spErr.Status, Err: err}
		case 404:
			return &shared.ProviderError{Provider: "spotify", Kind: shared.ErrNotFound, StatusCode: spErr.Status, Err: err}
		default:
			if spErr.Status >= 500 {
				return &shared.ProviderError{Provider: "spotify", Kind: shared.ErrNetwork, StatusCode: spErr.Status, Err: err}
			}
			return &shared.ProviderError{Provider: "spotify", Kind: shared.ErrMalformed, StatusCode: spErr.Status, Err: err}
		}
	}
	return &shared.ProviderError{Provider: "spotify", Kind: shared.ErrNetwork, Err: err}
}

// TrackSignal is the subset of Spotify track data C3/C4/C6 need.
type TrackSignal struct {
	ID          string
	Popularity  int
	AlbumType   string // "album" | "single" | "compilation"
	TotalTracks int
	ReleaseDate string
	Explicit    bool
	DurationMs  int
	ISRC        string
}

// AudioFeatures mirrors the Spotify audio-features payload (spec §4.3).
type AudioFeatures struct {
	Tempo            float64
	Energy           float64
	Danceability     float64
	Valence          float64
	Acousticness     float64
	Instrumentalness float64
	Liveness         float64
	Speechiness      float64
	Loudness         float64
	Key              int
	Mode             int
}

// ArtistSignal is artist-level data fetched once per artist (spec §4.2 step 1,
// §4.3).
type ArtistSignal struct {
	ID         string
	Popularity int
	Genres     []string
}

// SearchArtistID resolves a Spotify artist ID by name (spec §4.2 step 1: "one
// lookup per artist, not per track").
func (c *Client) SearchArtistID(ctx context.Context, artistName string) (*ArtistSignal, error) {
	sdk, err := c.sdkClient()
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx); err != nil {
		return nil, &shared.ProviderError{Provider: "spotify", Kind: shared.ErrTimeout, Err: err}
	}

	results, err := sdk.Search(ctx, artistName, gospotify.SearchTypeArtist, gospotify.Limit(5))
	if err != nil {
		return nil, classify(err)
	}
	if results.Artists == nil || len(results.Artists.Artists) == 0 {
		return nil, &shared.ProviderError{Provider: "spotify", Kind: shared.ErrNotFound, Err: fmt.Errorf("no artist found for %q", artistName)}
	}

	for _, a := range results.Artists.Artists {
		if strings.EqualFold(a.Name, artistName) {
			return &ArtistSignal{ID: a.ID.String(), Popularity: int(a.Popularity), Genres: a.Genres}, nil
		}
	}
	best := results.Artists.Artists[0]
	return &ArtistSignal{ID: best.ID.String(), Popularity: int(best.Popularity), Genres: best.Genres}, nil
}

// SearchTrack resolves a Spotify track ID by artist+title, preferring an exact
// normalized-title match, then tie-breaking on duration and popularity
// (spec §4.2 step 2).
func (c *Client) SearchTrack(ctx context.Context, artistName, title string, expectedDurationSec *int) (*TrackSignal, error) {
	sdk, err := c.sdkClient()
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx); err != nil {
		return nil, &shared.ProviderError{Provider: "spotify", Kind: shared.ErrTimeout, Err: err}
	}

	query := fmt.Sprintf("track:%q artist:%q", title, artistName)
	results, err := sdk.Search(ctx, query, gospotify.SearchTypeTrack, gospotify.Limit(10))
	if err != nil {
		return nil, classify(err)
	}
	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil, &shared.ProviderError{Provider: "spotify", Kind: shared.ErrNotFound, Err: fmt.Errorf("no track found for %s - %s", artistName, title)}
	}

	best := selectBestTrackMatch(results.Tracks.Tracks, title, expectedDurationSec)
	return fullTrackToSignal(best), nil
}

func selectBestTrackMatch(tracks []gospotify.FullTrack, title string, expectedDurationSec *int) gospotify.FullTrack {
	normTitle := strings.ToLower(strings.TrimSpace(title))

	var exact []gospotify.FullTrack
	for _, t := range tracks {
		if strings.ToLower(strings.TrimSpace(t.Name)) == normTitle {
			exact = append(exact, t)
		}
	}
	candidates := tracks
	if len(exact) > 0 {
		candidates = exact
	}

	if expectedDurationSec != nil {
		var withinDuration []gospotify.FullTrack
		for _, t := range candidates {
			durSec := int(t.Duration) / 1000
			if abs(durSec-*expectedDurationSec) <= 2 {
				withinDuration = append(withinDuration, t)
			}
		}
		if len(withinDuration) > 0 {
			candidates = withinDuration
		}
	}

	best := candidates[0]
	for _, t := range candidates[1:] {
		if t.Popularity > best.Popularity {
			best = t
		}
	}
	return best
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func fullTrackToSignal(t gospotify.FullTrack) *TrackSignal {
	isrc := ""
	if t.ExternalIDs != nil {
		isrc = t.ExternalIDs["isrc"]
	}
	albumType := strings.ToLower(string(t.Album.AlbumType))
	return &TrackSignal{
		ID:          t.ID.String(),
		Popularity:  int(t.Popularity),
		AlbumType:   albumType,
		TotalTracks: int(t.Album.TotalTracks),
		ReleaseDate: t.Album.ReleaseDate,
		Explicit:    t.Explicit,
		DurationMs:  int(t.Duration),
		ISRC:        isrc,
	}
}

// GetAudioFeatures fetches audio features for up to 100 track IDs in one batch
// (spec §4.3).
func (c *Client) GetAudioFeatures(ctx context.Context, trackIDs []string) (map[string]AudioFeatures, error) {
	if len(trackIDs) == 0 {
		return map[string]AudioFeatures{}, nil
	}
	if len(trackIDs) > 100 {
		return nil, fmt.Errorf("spotify: audio features batch limited to 100, got %d", len(trackIDs))
	}

	sdk, err := c.sdkClient()
	if err != nil {
		return nil, err
	}
	if err := c.wait(ctx); err != nil {
		return nil, &shared.ProviderError{Provider: "spotify", Kind: shared.ErrTimeout, Err: err}
	}

	ids := make([]gospotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = gospotify.ID(id)
	}

	features, err := sdk.GetAudioFeatures(ctx, ids...)
	if err != nil {
		return nil, classify(err)
	}

	out := make(map[string]AudioFeatures, len(features))
	for i, f := range features {
		if f == nil {
			continue
		}
		out[trackIDs[i]] = AudioFeatures{
			Tempo:            float64(f.Tempo),
			Energy:           float64(f.Energy),
			Danceability:     float64(f.Danceability),
			Valence:          float64(f.Valence),
			Acousticness:     float64(f.Acousticness),
			Instrumentalness: float64(f.Instrumentalness),
			Liveness:         float64(f.Liveness),
			Speechiness:      float64(f.Speechiness),
			Loudness:         float64(f.Loudness),
			Key:              int(f.Key),
			Mode:             int(f.Mode),
		}
	}
	return out, nil
}
