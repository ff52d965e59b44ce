// Package identity implements C2: turning (artist, album, title, optional
// ISRC/MBID) into stable provider IDs, hoisting the expensive per-artist
// lookup above the per-track ones (spec §4.2, testable property 9).
package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"albumscan/internal/interfaces"
	"albumscan/internal/providers/discogs"
	"albumscan/internal/providers/musicbrainz"
	"albumscan/internal/providers/spotify"
	"albumscan/internal/shared"
)

// negativeResolutionTTL is how long a "not found" result is cached before
// being retried (spec §4.2: "cache negative resolutions with a TTL, default 24h").
const negativeResolutionTTL = 24 * time.Hour

const negativeMarker = "__not_found__"

// Resolver is C2. It is stateless aside from the provider clients and store it
// wraps, constructed once per run and shared by every worker task.
type Resolver struct {
	Spotify     *spotify.Client
	MusicBrainz *musicbrainz.Client
	Discogs     *discogs.Client
	Store       interfaces.Store
}

// New constructs a Resolver. Any of the provider clients may be nil if that
// provider is disabled (spec §6 "provider.<name>.enabled"); resolution steps
// for a nil client are skipped.
func New(sp *spotify.Client, mb *musicbrainz.Client, dc *discogs.Client, store interfaces.Store) *Resolver {
	return &Resolver{Spotify: sp, MusicBrainz: mb, Discogs: dc, Store: store}
}

// ResolveArtist resolves the Spotify artist ID once per artist and stamps it
// onto the artist row. Callers are responsible for propagating the result to
// every track of that artist in a single batched update (spec §4.2 step 1).
func (r *Resolver) ResolveArtist(ctx context.Context, artist *shared.Artist) error {
	if artist.SpotifyArtistID != "" || r.Spotify == nil {
		return nil
	}

	cacheKey := "artist:" + artist.NormalizedName
	if cached, found, err := r.cacheGet(ctx, "spotify", cacheKey); err == nil && found {
		if cached != negativeMarker {
			artist.SpotifyArtistID = cached
		}
		return nil
	}

	signal, err := r.Spotify.SearchArtistID(ctx, artist.Name)
	if err != nil {
		if isNotFound(err) {
			r.cacheSetNegative(ctx, "spotify", cacheKey)
			return nil
		}
		return err
	}

	artist.SpotifyArtistID = signal.ID
	r.cacheSet(ctx, "spotify", cacheKey, signal.ID)
	return nil
}

// ResolveTrack resolves the per-track identity chain: Spotify track ID, ISRC
// (carried from the Spotify record), and MusicBrainz recording ID (spec §4.2
// steps 2-4). Already-resolved fields are left untouched so repeated runs
// skip the network call. The album's Discogs release ID is resolved
// separately via ResolveAlbumDiscogsRelease, once per album, and stamped onto
// each track by the caller.
func (r *Resolver) ResolveTrack(ctx context.Context, artistName string, album *shared.Album, track *shared.Track) error {
	if err := r.resolveSpotifyTrack(ctx, artistName, track); err != nil {
		return err
	}
	if err := r.resolveMusicBrainzRecording(ctx, artistName, album.Title, track); err != nil {
		return err
	}
	return nil
}

func (r *Resolver) resolveSpotifyTrack(ctx context.Context, artistName string, track *shared.Track) error {
	if track.SpotifyTrackID != "" || r.Spotify == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("track:%s:%s", artistName, track.Title)
	if cached, found, err := r.cacheGet(ctx, "spotify", cacheKey); err == nil && found {
		if cached != negativeMarker {
			track.SpotifyTrackID = cached
		}
		return nil
	}

	signal, err := r.Spotify.SearchTrack(ctx, artistName, track.Title, track.DurationSeconds)
	if err != nil {
		if isNotFound(err) {
			r.cacheSetNegative(ctx, "spotify", cacheKey)
			return nil
		}
		return err
	}

	track.SpotifyTrackID = signal.ID
	track.SpotifyAlbumType = signal.AlbumType
	if signal.ISRC != "" {
		track.ISRC = signal.ISRC
	}
	r.cacheSet(ctx, "spotify", cacheKey, signal.ID)
	return nil
}

func (r *Resolver) resolveMusicBrainzRecording(ctx context.Context, artistName, albumTitle string, track *shared.Track) error {
	if track.MusicBrainzRecordingID != "" || r.MusicBrainz == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("recording:%s:%s:%s", artistName, albumTitle, track.Title)
	if cached, found, err := r.cacheGet(ctx, "musicbrainz", cacheKey); err == nil && found {
		if cached != negativeMarker {
			track.MusicBrainzRecordingID = cached
		}
		return nil
	}

	var recording *musicbrainz.Recording
	var err error
	if track.ISRC != "" {
		recording, err = r.MusicBrainz.SearchRecordingByISRC(ctx, track.ISRC)
	}
	if recording == nil {
		recording, err = r.MusicBrainz.SearchRecording(ctx, artistName, albumTitle, track.Title)
	}
	if err != nil || recording == nil {
		r.cacheSetNegative(ctx, "musicbrainz", cacheKey)
		return nil
	}

	track.MusicBrainzRecordingID = recording.ID
	r.cacheSet(ctx, "musicbrainz", cacheKey, recording.ID)
	return nil
}

// ResolveAlbumReleaseGroupType resolves the album's MusicBrainz release-group
// primary/secondary types once per album, caching by (normalized artist,
// normalized album) like ResolveAlbumDiscogsRelease (spec §4.2's caching
// rule generalized to the album level; spec §4.3 "musicbrainz.release_group.
// primary_type", GLOSSARY "Album context... derived from title patterns and
// provider metadata"). Returns ("", nil, nil) if MusicBrainz is disabled or
// the release group can't be found.
func (r *Resolver) ResolveAlbumReleaseGroupType(ctx context.Context, artistName string, album *shared.Album) (primaryType string, secondaryTypes []string, err error) {
	if r.MusicBrainz == nil {
		return "", nil, nil
	}

	cacheKey := fmt.Sprintf("releasegroup:%s:%s", shared.NormalizeName(artistName), album.NormalizedTitle)
	if cached, found, err := r.cacheGet(ctx, "musicbrainz", cacheKey); err == nil && found {
		if cached == negativeMarker {
			return "", nil, nil
		}
		primary, secondary := decodeReleaseGroupTypeCache(cached)
		return primary, secondary, nil
	}

	rg, searchErr := r.MusicBrainz.SearchReleaseGroup(ctx, artistName, album.Title)
	if searchErr != nil || rg == nil {
		r.cacheSetNegative(ctx, "musicbrainz", cacheKey)
		return "", nil, nil
	}

	// Fetch the full record by ID for authoritative types, mirroring the
	// search-then-fetch pattern used for tracks (SearchRecording ->
	// GetRecordingPrimaryType).
	full, fetchErr := r.MusicBrainz.GetReleaseGroupType(ctx, rg.ID)
	if fetchErr != nil || full == nil {
		full = rg
	}

	r.cacheSet(ctx, "musicbrainz", cacheKey, encodeReleaseGroupTypeCache(full.PrimaryType, full.SecondaryTypes))
	return full.PrimaryType, full.SecondaryTypes, nil
}

func encodeReleaseGroupTypeCache(primary string, secondary []string) string {
	return primary + "|" + strings.Join(secondary, ",")
}

func decodeReleaseGroupTypeCache(cached string) (string, []string) {
	parts := strings.SplitN(cached, "|", 2)
	primary := parts[0]
	var secondary []string
	if len(parts) == 2 && parts[1] != "" {
		secondary = strings.Split(parts[1], ",")
	}
	return primary, secondary
}

// ResolveAlbumDiscogsRelease resolves the Discogs release ID once per album,
// caching by (normalized artist, normalized album) as spec §4.2 step 5
// requires. Callers stamp the returned ID onto every track of the album.
func (r *Resolver) ResolveAlbumDiscogsRelease(ctx context.Context, artistName string, album *shared.Album) (string, error) {
	if r.Discogs == nil {
		return "", nil
	}

	cacheKey := fmt.Sprintf("release:%s:%s", shared.NormalizeName(artistName), album.NormalizedTitle)
	if cached, found, err := r.cacheGet(ctx, "discogs", cacheKey); err == nil && found {
		if cached == negativeMarker {
			return "", nil
		}
		return cached, nil
	}

	releaseID, err := r.Discogs.SearchRelease(ctx, artistName, album.Title)
	if err != nil {
		r.cacheSetNegative(ctx, "discogs", cacheKey)
		return "", nil
	}

	idStr := fmt.Sprintf("%d", releaseID)
	r.cacheSet(ctx, "discogs", cacheKey, idStr)
	return idStr, nil
}

func (r *Resolver) cacheGet(ctx context.Context, provider, key string) (string, bool, error) {
	if r.Store == nil {
		return "", false, nil
	}
	payload, found, err := r.Store.CacheGet(ctx, provider, key)
	if err != nil || !found {
		return "", found, err
	}
	return string(payload), true, nil
}

func (r *Resolver) cacheSet(ctx context.Context, provider, key, value string) {
	if r.Store == nil {
		return
	}
	_ = r.Store.CacheSet(ctx, provider, key, []byte(value), int64((7 * 24 * time.Hour).Seconds()))
}

func (r *Resolver) cacheSetNegative(ctx context.Context, provider, key string) {
	if r.Store == nil {
		return
	}
	_ = r.Store.CacheSet(ctx, provider, key, []byte(negativeMarker), int64(negativeResolutionTTL.Seconds()))
}

func isNotFound(err error) bool {
	provErr, ok := err.(*shared.ProviderError)
	return ok && provErr.Kind == shared.ErrNotFound
}
