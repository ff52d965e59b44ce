// Package pipeline implements C9: the coordinator that walks the music
// server's library, fans out provider fetches per album, and sequences
// identity resolution, popularity fusion, star banding, single detection,
// persistence, and progress reporting (spec §4.9, §5, §6).
//
// Grounded on the teacher's internal/core/downloader orchestration loop (the
// artist -> album -> track walk, one-line-per-item logging, and consecutive-
// error tracking) generalized from "download and tag a file" to "fetch
// signals and write back a rating."
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"albumscan/internal/banding"
	"albumscan/internal/config"
	"albumscan/internal/identity"
	"albumscan/internal/interfaces"
	"albumscan/internal/popularity"
	"albumscan/internal/providers/discogs"
	"albumscan/internal/providers/lastfm"
	"albumscan/internal/providers/listenbrainz"
	"albumscan/internal/providers/musicbrainz"
	"albumscan/internal/providers/spotify"
	"albumscan/internal/shared"
	"albumscan/internal/singles"
)

// Providers bundles the C1 clients a Coordinator drives. Any field may be nil
// if that provider is disabled in config (spec §6).
type Providers struct {
	Spotify      *spotify.Client
	LastFM       *lastfm.Client
	ListenBrainz *listenbrainz.Client
	MusicBrainz  *musicbrainz.Client
	Discogs      *discogs.Client
}

// Coordinator is C9.
type Coordinator struct {
	MusicServer interfaces.MusicServerClient
	Providers   Providers
	Identity    *identity.Resolver
	Store       interfaces.Store
	Progress    interfaces.ProgressReporter
	Logger      interfaces.LoggerService
	Warnings    *shared.WarningCollector
	Config      *config.Config

	maxSeen          *popularity.GlobalMaxSeen
	consecutiveFails int
}

// New constructs a Coordinator wired with every collaborator it drives.
func New(ms interfaces.MusicServerClient, providers Providers, idResolver *identity.Resolver,
	store interfaces.Store, progress interfaces.ProgressReporter, logger interfaces.LoggerService,
	warnings *shared.WarningCollector, cfg *config.Config) *Coordinator {
	return &Coordinator{
		MusicServer: ms,
		Providers:   providers,
		Identity:    idResolver,
		Store:       store,
		Progress:    progress,
		Logger:      logger,
		Warnings:    warnings,
		Config:      cfg,
		maxSeen:     popularity.NewGlobalMaxSeen(),
	}
}

// workItem is one artist/album pair to visit, ordered per spec §4.9 step 1
// ("artist name, then album title, both ascending").
type workItem struct {
	Artist interfaces.MusicServerArtist
	Album  interfaces.MusicServerAlbum
}

// Run walks the whole library (or the artist/album filter from config) and
// processes every album (spec §4.9). It returns only on a fatal internal
// error, context cancellation, or after the library is exhausted; individual
// album failures are recorded and do not stop the run (spec §7).
func (c *Coordinator) Run(ctx context.Context) error {
	scanType := "full"
	if c.Config.ArtistFilter != "" || c.Config.AlbumFilter != "" {
		scanType = "filtered"
	}
	c.Progress.SetScanType(scanType)
	defer c.Progress.Finish()

	items, err := c.buildWorkList(ctx)
	if err != nil {
		return fmt.Errorf("pipeline: build work list: %w", err)
	}

	artists := groupByArtist(items)
	c.Progress.BeginArtist("", len(artists))
	if reporter, ok := c.Progress.(interface{ SetTotalTracks(int) }); ok {
		total := 0
		for _, it := range items {
			total += it.Album.TrackCount
		}
		reporter.SetTotalTracks(total)
	}

	artistIndex := 0
	for _, group := range artists {
		if err := checkCancel(ctx); err != nil {
			return err
		}
		artistIndex++

		artist := &shared.Artist{
			Name:           group.artist.Name,
			NormalizedName: shared.NormalizeName(group.artist.Name),
			ID:             group.artist.ID,
		}
		if existing, err := c.Store.GetArtistByNormalizedName(ctx, artist.NormalizedName); err == nil && existing != nil {
			artist.SpotifyArtistID = existing.SpotifyArtistID
			artist.MusicBrainzArtistID = existing.MusicBrainzArtistID
			artist.DiscogsArtistID = existing.DiscogsArtistID
		}

		// Hoist the one expensive per-artist lookup above the per-album loop
		// (spec §4.2 step 1, §4.9, testable property 9).
		if c.Identity != nil {
			if err := c.Identity.ResolveArtist(ctx, artist); err != nil {
				c.Warnings.AddIdentityResolutionWarning("spotify", artist.Name, err.Error())
			}
		}
		artist.LastScannedAt = time.Now()
		if err := c.Store.UpsertArtist(ctx, artist); err != nil {
			c.Logger.Error("failed to persist artist %s: %v", artist.Name, err)
		}

		c.Progress.BeginArtist(artist.Name, len(artists))

		albumCount := len(group.albums)
		for albumIdx, album := range group.albums {
			if err := checkCancel(ctx); err != nil {
				return err
			}

			outcome := c.processAlbum(ctx, artistIndex, len(artists), albumIdx+1, albumCount, artist, album)
			if outcome == shared.OutcomeFailed {
				c.consecutiveFails++
			} else {
				c.consecutiveFails = 0
			}
			if c.consecutiveFails >= c.Config.ConsecutiveFatalLimit {
				return &shared.FatalInternalError{
					Context: "pipeline.Run",
					Err:     fmt.Errorf("%d consecutive album failures", c.consecutiveFails),
				}
			}
		}

		if reporter, ok := c.Progress.(interface{ IncrementProcessedArtists() }); ok {
			reporter.IncrementProcessedArtists()
		}
	}

	return nil
}

type artistGroup struct {
	artist interfaces.MusicServerArtist
	albums []interfaces.MusicServerAlbum
}

func groupByArtist(items []workItem) []artistGroup {
	order := make([]string, 0)
	byArtist := make(map[string]*artistGroup)
	for _, it := range items {
		g, ok := byArtist[it.Artist.ID]
		if !ok {
			g = &artistGroup{artist: it.Artist}
			byArtist[it.Artist.ID] = g
			order = append(order, it.Artist.ID)
		}
		g.albums = append(g.albums, it.Album)
	}
	result := make([]artistGroup, 0, len(order))
	for _, id := range order {
		result = append(result, *byArtist[id])
	}
	return result
}

// buildWorkList lists every artist and album from the music server, applies
// the artist/album filter, and orders by artist name then album title (spec
// §4.9 step 1).
func (c *Coordinator) buildWorkList(ctx context.Context) ([]workItem, error) {
	artists, err := c.MusicServer.ListArtists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list artists: %w", err)
	}

	sort.Slice(artists, func(i, j int) bool { return artists[i].Name < artists[j].Name })

	var items []workItem
	for _, artist := range artists {
		if c.Config.ArtistFilter != "" && !strings.EqualFold(artist.Name, c.Config.ArtistFilter) {
			continue
		}

		albums, err := c.MusicServer.ListAlbums(ctx, artist.ID)
		if err != nil {
			c.Warnings.AddProviderFetchWarning("music_server", artist.Name, err.Error())
			continue
		}
		sort.Slice(albums, func(i, j int) bool { return albums[i].Title < albums[j].Title })

		for _, album := range albums {
			if c.Config.AlbumFilter != "" && !strings.EqualFold(album.Title, c.Config.AlbumFilter) {
				continue
			}
			items = append(items, workItem{Artist: artist, Album: album})
		}
	}
	return items, nil
}

// processAlbum runs the full C2->C8 sequence for one album and returns its
// terminal outcome. It never returns an error for an ordinary album-level
// failure; those are recorded in scan_history instead (spec §7).
func (c *Coordinator) processAlbum(ctx context.Context, artistIdx, artistTotal, albumIdx, albumTotal int,
	artist *shared.Artist, msAlbum interfaces.MusicServerAlbum) shared.ScanOutcome {

	started := time.Now()
	c.Progress.BeginAlbum(msAlbum.Title, "resume-check")

	albumID := msAlbum.ID
	if !c.Config.Features.Force {
		if last, err := c.Store.LastOKScan(ctx, albumID); err == nil && last != nil {
			age := time.Since(last.FinishedAt)
			if age < time.Duration(c.Config.FreshnessDays)*24*time.Hour {
				c.logLine(artistIdx, artistTotal, albumIdx, albumTotal, artist.Name, msAlbum.Title, "skip", 0, 0, nil, shared.OutcomeSkipped)
				return shared.OutcomeSkipped
			}
		}
	}

	albumCtx, wu, err := c.buildWorkUnit(ctx, artist, msAlbum)
	if err != nil {
		c.recordOutcome(ctx, albumID, started, shared.OutcomeFailed, 0, 0, err)
		c.logLine(artistIdx, artistTotal, albumIdx, albumTotal, artist.Name, msAlbum.Title, "build", 0, 0, err, shared.OutcomeFailed)
		return shared.OutcomeFailed
	}

	c.Progress.BeginAlbum(msAlbum.Title, "fetch")
	fetchCtx, cancel := context.WithTimeout(ctx, config.AlbumWallClockGuard)
	defer cancel()

	evidence, fetchErr := c.fetchSignals(fetchCtx, artist.Name, wu)
	outcome := shared.OutcomeOK
	if fetchErr != nil {
		// Fetch tasks report an expired wall-clock guard as ErrCancelRequested;
		// it is a real cancellation only when the parent context is done.
		timedOut := fetchErr == context.DeadlineExceeded ||
			(fetchErr == shared.ErrCancelRequested && ctx.Err() == nil && fetchCtx.Err() == context.DeadlineExceeded)
		if timedOut {
			outcome = shared.OutcomePartial
		} else if fetchErr == shared.ErrCancelRequested {
			c.recordOutcome(ctx, albumID, started, shared.OutcomePartial, len(wu.Tracks), 0, fetchErr)
			return shared.OutcomePartial
		} else {
			c.Warnings.AddProviderFetchWarning("signals", msAlbum.Title, fetchErr.Error())
			outcome = shared.OutcomePartial
		}
	}

	c.Progress.SetPhase("classify")
	c.classify(wu, albumCtx, evidence)

	c.Progress.SetPhase("persist")
	if err := c.Store.CommitWorkUnit(ctx, wu); err != nil {
		c.recordOutcome(ctx, albumID, started, shared.OutcomeFailed, len(wu.Tracks), 0, err)
		c.logLine(artistIdx, artistTotal, albumIdx, albumTotal, artist.Name, msAlbum.Title, "persist", 0, 0, err, shared.OutcomeFailed)
		return shared.OutcomeFailed
	}

	c.Progress.SetPhase("write-back")
	singleCount := c.writeBack(ctx, wu)

	c.recordOutcome(ctx, albumID, started, outcome, len(wu.Tracks), singleCount, fetchErr)
	c.Progress.CompleteAlbum(len(wu.Tracks))
	c.logLine(artistIdx, artistTotal, albumIdx, albumTotal, artist.Name, msAlbum.Title, "done", len(wu.Tracks), singleCount, nil, outcome)
	return outcome
}

// buildWorkUnit lists an album's tracks and resolves per-track identity
// (spec §4.2 steps 2-5, §4.9 step 2).
func (c *Coordinator) buildWorkUnit(ctx context.Context, artist *shared.Artist, msAlbum interfaces.MusicServerAlbum) (shared.AlbumContext, *shared.WorkUnit, error) {
	items, err := c.MusicServer.ListTracks(ctx, msAlbum.ID)
	if err != nil {
		return shared.AlbumContext{}, nil, fmt.Errorf("list tracks: %w", err)
	}

	normalizedTitle := shared.NormalizeName(msAlbum.Title)
	albumCtx := classifyAlbumContext(msAlbum.Title, msAlbum.TrackCount, msAlbum.Type)

	album := shared.Album{
		ID:              msAlbum.ID,
		ArtistID:        artist.ID,
		Title:           msAlbum.Title,
		NormalizedTitle: normalizedTitle,
		ReleaseYear:     msAlbum.Year,
		TotalTracks:     msAlbum.TrackCount,
		CoverArtURL:     msAlbum.CoverURL,
	}

	// Refine the title/music-server-derived context with MusicBrainz
	// release-group metadata, once per album (spec §4.3, GLOSSARY "Album
	// context... derived from title patterns and provider metadata").
	if c.Identity != nil {
		if primary, secondary, err := c.Identity.ResolveAlbumReleaseGroupType(ctx, artist.Name, &album); err == nil {
			albumCtx = refineAlbumContextFromMusicBrainz(albumCtx, primary, secondary)
		} else {
			c.Warnings.AddIdentityResolutionWarning("musicbrainz", msAlbum.Title, err.Error())
		}
	}

	album.AlbumType = albumCtx.AlbumType
	album.IsCompilation = albumCtx.IsCompilation
	album.IsLive = albumCtx.IsLive
	album.IsUnplugged = albumCtx.IsUnplugged

	if err := c.Store.UpsertAlbum(ctx, &album); err != nil {
		c.Logger.Error("failed to persist album %s: %v", msAlbum.Title, err)
	}

	tracks := make([]shared.Track, 0, len(items))
	for _, item := range items {
		dur := item.Duration
		track := shared.Track{
			ID:              item.ID,
			ArtistID:        artist.ID,
			AlbumID:         msAlbum.ID,
			Title:           item.Title,
			TrackNumber:     item.TrackNo,
			DiscNumber:      item.DiscNo,
			DurationSeconds: &dur,
			SpotifyArtistID: artist.SpotifyArtistID,
			LastScannedAt:   time.Now(),
		}
		if c.Identity != nil {
			if err := c.Identity.ResolveTrack(ctx, artist.Name, &album, &track); err != nil {
				c.Warnings.AddIdentityResolutionWarning("track", item.Title, err.Error())
			}
		}
		tracks = append(tracks, track)
	}

	if c.Identity != nil {
		if releaseID, err := c.Identity.ResolveAlbumDiscogsRelease(ctx, artist.Name, &album); err == nil && releaseID != "" {
			for i := range tracks {
				tracks[i].DiscogsReleaseID = releaseID
			}
		}
	}

	return albumCtx, &shared.WorkUnit{
		ArtistID:   artist.ID,
		ArtistName: artist.Name,
		Album:      album,
		Tracks:     tracks,
		AlbumCtx:   albumCtx,
	}, nil
}

// classifyAlbumContext derives the album's context flags from its title,
// track count, and the music server's own album-type/genre hint (spec
// §4.5/§4.6 context rules, GLOSSARY "Album context... derived from title
// patterns and provider metadata"). providerType is list_albums' `type?`
// field (spec §6) - whatever the music server itself reports (e.g. a
// Subsonic album's genre tag), checked alongside the title.
func classifyAlbumContext(title string, trackCount int, providerType string) shared.AlbumContext {
	lower := strings.ToLower(title)
	lowerProvider := strings.ToLower(providerType)
	ctx := shared.AlbumContext{AlbumType: shared.AlbumTypeAlbum}
	switch {
	case strings.Contains(lower, "greatest hits") || strings.Contains(lower, "best of") || strings.Contains(lower, "compilation") ||
		strings.Contains(lowerProvider, "compilation"):
		ctx.IsCompilation = true
		ctx.AlbumType = shared.AlbumTypeCompilation
	case strings.Contains(lower, "unplugged") || strings.Contains(lowerProvider, "unplugged"):
		ctx.IsUnplugged = true
	case strings.Contains(lower, "live") || strings.Contains(lowerProvider, "live"):
		ctx.IsLive = true
	case strings.Contains(lowerProvider, "single"):
		ctx.AlbumType = shared.AlbumTypeSingle
	case strings.Contains(lowerProvider, "ep"):
		ctx.AlbumType = shared.AlbumTypeEP
	case trackCount > 0 && trackCount <= 3:
		ctx.AlbumType = shared.AlbumTypeSingle
	}
	return ctx
}

// refineAlbumContextFromMusicBrainz layers the release-group's primary and
// secondary types (spec §4.3 "musicbrainz.release_group.primary_type",
// secondary types "compilation, live, soundtrack") onto a title/provider-
// derived context. MusicBrainz's classification wins over the title heuristic
// when it disagrees, since it is the more authoritative provider signal.
func refineAlbumContextFromMusicBrainz(ctx shared.AlbumContext, primaryType string, secondaryTypes []string) shared.AlbumContext {
	switch strings.ToLower(primaryType) {
	case "single":
		ctx.AlbumType = shared.AlbumTypeSingle
	case "ep":
		ctx.AlbumType = shared.AlbumTypeEP
	}
	for _, secondary := range secondaryTypes {
		switch strings.ToLower(secondary) {
		case "compilation":
			ctx.IsCompilation = true
			ctx.AlbumType = shared.AlbumTypeCompilation
		case "live":
			ctx.IsLive = true
		}
	}
	return ctx
}

// fetchSignals runs one task per track, at most config.Parallelism at a time
// (spec §5, §4.9 step 3); each task queries every enabled provider for its
// track in turn. Errors from individual provider calls are
// recorded as warnings, not returned, so a dead provider degrades instead of
// aborting the album.
func (c *Coordinator) fetchSignals(ctx context.Context, artistName string, wu *shared.WorkUnit) ([]trackSignals, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Config.Parallelism)

	signals := make([]trackSignals, len(wu.Tracks))

	for i := range wu.Tracks {
		i := i
		track := &wu.Tracks[i]

		g.Go(func() error {
			if err := checkCancel(gctx); err != nil {
				return err
			}

			var sig trackSignals

			if c.Providers.Spotify != nil && track.SpotifyTrackID != "" {
				if tr, err := c.Providers.Spotify.SearchTrack(gctx, artistName, track.Title, track.DurationSeconds); err == nil {
					pop := float64(tr.Popularity)
					sig.spotifyPop = &pop
					sig.spotifyType = tr.AlbumType
				} else {
					c.Warnings.AddProviderFetchWarning("spotify", track.Title, err.Error())
				}
			}

			if c.Providers.LastFM != nil {
				if info, err := c.Providers.LastFM.GetTrackInfo(gctx, artistName, track.Title); err == nil {
					plays := info.PlayCount
					sig.lastfmPlays = &plays
					sig.lastfmTags = info.TopTags
				} else {
					c.Warnings.AddProviderFetchWarning("lastfm", track.Title, err.Error())
				}
			}

			if c.Providers.MusicBrainz != nil && track.MusicBrainzRecordingID != "" {
				if primaryType, err := c.Providers.MusicBrainz.GetRecordingPrimaryType(gctx, track.MusicBrainzRecordingID); err == nil {
					sig.mbType = primaryType
				} else {
					c.Warnings.AddProviderFetchWarning("musicbrainz", track.Title, err.Error())
				}
			}

			if c.Providers.ListenBrainz != nil && track.MusicBrainzRecordingID != "" {
				if stats, err := c.Providers.ListenBrainz.GetRecordingListenCount(gctx, track.MusicBrainzRecordingID); err == nil {
					listens := stats.ListenCount
					sig.lbListens = &listens
				} else {
					c.Warnings.AddProviderFetchWarning("listenbrainz", track.Title, err.Error())
				}
			}

			if c.Providers.Discogs != nil && track.DiscogsReleaseID != "" {
				if release, err := parseAndGetDiscogsRelease(gctx, c.Providers.Discogs, track.DiscogsReleaseID); err == nil && release != nil {
					sig.discogsHit = release.IsSingleFormat()
					for _, v := range release.Videos {
						if singles.IsOfficialVideoForTrack(v.Title, track.Title) {
							sig.discogsVideo = true
							break
						}
					}
				} else if err != nil {
					c.Warnings.AddProviderFetchWarning("discogs", track.Title, err.Error())
				}
			}

			signals[i] = sig
			return nil
		})
	}

	waitErr := g.Wait()

	// Fuse popularity outside the errgroup since it's pure computation, not
	// I/O (spec §4.4). Raw per-track evidence is returned for classify().
	for i := range wu.Tracks {
		track := &wu.Tracks[i]
		sig := signals[i]
		track.SpotifyAlbumType = firstNonEmpty(track.SpotifyAlbumType, sig.spotifyType)

		score := popularity.Fuse(c.Config.Weights, popularity.Signals{
			SpotifyPopularity: sig.spotifyPop,
			LastFMPlayCount:   sig.lastfmPlays,
			ListenBrainzCount: sig.lbListens,
			ReleaseYear:       wu.Album.ReleaseYear,
			ScanYear:          popularity.ScanYear(),
		}, c.maxSeen)
		track.PopularityScore = score
	}

	return signals, waitErr
}

// trackSignals is the raw per-provider fetch result for one track, collected
// during fetchSignals and consumed by classify() once banding inputs
// (global_popularity) are available.
type trackSignals struct {
	spotifyPop   *float64
	lastfmPlays  *int64
	lbListens    *int64
	spotifyType  string
	mbType       string
	discogsHit   bool
	discogsVideo bool
	lastfmTags   []string
}

// classify runs C4's global_popularity pass, C6's single detection, and C5's
// banding for one album, writing stars/is_single/global_popularity back onto
// wu.Tracks (spec §4.4-§4.6, §4.9 step 4).
func (c *Coordinator) classify(wu *shared.WorkUnit, albumCtx shared.AlbumContext, evidence []trackSignals) {
	trackPtrs := make([]*shared.Track, len(wu.Tracks))
	for i := range wu.Tracks {
		trackPtrs[i] = &wu.Tracks[i]
	}
	popularity.ComputeGlobalPopularity(trackPtrs)

	bandInputs := make([]banding.Input, len(wu.Tracks))
	for i := range wu.Tracks {
		track := &wu.Tracks[i]
		pop := track.GlobalPopularity
		if albumCtx.IsCompilation {
			pop = track.PopularityScore
		}
		bandInputs[i] = banding.Input{Track: track, Popularity: pop}
	}
	// z does not depend on single status, so a first banding pass without
	// single results yields the album z-score the advanced single gate reads.
	for track, r := range banding.Band(bandInputs, c.Config.CapTop4Pct, albumCtx.IsCompilation) {
		track.AlbumZScore = r.ZScore
	}

	singleResults := make([]singles.Result, len(wu.Tracks))
	for i := range wu.Tracks {
		track := &wu.Tracks[i]
		sig := evidence[i]

		releaseTotalTracks := wu.Album.TotalTracks

		result := singles.Detect(track.Title, albumCtx, singles.Evidence{
			SpotifyAlbumType:       sig.spotifyType,
			MusicBrainzPrimaryType: sig.mbType,
			DiscogsIsSingleFormat:  sig.discogsHit,
			DiscogsOfficialVideo:   sig.discogsVideo,
			ReleaseTotalTracks:     releaseTotalTracks,
			LastFMTags:             sig.lastfmTags,
		}, c.Config.UseAdvancedDetection, c.Config.ZScoreThreshold, track.AlbumZScore)

		singleResults[i] = result
		track.IsSingle = result.IsSingle
		confidence := result.Confidence
		track.SingleConfidence = &confidence
		track.SingleSources = result.Sources
	}

	for i := range wu.Tracks {
		bandInputs[i].IsSingle = singleResults[i].IsSingle
		bandInputs[i].SingleConfidence = singleResults[i].Confidence
	}

	results := banding.Band(bandInputs, c.Config.CapTop4Pct, albumCtx.IsCompilation)
	for i := range wu.Tracks {
		track := &wu.Tracks[i]
		if r, ok := results[track]; ok {
			stars := r.Stars
			track.Stars = &stars
			track.AlbumZScore = r.ZScore
			track.IsSingle = r.IsSingle
			track.SingleConfidence = &r.SingleConfidence
		}
	}
}

// writeBack pushes each track's star rating to the music server (spec §4.9
// step 5) and returns the number of tracks classified as singles. A failed
// SetRating call is logged and skipped rather than aborting the album, since
// the rating is already durably persisted in the store.
func (c *Coordinator) writeBack(ctx context.Context, wu *shared.WorkUnit) int {
	singleCount := 0
	for i := range wu.Tracks {
		track := &wu.Tracks[i]
		if track.IsSingle {
			singleCount++
		}
		if track.Stars == nil {
			continue
		}
		if err := c.MusicServer.SetRating(ctx, track.ID, *track.Stars); err != nil {
			c.Logger.Error("failed to write rating for %s: %v", track.Title, err)
		}
	}
	return singleCount
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func parseAndGetDiscogsRelease(ctx context.Context, client *discogs.Client, releaseIDStr string) (*discogs.Release, error) {
	var id int
	if _, err := fmt.Sscanf(releaseIDStr, "%d", &id); err != nil {
		return nil, err
	}
	return client.GetRelease(ctx, id)
}

func checkCancel(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return shared.ErrCancelRequested
	default:
		return nil
	}
}

func (c *Coordinator) recordOutcome(ctx context.Context, albumID string, started time.Time, outcome shared.ScanOutcome, tracksScanned, singlesDetected int, err error) {
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	h := &shared.ScanHistory{
		AlbumID:         albumID,
		StartedAt:       started,
		FinishedAt:      time.Now(),
		Outcome:         outcome,
		TracksScanned:   tracksScanned,
		SinglesDetected: singlesDetected,
		Error:           errStr,
	}
	if err := c.Store.AppendScanHistory(ctx, h); err != nil {
		c.Logger.Error("failed to append scan history: %v", err)
	}
}

func (c *Coordinator) logLine(artistIdx, artistTotal, albumIdx, albumTotal int, artistName, albumTitle, phase string,
	tracks, singlesCount int, err error, outcome shared.ScanOutcome) {
	status := string(outcome)
	if err != nil {
		status = fmt.Sprintf("%s (%v)", status, err)
	}
	c.Logger.Info("[artist %d/%d][album %d/%d] %s - %s phase=%s tracks=%d singles=%d outcome=%s",
		artistIdx, artistTotal, albumIdx, albumTotal, artistName, albumTitle, phase, tracks, singlesCount, status)
}
