package interfaces

import (
	"context"

	"albumscan/internal/shared"
)

// MusicServerItem is the subset of a music-server track record the pipeline reads
// back from list_tracks (spec §6).
type MusicServerItem struct {
	ID          string
	Title       string
	TrackNo     int
	DiscNo      int
	Duration    int
	Artist      string
	Album       string
	Genre       string
}

// MusicServerAlbum is one entry from list_albums (spec §6).
type MusicServerAlbum struct {
	ID         string
	Title      string
	Year       int
	TrackCount int
	Type       string
	CoverURL   string
}

// MusicServerArtist is one entry from list_artists (spec §6).
type MusicServerArtist struct {
	ID   string
	Name string
}

// MusicServerClient is the external collaborator the pipeline drives to walk the
// library and write ratings back (spec §6). It is the only out-of-process
// dependency the coordinator talks to besides the metadata providers.
type MusicServerClient interface {
	ListArtists(ctx context.Context) ([]MusicServerArtist, error)
	ListAlbums(ctx context.Context, artistID string) ([]MusicServerAlbum, error)
	ListTracks(ctx context.Context, albumID string) ([]MusicServerItem, error)
	SetRating(ctx context.Context, trackID string, stars int) error
}

// LoggerService defines the interface for logging operations.
type LoggerService interface {
	Info(message string, args ...interface{})
	Warning(message string, args ...interface{})
	Error(message string, args ...interface{})
	Debug(message string, args ...interface{})
	Success(message string, args ...interface{})
	SetDebugMode(enabled bool)
}

// WarningCollectorService defines the interface for warning collection.
type WarningCollectorService interface {
	AddWarning(warningType shared.WarningType, context, message, details string)
	AddProviderFetchWarning(provider, context, details string)
	AddIdentityResolutionWarning(provider, context, details string)
	HasWarnings() bool
	GetWarningCount() int
	PrintSummary()
}

// ProgressReporter is the C8 collaborator: the coordinator pushes state to it
// after every album and every phase transition (spec §4.8).
type ProgressReporter interface {
	SetScanType(scanType string)
	BeginArtist(name string, totalArtists int)
	BeginAlbum(name string, phase string)
	SetPhase(phase string)
	CompleteAlbum(tracksScanned int)
	Finish()
	Snapshot() Snapshot
}

// Snapshot is the JSON-serializable progress document written atomically to disk
// (spec §4.8). Field names match the spec's schema verbatim.
type Snapshot struct {
	IsRunning         bool    `json:"is_running"`
	ScanType          string  `json:"scan_type"`
	CurrentArtist     string  `json:"current_artist"`
	CurrentAlbum      string  `json:"current_album"`
	CurrentPhase      string  `json:"current_phase"`
	ProcessedArtists  int     `json:"processed_artists"`
	TotalArtists      int     `json:"total_artists"`
	ProcessedTracks   int     `json:"processed_tracks"`
	TotalTracks       int     `json:"total_tracks"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
	PercentComplete   float64 `json:"percent_complete"`
	StartedAt         string  `json:"started_at"`
	LastUpdateAt      string  `json:"last_update_at"`
}

// Store is the C7 persistence-layer collaborator.
type Store interface {
	UpsertArtist(ctx context.Context, artist *shared.Artist) error
	GetArtistByNormalizedName(ctx context.Context, normalizedName string) (*shared.Artist, error)
	UpsertAlbum(ctx context.Context, album *shared.Album) error
	CommitWorkUnit(ctx context.Context, wu *shared.WorkUnit) error
	AppendScanHistory(ctx context.Context, h *shared.ScanHistory) error
	LastOKScan(ctx context.Context, albumID string) (*shared.ScanHistory, error)
	CacheGet(ctx context.Context, provider, key string) (payload []byte, found bool, err error)
	CacheSet(ctx context.Context, provider, key string, payload []byte, ttl int64) error
}
