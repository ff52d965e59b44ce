package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// RequestTimeout is the default per-request timeout for providers that don't
// override it (spec §5: "10 s elsewhere").
const RequestTimeout = 10 * time.Second

// MusicBrainzRequestTimeout is MusicBrainz's tighter per-request timeout (spec §5).
const MusicBrainzRequestTimeout = 5 * time.Second

// AlbumWallClockGuard bounds how long one album's fetch phase may run before the
// album is marked partial (spec §5).
const AlbumWallClockGuard = 120 * time.Second

// Weights configures the popularity fuser's source weights (spec §4.4).
// Two documented presets exist in the source material; both are expressible here,
// selected by setting these fields directly rather than hardcoding either one
// (spec §9 Open Questions).
type Weights struct {
	Spotify      float64 `json:"spotify"`
	LastFM       float64 `json:"lastfm"`
	ListenBrainz float64 `json:"listenbrainz"`
	Age          float64 `json:"age"`
}

// DefaultWeights returns the primary documented default (spec §4.4).
func DefaultWeights() Weights {
	return Weights{Spotify: 0.30, LastFM: 0.50, ListenBrainz: 0.0, Age: 0.20}
}

// AltWeights returns the alternate documented preset (spec §4.4, §9).
func AltWeights() Weights {
	return Weights{Spotify: 0.4, LastFM: 0.3, ListenBrainz: 0.2, Age: 0.1}
}

// Sum returns the sum of all four weights.
func (w Weights) Sum() float64 {
	return w.Spotify + w.LastFM + w.ListenBrainz + w.Age
}

// ProviderConfig holds per-provider enablement, credentials, and a rate field
// (spec §6: "provider.<name>.enabled", "provider.<name>.credentials", "rate_limits.<provider>").
type ProviderConfig struct {
	Enabled       bool    `json:"enabled"`
	ClientID      string  `json:"client_id,omitempty"`
	ClientSecret  string  `json:"client_secret,omitempty"`
	Token         string  `json:"token,omitempty"`
	RateLimitReqS float64 `json:"rate_limit_req_s,omitempty"` // loaded and saved only; every provider client uses its built-in rate
}

// ProvidersConfig groups per-provider settings for all five external providers.
type ProvidersConfig struct {
	Spotify      ProviderConfig `json:"spotify"`
	LastFM       ProviderConfig `json:"lastfm"`
	ListenBrainz ProviderConfig `json:"listenbrainz"`
	MusicBrainz  ProviderConfig `json:"musicbrainz"`
	Discogs      ProviderConfig `json:"discogs"`
}

// Account is one music-server + credential bundle (spec §6: "Credentials per user").
// The coordinator processes one active account per run (spec §4.9).
type Account struct {
	Name            string          `json:"name"`
	MusicServerURL  string          `json:"music_server_url"`
	MusicServerUser string          `json:"music_server_user"`
	MusicServerPass string          `json:"music_server_pass"`
	Providers       ProvidersConfig `json:"providers"`
}

// Features groups the boolean run-mode switches from spec §6.
type Features struct {
	Force     bool `json:"force"`     // bypass resume/freshness filter
	Perpetual bool `json:"perpetual"` // restart the loop after completion
	Batchrate bool `json:"batchrate"` // whole-library mode vs single-artist/album mode
}

// Config is the fixed configuration record the pipeline recognizes (spec §6, §9).
// Unknown keys in the source JSON are warned about, never silently accepted
// (spec §9's "dynamic config objects" redesign flag).
type Config struct {
	Accounts []Account `json:"accounts"`

	Weights Weights `json:"weights"`

	Features Features `json:"features"`

	CapTop4Pct           float64 `json:"cap_top4_pct"`
	ZScoreThreshold      float64 `json:"zscore_threshold"`
	UseAdvancedDetection bool    `json:"use_advanced_detection"`

	FreshnessDays int `json:"freshness_days"`

	ArtistFilter string `json:"artist_filter,omitempty"`
	AlbumFilter  string `json:"album_filter,omitempty"`

	Parallelism int `json:"parallelism"` // N concurrent provider tasks per album, spec §5

	DatabasePath string `json:"database_path"`
	ProgressPath string `json:"progress_path"`

	ConsecutiveFatalLimit int `json:"consecutive_fatal_limit"`
}

// DefaultConfig returns a configuration populated with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Accounts: nil,
		Weights:  DefaultWeights(),
		Features: Features{
			Force:     false,
			Perpetual: false,
			Batchrate: true,
		},
		CapTop4Pct:            0.25,
		ZScoreThreshold:       0.20,
		UseAdvancedDetection:  false,
		FreshnessDays:         7,
		Parallelism:           5,
		DatabasePath:          "albumscan.db",
		ProgressPath:          "progress.json",
		ConsecutiveFatalLimit: 10,
	}
}

// LoadConfig loads configuration from a JSON file. Unknown top-level fields are
// logged as warnings rather than rejected or silently dropped (spec §9).
func LoadConfig(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	warnUnknownFields(data)

	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

// warnUnknownFields decodes into a throwaway copy with DisallowUnknownFields to
// surface unrecognized keys as warnings without failing the load.
func warnUnknownFields(data []byte) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var probe Config
	if err := dec.Decode(&probe); err != nil {
		log.Printf("config: warning: %v", err)
	}
}

// SaveConfig saves configuration to a JSON file.
func SaveConfig(filePath string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	dir := filepath.Dir(filePath)
	if err := CreateDirIfNotExists(dir); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateDirIfNotExists creates a directory if it does not exist.
func CreateDirIfNotExists(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// Validate checks the minimal invariants required to start a run.
func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}
	for i, a := range c.Accounts {
		if a.MusicServerURL == "" {
			return fmt.Errorf("account %d: music_server_url is required", i)
		}
	}
	if c.Weights.Sum() == 0 {
		return fmt.Errorf("weights must not sum to zero")
	}
	return nil
}
