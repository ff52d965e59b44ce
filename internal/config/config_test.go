package config

import (
	"math"
	"path/filepath"
	"testing"
)

func TestDefaultConfig_IsValidOnceGivenAnAccount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Accounts = []Account{{Name: "main", MusicServerURL: "http://localhost:4533"}}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
	if cfg.Weights.Sum() == 0 {
		t.Errorf("default weights sum to 0")
	}
}

func TestWeights_Presets(t *testing.T) {
	if got := DefaultWeights().Sum(); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("DefaultWeights().Sum() = %f, want 1.0", got)
	}
	if got := AltWeights().Sum(); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("AltWeights().Sum() = %f, want 1.0", got)
	}
}

func TestValidate_RequiresAtLeastOneAccount(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for zero accounts")
	}
}

func TestValidate_RequiresMusicServerURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Accounts = []Account{{Name: "main"}}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for missing music_server_url")
	}
}

func TestValidate_RejectsZeroWeightSum(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Accounts = []Account{{Name: "main", MusicServerURL: "http://localhost:4533"}}
	cfg.Weights = Weights{}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() = nil, want error for all-zero weights")
	}
}

func TestSaveAndLoadConfig_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albumscan.json")

	original := DefaultConfig()
	original.Accounts = []Account{{
		Name:           "main",
		MusicServerURL: "http://localhost:4533",
		Providers: ProvidersConfig{
			Spotify: ProviderConfig{Enabled: true, ClientID: "id", ClientSecret: "secret"},
		},
	}}
	original.CapTop4Pct = 0.3

	if err := SaveConfig(path, original); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}

	loaded := DefaultConfig()
	if err := LoadConfig(path, loaded); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if loaded.CapTop4Pct != 0.3 {
		t.Errorf("loaded.CapTop4Pct = %f, want 0.3", loaded.CapTop4Pct)
	}
	if len(loaded.Accounts) != 1 || loaded.Accounts[0].MusicServerURL != "http://localhost:4533" {
		t.Errorf("loaded.Accounts = %+v, want round-tripped account", loaded.Accounts)
	}
	if !loaded.Accounts[0].Providers.Spotify.Enabled {
		t.Errorf("loaded Spotify provider not enabled after round trip")
	}
}

func TestLoadConfig_MissingFileReturnsError(t *testing.T) {
	cfg := DefaultConfig()
	if err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"), cfg); err == nil {
		t.Error("LoadConfig() = nil, want error for missing file")
	}
}

func TestCreateDirIfNotExists_CreatesNestedPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := CreateDirIfNotExists(dir); err != nil {
		t.Fatalf("CreateDirIfNotExists() error = %v", err)
	}
}
