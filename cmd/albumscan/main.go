package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"albumscan/internal/config"
	"albumscan/internal/identity"
	"albumscan/internal/musicserver"
	"albumscan/internal/pipeline"
	"albumscan/internal/progress"
	"albumscan/internal/providers/discogs"
	"albumscan/internal/providers/lastfm"
	"albumscan/internal/providers/listenbrainz"
	"albumscan/internal/providers/musicbrainz"
	"albumscan/internal/providers/spotify"
	"albumscan/internal/shared"
	"albumscan/internal/store"
)

// perpetualSleepWindow is the pause between runs in perpetual mode (spec §6
// "features.perpetual... sleep window configurable").
const perpetualSleepWindow = 1 * time.Hour

const authorName = "albumscan contributors"

var (
	configPath string
	debug      bool
	force      bool
	artist     string
	album      string
)

var rootCmd = &cobra.Command{
	Use:   "albumscan",
	Short: "Scores and classifies a music library by popularity and single status.",
	Long: fmt.Sprintf("albumscan rates every track in a music library 1-5 stars based on relative popularity\n"+
		"and flags singles, writing both back to the library as star ratings.\n\nMaintained by %s.", authorName),
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the configured library and write back ratings.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runScan(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current progress snapshot.",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStatus(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	shared.InitializeColors()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "albumscan.json", "path to config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	scanCmd.Flags().BoolVar(&force, "force", false, "bypass the freshness/resume filter")
	scanCmd.Flags().StringVar(&artist, "artist", "", "scan only this artist")
	scanCmd.Flags().StringVar(&album, "album", "", "scan only this album")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
}

// runStatus reads the progress file written by C8 and prints it, the way a
// UI process reading the same file would (spec §4.8, §6). It never talks to
// the music server or providers.
func runStatus() error {
	cfg := config.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if err := config.LoadConfig(configPath, cfg); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}

	data, err := os.ReadFile(cfg.ProgressPath)
	if err != nil {
		return fmt.Errorf("read progress file %s: %w", cfg.ProgressPath, err)
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runScan() error {
	logger := shared.NewLogger()
	logger.SetDebugMode(debug)

	cfg := config.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if err := config.LoadConfig(configPath, cfg); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if force {
		cfg.Features.Force = true
	}
	if artist != "" {
		cfg.ArtistFilter = artist
	}
	if album != "" {
		cfg.AlbumFilter = album
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	account := cfg.Accounts[0]

	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	reporter := progress.New(cfg.ProgressPath)
	warnings := shared.NewWarningCollector(true)

	ms := musicserver.New(account.MusicServerURL, account.MusicServerUser, account.MusicServerPass)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := ms.Authenticate(ctx); err != nil {
		return fmt.Errorf("authenticate to music server: %w", err)
	}

	providers, err := buildProviders(ctx, account.Providers, debug)
	if err != nil {
		return fmt.Errorf("build providers: %w", err)
	}

	idResolver := identity.New(providers.Spotify, providers.MusicBrainz, providers.Discogs, db)

	coordinator := pipeline.New(ms, providers, idResolver, db, reporter, logger, warnings, cfg)

	for {
		logger.Info("starting scan for account %s", account.Name)
		if err := coordinator.Run(ctx); err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		if warnings.HasWarnings() {
			warnings.PrintSummary()
		}
		logger.Success("scan complete")

		if !cfg.Features.Perpetual {
			break
		}

		logger.Info("perpetual mode: sleeping %s before next scan", perpetualSleepWindow)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(perpetualSleepWindow):
		}
	}
	return nil
}

func buildProviders(ctx context.Context, p config.ProvidersConfig, debug bool) (pipeline.Providers, error) {
	var providers pipeline.Providers

	if p.Spotify.Enabled {
		sp := spotify.New(p.Spotify.ClientID, p.Spotify.ClientSecret, debug)
		if err := sp.Authenticate(ctx); err != nil {
			return providers, fmt.Errorf("spotify: %w", err)
		}
		providers.Spotify = sp
	}
	if p.LastFM.Enabled {
		providers.LastFM = lastfm.New(p.LastFM.Token, debug)
	}
	if p.ListenBrainz.Enabled {
		providers.ListenBrainz = listenbrainz.New(p.ListenBrainz.Token, debug)
	}
	if p.MusicBrainz.Enabled {
		providers.MusicBrainz = musicbrainz.New(debug)
	}
	if p.Discogs.Enabled {
		providers.Discogs = discogs.New(p.Discogs.Token, debug)
	}

	return providers, nil
}
