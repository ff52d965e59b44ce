// Package musicserver implements interfaces.MusicServerClient against a
// Subsonic-compatible music server. Adapted from the teacher's
// internal/api/navidrome client: same go-subsonic auth dance (ping, salted
// token, subsonic.Client.Authenticate), generalized from "find a track to
// download" to "walk the whole library and write ratings back" (spec §6).
package musicserver

import (
	"context"
	"fmt"
	"net/http"

	subsonic "github.com/delucks/go-subsonic"

	"albumscan/internal/interfaces"
)

// Client talks to one Subsonic-compatible server (Navidrome, Airsonic, etc.).
// Constructed per-account (spec's multi-account support), never a singleton.
type Client struct {
	url      string
	username string
	password string
	sdk      subsonic.Client
}

// New constructs an unauthenticated client. Call Authenticate before use.
func New(url, username, password string) *Client {
	return &Client{url: url, username: username, password: password}
}

// Authenticate logs into the Subsonic server with salted-token auth.
func (c *Client) Authenticate(ctx context.Context) error {
	c.sdk = subsonic.Client{
		Client:       http.DefaultClient,
		BaseUrl:      c.url,
		User:         c.username,
		ClientName:   "albumscan",
		PasswordAuth: true,
	}
	if err := c.sdk.Authenticate(c.password); err != nil {
		return fmt.Errorf("musicserver: authenticate: %w", err)
	}
	return nil
}

// ListArtists returns every artist in the library (spec §6 list_artists).
func (c *Client) ListArtists(ctx context.Context) ([]interfaces.MusicServerArtist, error) {
	indexes, err := c.sdk.GetArtists()
	if err != nil {
		return nil, fmt.Errorf("musicserver: list artists: %w", err)
	}

	var out []interfaces.MusicServerArtist
	for _, idx := range indexes.Index {
		for _, a := range idx.Artist {
			out = append(out, interfaces.MusicServerArtist{ID: a.ID, Name: a.Name})
		}
	}
	return out, nil
}

// ListAlbums returns every album for one artist (spec §6 list_albums).
func (c *Client) ListAlbums(ctx context.Context, artistID string) ([]interfaces.MusicServerAlbum, error) {
	artist, err := c.sdk.GetArtist(artistID)
	if err != nil {
		return nil, fmt.Errorf("musicserver: list albums for artist %s: %w", artistID, err)
	}

	out := make([]interfaces.MusicServerAlbum, 0, len(artist.Album))
	for _, al := range artist.Album {
		out = append(out, interfaces.MusicServerAlbum{
			ID:         al.ID,
			Title:      al.Name,
			Year:       al.Year,
			TrackCount: al.SongCount,
			CoverURL:   al.CoverArt,
			// Genre is the closest Subsonic album field to spec §6's list_albums
			// `type?`; feeds classifyAlbumContext's provider-metadata half
			// alongside title patterns (GLOSSARY "Album context").
			Type: al.Genre,
		})
	}
	return out, nil
}

// ListTracks returns every track on one album (spec §6 list_tracks).
func (c *Client) ListTracks(ctx context.Context, albumID string) ([]interfaces.MusicServerItem, error) {
	album, err := c.sdk.GetAlbum(albumID)
	if err != nil {
		return nil, fmt.Errorf("musicserver: list tracks for album %s: %w", albumID, err)
	}

	out := make([]interfaces.MusicServerItem, 0, len(album.Song))
	for _, song := range album.Song {
		out = append(out, interfaces.MusicServerItem{
			ID:       song.ID,
			Title:    song.Title,
			TrackNo:  song.Track,
			DiscNo:   song.DiscNumber,
			Duration: song.Duration,
			Artist:   song.Artist,
			Album:    song.Album,
			Genre:    song.Genre,
		})
	}
	return out, nil
}

// SetRating writes a star rating (0-5) back to the server (spec §6
// set_rating). 0 clears the rating.
func (c *Client) SetRating(ctx context.Context, trackID string, stars int) error {
	if stars < 0 || stars > 5 {
		return fmt.Errorf("musicserver: invalid rating %d for track %s", stars, trackID)
	}
	if err := c.sdk.SetRating(trackID, stars); err != nil {
		return fmt.Errorf("musicserver: set rating for track %s: %w", trackID, err)
	}
	return nil
}
