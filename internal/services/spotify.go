// Spotify Web API implementation of [Extractor]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/shared"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album. Tracks is only populated on the full album object.
type SpotifyAlbum struct {
	ID          string                    `json:"id"`
	Name        string                    `json:"name"`
	Artists     []SpotifyArtist           `json:"artists"`
	ReleaseDate string                    `json:"release_date"`
	TotalTracks int                       `json:"total_tracks"`
	Tracks      spotifyPage[SpotifyTrack] `json:"tracks"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      *SpotifyAlbum   `json:"album,omitempty"`
	DurationMS int             `json:"duration_ms"`
}

type spotifyOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is
// null for removed or local items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID     string                            `json:"id"`
	Name   string                            `json:"name"`
	Owner  spotifyOwner                      `json:"owner"`
	Tracks spotifyPage[SpotifyPlaylistTrack] `json:"tracks"`
}

// SpotifyShow represents a podcast show.
type SpotifyShow struct {
	ID            string                      `json:"id"`
	Name          string                      `json:"name"`
	Publisher     string                      `json:"publisher"`
	TotalEpisodes int                         `json:"total_episodes"`
	Episodes      spotifyPage[SpotifyEpisode] `json:"episodes"`
}

// SpotifyEpisode represents a podcast episode.
type SpotifyEpisode struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	DurationMS int          `json:"duration_ms"`
	Show       *SpotifyShow `json:"show,omitempty"`
}

type spotifyPage[T any] struct {
	Items  []T     `json:"items"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
	Next   *string `json:"next"`
}

// SpotifyAPIExtractor implements [Extractor] against the Spotify Web API using
// the client-credentials grant. No user login is involved.
type SpotifyAPIExtractor struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// SpotifyOpts configures a [SpotifyAPIExtractor]. Empty URLs use the public endpoints.
type SpotifyOpts struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	Logger       *log.Logger
}

// NewSpotifyAPIExtractor creates an extractor whose HTTP client fetches and
// refreshes app tokens on demand.
func NewSpotifyAPIExtractor(ctx context.Context, opts SpotifyOpts) (*SpotifyAPIExtractor, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if opts.TokenURL == "" {
		opts.TokenURL = spotifyTokenURL
	}
	if opts.BaseURL == "" {
		opts.BaseURL = spotifyBaseURL
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	cfg := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
	}

	return &SpotifyAPIExtractor{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: cfg.Client(ctx),
		logger:     opts.Logger,
	}, nil
}

// get performs an authenticated GET. endpoint may be a path or an absolute
// "next" URL returned by a paged response.
func (s *SpotifyAPIExtractor) get(ctx context.Context, endpoint string, result any) error {
	apiURL := endpoint
	if !strings.HasPrefix(endpoint, "http") {
		apiURL = s.baseURL + endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: spotify status %d: %s", shared.ErrAPIRequest, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// ExtractTrack implements [MetadataExtractor] for track and episode references.
func (s *SpotifyAPIExtractor) ExtractTrack(ctx context.Context, ref models.Reference) (*models.TrackMetadata, error) {
	switch ref.Resource {
	case "track":
		var t SpotifyTrack
		if err := s.get(ctx, "/tracks/"+ref.ID, &t); err != nil {
			return nil, err
		}
		md := trackMetadata(t, "")
		return &md, nil
	case "episode":
		var e SpotifyEpisode
		if err := s.get(ctx, "/episodes/"+ref.ID, &e); err != nil {
			return nil, err
		}
		md := models.TrackMetadata{Title: e.Name, DurationMs: e.DurationMS}
		if e.Show != nil {
			md.Artist, md.Album = e.Show.Publisher, e.Show.Name
		}
		return &md, nil
	default:
		return nil, fmt.Errorf("%w: unsupported resource %q", shared.ErrInvalidInput, ref.Resource)
	}
}

// ExtractPlaylist implements [PlaylistExtractor] for playlist, album and show
// references, following pagination until every item is read.
func (s *SpotifyAPIExtractor) ExtractPlaylist(ctx context.Context, ref models.Reference) (*models.PlaylistManifest, error) {
	m := &models.PlaylistManifest{SourceReference: ref.Locator}

	switch ref.Resource {
	case "playlist":
		var p SpotifyPlaylist
		if err := s.get(ctx, "/playlists/"+ref.ID, &p); err != nil {
			return nil, err
		}
		m.Name, m.Owner, m.TrackCount = p.Name, p.Owner.DisplayName, p.Tracks.Total
		items, err := collect(ctx, s, p.Tracks)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if it.Track == nil {
				continue
			}
			m.Tracks = append(m.Tracks, trackMetadata(*it.Track, ""))
		}

	case "album":
		var a SpotifyAlbum
		if err := s.get(ctx, "/albums/"+ref.ID, &a); err != nil {
			return nil, err
		}
		m.Name, m.Owner, m.TrackCount = a.Name, joinArtists(a.Artists), a.TotalTracks
		items, err := collect(ctx, s, a.Tracks)
		if err != nil {
			return nil, err
		}
		for _, t := range items {
			m.Tracks = append(m.Tracks, trackMetadata(t, a.Name))
		}

	case "show":
		var sh SpotifyShow
		if err := s.get(ctx, "/shows/"+ref.ID, &sh); err != nil {
			return nil, err
		}
		m.Name, m.Owner, m.TrackCount = sh.Name, sh.Publisher, sh.TotalEpisodes
		items, err := collect(ctx, s, sh.Episodes)
		if err != nil {
			return nil, err
		}
		for _, e := range items {
			m.Tracks = append(m.Tracks, models.TrackMetadata{
				Title:      e.Name,
				Artist:     sh.Publisher,
				Album:      sh.Name,
				DurationMs: e.DurationMS,
			})
		}

	default:
		return nil, fmt.Errorf("%w: unsupported resource %q", shared.ErrInvalidInput, ref.Resource)
	}

	if m.TrackCount == 0 {
		m.TrackCount = len(m.Tracks)
	}
	s.logger.Debug("spotify manifest", "resource", ref.Resource, "name", m.Name, "tracks", len(m.Tracks))
	return m, nil
}

// collect returns the items of first and of every page linked from it.
func collect[T any](ctx context.Context, s *SpotifyAPIExtractor, first spotifyPage[T]) ([]T, error) {
	items := append([]T(nil), first.Items...)
	next := first.Next
	for next != nil && *next != "" {
		var page spotifyPage[T]
		if err := s.get(ctx, *next, &page); err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
		next = page.Next
	}
	return items, nil
}

func trackMetadata(t SpotifyTrack, album string) models.TrackMetadata {
	if t.Album != nil {
		album = t.Album.Name
	}
	return models.TrackMetadata{
		Title:      t.Name,
		Artist:     joinArtists(t.Artists),
		Album:      album,
		DurationMs: t.DurationMS,
	}
}

func joinArtists(artists []SpotifyArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}
