package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songrip/internal/formatter"
	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/reference"
	"github.com/desertthunder/songrip/internal/services"
	"github.com/desertthunder/songrip/internal/shared"
	"github.com/desertthunder/songrip/internal/tasks"
)

// maxBodyBytes caps request bodies; every endpoint takes a single locator.
const maxBodyBytes = 64 << 10

// Engine runs download jobs. Satisfied by [tasks.Engine].
type Engine interface {
	Validate(raw string) (models.Reference, error)
	Track(ctx context.Context, raw string) (models.TrackOutcome, error)
	Playlist(ctx context.Context, raw string, progress chan<- tasks.ProgressUpdate) (*models.PlaylistResult, error)
	Metadata(ctx context.Context, raw string) (*models.TrackMetadata, error)
	Source(ctx context.Context, md models.TrackMetadata) (*models.AudioSource, error)
}

// downloadRequest accepts the locator under "url" or "spotifyUrl".
type downloadRequest struct {
	URL        string `json:"url"`
	SpotifyURL string `json:"spotifyUrl"`
}

func (d downloadRequest) locator() string {
	if d.URL != "" {
		return d.URL
	}
	return d.SpotifyURL
}

// sourceRequest accepts title and artist, or their TrackName/ArtistName aliases.
type sourceRequest struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	TrackName  string `json:"TrackName"`
	ArtistName string `json:"ArtistName"`
}

func (s sourceRequest) metadata() models.TrackMetadata {
	md := models.TrackMetadata{Title: s.Title, Artist: s.Artist}
	if md.Title == "" {
		md.Title = s.TrackName
	}
	if md.Artist == "" {
		md.Artist = s.ArtistName
	}
	return md
}

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Details string `json:"details,omitempty"`
}

type trackResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Album   string `json:"album,omitempty"`
	Path    string `json:"path"`
	Bytes   int64  `json:"bytes"`
	Skipped bool   `json:"skipped,omitempty"`
}

type playlistResponse struct {
	Success bool `json:"success"`
	formatter.Summary
}

type metadataResponse struct {
	Success bool `json:"success"`
	models.TrackMetadata
}

type sourceResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Title   string `json:"resolvedTitle,omitempty"`
}

type validateResponse struct {
	Success  bool   `json:"success"`
	Kind     string `json:"kind"`
	Resource string `json:"resource"`
	ID       string `json:"id"`
}

// DownloadHandler serves the download endpoints.
type DownloadHandler struct {
	engine Engine
	logger *log.Logger
}

// NewDownloadHandler creates a [DownloadHandler].
func NewDownloadHandler(engine Engine, logger *log.Logger) *DownloadHandler {
	return &DownloadHandler{engine: engine, logger: logger}
}

// Index lists the available endpoints.
func (h *DownloadHandler) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "songrip download server is running",
		"endpoints": []string{
			"GET /health", "POST /api/validate", "POST /api/metadata", "POST /api/source",
			"POST /api/track", "POST /api/playlist",
		},
	})
}

// Health reports liveness.
func (h *DownloadHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Validate classifies a locator without running anything.
func (h *DownloadHandler) Validate(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.decode(w, r)
	if !ok {
		return
	}

	ref, err := h.engine.Validate(raw)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Success:  true,
		Kind:     ref.Kind.String(),
		Resource: ref.Resource,
		ID:       ref.ID,
	})
}

// Track downloads a single track.
func (h *DownloadHandler) Track(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.decode(w, r)
	if !ok {
		return
	}

	o, err := h.engine.Track(jobContext(r), raw)
	if err != nil {
		h.fail(w, err)
		return
	}

	msg := "Download completed"
	if o.Skipped {
		msg = "Already downloaded"
	}
	writeJSON(w, http.StatusOK, trackResponse{
		Success: true,
		Message: msg,
		Title:   o.Track.Title,
		Artist:  o.Track.Artist,
		Album:   o.Track.Album,
		Path:    o.OutputPath,
		Bytes:   o.BytesWritten,
		Skipped: o.Skipped,
	})
}

// Playlist downloads a playlist, album or show. Individual track failures are
// reported in the summary and do not fail the request.
func (h *DownloadHandler) Playlist(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.decode(w, r)
	if !ok {
		return
	}

	result, err := h.engine.Playlist(jobContext(r), raw, nil)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, playlistResponse{Success: true, Summary: formatter.NewSummary(result)})
}

// Metadata extracts a track's metadata without searching or downloading.
func (h *DownloadHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.decode(w, r)
	if !ok {
		return
	}

	md, err := h.engine.Metadata(jobContext(r), raw)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, metadataResponse{Success: true, TrackMetadata: *md})
}

// Source finds the audio source for a title and artist without downloading it.
func (h *DownloadHandler) Source(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if !readJSON(w, r, &req) {
		return
	}
	md := req.metadata()
	if !md.Complete() {
		writeError(w, http.StatusBadRequest, "title and artist are required")
		return
	}

	src, err := h.engine.Source(jobContext(r), md)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sourceResponse{Success: true, URL: src.Locator, Title: src.ResolvedTitle})
}

// jobContext keeps request values but not its cancellation: a job that has
// started runs to completion even if the client disconnects.
func jobContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// readJSON decodes the request body into v, writing a 400 when it is unusable.
func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Request body must be a JSON object")
		return false
	}
	return true
}

// decode reads the request body and returns the locator. It writes a 400 and
// returns false when the body is unusable.
func (h *DownloadHandler) decode(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req downloadRequest
	if !readJSON(w, r, &req) {
		return "", false
	}
	if req.locator() == "" {
		writeError(w, http.StatusBadRequest, "Spotify URL is required")
		return "", false
	}
	return req.locator(), true
}

// fail maps an engine error to a status code and error body.
func (h *DownloadHandler) fail(w http.ResponseWriter, err error) {
	status, body := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "err", err)
	}
	writeJSON(w, status, body)
}

func errorStatus(err error) (int, errorResponse) {
	if reason, ok := reference.ReasonOf(err); ok {
		return http.StatusBadRequest, errorResponse{Error: "Invalid Spotify URL format", Reason: string(reason), Details: err.Error()}
	}

	body := errorResponse{Error: "Download failed", Details: err.Error()}
	if stage, ok := services.StageOf(err); ok {
		body.Stage = string(stage)
	}

	var merr *services.ManifestError
	switch {
	case errors.Is(err, shared.ErrToolNotInstalled):
		body.Error = "Required tool is not installed"
		return http.StatusServiceUnavailable, body
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		body.Error = "Request cancelled"
		return http.StatusServiceUnavailable, body
	case errors.As(err, &merr):
		body.Error = "Failed to read playlist"
		return http.StatusBadGateway, body
	case body.Stage == string(models.StageMetadata):
		body.Error = "Failed to extract metadata"
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
