package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/shared"
)

// stubRunner returns canned output per script base name and records invocations.
type stubRunner struct {
	mu      sync.Mutex
	calls   [][]string
	outputs map[string]string
	errs    map[string]error
	effect  func(args []string)
}

func (r *stubRunner) Run(ctx context.Context, name string, args ...string) (*ProcessResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()

	script := filepath.Base(args[0])
	if r.effect != nil {
		r.effect(args)
	}
	if err, ok := r.errs[script]; ok {
		return &ProcessResult{ExitCode: 1}, err
	}
	return &ProcessResult{Stdout: []byte(r.outputs[script]), Stderr: []byte("WARNING: chatter")}, nil
}

func newTestCollaborator(r *stubRunner) *ScriptCollaborator {
	return NewScriptCollaborator(ScriptOpts{
		Python: "/usr/bin/python3",
		Scripts: ScriptPaths{
			Metadata: "scripts/spotify_metadata.py",
			Playlist: "scripts/spotify_playlist.py",
			Search:   "scripts/fetch_youtube_url.py",
			Download: "scripts/youtube_downloader.py",
		},
		Runner: r,
		Logger: log.New(os.Stderr),
	})
}

var trackRef = models.Reference{
	Locator:  "https://open.spotify.com/track/abc",
	Kind:     models.KindTrack,
	Resource: "track",
	ID:       "abc",
}

var playlistRef = models.Reference{
	Locator:  "https://open.spotify.com/playlist/xyz",
	Kind:     models.KindPlaylist,
	Resource: "playlist",
	ID:       "xyz",
}

func TestScriptCollaboratorExtractTrack(t *testing.T) {
	tc := []struct {
		name    string
		output  string
		runErr  error
		want    *models.TrackMetadata
		wantErr error
	}{
		{
			name:   "payload after log lines",
			output: "Fetching https://open.spotify.com/track/abc\n{\"success\": true, \"metadata\": {\"title\": \"Rude\", \"artist\": \"Magic!\", \"album\": \"Don't Kill the Magic\", \"duration_s\": 224.84}}\n",
			want:   &models.TrackMetadata{Title: "Rude", Artist: "Magic!", Album: "Don't Kill the Magic", DurationMs: 224840},
		},
		{
			name:   "duration_ms preferred",
			output: `{"metadata": {"title": "A", "artist": "B", "duration_ms": 1000, "duration_s": 9}}`,
			want:   &models.TrackMetadata{Title: "A", Artist: "B", DurationMs: 1000},
		},
		{
			name:    "error payload",
			output:  `{"error": "not found"}`,
			wantErr: shared.ErrCollaboratorError,
		},
		{
			name:    "no json",
			output:  "Traceback (most recent call last):\n",
			wantErr: shared.ErrNoPayload,
		},
		{
			name:    "missing metadata object",
			output:  `{"success": true}`,
			wantErr: shared.ErrNoPayload,
		},
		{
			name:    "spawn failure",
			runErr:  shared.ErrToolNotInstalled,
			wantErr: shared.ErrToolNotInstalled,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRunner{outputs: map[string]string{"spotify_metadata.py": tt.output}}
			if tt.runErr != nil {
				r.errs = map[string]error{"spotify_metadata.py": tt.runErr}
			}

			got, err := newTestCollaborator(r).ExtractTrack(context.Background(), trackRef)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if *got != *tt.want {
				t.Errorf("ExtractTrack() = %+v, want %+v", *got, *tt.want)
			}

			call := r.calls[0]
			if call[0] != "/usr/bin/python3" || call[2] != trackRef.Locator {
				t.Errorf("unexpected invocation %v", call)
			}
		})
	}
}

func TestScriptCollaboratorExitErrorCarriesPayload(t *testing.T) {
	exitErr := &ExitError{Program: "python3", Code: 1, Stdout: []byte(`{"success": false, "error": "Error extracting track info: 404"}`)}
	r := &stubRunner{errs: map[string]error{"spotify_metadata.py": exitErr}}

	_, err := newTestCollaborator(r).ExtractTrack(context.Background(), trackRef)
	if !errors.Is(err, shared.ErrCollaboratorFailed) {
		t.Fatalf("expected ErrCollaboratorFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "Error extracting track info: 404") {
		t.Errorf("expected payload message in error, got %v", err)
	}
}

func TestScriptCollaboratorExtractPlaylist(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r := &stubRunner{outputs: map[string]string{"spotify_playlist.py": `Loading...
{"success": true, "playlist": {"name": "Road Trip", "owner": "sam", "track_count": 3, "tracks": [
  {"title": "A", "artist": "X", "album": "AA", "duration_ms": 1000},
  {"title": "B", "artist": "Y"},
  {"title": "", "artist": "Z"}
]}}`}}

		m, err := newTestCollaborator(r).ExtractPlaylist(context.Background(), playlistRef)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.Name != "Road Trip" || m.Owner != "sam" || m.TrackCount != 3 {
			t.Errorf("unexpected manifest header %+v", m)
		}
		if m.SourceReference != playlistRef.Locator {
			t.Errorf("expected source reference %s, got %s", playlistRef.Locator, m.SourceReference)
		}
		if len(m.Tracks) != 3 || m.Tracks[0].DurationMs != 1000 {
			t.Errorf("unexpected tracks %+v", m.Tracks)
		}
	})

	t.Run("Reported Failure", func(t *testing.T) {
		r := &stubRunner{outputs: map[string]string{"spotify_playlist.py": `{"success": false, "error": "private playlist"}`}}
		_, err := newTestCollaborator(r).ExtractPlaylist(context.Background(), playlistRef)
		if !errors.Is(err, shared.ErrCollaboratorError) {
			t.Fatalf("expected ErrCollaboratorError, got %v", err)
		}
	})

	t.Run("Track Count Defaults To Length", func(t *testing.T) {
		r := &stubRunner{outputs: map[string]string{"spotify_playlist.py": `{"success": true, "playlist": {"name": "P", "tracks": [{"title": "A", "artist": "X"}]}}`}}
		m, err := newTestCollaborator(r).ExtractPlaylist(context.Background(), playlistRef)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.TrackCount != 1 {
			t.Errorf("expected track count 1, got %d", m.TrackCount)
		}
	})
}

func TestScriptCollaboratorSearch(t *testing.T) {
	tc := []struct {
		name    string
		output  string
		want    string
		wantErr error
	}{
		{
			name:   "youtube_url",
			output: `{"success": true, "youtube_url": "https://www.youtube.com/watch?v=PIh2xe4jnpk", "search_query": "Rude Magic!"}`,
			want:   "https://www.youtube.com/watch?v=PIh2xe4jnpk",
		},
		{
			name:   "url alias",
			output: `{"url": "https://youtu.be/x", "title": "Rude (Official)", "duration": 225}`,
			want:   "https://youtu.be/x",
		},
		{
			name:    "null url",
			output:  `{"success": true, "youtube_url": null}`,
			wantErr: shared.ErrNoSourceFound,
		},
		{
			name:    "error",
			output:  `{"error": "quota"}`,
			wantErr: shared.ErrCollaboratorError,
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRunner{outputs: map[string]string{"fetch_youtube_url.py": tt.output}}
			src, err := newTestCollaborator(r).Search(context.Background(), "Rude", "Magic!")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if src.Locator != tt.want {
				t.Errorf("locator = %s, want %s", src.Locator, tt.want)
			}
			if args := r.calls[0]; args[2] != "Rude" || args[3] != "Magic!" {
				t.Errorf("unexpected args %v", args)
			}
		})
	}
}

func TestScriptCollaboratorDownload(t *testing.T) {
	tc := []struct {
		name    string
		output  string
		wantErr bool
	}{
		{name: "no structured output", output: "[download] 100% of 3.4MiB\n"},
		{name: "success payload", output: `{"success": true, "output_file": "/tmp/x.mp3"}`},
		{name: "explicit failure", output: `{"success": false, "error": "ffmpeg not found on PATH"}`, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			r := &stubRunner{outputs: map[string]string{"youtube_downloader.py": tt.output}}
			err := newTestCollaborator(r).Download(context.Background(), "https://youtu.be/x", "/tmp/x.mp3")
			if tt.wantErr != errors.Is(err, shared.ErrCollaboratorError) {
				t.Fatalf("unexpected error state: %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestScriptCollaboratorSearchAndDownload(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "old.mp3"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	r := &stubRunner{
		outputs: map[string]string{"youtube_downloader.py": "done"},
		effect: func(args []string) {
			out := args[len(args)-1]
			os.WriteFile(filepath.Join(out, "Rude.mp3.part"), []byte("partial"), 0644)
			os.WriteFile(filepath.Join(out, "empty.mp3"), nil, 0644)
			os.WriteFile(filepath.Join(out, "Rude.mp3"), []byte("ID3audio"), 0644)
		},
	}

	got, err := newTestCollaborator(r).SearchAndDownload(context.Background(), "Rude", "Magic!", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(got) != "Rude.mp3" {
		t.Errorf("expected Rude.mp3, got %s", got)
	}
	if args := r.calls[0]; len(args) != 5 || args[2] != "Rude" || args[4] != dir {
		t.Errorf("unexpected invocation %v", args)
	}

	t.Run("Nothing New", func(t *testing.T) {
		r := &stubRunner{outputs: map[string]string{"youtube_downloader.py": ""}}
		_, err := newTestCollaborator(r).SearchAndDownload(context.Background(), "A", "B", t.TempDir())
		if !errors.Is(err, shared.ErrEmptyArtifact) {
			t.Fatalf("expected ErrEmptyArtifact, got %v", err)
		}
	})
}

func TestNewestArtifact(t *testing.T) {
	before := map[string]int64{"old.mp3": 900}

	tests := []struct {
		name  string
		after map[string]int64
		want  string
	}{
		{"largest wins", map[string]int64{"old.mp3": 900, "a.webm": 10, "b.mp3": 400, "c.m4a": 200}, "b.mp3"},
		{"tie broken by name", map[string]int64{"z.mp3": 50, "k.mp3": 50, "m.mp3": 50}, "k.mp3"},
		{"partials and empties ignored", map[string]int64{"x.part.mp3": 999, "y.part": 999, "e.mp3": 0, "ok.mp3": 1}, "ok.mp3"},
		{"nothing new", map[string]int64{"old.mp3": 1200}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for range 20 {
				if got := newestArtifact(before, tt.after); got != tt.want {
					t.Fatalf("newestArtifact() = %q, want %q", got, tt.want)
				}
			}
		})
	}
}

func TestScriptCollaboratorMissingScript(t *testing.T) {
	c := NewScriptCollaborator(ScriptOpts{Python: "python3", Runner: &stubRunner{}})
	_, err := c.ExtractTrack(context.Background(), trackRef)
	if !errors.Is(err, shared.ErrMissingConfig) {
		t.Fatalf("expected ErrMissingConfig, got %v", err)
	}
}
