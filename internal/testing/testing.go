// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/shared"
)

// MockExtractor is a test double for the metadata and playlist extractors.
type MockExtractor struct {
	Tracks      map[string]models.TrackMetadata // keyed by reference locator
	TrackErrs   map[string]error
	Manifest    *models.PlaylistManifest
	ManifestErr error

	TrackCalls    atomic.Int64
	PlaylistCalls atomic.Int64
}

func (m *MockExtractor) ExtractTrack(ctx context.Context, ref models.Reference) (*models.TrackMetadata, error) {
	m.TrackCalls.Add(1)
	if err, ok := m.TrackErrs[ref.Locator]; ok {
		return nil, err
	}
	md, ok := m.Tracks[ref.Locator]
	if !ok {
		return nil, shared.ErrTrackNotFound
	}
	return &md, nil
}

func (m *MockExtractor) ExtractPlaylist(ctx context.Context, ref models.Reference) (*models.PlaylistManifest, error) {
	m.PlaylistCalls.Add(1)
	if m.ManifestErr != nil {
		return nil, m.ManifestErr
	}
	if m.Manifest == nil {
		return nil, shared.ErrPlaylistNotFound
	}
	out := *m.Manifest
	out.Tracks = append([]models.TrackMetadata(nil), m.Manifest.Tracks...)
	return &out, nil
}

// MockSearcher maps "title|artist" keys to canned sources.
type MockSearcher struct {
	Sources map[string]models.AudioSource
	Errs    map[string]error
	Calls   atomic.Int64
}

// Key builds the lookup key used by [MockSearcher].
func Key(title, artist string) string {
	return shared.NormalizeTrackKey(title, artist)
}

func (m *MockSearcher) Search(ctx context.Context, title, artist string) (*models.AudioSource, error) {
	m.Calls.Add(1)
	k := Key(title, artist)
	if err, ok := m.Errs[k]; ok {
		return nil, err
	}
	if src, ok := m.Sources[k]; ok {
		return &src, nil
	}
	return &models.AudioSource{Locator: "https://www.youtube.com/watch?v=" + k}, nil
}

// MockDownloader writes Size bytes to the requested path. Delays, Gates and
// Errs are keyed by locator. Empty makes it exit cleanly without writing
// anything; PartialOnError writes a few bytes before returning an error from Errs.
type MockDownloader struct {
	Size           int
	Delays         map[string]time.Duration
	Gates          map[string]chan struct{} // download blocks until the channel is closed
	Errs           map[string]error
	Empty          bool
	PartialOnError bool
	Calls          atomic.Int64
	Paths          sync.Map // locator -> last requested output path
	OnComplete     func(locator string, completed int)

	inFlight    atomic.Int64
	MaxInFlight atomic.Int64 // highest number of concurrent Download calls observed

	mu        sync.Mutex
	Completed []string // locators in completion order
}

func (m *MockDownloader) Download(ctx context.Context, locator, outputPath string) error {
	m.Calls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		peak := m.MaxInFlight.Load()
		if n <= peak || m.MaxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	m.Paths.Store(locator, outputPath)
	if gate, ok := m.Gates[locator]; ok {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if d, ok := m.Delays[locator]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err, ok := m.Errs[locator]; ok {
		if m.PartialOnError {
			if werr := os.WriteFile(outputPath, []byte("half-written"), 0644); werr != nil {
				return werr
			}
		}
		return err
	}
	if !m.Empty {
		size := m.Size
		if size <= 0 {
			size = 1024
		}
		f, err := os.Create(outputPath)
		if err != nil {
			return err
		}
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.Completed = append(m.Completed, locator)
	completed := len(m.Completed)
	m.mu.Unlock()
	if m.OnComplete != nil {
		m.OnComplete(locator, completed)
	}
	return nil
}

// CompletionOrder returns a copy of the locators in the order downloads finished.
func (m *MockDownloader) CompletionOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Completed...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

// MustWriteFile writes size bytes to path, creating parent directories.
func MustWriteFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

// CountFiles returns the number of regular files in dir with the given extension.
func CountFiles(t *testing.T, dir, ext string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir %s: %v", dir, err)
	}
	n := 0
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == ext {
			n++
		}
	}
	return n
}
