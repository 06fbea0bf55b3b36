package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/shared"
	tu "github.com/desertthunder/songrip/internal/testing"
)

func TestAcquisitionService(t *testing.T) {
	ctx := context.Background()
	src := models.AudioSource{Locator: "https://www.youtube.com/watch?v=PIh2xe4jnpk"}

	t.Run("Writes And Verifies", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "Rude - Magic!.mp3")
		d := &tu.MockDownloader{Size: 4_500_000}

		res, err := NewAcquisitionService(d, nil).Acquire(ctx, src, path, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.BytesWritten != 4_500_000 {
			t.Errorf("expected 4500000 bytes, got %d", res.BytesWritten)
		}
		if res.Path != path {
			t.Errorf("expected path %s, got %s", path, res.Path)
		}
		tu.AssertFileExists(t, path)
	})

	t.Run("Identifies Container", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tagged.mp3")
		d := &writerDownloader{data: append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 256)...)}

		res, err := NewAcquisitionService(d, nil).Acquire(ctx, src, path, false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.FileType != "MP3" {
			t.Errorf("expected MP3 file type, got %q", res.FileType)
		}
	})

	t.Run("Empty Artifact Is Failure", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.mp3")
		d := &writerDownloader{data: []byte{}}

		_, err := NewAcquisitionService(d, nil).Acquire(ctx, src, path, false)
		if !errors.Is(err, shared.ErrEmptyArtifact) {
			t.Fatalf("expected ErrEmptyArtifact, got %v", err)
		}
		if stage, _ := StageOf(err); stage != models.StageAcquisition {
			t.Errorf("expected acquisition stage, got %s", stage)
		}
		tu.AssertNoFile(t, path)
	})

	t.Run("Missing Artifact Is Failure", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.mp3")
		_, err := NewAcquisitionService(&tu.MockDownloader{Empty: true}, nil).Acquire(ctx, src, path, false)
		if !errors.Is(err, shared.ErrEmptyArtifact) {
			t.Fatalf("expected ErrEmptyArtifact, got %v", err)
		}
	})

	t.Run("Downloader Error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "x.mp3")
		d := &tu.MockDownloader{Errs: map[string]error{src.Locator: shared.ErrCollaboratorFailed}}
		_, err := NewAcquisitionService(d, nil).Acquire(ctx, src, path, false)
		var ae *AcquisitionError
		if !errors.As(err, &ae) || !errors.Is(err, shared.ErrCollaboratorFailed) {
			t.Fatalf("expected AcquisitionError wrapping ErrCollaboratorFailed, got %v", err)
		}
	})

	t.Run("Existing File Not Overwritten", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kept.mp3")
		tu.MustWriteFile(t, path, 10)
		d := &tu.MockDownloader{Size: 99}

		_, err := NewAcquisitionService(d, nil).Acquire(ctx, src, path, false)
		if !errors.Is(err, shared.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
		if d.Calls.Load() != 0 {
			t.Error("downloader should not run when the file exists")
		}
		if size, _ := FileSize(path); size != 10 {
			t.Errorf("existing file modified, size %d", size)
		}
	})

	t.Run("Failed Download Leaves No Partial File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.mp3")
		d := &writerDownloader{data: []byte("half-written"), err: shared.ErrCollaboratorFailed}

		_, err := NewAcquisitionService(d, nil).Acquire(ctx, src, path, false)
		if !errors.Is(err, shared.ErrCollaboratorFailed) {
			t.Fatalf("expected ErrCollaboratorFailed, got %v", err)
		}
		if d.target != PartialPath(path) {
			t.Errorf("expected download into %s, got %s", PartialPath(path), d.target)
		}
		tu.AssertNoFile(t, path)
		tu.AssertNoFile(t, PartialPath(path))
	})

	t.Run("Failed Replace Keeps Existing File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "kept.mp3")
		tu.MustWriteFile(t, path, 10)
		d := &writerDownloader{data: []byte("half"), err: shared.ErrCollaboratorFailed}

		if _, err := NewAcquisitionService(d, nil).Acquire(ctx, src, path, true); err == nil {
			t.Fatal("expected error, got nil")
		}
		if size, _ := FileSize(path); size != 10 {
			t.Errorf("existing file should survive a failed replace, size %d", size)
		}
		tu.AssertNoFile(t, PartialPath(path))
	})

	t.Run("Stale Partial File Discarded", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "stale.mp3")
		tu.MustWriteFile(t, PartialPath(path), 77)

		_, err := NewAcquisitionService(&tu.MockDownloader{Empty: true}, nil).Acquire(ctx, src, path, false)
		if !errors.Is(err, shared.ErrEmptyArtifact) {
			t.Fatalf("expected ErrEmptyArtifact, got %v", err)
		}
		tu.AssertNoFile(t, path)
		tu.AssertNoFile(t, PartialPath(path))
	})

	t.Run("Replace Existing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "replaced.mp3")
		tu.MustWriteFile(t, path, 10)

		res, err := NewAcquisitionService(&tu.MockDownloader{Size: 99}, nil).Acquire(ctx, src, path, true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if res.BytesWritten != 99 {
			t.Errorf("expected 99 bytes, got %d", res.BytesWritten)
		}
		if size, _ := FileSize(path); size != 99 {
			t.Errorf("expected replaced file of 99 bytes, got %d", size)
		}
		tu.AssertNoFile(t, PartialPath(path))
	})
}

func TestPartialPath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"dir/01 - Rude - Magic!.mp3", "dir/01 - Rude - Magic!.part.mp3"},
		{"dir/noext", "dir/noext.part"},
	}
	for _, tt := range tests {
		if got := PartialPath(tt.in); got != tt.want {
			t.Errorf("PartialPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	full := filepath.Join(dir, "full.mp3")
	empty := filepath.Join(dir, "empty.mp3")
	tu.MustWriteFile(t, full, 5)
	tu.MustWriteFile(t, empty, 0)

	if !Exists(full) {
		t.Error("expected non-empty file to exist")
	}
	if Exists(empty) {
		t.Error("empty file should not count")
	}
	if Exists(dir) {
		t.Error("directory should not count")
	}
	if Exists(filepath.Join(dir, "nope.mp3")) {
		t.Error("missing file should not count")
	}
}

// writerDownloader writes data to the requested path, then returns err.
type writerDownloader struct {
	data   []byte
	err    error
	target string
}

func (w *writerDownloader) Download(ctx context.Context, locator, outputPath string) error {
	w.target = outputPath
	if err := os.WriteFile(outputPath, w.data, 0644); err != nil {
		return err
	}
	return w.err
}
