package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dhowden/tag"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/shared"
)

// AcquisitionService downloads an audio source to a path and verifies that a
// non-empty artifact exists afterwards.
type AcquisitionService struct {
	downloader AudioDownloader
	logger     *log.Logger
}

// NewAcquisitionService creates an [AcquisitionService].
func NewAcquisitionService(downloader AudioDownloader, logger *log.Logger) *AcquisitionService {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &AcquisitionService{downloader: downloader, logger: logger}
}

// PartialPath returns the sibling file a download is written to before it is
// moved onto path. The audio extension stays last because the download
// script derives its output name from it.
func PartialPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + ".part" + ext
}

// Acquire writes src to outputPath. An existing non-empty file is never
// overwritten unless replace is set. The collaborator writes to a sibling
// partial file that is renamed into place only once it holds data, so a
// failed download never leaves anything at outputPath and a replaced file
// survives a failed replacement. A collaborator that exits cleanly but leaves
// no data behind is reported as an [*AcquisitionError].
func (s *AcquisitionService) Acquire(ctx context.Context, src models.AudioSource, outputPath string, replace bool) (*models.AcquisitionResult, error) {
	fail := func(err error) (*models.AcquisitionResult, error) {
		return nil, &AcquisitionError{Locator: src.Locator, Path: outputPath, Err: err}
	}

	if s.downloader == nil {
		return fail(fmt.Errorf("%w: audio downloader not configured", shared.ErrServiceUnavailable))
	}

	if Exists(outputPath) && !replace {
		return fail(shared.ErrAlreadyExists)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fail(fmt.Errorf("failed to create output directory: %w", err))
	}

	partial := PartialPath(outputPath)
	os.Remove(partial)

	if err := s.downloader.Download(ctx, src.Locator, partial); err != nil {
		os.Remove(partial)
		return fail(err)
	}

	size, err := FileSize(partial)
	if err != nil || size == 0 {
		os.Remove(partial)
		return fail(shared.ErrEmptyArtifact)
	}

	if err := os.Rename(partial, outputPath); err != nil {
		os.Remove(partial)
		return fail(fmt.Errorf("failed to move download into place: %w", err))
	}

	result := &models.AcquisitionResult{Path: outputPath, BytesWritten: size}
	if format, fileType, err := probe(outputPath); err == nil {
		result.Format, result.FileType = format, fileType
	} else {
		s.logger.Debug("could not identify audio container", "path", outputPath, "err", err)
	}

	s.logger.Debug("acquired", "path", outputPath, "bytes", size, "type", result.FileType)
	return result, nil
}

// FileSize returns the size of the regular file at path.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, &fs.PathError{Op: "stat", Path: path, Err: errors.New("not a regular file")}
	}
	return info.Size(), nil
}

// Exists reports whether path holds a non-empty regular file.
func Exists(path string) bool {
	size, err := FileSize(path)
	return err == nil && size > 0
}

// probe identifies the container and tag format of an audio file.
func probe(path string) (string, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	format, fileType, err := tag.Identify(f)
	if err != nil {
		return "", "", err
	}
	if fileType == tag.UnknownFileType {
		return "", "", fmt.Errorf("unknown file type")
	}
	return string(format), string(fileType), nil
}
