package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/shared"
)

// AudioSourceResolver maps track metadata to a playable asset. Collaborator
// output is taken as is; an empty locator is a definitive miss.
type AudioSourceResolver struct {
	searcher AudioSearcher
	logger   *log.Logger
}

// NewAudioSourceResolver creates an [AudioSourceResolver].
func NewAudioSourceResolver(searcher AudioSearcher, logger *log.Logger) *AudioSourceResolver {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &AudioSourceResolver{searcher: searcher, logger: logger}
}

// Resolve returns the audio source for md or a [*SourceResolutionError].
func (r *AudioSourceResolver) Resolve(ctx context.Context, md models.TrackMetadata) (*models.AudioSource, error) {
	fail := func(err error) (*models.AudioSource, error) {
		return nil, &SourceResolutionError{Title: md.Title, Artist: md.Artist, Err: err}
	}

	if err := md.Validate(); err != nil {
		return fail(fmt.Errorf("%w: %v", shared.ErrIncompleteMetadata, err))
	}
	if r.searcher == nil {
		return fail(fmt.Errorf("%w: audio searcher not configured", shared.ErrServiceUnavailable))
	}

	src, err := r.searcher.Search(ctx, md.Title, md.Artist)
	if err != nil {
		return fail(err)
	}
	if src == nil || strings.TrimSpace(src.Locator) == "" {
		return fail(shared.ErrNoSourceFound)
	}

	r.logger.Debug("source resolved", "track", md.String(), "locator", src.Locator)
	return src, nil
}
