// package reference classifies user-supplied streaming-service locators.
//
// Classification is a pure function of the locator's shape: scheme, host and
// path segments. Nothing is fetched.
package reference

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/songrip/internal/models"
)

// Reason is a machine-readable validation failure category.
type Reason string

const (
	ReasonNotURL              Reason = "not-a-url"
	ReasonUnsupportedHost     Reason = "unsupported-host"
	ReasonUnsupportedResource Reason = "unsupported-resource-type"
)

// ValidationError reports why a locator was rejected.
type ValidationError struct {
	Reference string
	Reason    Reason
	Detail    string
}

func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid reference %q: %s (%s)", e.Reference, e.Reason, e.Detail)
	}
	return fmt.Sprintf("invalid reference %q: %s", e.Reference, e.Reason)
}

var knownHosts = map[string]bool{
	"open.spotify.com": true,
	"play.spotify.com": true,
	"spotify.com":      true,
	"www.spotify.com":  true,
}

var resourceKinds = map[string]models.ReferenceKind{
	"track":    models.KindTrack,
	"episode":  models.KindTrack,
	"playlist": models.KindPlaylist,
	"album":    models.KindPlaylist,
	"show":     models.KindPlaylist,
}

// Classify validates raw and returns the [models.Reference] it denotes, or a
// [*ValidationError].
func Classify(raw string) (models.Reference, error) {
	raw = strings.TrimSpace(raw)
	fail := func(reason Reason, detail string) (models.Reference, error) {
		return models.Reference{}, &ValidationError{Reference: raw, Reason: reason, Detail: detail}
	}

	if raw == "" {
		return fail(ReasonNotURL, "empty")
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fail(ReasonNotURL, "")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fail(ReasonNotURL, "scheme "+u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if !knownHosts[host] {
		return fail(ReasonUnsupportedHost, host)
	}

	segments := pathSegments(u.Path)
	if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
		segments = segments[1:]
	}
	if len(segments) > 0 && segments[0] == "embed" {
		segments = segments[1:]
	}
	if len(segments) == 0 {
		return fail(ReasonUnsupportedResource, "no resource in path")
	}

	resource := strings.ToLower(segments[0])
	kind, ok := resourceKinds[resource]
	if !ok {
		return fail(ReasonUnsupportedResource, resource)
	}
	if len(segments) < 2 {
		return fail(ReasonUnsupportedResource, "missing "+resource+" id")
	}

	return models.Reference{
		Locator:  raw,
		Kind:     kind,
		Resource: resource,
		ID:       segments[1],
	}, nil
}

func pathSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ReasonOf returns the validation reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason, true
	}
	return "", false
}
