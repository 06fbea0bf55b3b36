// package naming derives deterministic, filesystem-safe output paths.
package naming

import (
	"fmt"
	"path/filepath"
	"strings"
)

const (
	DefaultExtension = "mp3"
	DefaultPadding   = 2
	ManifestFile     = "playlist_info.json"
	SummaryFile      = "download_summary.json"
)

var unsafe = strings.NewReplacer(
	"<", "_", ">", "_", ":", "_", `"`, "_",
	"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
)

// Sanitize replaces characters that are illegal in file names on common
// platforms with "_". Control characters are dropped. An empty result becomes "_".
func Sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(unsafe.Replace(s))
	if s == "" {
		return "_"
	}
	return s
}

// Policy names output files. The zero value uses mp3 and two-digit ordinals.
type Policy struct {
	Extension string
	Padding   int
}

// NewPolicy builds a Policy, falling back to defaults for zero values.
func NewPolicy(ext string, padding int) Policy {
	return Policy{Extension: ext, Padding: padding}
}

func (p Policy) ext() string {
	ext := strings.TrimPrefix(p.Extension, ".")
	if ext == "" {
		return DefaultExtension
	}
	return ext
}

func (p Policy) width() int {
	if p.Padding < 1 {
		return DefaultPadding
	}
	return p.Padding
}

// TrackFileName returns "NN - Title - Artist.ext". Ordinals wider than the
// padding keep all their digits.
func (p Policy) TrackFileName(ordinal int, title, artist string) string {
	return fmt.Sprintf("%0*d - %s - %s.%s", p.width(), ordinal, Sanitize(title), Sanitize(artist), p.ext())
}

// SingleFileName returns "Title - Artist.ext" for single-track jobs.
func (p Policy) SingleFileName(title, artist string) string {
	return fmt.Sprintf("%s - %s.%s", Sanitize(title), Sanitize(artist), p.ext())
}

// PlaylistDirectoryName returns the sanitized directory name for a playlist.
func (p Policy) PlaylistDirectoryName(name string) string {
	return PlaylistDirectoryName(name)
}

// TrackPath joins dir with the track file name.
func (p Policy) TrackPath(dir string, ordinal int, title, artist string) string {
	return filepath.Join(dir, p.TrackFileName(ordinal, title, artist))
}

// TrackFileName is [Policy.TrackFileName] with default settings.
func TrackFileName(ordinal int, title, artist string) string {
	return Policy{}.TrackFileName(ordinal, title, artist)
}

// SingleFileName is [Policy.SingleFileName] with default settings.
func SingleFileName(title, artist string) string {
	return Policy{}.SingleFileName(title, artist)
}

// PlaylistDirectoryName sanitizes a playlist name for use as a directory.
// "." and ".." are never returned.
func PlaylistDirectoryName(name string) string {
	dir := Sanitize(name)
	if dir == "." || dir == ".." {
		return strings.Repeat("_", len(dir))
	}
	return dir
}
