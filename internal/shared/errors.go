package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Collaborator errors
	ErrToolNotInstalled   = fmt.Errorf("collaborator tool not installed")
	ErrCollaboratorFailed = fmt.Errorf("collaborator process failed")
	ErrNoPayload          = fmt.Errorf("no JSON payload in collaborator output")
	ErrCollaboratorError  = fmt.Errorf("collaborator reported an error")

	// Pipeline errors
	ErrIncompleteMetadata = fmt.Errorf("metadata is missing title or artist")
	ErrNoSourceFound      = fmt.Errorf("no matching audio source found")
	ErrEmptyArtifact      = fmt.Errorf("output file is missing or empty")
	ErrAlreadyExists      = fmt.Errorf("output file already exists")
	ErrEmptyPlaylist      = fmt.Errorf("playlist has no tracks")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrJobNotFound        = fmt.Errorf("job not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
