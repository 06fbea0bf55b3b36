package main

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/songrip/internal/services"
	"github.com/desertthunder/songrip/internal/shared"
)

// Fetcher downloads the best match for a title and artist into a directory,
// without a streaming-service reference.
type Fetcher interface {
	SearchAndDownload(ctx context.Context, title, artist, outputDir string) (string, error)
}

// Collaborators bundles the external capabilities the pipeline is built from.
type Collaborators struct {
	Extractor  services.Extractor
	Searcher   services.AudioSearcher
	Downloader services.AudioDownloader
	Fetcher    Fetcher
}

// NewCollaborators builds the script-backed collaborators and, when configured,
// swaps metadata extraction for the Spotify Web API.
//
// A missing interpreter is not fatal here: commands that never spawn a process
// still work, and the ones that do fail with [shared.ErrToolNotInstalled].
func NewCollaborators(ctx context.Context, config *shared.Config, logger *log.Logger) (Collaborators, error) {
	cc := config.Collaborators

	python, err := shared.ResolvePython(cc.PythonPath)
	if err != nil {
		logger.Debug("python interpreter not resolved", "error", err)
		python = cc.PythonPath
		if python == "" {
			python = "python3"
		}
	}

	scripts := services.NewScriptCollaborator(services.ScriptOpts{
		Python: python,
		Scripts: services.ScriptPaths{
			Metadata: cc.MetadataScript,
			Playlist: cc.PlaylistScript,
			Search:   cc.SearchScript,
			Download: cc.DownloadScript,
		},
		Runner:    services.ExecRunner{Timeout: cc.Timeout()},
		SpawnRate: cc.SpawnRate,
		Logger:    shared.WithLogger(logger, "collaborator", "script"),
	})

	c := Collaborators{Extractor: scripts, Searcher: scripts, Downloader: scripts, Fetcher: scripts}

	if config.Metadata.Provider == "spotify-api" {
		api, err := services.NewSpotifyAPIExtractor(ctx, services.SpotifyOpts{
			ClientID:     config.Credentials.Spotify.ClientID,
			ClientSecret: config.Credentials.Spotify.ClientSecret,
			Logger:       shared.WithLogger(logger, "collaborator", "spotify-api"),
		})
		if err != nil {
			return Collaborators{}, err
		}
		c.Extractor = api
	}

	return c, nil
}
