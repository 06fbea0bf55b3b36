package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgJobComplete
	MsgFolderOpened
)

type jobComplete struct {
	result *models.PlaylistResult
	err    error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// jobCompleteMsg is the constructor for [MsgJobComplete]
func jobCompleteMsg(result *models.PlaylistResult, err error) Msg {
	return Msg{kind: MsgJobComplete, data: jobComplete{result, err}}
}

// folderOpenedMsg is the constructor for [MsgFolderOpened]
func folderOpenedMsg(err error) Msg {
	return Msg{kind: MsgFolderOpened, data: err}
}
