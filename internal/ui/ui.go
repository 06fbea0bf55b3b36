package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/songrip/internal/models"
	"github.com/desertthunder/songrip/internal/shared"
	"github.com/desertthunder/songrip/internal/tasks"
)

// recentLines is how many finished tracks the download view keeps on screen.
const recentLines = 6

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ManifestView ViewState = iota
	DownloadView
	ResultView
)

// RunFunc starts a playlist job, reporting progress on the given channel.
type RunFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*models.PlaylistResult, error)

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	cancel   context.CancelFunc
	run      RunFunc
	openPath func(string) error

	view     ViewState
	width    int
	height   int
	spinner  spinner.Model
	bar      progress.Model
	results  list.Model
	status   string
	manifest *models.PlaylistManifest
	done     int
	total    int
	recent   []string

	progressChan chan tasks.ProgressUpdate
	doneChan     chan Msg
	result       *models.PlaylistResult
	err          error
	cancelled    bool
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model that runs the job described by run.
func NewModel(ctx context.Context, run RunFunc) *Model {
	ctx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:      ctx,
		cancel:   cancel,
		run:      run,
		openPath: shared.OpenPath,
		view:     ManifestView,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.title.UnsetMarginBottom())),
		bar:      progress.New(progress.WithDefaultGradient()),
		status:   "Reading playlist...",
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Run starts the program and blocks until the job finishes and the user quits.
func Run(ctx context.Context, run RunFunc) (*models.PlaylistResult, error) {
	m := NewModel(ctx, run)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return nil, fmt.Errorf("terminal UI failed: %w", err)
	}
	return m.Result()
}

// Result returns the job result once the job has completed.
func (m *Model) Result() (*models.PlaylistResult, error) {
	if m.cancelled && m.result == nil && m.err == nil {
		return nil, context.Canceled
	}
	return m.result, m.err
}

// Init starts the job and the spinner.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startJob())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = min(msg.Width-4, 60)
		if m.view == ResultView && m.result != nil {
			m.results.SetSize(msg.Width-4, msg.Height-10)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if m.view == ResultView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		updated, cmd := m.bar.Update(msg)
		m.bar = updated.(progress.Model)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	if m.view == ResultView && m.result != nil {
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		cmd := m.applyProgress(msg.data.(tasks.ProgressUpdate))
		return m, tea.Batch(cmd, m.waitForProgress())

	case MsgJobComplete:
		data := msg.data.(jobComplete)
		m.result, m.err = data.result, data.err
		m.view = ResultView
		m.progressChan, m.doneChan = nil, nil
		if m.result != nil {
			m.results = list.New(outcomeItems(m.result.Outcomes), list.NewDefaultDelegate(), max(m.width-4, 20), max(m.height-10, 10))
			m.results.Title = m.result.Manifest.Name
			m.results.SetShowHelp(false)
		}
		return m, nil

	case MsgFolderOpened:
		if err, _ := msg.data.(error); err != nil {
			m.status = styles.warn.Render(fmt.Sprintf("Could not open folder: %v", err))
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) applyProgress(u tasks.ProgressUpdate) tea.Cmd {
	m.status = u.Message

	switch u.Phase {
	case tasks.WriteManifest:
		if manifest, ok := u.Data.(*models.PlaylistManifest); ok {
			m.manifest = manifest
		}
		m.view = DownloadView
		if eligible, ok := eligibleCount(m.manifest); ok {
			m.total = eligible
		}
	case tasks.TrackFinished:
		m.done, m.total = u.Step, u.Total
		m.recent = append(m.recent, u.Message)
		if len(m.recent) > recentLines {
			m.recent = m.recent[len(m.recent)-recentLines:]
		}
		if m.total > 0 {
			return m.bar.SetPercent(float64(m.done) / float64(m.total))
		}
	}
	return nil
}

func eligibleCount(m *models.PlaylistManifest) (int, bool) {
	if m == nil {
		return 0, false
	}
	return len(m.Eligible()), true
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		if m.view != ResultView {
			m.cancelled = true
			m.cancel()
		}
		return m, tea.Quit
	case m.view == ResultView && key.Matches(msg, m.keys.open):
		if m.result == nil || m.result.Directory == "" {
			return m, nil
		}
		dir := m.result.Directory
		return m, func() tea.Msg { return folderOpenedMsg(m.openPath(dir)) }
	}

	if m.view == ResultView && m.result != nil {
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}
	return m, nil
}

// startJob runs the job in the background. The completion message is queued
// before the progress channel closes, so waitForProgress always finds it.
func (m *Model) startJob() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 64)
	m.doneChan = make(chan Msg, 1)

	progressChan, doneChan := m.progressChan, m.doneChan
	go func() {
		result, err := m.run(m.ctx, progressChan)
		doneChan <- jobCompleteMsg(result, err)
		close(progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, doneChan := m.progressChan, m.doneChan
	if progressChan == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-progressChan
		if !ok {
			return <-doneChan
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ManifestView:
		return m.renderManifest()
	case DownloadView:
		return m.renderDownload()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderManifest() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s %s\n\n%s", m.spinner.View(), m.status, helpView)
}

func (m *Model) renderDownload() string {
	name := "playlist"
	if m.manifest != nil {
		name = m.manifest.Name
	}
	title := styles.title.Render(fmt.Sprintf("Downloading %s", name))
	counter := fmt.Sprintf("%s %d/%d tracks", m.spinner.View(), m.done, m.total)

	var b strings.Builder
	for _, line := range m.recent {
		b.WriteString("\n  " + line)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n%s\n%s\n%s\n\n%s", title, m.bar.View(), counter, b.String(), helpView)
}

func (m *Model) renderResult() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Download failed: %v\n\nPress q to quit", m.err))
	}
	if m.result == nil {
		return styles.err.Render("No result available\n\nPress q to quit")
	}

	r := m.result
	title := styles.ok.Render("✓ Playlist download complete")
	if r.Failed > 0 {
		title = styles.warn.Render(fmt.Sprintf("Playlist download finished with %d failures", r.Failed))
	}

	info := fmt.Sprintf("Succeeded: %d  Failed: %d  Already present: %d  Excluded: %d\nFolder: %s",
		r.Succeeded, r.Failed, r.Skipped, r.Excluded, r.Directory)

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.up, m.keys.down, m.keys.open, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s\n%s\n\n%s", title, styles.box.Render(info), m.results.View(), m.status, helpView)
}
