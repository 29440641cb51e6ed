// Package tui provides a Bubble Tea terminal user interface for downloading
// submissions with cog-bulk.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/handiism/cog-bulk/internal/api"
	"github.com/handiism/cog-bulk/internal/bulk"
	"github.com/handiism/cog-bulk/internal/config"
	"github.com/handiism/cog-bulk/internal/logger"
	"github.com/handiism/cog-bulk/internal/mapper"
	"github.com/handiism/cog-bulk/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4ECDC4")).
			Padding(1, 2)

	batchStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// maxLogs is how many progress messages stay on screen.
const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateFetching
	StateDownloading
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   bulk.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	client    *api.Client
	log       logger.Logger
	logs      []LogEntry
	err       error

	// Download context
	ctx    context.Context
	cancel context.CancelFunc
	events chan bulk.ProgressEvent

	// Current batch and the final report
	batch  mapper.Progress
	report *bulk.DownloadReport

	// Options
	fullUUID  bool
	fullName  bool
	overwrite bool
	verbose   bool

	width  int
	height int
}

// NewModel creates a new TUI model downloading with client.
func NewModel(client *api.Client, settings *config.Settings, log logger.Logger) Model {
	ti := textinput.New()
	ti.Placeholder = "assignment UUIDs and/or usernames, blank for everything"
	ti.Focus()
	ti.CharLimit = 2000
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		client:    client,
		log:       log,
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg is sent for every event reported by the runner.
	ProgressMsg struct {
		Event bulk.ProgressEvent
	}

	// DownloadDoneMsg is sent when the download finishes.
	DownloadDoneMsg struct {
		Report *bulk.DownloadReport
		Err    error
	}
)

// ParseSelection splits the input into assignment ids and usernames. Tokens
// may be separated by spaces or commas; anything that is not a UUID is taken
// as a username.
func ParseSelection(input string) (assignments []model.ID, usernames []string) {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	for _, f := range fields {
		if id, err := model.ParseID(f); err == nil {
			assignments = append(assignments, id)
			continue
		}
		usernames = append(usernames, f)
	}
	return assignments, usernames
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = msg.Width - 20
		if m.progress.Width > 80 {
			m.progress.Width = 80
		}
		if m.progress.Width < 20 {
			m.progress.Width = 20
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateDownloading || m.state == StateFetching {
				m.cancel()
				m.state = StateError
				m.err = fmt.Errorf("cancelled by user")
			}

		case "enter":
			if m.state == StateInput {
				m.state = StateFetching
				m.events = make(chan bulk.ProgressEvent, 64)
				return m, tea.Batch(m.startDownload(), m.waitForEvent(), m.spinner.Tick)
			}

		case "ctrl+f":
			if m.state == StateInput {
				m.fullUUID = !m.fullUUID
				return m, nil
			}

		case "ctrl+n":
			if m.state == StateInput {
				m.fullName = !m.fullName
				return m, nil
			}

		case "ctrl+o":
			if m.state == StateInput {
				m.overwrite = !m.overwrite
				return m, nil
			}

		case "ctrl+v":
			if m.state == StateInput {
				m.verbose = !m.verbose
				return m, nil
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				// Reset for new download
				m.cancel()
				m.state = StateInput
				m.logs = nil
				m.err = nil
				m.batch = mapper.Progress{}
				m.report = nil
				m.events = nil
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				return m, m.textInput.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, m.waitForEvent())
		if b := msg.Event.Batch; b != nil {
			m.batch = *b
			if b.Label == downloadLabel && m.state == StateFetching {
				m.state = StateDownloading
			}
			var percent float64
			if b.Total > 0 {
				percent = float64(b.Done) / float64(b.Total)
			}
			cmds = append(cmds, m.progress.SetPercent(percent))
			break
		}
		// Filter verbose messages if not in verbose mode
		if msg.Event.Level == bulk.LevelVerbose && !m.verbose {
			break
		}
		m.logs = append(m.logs, LogEntry{
			Message: msg.Event.Message,
			Level:   msg.Event.Level,
		})
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}

	case DownloadDoneMsg:
		m.report = msg.Report
		switch {
		case m.ctx.Err() != nil:
			m.state = StateError
			m.err = fmt.Errorf("cancelled by user")
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		default:
			m.state = StateComplete
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// downloadLabel is the batch label of the file download pass.
const downloadLabel = "Downloading Files"

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("cog-bulk"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Download submissions from " + m.serverURL()))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateFetching:
		b.WriteString(m.viewFetching())
	case StateDownloading:
		b.WriteString(m.viewDownloading())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) serverURL() string {
	if m.settings == nil {
		return ""
	}
	return m.settings.URL
}

func checkbox(on bool) string {
	if on {
		return "[x]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Select submissions:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Full UUID directory names (ctrl+f)\n", checkbox(m.fullUUID)))
	b.WriteString(fmt.Sprintf("  %s Full user names (ctrl+n)\n", checkbox(m.fullName)))
	b.WriteString(fmt.Sprintf("  %s Overwrite existing files (ctrl+o)\n", checkbox(m.overwrite)))
	b.WriteString(fmt.Sprintf("  %s Verbose output (ctrl+v)\n", checkbox(m.verbose)))
	b.WriteString("\n")
	if m.settings != nil {
		b.WriteString(dimStyle.Render(fmt.Sprintf("Download path: %s", m.settings.DownloadsPath)))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) viewFetching() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	label := "Connecting..."
	if m.batch.Label != "" {
		label = fmt.Sprintf("%s (%d/%d)", m.batch.Label, m.batch.Done, m.batch.Total)
	}
	b.WriteString(subtitleStyle.Render(label))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewDownloading() string {
	var b strings.Builder

	b.WriteString(batchStyle.Render(m.batch.Label))
	b.WriteString("\n")
	b.WriteString(m.progress.View())
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf(
		"Files: %d/%d | Failed: %d",
		m.batch.Done,
		m.batch.Total,
		m.batch.Failed,
	)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	r := m.report
	if r == nil {
		return ""
	}
	skipped := r.Count(bulk.SkippedExisting) + r.Count(bulk.SkippedCheckpoint)
	box := boxStyle.Render(fmt.Sprintf(
		"Download Complete!\n\n"+
			"Downloaded: %d\n"+
			"Skipped: %d\n"+
			"Failures: %d\n"+
			"Skipped orphans: %d\n"+
			"Size: %.2f MB",
		r.Count(bulk.Downloaded),
		skipped,
		len(r.Failures),
		len(r.Plan.Orphans),
		float64(r.Bytes)/1024/1024,
	))
	b.WriteString(box)
	b.WriteString("\n")

	for i, err := range r.Failures {
		if i == maxLogs {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  ... and %d more", len(r.Failures)-maxLogs)))
			b.WriteString("\n")
			break
		}
		b.WriteString(errorStyle.Render("✗ " + err.Error()))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case bulk.LevelError:
			style = errorStyle
			prefix = "✗"
		case bulk.LevelWarning:
			style = warningStyle
			prefix = "!"
		case bulk.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case bulk.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + log.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • ctrl+f/n/o/v: options • esc: quit"
	case StateFetching, StateDownloading:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new download • q: quit"
	}
	return ""
}

// waitForEvent forwards the next runner event to Update.
func (m Model) waitForEvent() tea.Cmd {
	ctx, events := m.ctx, m.events
	return func() tea.Msg {
		select {
		case ev := <-events:
			return ProgressMsg{Event: ev}
		case <-ctx.Done():
			return nil
		}
	}
}

// startDownload runs the download in the background.
func (m Model) startDownload() tea.Cmd {
	ctx, events := m.ctx, m.events
	assignments, usernames := ParseSelection(m.textInput.Value())
	req := bulk.DownloadRequest{
		Dest:        m.settings.DownloadsPath,
		Assignments: assignments,
		Usernames:   usernames,
		FullUUID:    m.fullUUID,
		FullName:    m.fullName,
		Overwrite:   m.overwrite,
	}
	runner := bulk.NewRunner(m.client, m.settings, m.log, func(ev bulk.ProgressEvent) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})

	return func() tea.Msg {
		report, err := runner.DownloadSubmissions(ctx, req)
		return DownloadDoneMsg{Report: report, Err: err}
	}
}

// Run starts the TUI application.
func Run(client *api.Client, settings *config.Settings, log logger.Logger) error {
	p := tea.NewProgram(NewModel(client, settings, log), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
