// Package tui provides a Bubble Tea terminal user interface for actibook-downloader.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/maxpowa/actibook-downloader/internal/actibook"
	"github.com/maxpowa/actibook-downloader/internal/config"
	"github.com/maxpowa/actibook-downloader/internal/download"
	"github.com/maxpowa/actibook-downloader/internal/model"
)

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#2DCB70")).
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

	bookStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// maxLogs is the number of events kept on screen.
const maxLogs = 10

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateLoading
	StateBuilding
	StateComplete
	StateError

	// StateCancelling waits for a cancelled load or build to return.
	StateCancelling
)

// errCancelled is shown once a cancelled run has stopped.
var errCancelled = errors.New("cancelled by user")

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	settings  *config.Settings
	logs      []LogEntry
	book      *model.Book
	result    *download.Result
	err       error

	// Build context
	ctx    context.Context
	cancel context.CancelFunc

	getter  actibook.Getter
	parser  *actibook.Parser
	session *download.Session
	events  chan download.ProgressEvent

	// Page progress
	donePages  int32
	totalPages int32

	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model.
//
// Viewer pages and page images are requested through getter and archives
// are delivered to sink. recorder may be nil.
func NewModel(settings *config.Settings, getter download.Getter, sink download.Sink, recorder download.Recorder) Model {
	ti := textinput.New()
	ti.Placeholder = "https://example.com/book/index.html"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#2DCB70"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	// Progress callbacks run on fetch goroutines; events that do not fit
	// in the buffer are dropped rather than stalling a fetch.
	events := make(chan download.ProgressEvent, 256)
	session := download.NewSession(settings, getter, sink, func(event download.ProgressEvent) {
		select {
		case events <- event:
		default:
		}
	})
	if recorder != nil {
		session.SetRecorder(recorder)
	}

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		settings:  settings,
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
		getter:    getter,
		parser:    actibook.NewParser(),
		session:   session,
		events:    events,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForEvent(m.events))
}

// Message types
type (
	// ProgressMsg is sent for every event reported by the session.
	ProgressMsg struct {
		Event download.ProgressEvent
	}

	// BookLoadedMsg is sent when the viewer page has been read.
	BookLoadedMsg struct {
		Book *model.Book
		Err  error
	}

	// BuildDoneMsg is sent when a Start call returns.
	BuildDoneMsg struct {
		Outcome download.Outcome
		Result  *download.Result
		Err     error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

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
			if m.state == StateBuilding || m.state == StateLoading {
				m.cancel()
				m.state = StateCancelling
			}

		case "enter":
			switch m.state {
			case StateInput:
				if url := strings.TrimSpace(m.textInput.Value()); url != "" {
					m.state = StateLoading
					return m, tea.Batch(m.loadBook(url), m.spinner.Tick)
				}
			case StateBuilding:
				// The session drops the request and reports it.
				return m, m.startBuild()
			}

		case "tab":
			if m.state == StateInput {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m.state = StateInput
				m.logs = nil
				m.book = nil
				m.result = nil
				m.err = nil
				m.donePages = 0
				m.totalPages = 0
				m.ctx, m.cancel = context.WithCancel(context.Background())
				m.textInput.SetValue("")
				m.textInput.Focus()
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		m.addLog(msg.Event)
		cmds = append(cmds, waitForEvent(m.events))

	case BookLoadedMsg:
		if m.state == StateCancelling {
			m.state = StateError
			m.err = errCancelled
			break
		}
		if m.state != StateLoading {
			break
		}
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
			break
		}
		m.book = msg.Book
		m.totalPages = int32(msg.Book.LastPage)
		m.state = StateBuilding
		cmds = append(cmds, m.startBuild(), m.tickProgress())

	case BuildDoneMsg:
		if msg.Outcome == download.OutcomeAlreadyRunning {
			m.addLog(download.ProgressEvent{
				Message: "A book is already being archived, please wait",
				Level:   download.LevelWarning,
			})
			break
		}
		m.result = msg.Result
		if msg.Result != nil {
			m.donePages = int32(msg.Result.Total)
		}
		if m.state == StateCancelling {
			m.state = StateError
			m.err = errCancelled
			break
		}
		if m.state != StateBuilding {
			break
		}
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
		} else {
			m.state = StateComplete
		}

	case TickMsg:
		if m.state == StateBuilding {
			m.donePages, m.totalPages = m.session.Progress()

			var percent float64
			if m.totalPages > 0 {
				percent = float64(m.donePages) / float64(m.totalPages)
			}
			cmds = append(cmds, m.progress.SetPercent(percent), m.tickProgress())
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

func (m *Model) addLog(event download.ProgressEvent) {
	if event.Level == download.LevelVerbose && !m.verbose {
		return
	}
	m.logs = append(m.logs, LogEntry{Message: event.Message, Level: event.Level})
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// waitForEvent returns a command that delivers the next session event.
func waitForEvent(events <-chan download.ProgressEvent) tea.Cmd {
	return func() tea.Msg {
		return ProgressMsg{Event: <-events}
	}
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("📚 ActiBook Downloader"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Save ActiBook books as ZIP archives"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateLoading:
		b.WriteString(m.viewLoading())
	case StateBuilding:
		b.WriteString(m.viewBuilding())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	case StateCancelling:
		b.WriteString(m.viewCancelling())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func (m Model) viewInput() string {
	var b strings.Builder

	b.WriteString(subtitleStyle.Render("Enter ActiBook viewer URL:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	verboseCheck := "[ ]"
	if m.verbose {
		verboseCheck = "[×]"
	}

	b.WriteString(infoStyle.Render("Options:"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Verbose/debug output (tab)\n", verboseCheck))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output directory: %s", m.settings.OutputDir)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewLoading() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Reading viewer page..."))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewBuilding() string {
	var b strings.Builder

	if m.book != nil {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(bookStyle.Render(fmt.Sprintf("%s (%d pages)", displayTitle(m.book.Title), m.book.LastPage)))
		b.WriteString("\n\n")
	}

	var percent float64
	if m.totalPages > 0 {
		percent = float64(m.donePages) / float64(m.totalPages)
	}
	b.WriteString(m.progress.ViewAs(percent))
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf("Pages: %d/%d", m.donePages, m.totalPages)))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	headline := "✨ Archive Complete!"
	if m.result != nil && m.result.Status == download.StatusPartial {
		headline = "⚠ Archive saved with missing pages"
	}

	var details string
	if m.result != nil {
		details = fmt.Sprintf(
			"File: %s\n"+
				"Quality: %s\n"+
				"Pages: %s\n"+
				"Size: %s",
			m.result.Location,
			m.result.Tier,
			m.result.Summary(),
			humanize.Bytes(uint64(m.result.Size)),
		)
		if len(m.result.Missing) > 0 {
			details += fmt.Sprintf("\nMissing: %s", formatPages(m.result.Missing))
		}
	}

	b.WriteString(boxStyle.Render(headline + "\n\n" + details))
	b.WriteString("\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewCancelling() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(warningStyle.Render("Cancelling..."))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
		b.WriteString("\n\n")
	}
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, log := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch log.Level {
		case download.LevelError:
			style = errorStyle
			prefix = "✗"
		case download.LevelWarning:
			style = warningStyle
			prefix = "!"
		case download.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case download.LevelInfo:
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
		return "enter: start • tab: verbose • esc: quit"
	case StateLoading, StateBuilding:
		return "esc: cancel"
	case StateComplete, StateError:
		return "r: new book • q: quit"
	case StateCancelling:
		return "ctrl+c: quit"
	}
	return ""
}

// loadBook reads the viewer page at url.
func (m Model) loadBook(url string) tea.Cmd {
	ctx, getter, parser := m.ctx, m.getter, m.parser
	return func() tea.Msg {
		book, err := parser.LoadViewerPage(ctx, getter, url)
		return BookLoadedMsg{Book: book, Err: err}
	}
}

// startBuild runs the session for the loaded book in background.
func (m Model) startBuild() tea.Cmd {
	ctx, session, book := m.ctx, m.session, m.book
	return func() tea.Msg {
		outcome, result, err := session.Start(ctx, book)
		return BuildDoneMsg{Outcome: outcome, Result: result, Err: err}
	}
}

func displayTitle(title string) string {
	if title == "" {
		return "Untitled book"
	}
	return title
}

func formatPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprint(p)
	}
	return strings.Join(parts, ", ")
}

// Run starts the TUI application.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
