package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scheme-research/internal/models"
	"scheme-research/internal/session"
)

// Actions is the TUI-facing subset of the session orchestrator.
type Actions interface {
	SetInputType(t session.InputType) error
	SelectModel(variant string) error
	Process(ctx context.Context, in session.ProcessInput) (*session.ProcessResult, error)
	GenerateSummary(ctx context.Context) (*models.Summary, error)
	Ask(ctx context.Context, question string) (models.QARecord, bool, error)
	Reset() error
	View() session.View
	Links(sources []string) []session.SourceLink
}

// actionMsg reports a finished action together with a fresh session snapshot.
type actionMsg struct {
	status string
	err    error
	view   session.View
	links  map[string][]session.SourceLink
}

const helpText = `Commands:
  /input none|urls|pdf   choose the input type
  /urls <url> [url...]   stage URLs for processing
  /file <path>           stage a PDF (or other document) for upload
  /model fast|accurate   switch model variant
  /process               build the index from the staged input
  /summary               generate the four-section summary
  /reset                 clear the session and delete uploads
  /help                  show this help
  /quit                  exit
Anything else is asked as a question.`

// Model is the Bubble Tea model for the terminal front end.
type Model struct {
	actions  Actions
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	staged   session.ProcessInput
	view     session.View
	links    map[string][]session.SourceLink
	status   string
	busy     bool
	ready    bool
}

func New(actions Actions) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question or type /help"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		actions:  actions,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		view:     actions.View(),
		links:    map[string][]session.SourceLink{},
		status:   "Ready. Type /help for commands.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, fh := transcriptStyle.GetFrameSize()
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-fh-5)
		m.viewport.SetContent(m.renderTranscript())
		return m, nil
	case actionMsg:
		m.busy = false
		m.view = msg.view
		if msg.links != nil {
			m.links = msg.links
		}
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
		} else {
			m.status = msg.status
		}
		m.viewport.SetContent(m.renderTranscript())
		m.viewport.GotoBottom()
		return m, nil
	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if m.busy {
				return m, nil
			}
			line := strings.TrimSpace(m.input.Value())
			if line == "" {
				return m, nil
			}
			m.input.SetValue("")
			var cmd tea.Cmd
			m, cmd = m.dispatch(line)
			if m.busy {
				return m, tea.Batch(cmd, m.spinner.Tick)
			}
			return m, cmd
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// dispatch handles one input line. Session actions run as commands; only
// one runs at a time.
func (m Model) dispatch(line string) (Model, tea.Cmd) {
	if !strings.HasPrefix(line, "/") {
		m.busy = true
		m.status = "Answering..."
		return m, m.run(func(ctx context.Context) (string, error) {
			_, cached, err := m.actions.Ask(ctx, line)
			if cached {
				return "Already answered; showing the recorded answer.", err
			}
			return "Answer recorded.", err
		})
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "help":
		m.status = helpText
		return m, nil
	case "quit", "exit":
		return m, tea.Quit
	case "input":
		t, ok := session.ParseInputType(arg)
		if !ok {
			m.status = "Usage: /input none|urls|pdf"
			return m, nil
		}
		return m.start("", func(context.Context) (string, error) {
			return "Input type: " + string(t), m.actions.SetInputType(t)
		})
	case "model":
		return m.start("", func(context.Context) (string, error) {
			return "Model: " + arg, m.actions.SelectModel(arg)
		})
	case "urls":
		m.staged.URLs = strings.Fields(arg)
		m.status = fmt.Sprintf("Staged %d URL(s).", len(m.staged.URLs))
		return m, nil
	case "file":
		data, err := os.ReadFile(arg)
		if err != nil {
			m.status = "Error: " + err.Error()
			return m, nil
		}
		m.staged.FileName = filepath.Base(arg)
		m.staged.FileData = data
		m.status = fmt.Sprintf("Staged %s (%d bytes).", m.staged.FileName, len(data))
		return m, nil
	case "process":
		in := m.staged
		return m.start("Processing...", func(ctx context.Context) (string, error) {
			res, err := m.actions.Process(ctx, in)
			if err != nil {
				if res != nil && len(res.Warnings) > 0 {
					return "", fmt.Errorf("%w (%s)", err, strings.Join(res.Warnings, "; "))
				}
				return "", err
			}
			status := fmt.Sprintf("Indexed %d chunks from %d documents.", res.Indexed, res.Documents)
			if len(res.Warnings) > 0 {
				status += " Warnings: " + strings.Join(res.Warnings, "; ")
			}
			return status, nil
		})
	case "summary":
		return m.start("Generating summary...", func(ctx context.Context) (string, error) {
			_, err := m.actions.GenerateSummary(ctx)
			return "Summary ready.", err
		})
	case "reset":
		m.staged = session.ProcessInput{}
		return m.start("", func(context.Context) (string, error) {
			return "Session reset.", m.actions.Reset()
		})
	default:
		m.status = "Unknown command /" + name + ". Type /help."
		return m, nil
	}
}

func (m Model) start(status string, fn func(ctx context.Context) (string, error)) (Model, tea.Cmd) {
	m.busy = true
	if status != "" {
		m.status = status
	}
	return m, m.run(fn)
}

func (m Model) run(fn func(ctx context.Context) (string, error)) tea.Cmd {
	actions := m.actions
	return func() tea.Msg {
		status, err := fn(context.Background())
		view := actions.View()
		links := make(map[string][]session.SourceLink, len(view.History))
		for _, rec := range view.History {
			links[rec.Question] = actions.Links(rec.Sources)
		}
		return actionMsg{status: status, err: err, view: view, links: links}
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("Scheme Research Tool") + "  " + infoStyle.Render(m.header())
	status := m.status
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(status)
}

func (m Model) header() string {
	v := m.view
	return fmt.Sprintf("input=%s model=%s (%s) state=%s chunks=%d", v.InputType, v.Model, v.ModelID, v.State, v.Chunks)
}

func (m Model) renderTranscript() string {
	var b strings.Builder
	v := m.view

	if v.Summary != nil {
		b.WriteString(sectionStyle.Render("Summary") + "\n")
		for _, name := range models.SummarySections {
			fmt.Fprintf(&b, "%s\n%s\n\n", headingStyle.Render(name), v.Summary.Sections[name])
		}
	}

	if len(v.History) == 0 && v.Summary == nil {
		return "No questions yet. Process some input, then ask away."
	}

	for _, rec := range v.History {
		fmt.Fprintf(&b, "%s %s\n", headingStyle.Render("Q:"), rec.Question)
		fmt.Fprintf(&b, "%s %s\n", headingStyle.Render("A:"), rec.Answer)
		b.WriteString(infoStyle.Render("model: "+rec.Model) + "\n")
		for _, l := range m.links[rec.Question] {
			switch {
			case !l.IsFile:
				b.WriteString("  web: " + l.Source + "\n")
			case l.Missing:
				b.WriteString(warnStyle.Render("  file not found: "+l.Source) + "\n")
			default:
				b.WriteString("  file: " + l.Source + "\n")
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

var (
	titleStyle      = lipgloss.NewStyle().Bold(true)
	infoStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	sectionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true).Underline(true)
	warnStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
