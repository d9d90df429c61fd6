package tui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheme-research/internal/models"
	"scheme-research/internal/session"
)

type MockActions struct {
	inputType session.InputType
	model     string
	processed []session.ProcessInput
	history   []models.QARecord
	summary   *models.Summary
	asks      int
	resets    int
	processFn func(in session.ProcessInput) (*session.ProcessResult, error)
}

func (m *MockActions) SetInputType(t session.InputType) error {
	m.inputType = t
	return nil
}

func (m *MockActions) SelectModel(variant string) error {
	if variant != "fast" && variant != "accurate" {
		return session.ErrUnknownModel
	}
	m.model = variant
	return nil
}

func (m *MockActions) Process(_ context.Context, in session.ProcessInput) (*session.ProcessResult, error) {
	m.processed = append(m.processed, in)
	if m.processFn != nil {
		return m.processFn(in)
	}
	return &session.ProcessResult{Documents: 1, Chunks: 4, Indexed: 4}, nil
}

func (m *MockActions) GenerateSummary(context.Context) (*models.Summary, error) {
	m.summary = &models.Summary{Sections: map[string]string{models.SectionBenefits: "Cash support."}}
	return m.summary, nil
}

func (m *MockActions) Ask(_ context.Context, q string) (models.QARecord, bool, error) {
	for _, r := range m.history {
		if r.Question == q {
			return r, true, nil
		}
	}
	m.asks++
	rec := models.QARecord{Question: q, Answer: "An answer.", Sources: []string{"https://a.gov", "/uploads/x.pdf"}, Model: "m"}
	m.history = append(m.history, rec)
	return rec, false, nil
}

func (m *MockActions) Reset() error {
	m.resets++
	m.history = nil
	m.summary = nil
	return nil
}

func (m *MockActions) View() session.View {
	return session.View{InputType: m.inputType, Model: m.model, History: m.history, Summary: m.summary}
}

func (m *MockActions) Links(sources []string) []session.SourceLink {
	out := make([]session.SourceLink, len(sources))
	for i, s := range sources {
		out[i] = session.SourceLink{Source: s, IsFile: s[0] == '/', Missing: s[0] == '/'}
	}
	return out
}

// exec dispatches a line and feeds the resulting action message back.
func exec(t *testing.T, m Model, line string) Model {
	t.Helper()
	m, cmd := m.dispatch(line)
	if cmd == nil {
		return m
	}
	msg := cmd()
	am, ok := msg.(actionMsg)
	if !ok {
		return m
	}
	updated, _ := m.Update(am)
	return updated.(Model)
}

func ready(m Model) Model {
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(Model)
}

func TestNew(t *testing.T) {
	m := New(&MockActions{})
	assert.False(t, m.busy)
	assert.Equal(t, "Loading...", m.View())
	assert.Contains(t, ready(m).View(), "Scheme Research Tool")
}

func TestCommands_InputModelProcess(t *testing.T) {
	a := &MockActions{}
	m := ready(New(a))

	m = exec(t, m, "/input urls")
	assert.Equal(t, session.InputURLs, a.inputType)

	m = exec(t, m, "/urls https://a.gov https://b.gov")
	assert.Contains(t, m.status, "Staged 2 URL(s)")

	m = exec(t, m, "/model accurate")
	assert.Equal(t, "accurate", a.model)

	m = exec(t, m, "/process")
	require.Len(t, a.processed, 1)
	assert.Equal(t, []string{"https://a.gov", "https://b.gov"}, a.processed[0].URLs)
	assert.Contains(t, m.status, "Indexed 4 chunks")
	assert.False(t, m.busy)
}

func TestCommands_ErrorsShownInStatus(t *testing.T) {
	a := &MockActions{processFn: func(session.ProcessInput) (*session.ProcessResult, error) {
		return &session.ProcessResult{Warnings: []string{"Could not extract usable text from the given inputs."}}, session.ErrNoUsableText
	}}
	m := ready(New(a))

	m = exec(t, m, "/process")
	assert.Contains(t, m.status, "Error:")
	assert.Contains(t, m.status, "Could not extract usable text")

	m = exec(t, m, "/model huge")
	assert.Contains(t, m.status, "unknown model")

	m = exec(t, m, "/input csv")
	assert.Contains(t, m.status, "Usage")

	m = exec(t, m, "/bogus")
	assert.Contains(t, m.status, "Unknown command")

	m = exec(t, m, "/file "+filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Contains(t, m.status, "Error:")
}

func TestQuestionsAndTranscript(t *testing.T) {
	a := &MockActions{}
	m := ready(New(a))

	m = exec(t, m, "Who is eligible?")
	m = exec(t, m, "Who is eligible?")
	assert.Equal(t, 1, a.asks)
	assert.Contains(t, m.status, "Already answered")

	out := m.renderTranscript()
	assert.Contains(t, out, "Who is eligible?")
	assert.Contains(t, out, "web: https://a.gov")
	assert.Contains(t, out, "file not found: /uploads/x.pdf")

	m = exec(t, m, "/summary")
	assert.Contains(t, m.renderTranscript(), "Cash support.")
}

func TestFileAndReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))

	a := &MockActions{}
	m := ready(New(a))

	m = exec(t, m, "/file "+path)
	assert.Equal(t, "guide.pdf", m.staged.FileName)

	m = exec(t, m, "/reset")
	assert.Equal(t, 1, a.resets)
	assert.Empty(t, m.staged.FileName)
	assert.Equal(t, "Session reset.", m.status)
}

func TestEnterWhileBusyIsIgnored(t *testing.T) {
	m := ready(New(&MockActions{}))
	m.busy = true
	m.input.SetValue("/process")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Equal(t, "/process", updated.(Model).input.Value())
}

func TestActionError(t *testing.T) {
	m := ready(New(&MockActions{}))
	updated, _ := m.Update(actionMsg{err: errors.New("rate limited")})
	assert.Equal(t, "Error: rate limited", updated.(Model).status)
}
