package session

import (
	"slices"
	"strings"
	"time"

	"scheme-research/internal/models"
	"scheme-research/internal/rag"
)

type InputType string

const (
	InputNone InputType = "none"
	InputURLs InputType = "urls"
	InputPDF  InputType = "pdf"
)

func ParseInputType(s string) (InputType, bool) {
	switch t := InputType(strings.ToLower(strings.TrimSpace(s))); t {
	case InputNone, InputURLs, InputPDF:
		return t, true
	}
	return "", false
}

type State string

const (
	StateIdle       State = "idle"
	StateIndexed    State = "indexed"
	StateSummarized State = "summarized"
)

// Session is the state of one interactive use of the tool. It lives until
// Reset or process exit.
type Session struct {
	InputType     InputType
	Index         rag.Index
	Generation    string
	History       []models.QARecord
	Summary       *models.Summary
	SelectedModel string
	StartedAt     time.Time
}

func newSession(defaultModel string, now time.Time) *Session {
	return &Session{
		InputType:     InputNone,
		SelectedModel: defaultModel,
		StartedAt:     now,
	}
}

func (s *Session) State() State {
	switch {
	case s.Index == nil:
		return StateIdle
	case s.Summary != nil && s.Summary.Generation == s.Generation:
		return StateSummarized
	default:
		return StateIndexed
	}
}

// Lookup returns the recorded answer for an exact question string.
func (s *Session) Lookup(question string) (models.QARecord, bool) {
	i := slices.IndexFunc(s.History, func(r models.QARecord) bool { return r.Question == question })
	if i < 0 {
		return models.QARecord{}, false
	}
	return s.History[i], true
}

// View is a read-only copy of the session for presentation layers.
type View struct {
	InputType  InputType         `json:"input_type"`
	State      State             `json:"state"`
	Model      string            `json:"model"`
	ModelID    string            `json:"model_id"`
	Generation string            `json:"generation,omitempty"`
	Chunks     int               `json:"chunks"`
	History    []models.QARecord `json:"history"`
	Summary    *models.Summary   `json:"summary,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
}
