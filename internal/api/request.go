package api

import (
	"scheme-research/internal/models"
	"scheme-research/internal/session"
)

type InputTypeRequest struct {
	InputType string `json:"input_type" binding:"required"`
}

type ModelRequest struct {
	Model string `json:"model" binding:"required"`
}

type QuestionRequest struct {
	Question string `json:"question"`
}

type ProcessResponse struct {
	*session.ProcessResult
	Error string `json:"error,omitempty"`
}

type QuestionResponse struct {
	Record     models.QARecord      `json:"record"`
	AnswerHTML string               `json:"answer_html"`
	Links      []session.SourceLink `json:"links"`
	Cached     bool                 `json:"cached"`
}

type SummaryResponse struct {
	Summary  *models.Summary   `json:"summary"`
	Sections []string          `json:"sections"`
	HTML     map[string]string `json:"html"`
}
