package models

import "time"

// Document is raw text acquired from one source (a URL or an uploaded file page).
type Document struct {
	Content string
	Source  string
	Page    int
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	ID      string
	Content string
	Source  string
	Page    int
	Index   int
	Offset  int
}

// ScoredChunk is a chunk returned by a similarity search.
type ScoredChunk struct {
	Chunk      Chunk
	Similarity float32
}

// Answer is the result of one retrieve-then-generate call.
type Answer struct {
	Query   string
	Content string
	Sources []string
	Model   string
}

// QARecord is one entry of the session question history.
type QARecord struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Sources  []string  `json:"sources"`
	Model    string    `json:"model"`
	AskedAt  time.Time `json:"asked_at"`
}

// Summary holds the canned four-section summary for one index generation.
type Summary struct {
	Sections   map[string]string `json:"sections"`
	Model      string            `json:"model"`
	Generation string            `json:"generation"`
}
