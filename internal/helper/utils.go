package helper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}

// pretty print
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Msg("Error pretty printing")
	}
	fmt.Println(string(b))
}

// CreateFolder creates the folder and any missing parents.
func CreateFolder(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("failed to create folder %s: %w", path, err)
	}
	return nil
}

// ClearFolder removes every entry inside dir and returns the removed paths.
// A missing dir is not an error. Entries that cannot be removed are logged
// and skipped.
func ClearFolder(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var removed []string
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := os.RemoveAll(p); err != nil {
			log.Warn().Err(err).Msgf("Could not delete %s", p)
			continue
		}
		removed = append(removed, p)
	}
	return removed, nil
}

// ParseURLList splits pasted text into one URL per non-blank line.
func ParseURLList(raw string) []string {
	var urls []string
	for _, line := range strings.Split(raw, "\n") {
		if u := strings.TrimSpace(line); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// MarkdownToHTML renders model output (markdown) to HTML for display.
func MarkdownToHTML(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
