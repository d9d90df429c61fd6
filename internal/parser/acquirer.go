package parser

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"scheme-research/internal/helper"
	"scheme-research/internal/models"
)

// Acquirer fetches URL content and stores and reads uploaded files.
type Acquirer struct {
	uploadsDir string
	client     *http.Client
}

func NewAcquirer(uploadsDir string, client *http.Client) *Acquirer {
	if client == nil {
		client = http.DefaultClient
	}
	return &Acquirer{uploadsDir: uploadsDir, client: client}
}

func (a *Acquirer) UploadsDir() string { return a.uploadsDir }

// FetchURLs loads every URL. Failures of single URLs are logged and returned
// as warnings. If nothing usable was fetched the error is ErrNoUsableContent.
func (a *Acquirer) FetchURLs(ctx context.Context, urls []string) ([]models.Document, []string, error) {
	var (
		docs     []models.Document
		warnings []string
	)
	for _, u := range urls {
		fetched, err := fetchURL(ctx, a.client, u)
		if err != nil {
			log.Error().Err(err).Msgf("Error loading %s", u)
			warnings = append(warnings, fmt.Sprintf("Error loading content from %s: %v", u, err))
			continue
		}
		docs = append(docs, fetched...)
	}

	if strings.TrimSpace(Join(docs)) == "" {
		log.Warn().Msg("No usable content found.")
		return nil, warnings, ErrNoUsableContent
	}
	log.Info().Msgf("Loaded %d documents from %d URLs.", len(docs), len(urls))
	return nonEmpty(docs), warnings, nil
}

// SaveUpload writes the uploaded bytes to the uploads directory under the
// file's base name and returns the stored path and its source identifier.
func (a *Acquirer) SaveUpload(name string, data []byte) (string, string, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		return "", "", fmt.Errorf("invalid upload name %q", name)
	}
	if err := CheckContent(base, data); err != nil {
		return "", "", err
	}
	if err := helper.CreateFolder(a.uploadsDir); err != nil {
		return "", "", err
	}

	path := filepath.Join(a.uploadsDir, base)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("save upload: %w", err)
	}
	log.Info().Msgf("Uploaded file saved: %s", path)
	return path, models.UploadsPrefix + base, nil
}

// LoadUpload extracts one document per page from a stored upload.
func (a *Acquirer) LoadUpload(path, source string) ([]models.Document, error) {
	docs, err := ParseFile(path, source)
	if err != nil {
		return nil, err
	}
	log.Info().Msgf("%s loaded with %d pages.", filepath.Base(path), len(docs))
	return docs, nil
}

// ResolveSource maps an uploads source identifier to its file on disk.
// ok is false for sources that are not uploads (web URLs).
func (a *Acquirer) ResolveSource(source string) (path string, ok bool) {
	if !strings.HasPrefix(source, models.UploadsPrefix) {
		return "", false
	}
	name := filepath.Base(strings.TrimPrefix(source, models.UploadsPrefix))
	return filepath.Join(a.uploadsDir, name), true
}

// ClearUploads deletes every stored upload.
func (a *Acquirer) ClearUploads() ([]string, error) {
	return helper.ClearFolder(a.uploadsDir)
}
