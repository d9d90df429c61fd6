package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/gabriel-vasile/mimetype"

	"scheme-research/internal/models"
)

const (
	userAgent       = "scheme-research/1.0"
	maxResponseSize = 20 << 20
)

// fetchURL downloads one URL and extracts its text. HTML is converted to
// markdown, plain text is kept as-is and PDFs are read page by page.
func fetchURL(ctx context.Context, client *http.Client, url string) ([]models.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("request failed: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}
	return extractBody(body, resp.Header.Get("Content-Type"), url)
}

func extractBody(body []byte, contentType, source string) ([]models.Document, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	detected := mimetype.Detect(body)

	switch {
	case mediaType == "application/pdf" || detected.Is("application/pdf"):
		return parsePDF(bytes.NewReader(body), int64(len(body)), source)
	case mediaType == "text/html" || mediaType == "application/xhtml+xml" || detected.Is("text/html"):
		md, err := htmltomarkdown.ConvertString(string(body))
		if err != nil {
			return nil, fmt.Errorf("convert html: %w", err)
		}
		return []models.Document{{Content: md, Source: source, Page: defaultPageNumber}}, nil
	case strings.HasPrefix(mediaType, "text/") || strings.HasPrefix(detected.String(), "text/"):
		return []models.Document{{Content: string(body), Source: source, Page: defaultPageNumber}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, detected.String())
	}
}
