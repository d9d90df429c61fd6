package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"scheme-research/internal/models"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoUsableContent   = errors.New("no usable content")
)

const defaultPageNumber = 1

// SupportedExtensions lists the upload formats ParseFile understands.
var SupportedExtensions = []string{".pdf", ".docx", ".pptx", ".xlsx", ".xlsm", ".txt", ".md"}

// ParseFile extracts documents from a stored upload. source is the
// identifier attached to every document (e.g. "/uploads/scheme.pdf").
func ParseFile(filePath, source string) ([]models.Document, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		f, err := os.Open(filePath)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil {
			return nil, err
		}
		return parsePDF(f, stat.Size(), source)
	case ".docx":
		return parseDOCX(filePath, source)
	case ".pptx":
		return parsePPTX(filePath, source)
	case ".xlsx":
		return parseXLSX(filePath, source)
	case ".xlsm":
		return parseXLSM(filePath, source)
	case ".txt", ".md":
		return parseText(filePath, source)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// CheckContent rejects uploads whose bytes do not match their extension.
func CheckContent(name string, data []byte) error {
	ext := strings.ToLower(filepath.Ext(name))
	mt := mimetype.Detect(data)
	switch ext {
	case ".pdf":
		if !mt.Is("application/pdf") {
			return fmt.Errorf("%w: %s is %s, not a PDF", ErrUnsupportedFormat, name, mt.String())
		}
	case ".docx", ".pptx", ".xlsx", ".xlsm":
		// office formats are zip containers
		if !isZipFamily(mt) {
			return fmt.Errorf("%w: %s is %s", ErrUnsupportedFormat, name, mt.String())
		}
	case ".txt", ".md":
		if !strings.HasPrefix(mt.String(), "text/") {
			return fmt.Errorf("%w: %s is %s, not text", ErrUnsupportedFormat, name, mt.String())
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return nil
}

func isZipFamily(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}
	return false
}

func parsePDF(r io.ReaderAt, size int64, source string) ([]models.Document, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, err
	}

	var (
		docs     []models.Document
		firstErr error
	)
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			log.Warn().Err(err).Msgf("Skipping unreadable page %d of %s", i, source)
			if firstErr == nil {
				firstErr = fmt.Errorf("page %d: %w", i, err)
			}
			continue
		}
		docs = append(docs, models.Document{
			Content: pageText,
			Source:  source,
			Page:    i,
		})
	}
	docs = nonEmpty(docs)
	if len(docs) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return docs, nil
}

var docxParagraphEnd = regexp.MustCompile(`</w:p>`)

func parseDOCX(filePath, source string) ([]models.Document, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var text strings.Builder
	for _, p := range docxParagraphEnd.Split(content, -1) {
		line := strings.TrimSpace(extractTextFromXML(p, "w:t"))
		if line == "" {
			continue
		}
		text.WriteString(line)
		text.WriteString("\n")
	}
	return nonEmpty([]models.Document{{Content: text.String(), Source: source, Page: defaultPageNumber}}), nil
}

var slideName = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func parsePPTX(filePath, source string) ([]models.Document, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []models.Document
	for _, file := range f.File {
		m := slideName.FindStringSubmatch(file.Name)
		if m == nil {
			continue
		}
		slideNum, _ := strconv.Atoi(m[1])
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		docs = append(docs, models.Document{
			Content: extractTextFromXML(string(data), "a:t"),
			Source:  source,
			Page:    slideNum,
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Page < docs[j].Page })
	return nonEmpty(docs), nil
}

func parseXLSX(filePath, source string) ([]models.Document, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var docs []models.Document
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		docs = append(docs, models.Document{Content: text.String(), Source: source, Page: sheetNum + 1})
	}
	return nonEmpty(docs), nil
}

func parseXLSM(filePath, source string) ([]models.Document, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var docs []models.Document
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		docs = append(docs, models.Document{Content: text.String(), Source: source, Page: sheetNum + 1})
	}
	return nonEmpty(docs), nil
}

func parseText(filePath, source string) ([]models.Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return nonEmpty([]models.Document{{Content: string(data), Source: source, Page: defaultPageNumber}}), nil
}

// extractTextFromXML collects the text runs of the given element (e.g. "a:t").
func extractTextFromXML(xmlContent, tag string) string {
	re := regexp.MustCompile(`(?s)<` + regexp.QuoteMeta(tag) + `(?:\s[^>]*)?>(.*?)</` + regexp.QuoteMeta(tag) + `>`)
	var text strings.Builder
	for _, m := range re.FindAllStringSubmatch(xmlContent, -1) {
		text.WriteString(m[1] + " ")
	}
	return text.String()
}

// Join returns the concatenated text of docs, used to test for usable content.
func Join(docs []models.Document) string {
	var b bytes.Buffer
	for _, d := range docs {
		b.WriteString(d.Content)
	}
	return b.String()
}

func nonEmpty(docs []models.Document) []models.Document {
	out := docs[:0]
	for _, d := range docs {
		if strings.TrimSpace(d.Content) != "" {
			out = append(out, d)
		}
	}
	return out
}
