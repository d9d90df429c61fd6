package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"scheme-research/internal/chromemdb"
	"scheme-research/internal/chunker"
	"scheme-research/internal/config"
	"scheme-research/internal/llmservice"
	"scheme-research/internal/models"
	"scheme-research/internal/parser"
	"scheme-research/internal/rag"
	"scheme-research/internal/session"
)

type stubEmbedder struct{}

func (e stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.EmbedQuery(ctx, t)
	}
	return out, nil
}

func (stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{1, float32(len(text)%7 + 1)}, nil
}

type markdownModel struct{}

func (markdownModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "**Eligible**: small farmers."}}}, nil
}

func (m markdownModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func newTestRouter(t *testing.T) (*gin.Engine, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("The scheme pays farmers. ", 40)))
	}))
	t.Cleanup(src.Close)

	cfg := config.Default()
	cfg.Storage.UploadsDir = filepath.Join(t.TempDir(), "uploads")
	ch, err := chunker.New(cfg.RAG)
	require.NoError(t, err)
	mgr, err := chromemdb.NewVectorDBManager(t.TempDir(), "api", true, false, "")
	require.NoError(t, err)

	orch := session.New(cfg, session.Deps{
		Acquirer: parser.NewAcquirer(cfg.Storage.UploadsDir, src.Client()),
		Splitter: ch,
		Embedder: stubEmbedder{},
		Build: func(ctx context.Context, chunks []models.Chunk, vectors [][]float32) (rag.Index, error) {
			idx, err := mgr.Build(ctx, chunks, vectors)
			if err != nil {
				return nil, err
			}
			return idx, nil
		},
		Answerer: rag.NewRAG(stubEmbedder{}, cfg.RAG.TopK),
		Models: llmservice.NewFactory(func(string) (llms.Model, error) {
			return markdownModel{}, nil
		}),
	})
	return NewRouter(NewController(orch, cfg.Server.MaxUploadBytes)), src
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, name string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestProcessWithoutInput(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", strings.NewReader(""))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Could not extract usable text")
}

func TestURLFlow(t *testing.T) {
	r, src := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/input-type", InputTypeRequest{InputType: "urls"})
	require.Equal(t, http.StatusOK, w.Code)

	form := url.Values{"urls": {src.URL + "/a\n\n" + src.URL + "/b"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/process", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var pr session.ProcessResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pr))
	assert.Equal(t, 2, pr.Documents)
	assert.Positive(t, pr.Chunks)

	w = doJSON(t, r, http.MethodPost, "/api/v1/questions", QuestionRequest{Question: "Who is eligible?"})
	require.Equal(t, http.StatusOK, w.Code)
	var qr QuestionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &qr))
	assert.False(t, qr.Cached)
	assert.Contains(t, qr.AnswerHTML, "<strong>Eligible</strong>")
	require.NotEmpty(t, qr.Links)
	assert.False(t, qr.Links[0].IsFile)

	w = doJSON(t, r, http.MethodPost, "/api/v1/questions", QuestionRequest{Question: "Who is eligible?"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &qr))
	assert.True(t, qr.Cached)

	w = doJSON(t, r, http.MethodPost, "/api/v1/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sr SummaryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sr))
	assert.Len(t, sr.Summary.Sections, 4)
	assert.Equal(t, models.SummarySections, sr.Sections)

	w = doJSON(t, r, http.MethodGet, "/api/v1/session", nil)
	var v session.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	assert.Len(t, v.History, 1)
	assert.Equal(t, session.StateSummarized, v.State)
}

func TestUploadDownloadAndReset(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/v1/input-type", InputTypeRequest{InputType: "pdf"})
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "guide.txt", []byte(strings.Repeat("Apply at the block office. ", 30))))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodGet, "/uploads/guide.txt", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "block office")

	w = doJSON(t, r, http.MethodPost, "/api/v1/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/uploads/guide.txt", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/questions", QuestionRequest{Question: "How to apply?"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestValidationErrors(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPut, "/api/v1/model", ModelRequest{Model: "gigantic"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPut, "/api/v1/model", ModelRequest{Model: "accurate"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "llama3-70b-8192")

	w = doJSON(t, r, http.MethodPost, "/api/v1/input-type", InputTypeRequest{InputType: "csv"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/questions", QuestionRequest{Question: " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/v1/summary", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
