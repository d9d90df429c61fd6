package api

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"scheme-research/internal/helper"
	"scheme-research/internal/models"
	"scheme-research/internal/session"
)

// Controller exposes the session actions over HTTP. gin serves requests
// concurrently, so every action holds mu for its full duration.
type Controller struct {
	mu             sync.Mutex
	orch           *session.Orchestrator
	maxUploadBytes int64
}

func NewController(orch *session.Orchestrator, maxUploadBytes int64) *Controller {
	return &Controller{orch: orch, maxUploadBytes: maxUploadBytes}
}

// SetInputType handles POST /api/v1/input-type.
func (c *Controller) SetInputType(ctx *gin.Context) {
	var req InputTypeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.orch.SetInputType(session.InputType(req.InputType)); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, c.orch.View())
}

// SelectModel handles PUT /api/v1/model.
func (c *Controller) SelectModel(ctx *gin.Context) {
	var req ModelRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.orch.SelectModel(req.Model); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, c.orch.View())
}

// Process handles POST /api/v1/process. The form carries "urls" (one per
// line) and an optional "file" upload.
func (c *Controller) Process(ctx *gin.Context) {
	in := session.ProcessInput{URLs: helper.ParseURLList(ctx.PostForm("urls"))}

	if fh, err := ctx.FormFile("file"); err == nil {
		if fh.Size > c.maxUploadBytes {
			ctx.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "uploaded file is too large"})
			return
		}
		f, err := fh.Open()
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload: " + err.Error()})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid upload: " + err.Error()})
			return
		}
		in.FileName = fh.Filename
		in.FileData = data
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.orch.Process(ctx.Request.Context(), in)
	if err != nil {
		ctx.JSON(statusFor(err), ProcessResponse{ProcessResult: res, Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, ProcessResponse{ProcessResult: res})
}

// GenerateSummary handles POST /api/v1/summary.
func (c *Controller) GenerateSummary(ctx *gin.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sum, err := c.orch.GenerateSummary(ctx.Request.Context())
	if err != nil {
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	resp := SummaryResponse{Summary: sum, Sections: models.SummarySections, HTML: map[string]string{}}
	for name, text := range sum.Sections {
		resp.HTML[name] = renderHTML(text)
	}
	ctx.JSON(http.StatusOK, resp)
}

// Ask handles POST /api/v1/questions.
func (c *Controller) Ask(ctx *gin.Context) {
	var req QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	rec, cached, err := c.orch.Ask(ctx.Request.Context(), req.Question)
	if err != nil {
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, QuestionResponse{
		Record:     rec,
		AnswerHTML: renderHTML(rec.Answer),
		Links:      c.orch.Links(rec.Sources),
		Cached:     cached,
	})
}

// Reset handles POST /api/v1/reset.
func (c *Controller) Reset(ctx *gin.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.orch.Reset(); err != nil {
		log.Error().Err(err).Msg("Reset could not remove every upload")
		ctx.JSON(http.StatusOK, gin.H{"message": "Session reset", "warning": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Session reset"})
}

// Session handles GET /api/v1/session.
func (c *Controller) Session(ctx *gin.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctx.JSON(http.StatusOK, c.orch.View())
}

// Download handles GET /uploads/:name.
func (c *Controller) Download(ctx *gin.Context) {
	name := filepath.Base(ctx.Param("name"))

	c.mu.Lock()
	path, err := c.orch.ResolveSource(models.UploadsPrefix + name)
	c.mu.Unlock()
	if err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ctx.FileAttachment(path, name)
}

func renderHTML(text string) string {
	out, err := helper.MarkdownToHTML(text)
	if err != nil {
		log.Warn().Err(err).Msg("Could not render answer markdown")
		return ""
	}
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNoUsableText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrCorpusTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, session.ErrNoIndex):
		return http.StatusConflict
	case errors.Is(err, session.ErrEmptyQuestion),
		errors.Is(err, session.ErrUnknownModel),
		errors.Is(err, session.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrSourceMissing):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
