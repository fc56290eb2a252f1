package certificates

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cert-studio/studio-backend/internal/httpio"
	"cert-studio/studio-backend/internal/jobs"
	"cert-studio/studio-backend/pkg/archive"
)

// JobSubmitter starts background work.
type JobSubmitter interface {
	Submit(kind jobs.Kind, fileName string, run jobs.Runner) jobs.Snapshot
}

type Handler struct {
	service Service
	jobs    JobSubmitter
	logger  *zap.Logger
}

func NewHandler(service Service, submitter JobSubmitter, logger *zap.Logger) *Handler {
	return &Handler{service: service, jobs: submitter, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	certs := rg.Group("/certificates")
	{
		certs.POST("/generate", h.Generate)
		certs.POST("/jobs", h.SubmitJob)
	}
}

func (h *Handler) bind(c *gin.Context) (Request, error) {
	spreadsheet, err := httpio.FormFile(c, "spreadsheet")
	if err != nil {
		return Request{}, err
	}
	front, err := httpio.FormFile(c, "front")
	if err != nil {
		return Request{}, err
	}
	back, err := httpio.OptionalFormFile(c, "back")
	if err != nil {
		return Request{}, err
	}

	in := GenerateInput{
		Spreadsheet: spreadsheet.Data,
		Sheet:       c.PostForm("sheet"),
		Front:       front.Data,
		Fields:      []byte(c.PostForm("fields")),
	}
	if back != nil {
		in.Back = back.Data
	}
	return h.service.Prepare(c.Request.Context(), in)
}

// Generate renders every row and responds with the archive.
func (h *Handler) Generate(c *gin.Context) {
	req, err := h.bind(c)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}

	out, err := h.service.Generate(c.Request.Context(), req, nil)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	data, err := out.Bytes()
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	httpio.Archive(c, ArchiveName, data)
}

// SubmitJob validates the request and runs generation in the background.
func (h *Handler) SubmitJob(c *gin.Context) {
	req, err := h.bind(c)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}

	snap := h.jobs.Submit(jobs.KindGenerate, ArchiveName, func(ctx context.Context, progress func(int, int)) (*archive.Archive, error) {
		return h.service.Generate(ctx, req, progress)
	})
	jobs.Accepted(c, snap)
}
