package optimizer

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
	optimizer *Optimizer
	jobs      JobSubmitter
	logger    *zap.Logger
}

func NewHandler(optimizer *Optimizer, submitter JobSubmitter, logger *zap.Logger) *Handler {
	return &Handler{optimizer: optimizer, jobs: submitter, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	optimize := rg.Group("/tools/optimize")
	{
		optimize.POST("", h.Optimize)
		optimize.POST("/jobs", h.SubmitJob)
	}
}

// Optimize responds with the optimized archive.
func (h *Handler) Optimize(c *gin.Context) {
	upload, err := httpio.FormFile(c, "file")
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}

	out, err := h.optimizer.Optimize(c.Request.Context(), upload.Data, nil)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	data, err := out.Bytes()
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	h.logger.Info("pdfs optimized", zap.String("upload", upload.Name), zap.Int("files", out.Len()))
	httpio.Archive(c, ArchiveName, data)
}

func (h *Handler) SubmitJob(c *gin.Context) {
	upload, err := httpio.FormFile(c, "file")
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}

	snap := h.jobs.Submit(jobs.KindOptimize, ArchiveName, func(ctx context.Context, progress func(int, int)) (*archive.Archive, error) {
		return h.optimizer.Optimize(ctx, upload.Data, progress)
	})
	jobs.Accepted(c, snap)
}
