package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cert-studio/studio-backend/internal/httpio"
	"cert-studio/studio-backend/internal/jobs"
	"cert-studio/studio-backend/pkg/apperr"
	"cert-studio/studio-backend/pkg/archive"
)

// JobSubmitter starts background work.
type JobSubmitter interface {
	Submit(kind jobs.Kind, fileName string, run jobs.Runner) jobs.Snapshot
}

type Handler struct {
	service *Service
	jobs    JobSubmitter
	logger  *zap.Logger
}

func NewHandler(service *Service, submitter JobSubmitter, logger *zap.Logger) *Handler {
	return &Handler{service: service, jobs: submitter, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	organize := rg.Group("/tools/organize")
	{
		organize.POST("", h.Organize)
		organize.POST("/check", h.Check)
		organize.POST("/jobs", h.SubmitJob)
	}
}

// ArchiveName is the download name for an organize result.
func ArchiveName(correlative string) string {
	return fmt.Sprintf("organizado_%s.zip", archive.Sanitize(strings.TrimSpace(correlative)))
}

func formFiles(c *gin.Context, field string) ([]httpio.Upload, error) {
	files, err := httpio.FormFiles(c, field)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return httpio.FormFiles(c, field+"[]")
	}
	return files, nil
}

func toInputs(uploads []httpio.Upload) []Input {
	out := make([]Input, len(uploads))
	for i, u := range uploads {
		out[i] = Input{Name: u.Name, Data: u.Data}
	}
	return out
}

func (h *Handler) bind(c *gin.Context) (Request, error) {
	spreadsheets, err := formFiles(c, "spreadsheets")
	if err != nil {
		return Request{}, err
	}
	documents, err := formFiles(c, "documents")
	if err != nil {
		return Request{}, err
	}

	req := Request{
		Correlative:  c.PostForm("correlative"),
		Spreadsheets: toInputs(spreadsheets),
		Documents:    toInputs(documents),
	}
	if raw := strings.TrimSpace(c.PostForm("order")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Order); err != nil {
			return Request{}, fmt.Errorf("%w: order must be a JSON array of positions: %v", apperr.ErrInvalidInput, err)
		}
	}
	return req, nil
}

func (h *Handler) fail(c *gin.Context, err error) {
	report := ReportOf(err)
	if report == nil {
		httpio.Error(c, h.logger, err)
		return
	}
	h.logger.Warn("organize request rejected", zap.Error(err))
	c.JSON(apperr.HTTPStatus(err), gin.H{
		"error":  err.Error(),
		"code":   apperr.Classify(err),
		"report": report,
	})
}

// Organize runs the tool synchronously and responds with the archive.
func (h *Handler) Organize(c *gin.Context) {
	req, err := h.bind(c)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Correlative) == "" {
		httpio.Error(c, h.logger, fmt.Errorf("%w: correlative is required", apperr.ErrInvalidInput))
		return
	}

	out, _, err := h.service.Run(c.Request.Context(), req, nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	data, err := out.Bytes()
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	httpio.Archive(c, ArchiveName(req.Correlative), data)
}

// Check reports per-pair reconciliation without organizing, as JSON or, with
// ?format=xlsx, as a workbook.
func (h *Handler) Check(c *gin.Context) {
	req, err := h.bind(c)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	report, err := h.service.Check(c.Request.Context(), req)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}

	if c.Query("format") != "xlsx" {
		c.JSON(http.StatusOK, report)
		return
	}
	var buf bytes.Buffer
	if err := WriteReportWorkbook(&buf, report); err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, ReportFileName))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// SubmitJob runs the tool in the background.
func (h *Handler) SubmitJob(c *gin.Context) {
	req, err := h.bind(c)
	if err != nil {
		httpio.Error(c, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Correlative) == "" {
		httpio.Error(c, h.logger, fmt.Errorf("%w: correlative is required", apperr.ErrInvalidInput))
		return
	}

	snap := h.jobs.Submit(jobs.KindOrganize, ArchiveName(req.Correlative), func(ctx context.Context, progress func(int, int)) (*archive.Archive, error) {
		out, _, err := h.service.Run(ctx, req, progress)
		return out, err
	})
	jobs.Accepted(c, snap)
}
