// Package httpio holds the request and response helpers shared by the gin
// handlers.
package httpio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cert-studio/studio-backend/pkg/apperr"
)

// MaxUploadSize bounds any single uploaded file.
const MaxUploadSize = 64 << 20

// Upload is one uploaded file held in memory.
type Upload struct {
	Name string
	Data []byte
}

func readFileHeader(fh *multipart.FileHeader) (Upload, error) {
	if fh.Size > MaxUploadSize {
		return Upload{}, fmt.Errorf("%w: %s exceeds %d bytes", apperr.ErrInvalidInput, fh.Filename, MaxUploadSize)
	}
	f, err := fh.Open()
	if err != nil {
		return Upload{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadSize+1))
	if err != nil {
		return Upload{}, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return Upload{Name: fh.Filename, Data: data}, nil
}

// FormFile reads a required multipart file.
func FormFile(c *gin.Context, field string) (Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return Upload{}, fmt.Errorf("%w: %s is required", apperr.ErrInvalidInput, field)
	}
	return readFileHeader(fh)
}

// OptionalFormFile reads a multipart file, returning nil when it is absent.
func OptionalFormFile(c *gin.Context, field string) (*Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidInput, field, err)
	}
	up, err := readFileHeader(fh)
	if err != nil {
		return nil, err
	}
	return &up, nil
}

// FormFiles reads every file posted under field, in form order.
func FormFiles(c *gin.Context, field string) ([]Upload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	headers := form.File[field]
	out := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := readFileHeader(fh)
		if err != nil {
			return nil, err
		}
		out = append(out, up)
	}
	return out, nil
}

// Error logs err and writes it with a status derived from its kind.
func Error(c *gin.Context, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		logger.Warn("request rejected", zap.String("path", c.FullPath()), zap.Error(err))
	}

	body := gin.H{
		"error": err.Error(),
		"code":  apperr.Classify(err),
	}
	if item := apperr.ItemOf(err); item != "" {
		body["item"] = item
	}
	c.JSON(status, body)
}

// Archive sends zip bytes as a download.
func Archive(c *gin.Context, fileName string, data []byte) {
	c.DataFromReader(http.StatusOK, int64(len(data)), "application/zip", bytes.NewReader(data), map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="%s"`, fileName),
	})
}
