// Package conversion calls the external Word to PDF converter service.
package conversion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"cert-studio/studio-backend/pkg/apperr"
)

// DefaultMaxResponseSize bounds a converted document.
const DefaultMaxResponseSize = 128 << 20

// Options configures the converter client.
type Options struct {
	URL             string
	Timeout         time.Duration
	MaxRetries      int
	MaxResponseSize int64
}

// Client posts documents to the converter and returns PDF bytes.
type Client struct {
	url         string
	maxRetries  int
	maxResponse int64
	httpClient  *http.Client
	logger      *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.MaxResponseSize <= 0 {
		opts.MaxResponseSize = DefaultMaxResponseSize
	}
	return &Client{
		url:         opts.URL,
		maxRetries:  opts.MaxRetries,
		maxResponse: opts.MaxResponseSize,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		logger: logger,
	}
}

// IsWordDocument reports whether name has a .doc or .docx extension.
func IsWordDocument(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".doc", ".docx":
		return true
	}
	return false
}

// ConvertToPDF uploads data as multipart field "file". Transport errors are
// retried; a response from the converter is final. Every failure wraps
// apperr.ErrExternalConversion.
func (c *Client) ConvertToPDF(ctx context.Context, name string, data []byte) ([]byte, error) {
	if c.url == "" {
		return nil, fmt.Errorf("%w: no converter configured", apperr.ErrExternalConversion)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		pdf, retry, err := c.convert(ctx, name, data)
		if err == nil {
			c.logger.Debug("document converted", zap.String("file", name), zap.Int("bytes", len(pdf)))
			return pdf, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
		c.logger.Warn("converter request failed, retrying",
			zap.String("file", name),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, fmt.Errorf("%w: %v", apperr.ErrExternalConversion, lastErr)
}

func (c *Client) convert(ctx context.Context, name string, data []byte) ([]byte, bool, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return nil, false, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, false, err
	}
	if err := w.Close(); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	if err != nil {
		return nil, true, err
	}
	if int64(len(payload)) > c.maxResponse {
		return nil, false, fmt.Errorf("converter response exceeds %d bytes", c.maxResponse)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &failure) == nil && failure.Error != "" {
			return nil, false, fmt.Errorf("converter returned status %d: %s", resp.StatusCode, failure.Error)
		}
		return nil, false, fmt.Errorf("converter returned status %d", resp.StatusCode)
	}
	if !bytes.HasPrefix(payload, []byte("%PDF")) {
		return nil, false, fmt.Errorf("converter response is not a PDF")
	}
	return payload, false, nil
}
