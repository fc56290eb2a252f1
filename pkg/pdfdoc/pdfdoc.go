// Package pdfdoc wraps pdfcpu for the page-level operations the studio needs:
// counting pages, extracting single pages and re-serializing whole files.
package pdfdoc

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"cert-studio/studio-backend/pkg/apperr"
)

func init() {
	// Keep pdfcpu from creating a config directory under the user's home.
	model.ConfigPath = "disable"
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// PageCount returns the number of pages in data.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrUnreadableDocument, err)
	}
	return n, nil
}

// Document is a parsed PDF ready for page extraction. It is not safe for
// concurrent use.
type Document struct {
	ctx *model.Context
}

// Open parses and validates data.
func Open(data []byte) (*Document, error) {
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnreadableDocument, err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnreadableDocument, err)
	}
	return &Document{ctx: ctx}, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// ExtractPage returns page n (1-based) as an independent single-page PDF.
func (d *Document) ExtractPage(n int) ([]byte, error) {
	if n < 1 || n > d.ctx.PageCount {
		return nil, fmt.Errorf("page %d out of range 1-%d", n, d.ctx.PageCount)
	}

	pageCtx, err := pdfcpu.ExtractPages(d.ctx, []int{n}, false)
	if err != nil {
		return nil, fmt.Errorf("failed to extract page %d: %w", n, err)
	}

	var buf bytes.Buffer
	if err := api.WriteContext(pageCtx, &buf); err != nil {
		return nil, fmt.Errorf("failed to write page %d: %w", n, err)
	}
	return buf.Bytes(), nil
}

// Optimize re-serializes data into a plain, widely compatible PDF.
func Optimize(data []byte) ([]byte, error) {
	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(data), &out, newConfiguration()); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnreadableDocument, err)
	}
	return out.Bytes(), nil
}
