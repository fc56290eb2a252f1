// Package certificates turns spreadsheet rows and placed fields into one
// rendered document per row, packaged as a single archive.
package certificates

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"cert-studio/studio-backend/internal/render"
	"cert-studio/studio-backend/pkg/apperr"
	"cert-studio/studio-backend/pkg/archive"
	"cert-studio/studio-backend/pkg/pdfdoc"
)

// ArchiveName is the download name of a generation result.
const ArchiveName = "certificados.zip"

// GenerateInput is the raw material of a generation request.
type GenerateInput struct {
	Spreadsheet []byte
	Sheet       string
	Front       []byte
	Back        []byte
	Fields      []byte
}

// FieldSet holds the field lists of both pages.
type FieldSet struct {
	Front []render.FieldDescriptor `json:"front"`
	Back  []render.FieldDescriptor `json:"back"`
}

type Service interface {
	Prepare(ctx context.Context, in GenerateInput) (Request, error)
	Generate(ctx context.Context, req Request, progress ProgressFunc) (*archive.Archive, error)
}

type service struct {
	assembler  *Assembler
	rasterizer pdfdoc.Rasterizer
	logger     *zap.Logger
}

// NewService builds the generation service. A nil rasterizer rejects PDF
// backgrounds.
func NewService(assembler *Assembler, rasterizer pdfdoc.Rasterizer, logger *zap.Logger) Service {
	return &service{assembler: assembler, rasterizer: rasterizer, logger: logger}
}

// Prepare decodes backgrounds, rows and fields into a Request. A PDF front
// supplies its first page as the front and, when no back is uploaded, its
// second page as the back.
func (s *service) Prepare(ctx context.Context, in GenerateInput) (Request, error) {
	front, back, err := s.backgrounds(ctx, in)
	if err != nil {
		return Request{}, err
	}

	table, err := LoadRows(bytes.NewReader(in.Spreadsheet), in.Sheet)
	if err != nil {
		return Request{}, apperr.Item("spreadsheet", err)
	}
	if len(table.Rows) == 0 {
		return Request{}, apperr.Item("spreadsheet", fmt.Errorf("%w: no data rows", apperr.ErrInvalidInput))
	}

	var fields FieldSet
	if len(bytes.TrimSpace(in.Fields)) > 0 {
		if err := json.Unmarshal(in.Fields, &fields); err != nil {
			return Request{}, fmt.Errorf("%w: fields: %v", apperr.ErrInvalidInput, err)
		}
	}

	return Request{
		Rows:        table.Rows,
		Front:       front,
		FrontFields: fields.Front,
		Back:        back,
		BackFields:  fields.Back,
	}, nil
}

func (s *service) backgrounds(ctx context.Context, in GenerateInput) (render.PageSurface, *render.PageSurface, error) {
	var front render.PageSurface
	var back *render.PageSurface

	if render.IsPDF(in.Front) {
		pages, err := s.rasterize(ctx, in.Front, 2)
		if err != nil {
			return front, nil, apperr.Item("front", err)
		}
		front = render.NewSurface(pages[0], 1)
		if len(pages) > 1 && len(in.Back) == 0 {
			surface := render.NewSurface(pages[1], 2)
			back = &surface
		}
		s.logger.Debug("rasterized PDF background", zap.Int("pages", len(pages)))
	} else {
		surface, err := render.DecodeSurface(in.Front, 1)
		if err != nil {
			return front, nil, apperr.Item("front", err)
		}
		front = surface
	}

	if len(in.Back) == 0 {
		return front, back, nil
	}
	if render.IsPDF(in.Back) {
		pages, err := s.rasterize(ctx, in.Back, 1)
		if err != nil {
			return front, nil, apperr.Item("back", err)
		}
		surface := render.NewSurface(pages[0], 2)
		return front, &surface, nil
	}
	surface, err := render.DecodeSurface(in.Back, 2)
	if err != nil {
		return front, nil, apperr.Item("back", err)
	}
	return front, &surface, nil
}

func (s *service) rasterize(ctx context.Context, data []byte, pages int) ([]image.Image, error) {
	if s.rasterizer == nil {
		return nil, fmt.Errorf("%w: PDF backgrounds are not enabled", apperr.ErrInvalidInput)
	}
	images, err := s.rasterizer.Rasterize(ctx, data, pages)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: PDF background has no pages", apperr.ErrInvalidInput)
	}
	return images, nil
}

func (s *service) Generate(ctx context.Context, req Request, progress ProgressFunc) (*archive.Archive, error) {
	start := time.Now()
	s.logger.Info("generating certificates",
		zap.Int("rows", len(req.Rows)),
		zap.Bool("two_pages", req.Back != nil),
	)

	out, err := s.assembler.Assemble(ctx, req, progress)
	if err != nil {
		s.logger.Error("certificate generation failed", zap.Error(err))
		return nil, err
	}

	s.logger.Info("certificates generated",
		zap.Int("files", out.Len()),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return out, nil
}
