package certificates

import (
	"context"
	"fmt"
	"image"

	"cert-studio/studio-backend/internal/render"
	"cert-studio/studio-backend/pkg/apperr"
	"cert-studio/studio-backend/pkg/archive"
)

// Request is everything one generation run needs. It is not modified.
type Request struct {
	Rows        []render.DataRow
	Front       render.PageSurface
	FrontFields []render.FieldDescriptor
	Back        *render.PageSurface
	BackFields  []render.FieldDescriptor
}

// ProgressFunc receives (current, total) after each completed unit.
type ProgressFunc func(current, total int)

// RenderFunc paints fields over a background for one row.
type RenderFunc func(bg render.PageSurface, fields []render.FieldDescriptor, row render.DataRow) *image.RGBA

// PageComposer turns rendered pages into one document.
type PageComposer interface {
	Compose(pages []Page) ([]byte, error)
}

// Assembler renders one document per row and collects them in an archive.
type Assembler struct {
	render   RenderFunc
	composer PageComposer
	level    int
}

func NewAssembler(composer PageComposer, level int) *Assembler {
	return &Assembler{render: render.Render, composer: composer, level: level}
}

// Assemble processes rows strictly in order. Any row failure aborts the run
// and nothing is returned; cancellation is checked between rows.
func (a *Assembler) Assemble(ctx context.Context, req Request, progress ProgressFunc) (*archive.Archive, error) {
	if req.Front.Image == nil {
		return nil, fmt.Errorf("%w: front page is required", apperr.ErrInvalidInput)
	}

	out := archive.NewWithLevel(a.level)
	total := len(req.Rows)
	for i, row := range req.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := a.assembleRow(req, row)
		if err != nil {
			return nil, apperr.Item(fmt.Sprintf("row %d", i+1), fmt.Errorf("%w: %w", apperr.ErrRenderFailure, err))
		}
		out.Put(uniqueName(out, FileName(row, i)), data)

		if progress != nil {
			progress(i+1, total)
		}
	}
	return out, nil
}

func (a *Assembler) assembleRow(req Request, row render.DataRow) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while rendering: %v", r)
		}
	}()

	pages := []Page{{
		Image:     a.render(req.Front, req.FrontFields, row),
		Landscape: req.Front.Landscape(),
	}}
	if req.Back != nil {
		pages = append(pages, Page{
			Image:     a.render(*req.Back, req.BackFields, row),
			Landscape: req.Back.Landscape(),
		})
	}
	return a.composer.Compose(pages)
}
