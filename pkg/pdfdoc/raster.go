package pdfdoc

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"cert-studio/studio-backend/pkg/apperr"
)

// Rasterizer renders the leading pages of a PDF to images.
type Rasterizer interface {
	Rasterize(ctx context.Context, data []byte, pages int) ([]image.Image, error)
}

// Poppler rasterizes with the pdftoppm binary from poppler-utils.
type Poppler struct {
	Binary string
	// Width is the pixel width of every rendered page; height keeps the aspect ratio.
	Width int
}

// NewPoppler returns a rasterizer running binary at the given page width.
func NewPoppler(binary string, width int) *Poppler {
	if binary == "" {
		binary = "pdftoppm"
	}
	if width <= 0 {
		width = 2000
	}
	return &Poppler{Binary: binary, Width: width}
}

// Rasterize renders at most pages pages of data, first page first. A document
// shorter than pages yields fewer images.
func (p *Poppler) Rasterize(ctx context.Context, data []byte, pages int) ([]image.Image, error) {
	if pages < 1 {
		return nil, fmt.Errorf("%w: page limit %d", apperr.ErrInvalidInput, pages)
	}

	dir, err := os.MkdirTemp("", "studio-raster-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create raster dir: %w", err)
	}
	defer os.RemoveAll(dir)

	src := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(src, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage pdf: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.Binary,
		"-png",
		"-f", "1",
		"-l", strconv.Itoa(pages),
		"-scale-to-x", strconv.Itoa(p.Width),
		"-scale-to-y", "-1",
		src,
		filepath.Join(dir, "page"),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: pdftoppm: %v: %s", apperr.ErrUnreadableDocument, err, out)
	}

	// pdftoppm names pages page-1.png or page-01.png depending on the page count.
	files, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: pdftoppm produced no pages", apperr.ErrUnreadableDocument)
	}
	sort.Strings(files)

	images := make([]image.Image, 0, len(files))
	for _, name := range files {
		img, err := decodePNG(name)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

func decodePNG(name string) (image.Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(name), err)
	}
	return img, nil
}
