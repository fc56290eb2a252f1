package render

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"cert-studio/studio-backend/pkg/apperr"
)

// PageSurface is one background page. It is shared read-only across renders.
type PageSurface struct {
	Image      image.Image
	Width      int
	Height     int
	PageNumber int
}

// NewSurface wraps img using its own dimensions.
func NewSurface(img image.Image, pageNumber int) PageSurface {
	b := img.Bounds()
	return PageSurface{Image: img, Width: b.Dx(), Height: b.Dy(), PageNumber: pageNumber}
}

// IsPDF reports whether data looks like a PDF file.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF"))
}

// DecodeSurface decodes a PNG, JPEG, BMP or WebP background. PDF backgrounds
// go through a rasterizer before reaching here.
func DecodeSurface(data []byte, pageNumber int) (PageSurface, error) {
	if IsPDF(data) {
		return PageSurface{}, fmt.Errorf("%w: PDF background needs rasterizing", apperr.ErrInvalidInput)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return PageSurface{}, fmt.Errorf("%w: background page %d: %v", apperr.ErrInvalidInput, pageNumber, err)
	}
	return NewSurface(img, pageNumber), nil
}

// Landscape reports whether the page is wider than it is tall.
func (p PageSurface) Landscape() bool {
	return p.Width > p.Height
}

func (p PageSurface) size() (int, int) {
	w, h := p.Width, p.Height
	if (w <= 0 || h <= 0) && p.Image != nil {
		b := p.Image.Bounds()
		w, h = b.Dx(), b.Dy()
	}
	return max(w, 1), max(h, 1)
}
