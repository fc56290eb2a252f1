// Package render paints positioned text fields over a background page.
//
// Rendering is a pure function of (background, fields, row): it never fails,
// never mutates the background and may be called concurrently.
package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// DataRow is one spreadsheet row as canonical strings, aligned to the header.
type DataRow []string

// At returns the value at column i, or "" when i is out of range.
func (r DataRow) At(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// ResolveText returns the text a field shows for row. A nil row yields "" for
// every data column.
func ResolveText(src Source, row DataRow) string {
	if src.Kind == StaticText {
		return src.Text
	}
	return row.At(src.ColumnIndex)
}

// DrawOrigin returns the x at which a run of the given width starts.
func DrawOrigin(x, width float64, align Align) float64 {
	switch align {
	case AlignCenter:
		return x - width/2
	case AlignEnd:
		return x - width
	default:
		return x
	}
}

// MeasureText returns the advance width of text in style, in pixels.
func MeasureText(text string, style Style) float64 {
	face := newFace(style)
	defer face.Close()
	return fromFixed(font.MeasureString(face, text))
}

// Render paints fields over bg in list order, so later fields cover earlier
// ones. The background is scaled to the surface size.
func Render(bg PageSurface, fields []FieldDescriptor, row DataRow) *image.RGBA {
	w, h := bg.size()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if bg.Image != nil {
		draw.BiLinear.Scale(dst, dst.Bounds(), bg.Image, bg.Image.Bounds(), draw.Over, nil)
	}

	for _, field := range fields {
		paintField(dst, field, row)
	}
	return dst
}

func paintField(dst *image.RGBA, field FieldDescriptor, row DataRow) {
	text := ResolveText(field.Source, row)
	if text == "" {
		return
	}

	face := newFace(field.Style)
	defer face.Close()

	width := fromFixed(font.MeasureString(face, text))
	x := DrawOrigin(field.X, width, field.Style.Align)
	ink := image.NewUniform(field.Style.Color)

	d := &font.Drawer{
		Dst:  dst,
		Src:  ink,
		Face: face,
		Dot:  fixed.Point26_6{X: toFixed(x), Y: toFixed(field.Y)},
	}
	d.DrawString(text)

	if field.Style.Underline {
		underline(dst, x, field.Y, width, field.Style.FontSize, field.Style.Color)
	}
}

// underline fills a bar under the run at y + 0.1*size, max(1, 0.05*size) thick.
func underline(dst *image.RGBA, x, y, width, size float64, c color.RGBA) {
	thickness := math.Max(1, 0.05*size)
	center := y + 0.1*size

	r := image.Rect(
		int(math.Round(x)),
		int(math.Round(center-thickness/2)),
		int(math.Round(x+width)),
		int(math.Round(center+thickness/2)),
	)
	if r.Dy() == 0 {
		r.Max.Y = r.Min.Y + 1
	}
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Over)
}

func toFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(math.Round(v * 64))
}

func fromFixed(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
