// Package testutil builds in-memory fixtures (PDFs, workbooks, rasters) for tests.
package testutil

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// PDF returns a valid PDF with the given number of pages, each labelled with
// its page number.
func PDF(t testing.TB, pages int) []byte {
	t.Helper()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 14)
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.Cell(60, 10, fmt.Sprintf("page %d", i+1))
	}

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

// Sheet is a named grid of cell values written as-is into a workbook.
type Sheet struct {
	Name string
	Rows [][]any
}

// Workbook returns xlsx bytes containing sheets in order. A nil cell leaves the
// cell unset.
func Workbook(t testing.TB, sheets ...Sheet) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", sheet.Name))
		} else {
			_, err := f.NewSheet(sheet.Name)
			require.NoError(t, err)
		}
		for r, row := range sheet.Rows {
			for c, val := range row {
				if val == nil {
					continue
				}
				cell, err := excelize.CoordinatesToCellName(c+1, r+1)
				require.NoError(t, err)
				require.NoError(t, f.SetCellValue(sheet.Name, cell, val))
			}
		}
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

// Background returns a solid raster of the given size.
func Background(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// PNG encodes a solid raster of the given size.
func PNG(t testing.TB, width, height int) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, Background(width, height, color.RGBA{R: 240, G: 235, B: 220, A: 255})))
	return buf.Bytes()
}
