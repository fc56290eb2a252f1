package certificates

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// ComposerOptions configures how rendered rasters become a document.
type ComposerOptions struct {
	PageSize    string `json:"page_size"`
	JPEGQuality int    `json:"jpeg_quality"`
}

// DefaultComposerOptions returns A4 pages with JPEG quality 85.
func DefaultComposerOptions() ComposerOptions {
	return ComposerOptions{
		PageSize:    "A4",
		JPEGQuality: 85,
	}
}

// Page is one rendered raster and the orientation it is placed with.
type Page struct {
	Image     image.Image
	Landscape bool
}

// Composer lays rasters onto fixed-size pages, one raster per page, scaled to
// fill the page.
type Composer struct {
	options ComposerOptions
}

// creationDate is fixed so identical input produces identical documents.
var creationDate = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

func NewComposer(options ComposerOptions) *Composer {
	if options.PageSize == "" {
		options.PageSize = "A4"
	}
	if options.JPEGQuality < 1 || options.JPEGQuality > 100 {
		options.JPEGQuality = 85
	}
	return &Composer{options: options}
}

// Compose returns a PDF with one page per entry.
func (c *Composer) Compose(pages []Page) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to compose")
	}

	pdf := gofpdf.New(orientation(pages[0].Landscape), "mm", c.options.PageSize, "")
	pdf.SetCreationDate(creationDate)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)

	imageOptions := gofpdf.ImageOptions{ImageType: "JPG"}
	for i, page := range pages {
		pdf.AddPageFormat(orientation(page.Landscape), pdf.GetPageSizeStr(c.options.PageSize))
		width, height := pdf.GetPageSize()

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, page.Image, &jpeg.Options{Quality: c.options.JPEGQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode page %d: %w", i+1, err)
		}

		name := fmt.Sprintf("page-%d", i+1)
		pdf.RegisterImageOptionsReader(name, imageOptions, &buf)
		pdf.ImageOptions(name, 0, 0, width, height, false, imageOptions, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}
	return out.Bytes(), nil
}

func orientation(landscape bool) string {
	if landscape {
		return "L"
	}
	return "P"
}
