// Package optimizer re-serializes every PDF inside an uploaded ZIP into a
// plain, widely compatible form and returns them in a flat archive.
package optimizer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"cert-studio/studio-backend/pkg/apperr"
	"cert-studio/studio-backend/pkg/archive"
	"cert-studio/studio-backend/pkg/pdfdoc"
)

// ArchiveName is the download name for an optimize result.
const ArchiveName = "certificados_optimizados.zip"

var (
	ErrNoPDFs        = fmt.Errorf("%w: no PDF files found in archive", apperr.ErrInvalidInput)
	ErrNestedArchive = fmt.Errorf("%w: archive contains compressed files instead of PDFs", apperr.ErrInvalidInput)
)

// ProgressFunc receives (optimized, total) after each file.
type ProgressFunc func(current, total int)

type entry struct {
	name string
	data []byte
}

type Optimizer struct {
	optimize func([]byte) ([]byte, error)
	level    int
	logger   *zap.Logger
}

func NewOptimizer(level int, logger *zap.Logger) *Optimizer {
	return &Optimizer{optimize: pdfdoc.Optimize, level: level, logger: logger}
}

// Optimize reads every .pdf entry of the ZIP in data, at any depth, and
// writes its re-serialized form under its base name. A file that cannot be
// re-serialized is kept as uploaded.
func (o *Optimizer) Optimize(ctx context.Context, data []byte, progress ProgressFunc) (*archive.Archive, error) {
	entries, err := readPDFs(data)
	if err != nil {
		return nil, err
	}

	out := archive.NewWithLevel(o.level)
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		optimized, err := o.optimize(e.data)
		if err != nil {
			o.logger.Warn("keeping original pdf", zap.String("file", e.name), zap.Error(err))
			optimized = e.data
		}
		out.Put(flatName(out, e.name), optimized)

		if progress != nil {
			progress(i+1, len(entries))
		}
	}
	return out, nil
}

func readPDFs(data []byte) ([]entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable zip archive: %v", apperr.ErrInvalidInput, err)
	}

	var (
		pdfs   []entry
		nested []string
	)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".pdf":
			body, err := readEntry(f)
			if err != nil {
				return nil, apperr.Item(f.Name, fmt.Errorf("%w: %v", apperr.ErrUnreadableDocument, err))
			}
			pdfs = append(pdfs, entry{name: baseName(f.Name), data: body})
		case ".zip", ".rar":
			nested = append(nested, f.Name)
		}
	}

	if len(pdfs) == 0 {
		if len(nested) > 0 {
			return nil, fmt.Errorf("%w: extract %s and upload the PDFs directly", ErrNestedArchive, strings.Join(nested, ", "))
		}
		return nil, ErrNoPDFs
	}
	return pdfs, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func baseName(name string) string {
	return path.Base(strings.ReplaceAll(name, `\`, "/"))
}

// flatName keeps base names unique once folders are dropped.
func flatName(out *archive.Archive, name string) string {
	if !out.Has(name) {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !out.Has(candidate) {
			return candidate
		}
	}
}
