package certificates

import (
	"fmt"
	"strconv"
	"strings"

	"cert-studio/studio-backend/internal/render"
	"cert-studio/studio-backend/pkg/archive"
)

// Row positions that name the output file.
const (
	colSequence = iota
	colDocument
	colFullName
	colRole
)

// FileName derives "{seq}_{docNum}_{fullName}_({role}).pdf" from the first
// four row positions. A missing sequence falls back to index+1.
func FileName(row render.DataRow, index int) string {
	seq := strings.TrimSpace(row.At(colSequence))
	if seq == "" {
		seq = strconv.Itoa(index + 1)
	}
	return fmt.Sprintf("%s_%s_%s_(%s).pdf",
		archive.Sanitize(seq),
		archive.Sanitize(strings.TrimSpace(row.At(colDocument))),
		archive.Sanitize(strings.TrimSpace(row.At(colFullName))),
		archive.Sanitize(strings.TrimSpace(row.At(colRole))),
	)
}

// uniqueName returns name, or name with a _N suffix before the extension when
// an earlier row already produced it.
func uniqueName(out *archive.Archive, name string) string {
	if !out.Has(name) {
		return name
	}
	stem := strings.TrimSuffix(name, ".pdf")
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d.pdf", stem, n)
		if !out.Has(candidate) {
			return candidate
		}
	}
}
