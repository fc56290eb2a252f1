// Package identifiers finds the document-number column of a spreadsheet and
// reads the identifiers beneath it.
package identifiers

import (
	"fmt"
	"io"
	"strings"

	"cert-studio/studio-backend/internal/workbook"
	"cert-studio/studio-backend/pkg/apperr"
)

const (
	// HeaderScanRows bounds how far from the top a header may sit.
	HeaderScanRows = 30

	MinDigits = 6
	MaxDigits = 12
)

// headerLabels are the recognized spellings of "document number", stored in
// NormalizeHeader form.
var headerLabels = map[string]struct{}{
	"DNI":                 {},
	"N° DOC":              {},
	"Nº DOC":              {},
	"NRO DOC":             {},
	"NRO. DOC":            {},
	"NUM DOC":             {},
	"DOCUMENTO":           {},
	"N° DOCUMENTO":        {},
	"Nº DOCUMENTO":        {},
	"NRO DOCUMENTO":       {},
	"NRO. DOCUMENTO":      {},
	"NUMERO DE DOCUMENTO": {},
	"NÚMERO DE DOCUMENTO": {},
}

// Rows starting with these end the data block.
var disqualifyingPrefixes = []string{"TOTAL", "BAJA"}

// ExtractionResult is the identifier list read under one header cell.
type ExtractionResult struct {
	SheetName   string   `json:"sheet_name"`
	HeaderLabel string   `json:"header_label"`
	HeaderRow   int      `json:"header_row"`
	Column      int      `json:"column"`
	Identifiers []string `json:"identifiers"`
}

// NormalizeHeader trims, collapses inner whitespace and upper-cases s.
func NormalizeHeader(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// IsHeader reports whether s is a recognized document-number header.
func IsHeader(s string) bool {
	_, ok := headerLabels[NormalizeHeader(s)]
	return ok
}

// NormalizeIdentifier keeps only the digits of s and accepts the result when
// it has MinDigits to MaxDigits digits.
func NormalizeIdentifier(s string) (string, bool) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	id := b.String()
	if len(id) < MinDigits || len(id) > MaxDigits {
		return "", false
	}
	return id, true
}

func disqualified(s string) bool {
	upper := strings.ToUpper(s)
	for _, prefix := range disqualifyingPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// Extract scans every sheet for header cells in the first HeaderScanRows rows
// and returns the candidate with the longest identifier list. Ties go to the
// first found. It returns nil when no candidate yields an identifier.
func Extract(sheets []workbook.Sheet) *ExtractionResult {
	var best *ExtractionResult
	for _, sheet := range sheets {
		limit := min(len(sheet.Rows), HeaderScanRows)
		for r := 0; r < limit; r++ {
			col, label, ok := headerColumn(sheet.Rows[r])
			if !ok {
				continue
			}
			ids := readColumn(sheet, r, col)
			if len(ids) == 0 || (best != nil && len(ids) <= len(best.Identifiers)) {
				continue
			}
			best = &ExtractionResult{
				SheetName:   sheet.Name,
				HeaderLabel: label,
				HeaderRow:   r,
				Column:      col,
				Identifiers: ids,
			}
		}
	}
	return best
}

// headerColumn returns the leftmost recognized header cell in row.
func headerColumn(row []workbook.Cell) (int, string, bool) {
	for c, cell := range row {
		if cell.Kind != workbook.Text {
			continue
		}
		if IsHeader(cell.Text) {
			return c, strings.TrimSpace(cell.Text), true
		}
	}
	return 0, "", false
}

// readColumn reads below the header until a blank or disqualifying row.
// Values that do not normalize are skipped without ending the scan.
func readColumn(sheet workbook.Sheet, headerRow, col int) []string {
	var ids []string
	for r := headerRow + 1; r < len(sheet.Rows); r++ {
		value := strings.TrimSpace(sheet.Cell(r, col).String())
		if value == "" || disqualified(value) {
			break
		}
		if id, ok := NormalizeIdentifier(value); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// ExtractFile loads a workbook and extracts its identifiers. The returned
// error names the file.
func ExtractFile(r io.Reader, name string) (*ExtractionResult, error) {
	sheets, err := workbook.Load(r)
	if err != nil {
		return nil, apperr.Item(name, err)
	}
	result := Extract(sheets)
	if result == nil {
		return nil, apperr.Item(name, fmt.Errorf("%w: expected one of DNI, N° DOC, DOCUMENTO, NRO DOC", apperr.ErrNoIdentifierColumn))
	}
	return result, nil
}
