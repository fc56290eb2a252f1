package certificates

import (
	"fmt"
	"io"

	"cert-studio/studio-backend/internal/render"
	"cert-studio/studio-backend/internal/workbook"
	"cert-studio/studio-backend/pkg/apperr"
)

// Table is a header row plus the data rows beneath it.
type Table struct {
	Sheet  string
	Header []string
	Rows   []render.DataRow
}

// LoadRows reads the named sheet, or the first one when sheet is empty. The
// first row is the header; fully blank rows are skipped.
func LoadRows(r io.Reader, sheet string) (*Table, error) {
	sheets, err := workbook.Load(r)
	if err != nil {
		return nil, err
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", apperr.ErrUnreadableSpreadsheet)
	}

	selected := sheets[0]
	if sheet != "" {
		found := false
		for _, s := range sheets {
			if s.Name == sheet {
				selected, found = s, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: sheet %q not found", apperr.ErrInvalidInput, sheet)
		}
	}

	table := &Table{Sheet: selected.Name, Header: selected.Strings(0)}
	for r := 1; r < len(selected.Rows); r++ {
		if blankRow(selected.Rows[r]) {
			continue
		}
		table.Rows = append(table.Rows, render.DataRow(selected.Strings(r)))
	}
	return table, nil
}

func blankRow(row []workbook.Cell) bool {
	for _, c := range row {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}
