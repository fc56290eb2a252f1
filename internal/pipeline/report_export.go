package pipeline

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ReportFileName is the download name of an exported report.
const ReportFileName = "conciliacion.xlsx"

var (
	pairColumns    = []string{"Position", "Spreadsheet", "Document", "Status", "Identifiers", "Pages", "Reason"}
	failureColumns = []string{"Item", "Code", "Error"}
	columnWidths   = map[string]float64{"B": 30, "C": 30, "G": 60}
)

// WriteReportWorkbook writes report as a two-sheet workbook: one row per pair
// and one row per failure.
func WriteReportWorkbook(w io.Writer, report *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	const pairsSheet, failuresSheet = "Pairs", "Failures"
	if err := f.SetSheetName("Sheet1", pairsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(failuresSheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	pairs := make([][]any, len(report.Pairs))
	for i, p := range report.Pairs {
		pairs[i] = []any{p.Position, p.Spreadsheet, p.Document, string(p.Kind), p.IdentifierCount, p.PageCount, p.Reason}
	}
	if err := writeTable(f, pairsSheet, headerStyle, pairColumns, pairs); err != nil {
		return err
	}
	for col, width := range columnWidths {
		if err := f.SetColWidth(pairsSheet, col, col, width); err != nil {
			return err
		}
	}

	failures := make([][]any, len(report.Failures))
	for i, fl := range report.Failures {
		failures[i] = []any{fl.Item, string(fl.Code), fl.Error}
	}
	if err := writeTable(f, failuresSheet, headerStyle, failureColumns, failures); err != nil {
		return err
	}

	return f.Write(w)
}

func writeTable(f *excelize.File, sheet string, headerStyle int, columns []string, rows [][]any) error {
	for i, col := range columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, r+2, err)
		}
	}
	return nil
}
