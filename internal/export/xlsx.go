// Package export renders tabular data as .xlsx workbooks.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/crucial707/labstock/internal/models"
	"github.com/crucial707/labstock/internal/report"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// File names offered to browsers.
const (
	InventoryFileName = "reagents.xlsx"
	ReportFileName    = "log_report.xlsx"
)

var (
	InventoryHeaders = []string{"name", "quantity"}
	ReportHeaders    = []string{"timestamp", "actor_role", "action_kind", "item_name", "amount"}
)

// RenderTable writes headers and rows to a single-sheet workbook and returns
// its bytes. The header row is bold.
func RenderTable(sheet string, headers []string, rows [][]any) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	head := make([]any, len(headers))
	for i, h := range headers {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if len(headers) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, fmt.Errorf("header style: %w", err)
		}
		last, _ := excelize.CoordinatesToCellName(len(headers), 1)
		if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
			return nil, fmt.Errorf("header style: %w", err)
		}
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		r := row
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// InventoryTable projects the ledger into [name, quantity] rows.
func InventoryTable(items []models.Item) [][]any {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, []any{it.Name, it.Quantity})
	}
	return rows
}

// ReportTable projects a report into the five audit columns. Separator rows
// are blank; balance rows carry report.BalanceLabel in the timestamp column.
func ReportTable(rep report.Report) [][]any {
	var rows [][]any
	for _, r := range rep.Rows() {
		switch r.Kind {
		case report.RowSeparator:
			rows = append(rows, []any{"", "", "", "", ""})
		case report.RowBalance:
			rows = append(rows, []any{report.BalanceLabel, "", "", r.Item, r.Total})
		default:
			e := r.Entry
			rows = append(rows, []any{
				e.Timestamp.Format(models.TimestampLayout),
				string(e.Role),
				string(e.Action),
				e.ItemName,
				e.Amount,
			})
		}
	}
	return rows
}

// Inventory renders the reagent table workbook.
func Inventory(items []models.Item) ([]byte, error) {
	return RenderTable("reagents", InventoryHeaders, InventoryTable(items))
}

// Report renders the grouped audit report workbook.
func Report(rep report.Report) ([]byte, error) {
	return RenderTable("log_report", ReportHeaders, ReportTable(rep))
}
