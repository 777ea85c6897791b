package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/fmc-ops/opsdash/internal/analytics"
	"github.com/fmc-ops/opsdash/internal/invoices"
	"github.com/fmc-ops/opsdash/internal/orders"
)

// ContentTypeXLSX is the media type of the workbooks built here.
const ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Table is one worksheet: a bold header row followed by data rows.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]any
}

// Workbook renders tables into an XLSX file, one sheet per table in order.
func Workbook(tables ...Table) ([]byte, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("export: workbook needs at least one table")
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", t.Sheet); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(t.Sheet); err != nil {
			return nil, err
		}
		if err := writeTable(f, t, bold); err != nil {
			return nil, fmt.Errorf("export: sheet %s: %w", t.Sheet, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, t Table, headerStyle int) error {
	for col, title := range t.Header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(t.Sheet, cell, title); err != nil {
			return err
		}
	}
	if len(t.Header) > 0 {
		last, err := excelize.CoordinatesToCellName(len(t.Header), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(t.Sheet, "A1", last, headerStyle); err != nil {
			return err
		}
		lastCol, _ := excelize.ColumnNumberToName(len(t.Header))
		if err := f.SetColWidth(t.Sheet, "A", lastCol, 18); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(t.Sheet, cell, value); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReportTable lays out the monthly report with a totals row.
func ReportTable(period string, rows []analytics.ReportRow) Table {
	t := Table{Sheet: "Report " + period, Header: ReportHeader}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Month, r.OrderCount, r.OrderAmount, r.InvoiceCount, r.InvoiceAmount})
	}
	total := Totals(rows)
	t.Rows = append(t.Rows, []any{total.Month, total.OrderCount, total.OrderAmount, total.InvoiceCount, total.InvoiceAmount})
	return t
}

// OrdersTable lays out orders the way the CSV export does.
func OrdersTable(list []orders.Order) Table {
	t := Table{Sheet: "Orders", Header: []string{"ID", "Supplier", "Order Date", "Total Amount", "Net Amount", "Source Channel", "Status"}}
	for _, o := range list {
		var net any
		if o.NetAmount != nil {
			net = *o.NetAmount
		}
		t.Rows = append(t.Rows, []any{o.ID, o.Supplier, o.OrderDate, o.TotalAmount, net, o.SourceChannel, o.Status})
	}
	return t
}

// InvoicesTable lays out invoices the way the CSV export does.
func InvoicesTable(list []invoices.Invoice) Table {
	t := Table{Sheet: "Invoices", Header: []string{"ID", "Supplier", "Invoice Date", "Total Amount", "Net Amount", "Exchange Rate", "Financing Type", "Status"}}
	for _, i := range list {
		var net any
		if i.NetAmount != nil {
			net = *i.NetAmount
		}
		t.Rows = append(t.Rows, []any{i.ID, i.Supplier, i.InvoiceDate, i.TotalAmount, net, i.ExchangeRate, i.FinancingType, i.Status})
	}
	return t
}
