package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/fmc-ops/opsdash/internal/analytics"
)

// ReportHeader is the column row shared by every monthly report format.
var ReportHeader = []string{"Month", "Orders", "Order Amount", "Invoices", "Invoice Amount"}

// WriteReportCSV emits the monthly report as CSV with a totals row.
func WriteReportCSV(w io.Writer, rows []analytics.ReportRow) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(ReportHeader); err != nil {
		return err
	}
	all := make([]analytics.ReportRow, 0, len(rows)+1)
	all = append(all, rows...)
	for _, row := range append(all, Totals(rows)) {
		if err := writer.Write([]string{
			row.Month,
			strconv.Itoa(row.OrderCount),
			formatFloat(row.OrderAmount),
			strconv.Itoa(row.InvoiceCount),
			formatFloat(row.InvoiceAmount),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Totals sums the report into a single "Total" row.
func Totals(rows []analytics.ReportRow) analytics.ReportRow {
	total := analytics.ReportRow{Month: "Total"}
	var orderSum, invoiceSum decimal.Decimal
	for _, r := range rows {
		total.OrderCount += r.OrderCount
		total.InvoiceCount += r.InvoiceCount
		orderSum = orderSum.Add(decimal.NewFromFloat(r.OrderAmount))
		invoiceSum = invoiceSum.Add(decimal.NewFromFloat(r.InvoiceAmount))
	}
	total.OrderAmount = orderSum.InexactFloat64()
	total.InvoiceAmount = invoiceSum.InexactFloat64()
	return total
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
