package invoices

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// WriteCSV emits invoices as CSV with a header row. A nil net amount is an
// empty cell.
func WriteCSV(w io.Writer, list []Invoice) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"ID", "Supplier", "Invoice Date", "Total Amount", "Net Amount", "Exchange Rate", "Financing Type", "Status", "Created At"}); err != nil {
		return err
	}
	for _, inv := range list {
		net := ""
		if inv.NetAmount != nil {
			net = formatAmount(*inv.NetAmount)
		}
		if err := writer.Write([]string{
			inv.ID,
			inv.Supplier,
			inv.InvoiceDate,
			formatAmount(inv.TotalAmount),
			net,
			strconv.FormatFloat(inv.ExchangeRate, 'f', -1, 64),
			inv.FinancingType,
			inv.Status,
			inv.CreatedAt.UTC().Format(time.RFC3339),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
