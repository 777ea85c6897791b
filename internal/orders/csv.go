package orders

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// WriteCSV emits orders as CSV with a header row. A nil net amount is an
// empty cell.
func WriteCSV(w io.Writer, list []Order) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"ID", "Supplier", "Order Date", "Total Amount", "Net Amount", "Source Channel", "Status", "Created At"}); err != nil {
		return err
	}
	for _, o := range list {
		net := ""
		if o.NetAmount != nil {
			net = formatAmount(*o.NetAmount)
		}
		if err := writer.Write([]string{
			o.ID,
			o.Supplier,
			o.OrderDate,
			formatAmount(o.TotalAmount),
			net,
			o.SourceChannel,
			o.Status,
			o.CreatedAt.UTC().Format(time.RFC3339),
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
