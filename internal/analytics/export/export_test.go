package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/fmc-ops/opsdash/internal/analytics"
	"github.com/fmc-ops/opsdash/internal/orders"
)

var sampleReport = []analytics.ReportRow{
	{Month: "Jan", OrderCount: 2, OrderAmount: 0.1, InvoiceCount: 1, InvoiceAmount: 500},
	{Month: "Feb", OrderCount: 1, OrderAmount: 0.2, InvoiceCount: 0, InvoiceAmount: 0},
}

func TestWriteReportCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReportCSV(&buf, sampleReport))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, ReportHeader, records[0])
	require.Equal(t, []string{"Jan", "2", "0.10", "1", "500.00"}, records[1])
	require.Equal(t, []string{"Total", "3", "0.30", "1", "500.00"}, records[3])
}

func TestWriteReportCSVDoesNotTouchInput(t *testing.T) {
	rows := make([]analytics.ReportRow, 1, 4)
	rows[0] = sampleReport[0]
	var buf bytes.Buffer
	require.NoError(t, WriteReportCSV(&buf, rows))
	require.Equal(t, "", rows[:2][1].Month)
}

func TestWorkbookSheets(t *testing.T) {
	net := 14500.0
	raw, err := Workbook(
		ReportTable("2024", sampleReport),
		OrdersTable([]orders.Order{{ID: "o1", Supplier: "TechCorp Inc", OrderDate: "2024-12-20", TotalAmount: 15750.5, NetAmount: &net, Status: "Active"}}),
	)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.Equal(t, []string{"Report 2024", "Orders"}, f.GetSheetList())

	rows, err := f.GetRows("Report 2024")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	require.Equal(t, "Total", rows[3][0])

	supplier, err := f.GetCellValue("Orders", "B2")
	require.NoError(t, err)
	require.Equal(t, "TechCorp Inc", supplier)
	netCell, err := f.GetCellValue("Orders", "E2")
	require.NoError(t, err)
	require.Equal(t, "14500", netCell)
}

func TestWorkbookNeedsATable(t *testing.T) {
	_, err := Workbook()
	require.Error(t, err)
}

func TestReportPDF(t *testing.T) {
	out, err := ReportPDF{
		Period:      "last12months",
		Currency:    "EUR",
		GeneratedAt: time.Date(2024, 12, 20, 9, 0, 0, 0, time.UTC),
		Rows:        sampleReport,
	}.Render()
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
