package export

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/fmc-ops/opsdash/internal/analytics"
	"github.com/fmc-ops/opsdash/internal/format"
)

// ReportPDF carries what the monthly report PDF prints.
type ReportPDF struct {
	Period      string
	Currency    string
	GeneratedAt time.Time
	Rows        []analytics.ReportRow
}

var pdfColumns = []float64{40, 30, 45, 30, 45}

// Render builds the report as an A4 portrait PDF.
func (p ReportPDF) Render() ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Monthly Report "+p.Period, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, "Monthly Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s", p.Period))
	pdf.Ln(5)
	if !p.GeneratedAt.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", format.DateTime(p.GeneratedAt)))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	for i, title := range ReportHeader {
		pdf.CellFormat(pdfColumns[i], 7, title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, r := range p.Rows {
		p.row(pdf, tr, r)
	}
	pdf.SetFont("Arial", "B", 10)
	p.row(pdf, tr, Totals(p.Rows))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p ReportPDF) row(pdf *gofpdf.Fpdf, tr func(string) string, r analytics.ReportRow) {
	pdf.CellFormat(pdfColumns[0], 6, tr(r.Month), "1", 0, "L", false, 0, "")
	pdf.CellFormat(pdfColumns[1], 6, strconv.Itoa(r.OrderCount), "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumns[2], 6, tr(format.Currency(r.OrderAmount, p.Currency)), "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumns[3], 6, strconv.Itoa(r.InvoiceCount), "1", 0, "R", false, 0, "")
	pdf.CellFormat(pdfColumns[4], 6, tr(format.Currency(r.InvoiceAmount, p.Currency)), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)
}
