package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfMargin = 15.0
	rowHeight = 6.0
)

// renderPDF draws a dataset as a paginated A4 table. Column widths are
// scaled to fill the printable width and the header repeats on every page.
func renderPDF(institution string, ds Dataset, generated time.Time) ([]byte, error) {
	orientation := "P"
	if ds.Landscape {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetTitle(ds.Title, true)
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Generated %s  |  Page %d of {nb}", generated.Format("02 Jan 2006 15:04"), pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pageW, pageH := pdf.GetPageSize()
	widths := scaleWidths(ds.Columns, pageW-2*pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(220, 220, 220)
		for i, c := range ds.Columns {
			pdf.CellFormat(widths[i], rowHeight+1, tr(c.Header), "1", 0, align(c), true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}
	ensureRoom := func(h float64) {
		if pdf.GetY()+h > pageH-pdfMargin-8 {
			pdf.AddPage()
			header()
		}
	}

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, tr(institution), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, tr(ds.Title), "", 1, "C", false, 0, "")
	if ds.Subtitle != "" {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 6, tr(ds.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)

	header()
	if len(ds.Rows) == 0 {
		pdf.CellFormat(sum(widths), rowHeight, "No records", "1", 1, "C", false, 0, "")
	}
	for _, row := range ds.Rows {
		ensureRoom(rowHeight)
		for i := range ds.Columns {
			pdf.CellFormat(widths[i], rowHeight, tr(cell(row, i)), "1", 0, align(ds.Columns[i]), false, 0, "")
		}
		pdf.Ln(-1)
	}
	if len(ds.Totals) > 0 {
		ensureRoom(rowHeight)
		pdf.SetFont("Helvetica", "B", 8)
		for i := range ds.Columns {
			pdf.CellFormat(widths[i], rowHeight, tr(cell(ds.Totals, i)), "1", 0, align(ds.Columns[i]), false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(ds.Summary) > 0 {
		pdf.Ln(4)
		ensureRoom(rowHeight * float64(len(ds.Summary)+1))
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(0, 7, "Summary", "", 1, "L", false, 0, "")
		for _, kv := range ds.Summary {
			pdf.SetFont("Helvetica", "B", 9)
			pdf.CellFormat(50, rowHeight, tr(kv[0]), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 9)
			pdf.CellFormat(50, rowHeight, tr(kv[1]), "", 1, "R", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render %s: %w", ds.Title, err)
	}
	return buf.Bytes(), nil
}

func scaleWidths(cols []Column, available float64) []float64 {
	total := 0.0
	for _, c := range cols {
		total += c.Width
	}
	out := make([]float64, len(cols))
	for i, c := range cols {
		if total == 0 {
			out[i] = available / float64(len(cols))
			continue
		}
		out[i] = c.Width / total * available
	}
	return out
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func align(c Column) string {
	if c.Right {
		return "R"
	}
	return "L"
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
