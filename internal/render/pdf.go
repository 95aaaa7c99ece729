package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/holvikit/holvi/internal/invoicing"
)

const (
	font       = "Arial"
	lineHeight = 6.0
)

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Description", 80, "L"},
	{"Category", 40, "L"},
	{"Net", 25, "R"},
	{"Gross", 25, "R"},
}

// PDF writes an A4 rendering of inv to w.
func PDF(w io.Writer, inv *invoicing.Invoice) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr(inv.Subject), false)
	pdf.AddPage()

	pdf.SetFont(font, "B", 16)
	pdf.CellFormat(0, 10, tr(inv.Subject), "", 1, "L", false, 0, "")

	pdf.SetFont(font, "", 10)
	if inv.Number != "" {
		pdf.CellFormat(0, lineHeight, "Invoice number: "+tr(inv.Number), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, lineHeight, "Issue date: "+inv.IssueDate.Format(invoicing.DateLayout), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, lineHeight, "Due date: "+inv.DueDate.Format(invoicing.DateLayout), "", 1, "L", false, 0, "")
	pdf.Ln(lineHeight)

	if lines := receiverLines(inv.Receiver); len(lines) > 0 {
		pdf.SetFont(font, "B", 10)
		pdf.CellFormat(0, lineHeight, "Bill to", "", 1, "L", false, 0, "")
		pdf.SetFont(font, "", 10)
		for _, l := range lines {
			pdf.CellFormat(0, lineHeight, tr(l), "", 1, "L", false, 0, "")
		}
		pdf.Ln(lineHeight)
	}

	pdf.SetFont(font, "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, c := range columns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, c.align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(font, "", 10)
	for _, it := range inv.Items {
		gross := it.Gross
		if gross.IsZero() {
			gross = it.Net
		}
		category := ""
		if it.Category != nil {
			category = it.Category.Code()
		}
		cells := []string{
			tr(it.Description),
			tr(category),
			it.Net.StringFixedBank(2),
			gross.StringFixedBank(2),
		}
		for i, c := range columns {
			pdf.CellFormat(c.width, 7, cells[i], "1", 0, c.align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont(font, "B", 10)
	var labelWidth float64
	for _, c := range columns[:len(columns)-1] {
		labelWidth += c.width
	}
	last := columns[len(columns)-1]
	total := fmt.Sprintf("%s %s", inv.Total().StringFixedBank(2), inv.Currency)
	pdf.CellFormat(labelWidth, 7, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(last.width, 7, strings.TrimSpace(total), "1", 1, "R", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("rendering pdf: %w", err)
	}
	return nil
}

func receiverLines(r invoicing.Receiver) []string {
	var lines []string
	for _, s := range []string{r.Name, r.Street, strings.TrimSpace(r.Postcode + " " + r.City), r.Country, r.Email} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	return lines
}
