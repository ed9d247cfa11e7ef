package diploma

import (
	"bytes"
	"errors"
	"strings"

	"github.com/go-pdf/fpdf"
)

// Data is everything the diploma layout consumes.
type Data struct {
	Name     string
	Activity string
	Date     string
}

// ErrBadRenderInput is returned for input the layout cannot place.
var ErrBadRenderInput = errors.New("diploma: name and activity required")

// Renderer produces diploma document bytes. Deterministic for identical
// input aside from non-semantic layout internals.
type Renderer interface {
	Render(d Data) ([]byte, error)
}

// PDFRenderer renders the A4 participation diploma.
type PDFRenderer struct {
	institution string
}

// NewPDFRenderer creates a renderer headed with the given institution name.
func NewPDFRenderer(institution string) *PDFRenderer {
	if institution == "" {
		institution = "Universidad Mariano Gálvez de Guatemala"
	}
	return &PDFRenderer{institution: institution}
}

// Render lays out the diploma and returns PDF bytes.
func (r *PDFRenderer) Render(d Data) ([]byte, error) {
	if d.Name == "" || d.Activity == "" {
		return nil, ErrBadRenderInput
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(50, 50, 50)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 26)
	pdf.SetTextColor(182, 0, 0)
	pdf.CellFormat(0, 32, tr(r.institution), "", 1, "C", false, 0, "")
	pdf.Ln(40)

	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 28, tr("Diploma de Participación"), "", 1, "C", false, 0, "")
	pdf.Ln(40)

	pdf.SetFont("Helvetica", "", 16)
	pdf.CellFormat(0, 20, tr("Se otorga a:"), "", 1, "C", false, 0, "")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "BU", 20)
	pdf.SetTextColor(182, 0, 0)
	pdf.CellFormat(0, 26, tr(d.Name), "", 1, "C", false, 0, "")
	pdf.Ln(30)

	pdf.SetFont("Helvetica", "", 16)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 20, tr("Por su participación en el "+d.Activity), "", 1, "C", false, 0, "")
	pdf.Ln(40)

	pdf.SetFont("Helvetica", "", 14)
	pdf.CellFormat(0, 18, tr("Guatemala, "+d.Date), "", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename derives the download filename for a rendered diploma.
func Filename(attendeeName string) string {
	return "Diploma_" + strings.Join(strings.Fields(attendeeName), "_") + ".pdf"
}
