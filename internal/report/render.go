// Package report renders verification results as one-page PDF documents and
// archives them to object storage.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"printshop/internal/certificate"
)

// ErrRenderFailed means the document could not be produced. The verification
// result itself is unaffected and the caller may retry.
var ErrRenderFailed = errors.New("report rendering failed")

// Filename is the download name for a report about id.
func Filename(id string) string {
	return fmt.Sprintf("Certificate_Verification_%s.pdf", id)
}

type rgb struct{ r, g, b int }

var (
	headerColor  = rgb{139, 92, 246}
	validColor   = rgb{34, 197, 94}
	invalidColor = rgb{239, 68, 68}
	footerColor  = rgb{128, 128, 128}
)

// Renderer lays out verification reports.
type Renderer struct {
	// Organisation is printed in the footer.
	Organisation string
	// Compress toggles stream compression. Tests turn it off to inspect text.
	Compress bool
}

// NewRenderer returns a renderer with compression enabled.
func NewRenderer(organisation string) *Renderer {
	return &Renderer{Organisation: organisation, Compress: true}
}

// Render produces the report for res, stamped with generatedAt.
func (r *Renderer) Render(res certificate.Result, generatedAt time.Time) (out []byte, err error) {
	defer func() {
		// fpdf reports most problems through Error(), but a bad font or
		// encoding table can still panic deep inside the library.
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrRenderFailed, p)
		}
	}()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.Compress)
	pdf.SetCreationDate(generatedAt)
	pdf.SetTitle("Certificate Verification Report", false)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()

	pdf.SetFillColor(headerColor.r, headerColor.g, headerColor.b)
	pdf.Rect(0, 0, pageW, 40, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetXY(0, 15)
	pdf.CellFormat(pageW, 12, "Certificate Verification Report", "", 0, "C", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Text(20, 60, "Verification Status")

	banner, color := "INVALID", invalidColor
	if res.Valid() {
		banner, color = "VERIFIED", validColor
	}
	pdf.SetFillColor(color.r, color.g, color.b)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(20, 64)
	pdf.CellFormat(50, 9, banner, "", 0, "C", true, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Text(20, 90, "Certificate Details")

	pdf.SetFont("Helvetica", "", 11)
	y := 100.0
	for _, line := range detailLines(res) {
		pdf.Text(20, y, tr(line))
		y += 10
	}

	pdf.SetFontSize(10)
	pdf.SetTextColor(footerColor.r, footerColor.g, footerColor.b)
	if r.Organisation != "" {
		pdf.Text(20, pageH-20, tr("This is an automated verification report from "+r.Organisation))
	}
	pdf.Text(20, pageH-14, "Generated on: "+generatedAt.Format("2006-01-02 15:04 MST"))

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	}
	return buf.Bytes(), nil
}

func detailLines(res certificate.Result) []string {
	expiry := res.ExpiryDate
	if res.ExpiryStatus == certificate.ExpiryLifetime {
		expiry = certificate.LifetimeLabel
	}
	lines := []string{
		"Certificate ID: " + res.ID,
		"Name: " + res.Name,
		"Course: " + res.Course,
		"Issue Date: " + res.IssueDate,
		"Expiry Date: " + expiry,
		"Completion Date: " + res.CompletionDate,
	}
	if res.Valid() {
		lines = append(lines, fmt.Sprintf("Performance Score: %d%%", res.Score))
	}
	lines = append(lines, "Expiry Status: "+string(res.ExpiryStatus))
	return lines
}
