package report

import (
	"bytes"
	"testing"
	"time"

	pdf "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"printshop/internal/certificate"
)

var generated = time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)

func validResult() certificate.Result {
	return certificate.Result{
		ID:             "ITEK001CER001",
		Name:           "Asha Verma",
		Course:         "Mechanical Design Engineer - SolidWorks",
		IssueDate:      "2024-01-01",
		ExpiryDate:     "2024-01-20",
		CompletionDate: "2023-12-20",
		Status:         certificate.StatusValid,
		Score:          92,
		ExpiryStatus:   certificate.ExpiringSoon,
	}
}

func render(t *testing.T, res certificate.Result) []byte {
	t.Helper()
	r := NewRenderer("InvenTek 3D")
	r.Compress = false
	out, err := r.Render(res, generated)
	require.NoError(t, err)
	return out
}

func TestRenderProducesSinglePage(t *testing.T) {
	out, err := NewRenderer("InvenTek 3D").Render(validResult(), generated)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	doc, err := pdf.NewReader(bytes.NewReader(out), int64(len(out)))
	require.NoError(t, err)
	assert.Equal(t, 1, doc.NumPage())
}

func TestRenderValidContents(t *testing.T) {
	out := render(t, validResult())

	for _, want := range []string{
		"Certificate Verification Report",
		"VERIFIED",
		"Certificate ID: ITEK001CER001",
		"Expiry Date: 2024-01-20",
		"Performance Score: 92%",
		"Expiry Status: Expiring Soon",
		"Generated on: 2024-01-10 09:30 UTC",
	} {
		assert.Contains(t, string(out), want)
	}
}

func TestRenderInvalidOmitsScore(t *testing.T) {
	out := render(t, certificate.NotFoundResult("ZZZ999"))

	assert.Contains(t, string(out), "INVALID")
	assert.Contains(t, string(out), "Name: N/A")
	assert.NotContains(t, string(out), "Performance Score")
	assert.NotContains(t, string(out), "VERIFIED")
}

func TestRenderLifetimeLabel(t *testing.T) {
	res := validResult()
	res.ExpiryDate = "anything"
	res.ExpiryStatus = certificate.ExpiryLifetime

	out := render(t, res)
	// Parentheses are escaped inside PDF string literals.
	assert.Contains(t, string(out), `Expiry Date: Lifetime \(No Expiry\)`)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Certificate_Verification_ITEK001CER001.pdf", Filename("ITEK001CER001"))
}
