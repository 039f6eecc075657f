package format

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMoney(t *testing.T) {
	cases := map[string]string{
		"0":         "0.00",
		"50":        "50.00",
		"3390":      "3,390.00",
		"1234567.5": "1,234,567.50",
		"-390":      "-390.00",
		"999.999":   "1,000.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, Money(decimal.RequireFromString(in)), in)
	}
}

func TestPDFFilename(t *testing.T) {
	assert.Equal(t, "invoice-building-a-101-2024-03.pdf", PDFFilename("invoice", "Building A", "101", "2024-03"))
	assert.Equal(t, "receipt-101-2024-03.pdf", PDFFilename("receipt", "", "101", "2024-03"))
	assert.Equal(t, "invoice.pdf", PDFFilename("", "", "", ""))
}

func TestIdentifiers(t *testing.T) {
	assert.True(t, strings.HasPrefix(InvoiceNumber(), "INV-"))
	assert.Len(t, InvoiceNumber(), 4+26)
	assert.True(t, strings.HasPrefix(PaymentReference(), "PAY-"))
	assert.NotEqual(t, PaymentReference(), PaymentReference())
}

func TestDate(t *testing.T) {
	assert.Equal(t, "", Date(time.Time{}))
	assert.Equal(t, "2024-03-05", Date(time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC)))
}
