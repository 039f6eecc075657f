package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const (
	InvoiceNumberPrefix    = "INV-"
	PaymentReferencePrefix = "PAY-"
)

// InvoiceNumber returns a sortable, collision-free invoice number.
func InvoiceNumber() string {
	return InvoiceNumberPrefix + ulid.Make().String()
}

func PaymentReference() string {
	return PaymentReferencePrefix + ulid.Make().String()
}

// Money renders an amount with two decimals and thousands separators.
// Negative values keep their sign.
func Money(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if amount.IsNegative() {
		return "-" + out
	}
	return out
}

func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// PDFFilename builds a download name such as "invoice-a-101-2024-03.pdf".
func PDFFilename(kind, building, roomNumber, period string) string {
	name := slug.Make(strings.Join(nonEmpty(kind, building, roomNumber, period), " "))
	if name == "" {
		name = "invoice"
	}
	return fmt.Sprintf("%s.pdf", name)
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
