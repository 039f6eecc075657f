package server

import (
	"strings"
	"time"

	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
)

const dateOnlyLayout = "2006-01-02"

// parseOptionalTime accepts RFC3339 or a bare date. A bare date used as an
// upper bound covers the whole day.
func parseOptionalTime(field, value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse(dateOnlyLayout, trimmed)
	if err != nil {
		return nil, newValidationError(field, "invalid_"+field, "invalid "+field)
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed, nil
}

// parseOptionalPeriod normalizes a month_year filter. Empty means no filter.
func parseOptionalPeriod(value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", nil
	}
	period, err := billingdomain.ParsePeriod(value)
	if err != nil {
		return "", err
	}
	return period.String(), nil
}
