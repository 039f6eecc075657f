package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const periodLayout = "2006-01"

// Period identifies one billing cycle of a room as YYYY-MM.
type Period struct {
	Year  int
	Month time.Month
}

// ParsePeriod validates a YYYY-MM string.
func ParsePeriod(raw string) (Period, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse(periodLayout, raw)
	if err != nil || t.Format(periodLayout) != raw {
		return Period{}, NewValidationError("month_year", "invalid_month_year", "month_year must be formatted as YYYY-MM")
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// Start is the first instant of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Previous returns the period one month earlier.
func (p Period) Previous() Period {
	t := p.Start().AddDate(0, -1, 0)
	return Period{Year: t.Year(), Month: t.Month()}
}

// DueDate is the given day of the period's month at 00:00 UTC. Days past the
// end of the month clamp to the last day.
func (p Period) DueDate(day int) time.Time {
	if day < 1 {
		day = 1
	}
	last := p.Start().AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value stores the period as its YYYY-MM text so string ordering matches
// chronological ordering.
func (p Period) Value() (driver.Value, error) {
	return p.String(), nil
}

func (Period) GormDataType() string { return "string" }

func (p *Period) Scan(src any) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*p = Period{}
		return nil
	default:
		return fmt.Errorf("unsupported period type %T", src)
	}
	parsed, err := ParsePeriod(raw)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
