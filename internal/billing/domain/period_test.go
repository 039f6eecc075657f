package domain

import (
	"errors"
	"testing"
	"time"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2024-03")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Year != 2024 || p.Month != time.March {
		t.Fatalf("unexpected period %+v", p)
	}
	if p.String() != "2024-03" {
		t.Fatalf("expected 2024-03, got %s", p.String())
	}

	for _, raw := range []string{"", "2024-3", "2024-13", "03-2024", "2024/03"} {
		if _, err := ParsePeriod(raw); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", raw, err)
		}
	}
}

func TestPeriodPreviousAndDueDate(t *testing.T) {
	p, _ := ParsePeriod("2024-01")
	if got := p.Previous().String(); got != "2023-12" {
		t.Fatalf("expected 2023-12, got %s", got)
	}

	due := p.DueDate(5)
	if !due.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected due date %s", due)
	}

	feb, _ := ParsePeriod("2023-02")
	if got := feb.DueDate(31); got.Day() != 28 {
		t.Fatalf("expected clamp to 28, got %d", got.Day())
	}
}

func TestPeriodScan(t *testing.T) {
	var p Period
	if err := p.Scan([]byte("2024-06")); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if p.String() != "2024-06" {
		t.Fatalf("unexpected %s", p)
	}
	v, err := p.Value()
	if err != nil || v != "2024-06" {
		t.Fatalf("unexpected value %v %v", v, err)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	err := NewNoActiveContractError("42")
	if !errors.Is(err, ErrState) {
		t.Fatalf("expected state error")
	}
	if Code(err) != CodeNoActiveContract {
		t.Fatalf("unexpected code %s", Code(err))
	}
	if !errors.Is(NewConflictError("duplicate", "dup"), ErrConflict) {
		t.Fatalf("expected conflict")
	}
	if errors.Is(NewNotFoundError("room", "1"), ErrConflict) {
		t.Fatalf("not found must not match conflict")
	}
}
