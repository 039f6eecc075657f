// Package engine is the pure pricing core: no I/O, no clock, no globals.
package engine

import (
	"time"

	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
)

const day = 24 * time.Hour

// Calculate prices one period from a reading pair and the room's rates.
func Calculate(in billingdomain.Input) (billingdomain.Calculation, error) {
	if in.Current.Water < 0 {
		return billingdomain.Calculation{}, billingdomain.NewValidationError("current_water", "invalid_reading", "reading must not be negative")
	}
	if in.Current.Elec < 0 {
		return billingdomain.Calculation{}, billingdomain.NewValidationError("current_elec", "invalid_reading", "reading must not be negative")
	}
	if in.Current.Water < in.Previous.Water {
		return billingdomain.Calculation{}, billingdomain.NewValidationError("current_water", "meter_regression", "water reading is lower than the previous reading")
	}
	if in.Current.Elec < in.Previous.Elec {
		return billingdomain.Calculation{}, billingdomain.NewValidationError("current_elec", "meter_regression", "electric reading is lower than the previous reading")
	}

	usage := billingdomain.Readings{
		Water: in.Current.Water - in.Previous.Water,
		Elec:  in.Current.Elec - in.Previous.Elec,
	}
	costs := billingdomain.Costs{
		Water: in.Rates.Water.Mul(decimal.NewFromInt(usage.Water)),
		Elec:  in.Rates.Elec.Mul(decimal.NewFromInt(usage.Elec)),
		Rent:  in.BaseRent,
	}

	return billingdomain.Calculation{
		PrevReadings:    in.Previous,
		CurrentReadings: in.Current,
		Usage:           usage,
		Rates:           in.Rates,
		Costs:           costs,
		TotalAmount:     costs.Water.Add(costs.Elec).Add(costs.Rent),
		Deposit:         in.Deposit,
	}, nil
}

// Settle computes the move-out refund. A negative refund is a valid outcome.
func Settle(in billingdomain.SettlementInput) billingdomain.Settlement {
	deductions := in.PeriodTotal.Add(in.CleaningFee).Add(in.DamageFee)
	refund := in.Deposit.Sub(deductions)

	owes := decimal.Zero
	if refund.IsNegative() {
		owes = refund.Abs()
	}

	return billingdomain.Settlement{
		PeriodTotal:      in.PeriodTotal,
		CleaningFee:      in.CleaningFee,
		DamageFee:        in.DamageFee,
		TotalDeductions:  deductions,
		Deposit:          in.Deposit,
		Refund:           refund,
		TenantOwes:       owes,
		DepositForfeited: refund.LessThanOrEqual(decimal.Zero) && in.Deposit.IsPositive(),
	}
}

// ComputeLateFee returns nil while now is on or before the due date.
// Partial days count as a full day late.
func ComputeLateFee(period billingdomain.Period, now time.Time, policy billingdomain.LateFeePolicy) *billingdomain.LateFee {
	due := period.DueDate(policy.DueDay)
	now = now.UTC()
	if !now.After(due) {
		return nil
	}

	elapsed := now.Sub(due)
	days := int64(elapsed / day)
	if elapsed%day != 0 {
		days++
	}

	amount := policy.PerDay.Mul(decimal.NewFromInt(days))
	if policy.MaxFee.IsPositive() && amount.GreaterThan(policy.MaxFee) {
		amount = policy.MaxFee
	}

	return &billingdomain.LateFee{
		DueDate:  due,
		DaysLate: days,
		Amount:   amount,
	}
}

// Sum adds amounts exactly.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
