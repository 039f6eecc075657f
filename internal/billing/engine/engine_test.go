package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func sampleInput() billingdomain.Input {
	return billingdomain.Input{
		Previous: billingdomain.Readings{Water: 100, Elec: 200},
		Current:  billingdomain.Readings{Water: 110, Elec: 230},
		Rates:    billingdomain.Rates{Water: d("18"), Elec: d("7")},
		BaseRent: d("3000"),
	}
}

func TestCalculate_ReferenceExample(t *testing.T) {
	calc, err := Calculate(sampleInput())
	require.NoError(t, err)

	assert.Equal(t, int64(10), calc.Usage.Water)
	assert.Equal(t, int64(30), calc.Usage.Elec)
	assert.True(t, calc.Costs.Water.Equal(d("180")))
	assert.True(t, calc.Costs.Elec.Equal(d("210")))
	assert.True(t, calc.Costs.Rent.Equal(d("3000")))
	assert.True(t, calc.TotalAmount.Equal(d("3390")), "total %s", calc.TotalAmount)
}

func TestCalculate_DepositIsNotBilled(t *testing.T) {
	in := sampleInput()
	in.Deposit = d("5000")

	calc, err := Calculate(in)
	require.NoError(t, err)
	assert.True(t, calc.TotalAmount.Equal(d("3390")))
	assert.True(t, calc.Deposit.Equal(d("5000")))
}

func TestCalculate_Regression(t *testing.T) {
	cases := []struct {
		name  string
		cur   billingdomain.Readings
		field string
	}{
		{"water", billingdomain.Readings{Water: 99, Elec: 230}, "current_water"},
		{"elec", billingdomain.Readings{Water: 110, Elec: 199}, "current_elec"},
		{"negative", billingdomain.Readings{Water: -1, Elec: 230}, "current_water"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := sampleInput()
			in.Current = tc.cur
			_, err := Calculate(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, billingdomain.ErrValidation))

			var vErr *billingdomain.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestCalculate_ZeroUsageAndFirstReading(t *testing.T) {
	in := sampleInput()
	in.Previous = billingdomain.Readings{}
	in.Current = billingdomain.Readings{}

	calc, err := Calculate(in)
	require.NoError(t, err)
	assert.True(t, calc.Costs.Water.IsZero())
	assert.True(t, calc.Costs.Elec.IsZero())
	assert.True(t, calc.TotalAmount.Equal(d("3000")))
}

func TestCalculate_Idempotent(t *testing.T) {
	first, err := Calculate(sampleInput())
	require.NoError(t, err)
	second, err := Calculate(sampleInput())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCalculate_NoPennyDrift(t *testing.T) {
	in := sampleInput()
	in.Rates = billingdomain.Rates{Water: d("0.1"), Elec: d("0.2")}
	in.BaseRent = d("0.3")
	in.Previous = billingdomain.Readings{}
	in.Current = billingdomain.Readings{Water: 1, Elec: 1}

	calc, err := Calculate(in)
	require.NoError(t, err)
	assert.Equal(t, "0.60", calc.TotalAmount.StringFixed(2))
	assert.True(t, calc.TotalAmount.Equal(d("0.6")))
}

func TestSettle(t *testing.T) {
	t.Run("refund owed to tenant", func(t *testing.T) {
		s := Settle(billingdomain.SettlementInput{
			PeriodTotal: d("3390"),
			CleaningFee: d("500"),
			DamageFee:   d("0"),
			Deposit:     d("10000"),
		})
		assert.True(t, s.TotalDeductions.Equal(d("3890")))
		assert.True(t, s.Refund.Equal(d("6110")))
		assert.True(t, s.TenantOwes.IsZero())
		assert.False(t, s.DepositForfeited)
	})

	t.Run("tenant owes the difference", func(t *testing.T) {
		s := Settle(billingdomain.SettlementInput{
			PeriodTotal: d("3390"),
			Deposit:     d("3000"),
		})
		assert.True(t, s.Refund.Equal(d("-390")), "refund %s", s.Refund)
		assert.True(t, s.TenantOwes.Equal(d("390")))
		assert.True(t, s.DepositForfeited)
	})
}

func TestComputeLateFee(t *testing.T) {
	policy := billingdomain.LateFeePolicy{PerDay: d("50"), DueDay: 5}
	period, err := billingdomain.ParsePeriod("2024-03")
	require.NoError(t, err)

	cases := []struct {
		name     string
		now      time.Time
		wantNil  bool
		wantDays int64
		wantFee  string
	}{
		{"before due", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), true, 0, ""},
		{"exactly due", time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), true, 0, ""},
		{"one second late", time.Date(2024, 3, 5, 0, 0, 1, 0, time.UTC), false, 1, "50"},
		{"five days", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), false, 5, "250"},
		{"next month", time.Date(2024, 4, 5, 0, 0, 0, 0, time.UTC), false, 31, "1550"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fee := ComputeLateFee(period, tc.now, policy)
			if tc.wantNil {
				assert.Nil(t, fee)
				return
			}
			require.NotNil(t, fee)
			assert.Equal(t, tc.wantDays, fee.DaysLate)
			assert.True(t, fee.Amount.Equal(d(tc.wantFee)), "fee %s", fee.Amount)
			assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), fee.DueDate)
		})
	}
}

func TestComputeLateFee_Cap(t *testing.T) {
	policy := billingdomain.LateFeePolicy{PerDay: d("50"), DueDay: 5, MaxFee: d("300")}
	period, _ := billingdomain.ParsePeriod("2024-03")

	fee := ComputeLateFee(period, time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), policy)
	require.NotNil(t, fee)
	assert.Equal(t, int64(20), fee.DaysLate)
	assert.True(t, fee.Amount.Equal(d("300")))
}
