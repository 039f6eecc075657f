// Package domain holds the value types shared by the billing engine and the
// services that persist its results.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Readings is a water/electric pair of whole meter units.
type Readings struct {
	Water int64 `json:"water"`
	Elec  int64 `json:"elec"`
}

// Rates is the per-unit price schedule of a room.
type Rates struct {
	Water decimal.Decimal `json:"water"`
	Elec  decimal.Decimal `json:"elec"`
}

// Costs is the per-category cost breakdown of one period.
type Costs struct {
	Water decimal.Decimal `json:"water"`
	Elec  decimal.Decimal `json:"elec"`
	Rent  decimal.Decimal `json:"rent"`
}

// Input is everything the engine needs to price one period.
type Input struct {
	Previous Readings
	Current  Readings
	Rates    Rates
	BaseRent decimal.Decimal
	// Deposit is a requested top-up. It is echoed, never billed.
	Deposit decimal.Decimal
}

// Calculation is the side-effect free preview of a billing period.
type Calculation struct {
	RoomID            string          `json:"room_id,omitempty"`
	MonthYear         Period          `json:"month_year"`
	PrevReadings      Readings        `json:"prev_readings"`
	CurrentReadings   Readings        `json:"current_readings"`
	Usage             Readings        `json:"usage"`
	Rates             Rates           `json:"rates"`
	Costs             Costs           `json:"costs"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	Deposit           decimal.Decimal `json:"deposit"`
	HasActiveContract bool            `json:"has_active_contract"`
	RequestSeq        uint64          `json:"request_seq,omitempty"`
}

// SettlementInput feeds the move-out deposit computation.
type SettlementInput struct {
	PeriodTotal decimal.Decimal
	CleaningFee decimal.Decimal
	DamageFee   decimal.Decimal
	Deposit     decimal.Decimal
}

// Settlement is the move-out refund statement. Refund keeps its sign: a
// negative value means the tenant owes TenantOwes on top of the forfeited
// deposit.
type Settlement struct {
	PeriodTotal      decimal.Decimal `json:"period_total"`
	CleaningFee      decimal.Decimal `json:"cleaning_fee"`
	DamageFee        decimal.Decimal `json:"damage_fee"`
	TotalDeductions  decimal.Decimal `json:"total_deductions"`
	Deposit          decimal.Decimal `json:"deposit"`
	Refund           decimal.Decimal `json:"refund"`
	TenantOwes       decimal.Decimal `json:"tenant_owes"`
	DepositForfeited bool            `json:"deposit_forfeited"`
}

// LateFeePolicy configures the overdue penalty.
type LateFeePolicy struct {
	PerDay decimal.Decimal
	DueDay int
	// MaxFee caps the fee when positive.
	MaxFee decimal.Decimal
}

// LateFee is the penalty owed on an overdue invoice.
type LateFee struct {
	DueDate  time.Time       `json:"due_date"`
	DaysLate int64           `json:"days_late"`
	Amount   decimal.Decimal `json:"late_fee"`
}
