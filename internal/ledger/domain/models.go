package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// LedgerEntryDirection represents debit or credit postings.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

type LedgerSourceType string

const (
	SourceTypeDepositTopup      LedgerSourceType = "deposit_topup"
	SourceTypeMoveOutSettlement LedgerSourceType = "move_out_settlement"
	SourceTypePayment           LedgerSourceType = "payment"
)

type LedgerAccountCode string

const (
	// Assets
	AccountCodeCash               LedgerAccountCode = "cash"
	AccountCodeAccountsReceivable LedgerAccountCode = "accounts_receivable"

	// Liabilities
	AccountCodeDepositLiability LedgerAccountCode = "deposit_liability"
	AccountCodeTenantPayable    LedgerAccountCode = "tenant_payable"

	// Revenue
	AccountCodeRentRevenue    LedgerAccountCode = "rent_revenue"
	AccountCodeUtilityRevenue LedgerAccountCode = "utility_revenue"
	AccountCodeFeeRevenue     LedgerAccountCode = "fee_revenue"
)

var accountNames = map[LedgerAccountCode]string{
	AccountCodeCash:               "Cash",
	AccountCodeAccountsReceivable: "Accounts Receivable",
	AccountCodeDepositLiability:   "Security Deposits Held",
	AccountCodeTenantPayable:      "Refunds Payable to Tenants",
	AccountCodeRentRevenue:        "Rent Revenue",
	AccountCodeUtilityRevenue:     "Utility Revenue",
	AccountCodeFeeRevenue:         "Fee Revenue",
}

// AccountName returns the display name for a known account code.
func AccountName(code LedgerAccountCode) (string, bool) {
	name, ok := accountNames[code]
	return name, ok
}

// LedgerAccount defines a chart-of-accounts entry.
type LedgerAccount struct {
	ID        snowflake.ID      `gorm:"primaryKey;autoIncrement:false"`
	Code      LedgerAccountCode `gorm:"size:64;not null;uniqueIndex:ux_ledger_accounts_code"`
	Name      string            `gorm:"size:128;not null"`
	CreatedAt time.Time         `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerAccount) TableName() string { return "ledger_accounts" }

// LedgerEntry captures the immutable header for a financial event.
type LedgerEntry struct {
	ID         snowflake.ID     `gorm:"primaryKey;autoIncrement:false"`
	ContractID snowflake.ID     `gorm:"not null;index"`
	SourceType LedgerSourceType `gorm:"size:64;not null;uniqueIndex:ux_ledger_entries_source,priority:1"`
	SourceID   snowflake.ID     `gorm:"not null;uniqueIndex:ux_ledger_entries_source,priority:2"`
	Currency   string           `gorm:"size:3;not null"`
	OccurredAt time.Time        `gorm:"not null"`
	CreatedAt  time.Time        `gorm:"not null"`

	Lines []LedgerEntryLine `gorm:"foreignKey:LedgerEntryID"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// LedgerEntryLine is a double-entry posting line.
type LedgerEntryLine struct {
	ID            snowflake.ID         `gorm:"primaryKey;autoIncrement:false"`
	LedgerEntryID snowflake.ID         `gorm:"not null;index"`
	AccountID     snowflake.ID         `gorm:"not null;index"`
	Direction     LedgerEntryDirection `gorm:"size:8;not null"`
	Amount        decimal.Decimal      `gorm:"type:numeric(12,2);not null"`
	CreatedAt     time.Time            `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerEntryLine) TableName() string { return "ledger_entry_lines" }

// Posting is a line expressed against an account code.
type Posting struct {
	Account   LedgerAccountCode
	Direction LedgerEntryDirection
	Amount    decimal.Decimal
}

func Debit(account LedgerAccountCode, amount decimal.Decimal) Posting {
	return Posting{Account: account, Direction: LedgerEntryDirectionDebit, Amount: amount}
}

func Credit(account LedgerAccountCode, amount decimal.Decimal) Posting {
	return Posting{Account: account, Direction: LedgerEntryDirectionCredit, Amount: amount}
}

// ValidateBalanced requires debits to equal credits exactly.
func ValidateBalanced(postings []Posting) error {
	debit, credit := decimal.Zero, decimal.Zero
	for _, p := range postings {
		switch p.Direction {
		case LedgerEntryDirectionDebit:
			debit = debit.Add(p.Amount)
		case LedgerEntryDirectionCredit:
			credit = credit.Add(p.Amount)
		default:
			return ErrInvalidLineDirection
		}
	}
	if !debit.Equal(credit) {
		return ErrUnbalancedEntry
	}
	return nil
}
