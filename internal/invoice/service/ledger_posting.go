package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	contractdomain "github.com/smallbiznis/rentbill/internal/contract/domain"
	invoicedomain "github.com/smallbiznis/rentbill/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/rentbill/internal/ledger/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// settlementPostings books a move-out against the held deposit.
//
//	Debit:  Deposit liability (the deposit is released)
//	Credit: Rent, utility and fee revenue (what the deposit pays for)
//	Credit: Tenant payable (refund > 0)
//	Debit:  Accounts receivable (refund < 0, the tenant still owes)
//
// Zero lines are dropped by the ledger.
func settlementPostings(settlement billingdomain.Settlement, costs billingdomain.Costs) []ledgerdomain.Posting {
	postings := []ledgerdomain.Posting{
		ledgerdomain.Debit(ledgerdomain.AccountCodeDepositLiability, settlement.Deposit),
		ledgerdomain.Credit(ledgerdomain.AccountCodeRentRevenue, costs.Rent),
		ledgerdomain.Credit(ledgerdomain.AccountCodeUtilityRevenue, costs.Water.Add(costs.Elec)),
		ledgerdomain.Credit(ledgerdomain.AccountCodeFeeRevenue, settlement.CleaningFee.Add(settlement.DamageFee)),
	}
	switch {
	case settlement.Refund.IsPositive():
		postings = append(postings, ledgerdomain.Credit(ledgerdomain.AccountCodeTenantPayable, settlement.Refund))
	case settlement.Refund.IsNegative():
		postings = append(postings, ledgerdomain.Debit(ledgerdomain.AccountCodeAccountsReceivable, settlement.Refund.Abs()))
	}
	return postings
}

func depositTopupPostings(amount decimal.Decimal) []ledgerdomain.Posting {
	return []ledgerdomain.Posting{
		ledgerdomain.Debit(ledgerdomain.AccountCodeCash, amount),
		ledgerdomain.Credit(ledgerdomain.AccountCodeDepositLiability, amount),
	}
}

// postSettlement must run inside the invoice creation transaction.
func (s *Service) postSettlement(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, settlement billingdomain.Settlement, costs billingdomain.Costs, at time.Time) error {
	if settlement.Deposit.IsZero() && settlement.TotalDeductions.IsZero() {
		return nil
	}
	postings := settlementPostings(settlement, costs)
	if err := ledgerdomain.ValidateBalanced(postings); err != nil {
		return fmt.Errorf("settlement entry not balanced: %w", err)
	}
	created, err := s.ledgerSvc.PostEntry(ctx, tx, ledgerdomain.EntryRequest{
		ContractID: invoice.ContractID,
		SourceType: ledgerdomain.SourceTypeMoveOutSettlement,
		SourceID:   invoice.ID,
		OccurredAt: at,
		Postings:   postings,
	})
	if err != nil {
		return err
	}
	if !created {
		s.log.Info("settlement already posted", zap.String("invoice_id", invoice.ID.String()))
	}
	return nil
}

// postDepositTopup books a partial deposit collected with a regular invoice
// and raises the contract's held deposit.
func (s *Service) postDepositTopup(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, contract *contractdomain.Contract, amount decimal.Decimal, at time.Time) error {
	created, err := s.ledgerSvc.PostEntry(ctx, tx, ledgerdomain.EntryRequest{
		ContractID: contract.ID,
		SourceType: ledgerdomain.SourceTypeDepositTopup,
		SourceID:   invoice.ID,
		OccurredAt: at,
		Postings:   depositTopupPostings(amount),
	})
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	if err := s.contractRepo.AddDeposit(ctx, tx, contract.ID, amount); err != nil {
		return err
	}
	contract.Deposit = contract.Deposit.Add(amount)
	return nil
}
