package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbill/internal/clock"
	"github.com/smallbiznis/rentbill/internal/config"
	ledgerdomain "github.com/smallbiznis/rentbill/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/rentbill/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Billing    *config.BillingConfigHolder
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	billing    *config.BillingConfigHolder
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		billing:    p.Billing,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) PostEntry(ctx context.Context, tx *gorm.DB, req ledgerdomain.EntryRequest) (bool, error) {
	if tx == nil {
		tx = s.db
	}
	if req.ContractID == 0 {
		return false, ledgerdomain.ErrInvalidContract
	}
	sourceType := ledgerdomain.LedgerSourceType(strings.TrimSpace(string(req.SourceType)))
	if sourceType == "" {
		return false, ledgerdomain.ErrInvalidSourceType
	}
	if req.SourceID == 0 {
		return false, ledgerdomain.ErrInvalidSourceID
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = s.billing.Get().Currency
	}
	if len(currency) != 3 {
		return false, ledgerdomain.ErrInvalidCurrency
	}
	if req.OccurredAt.IsZero() {
		return false, ledgerdomain.ErrInvalidOccurredAt
	}

	postings := make([]ledgerdomain.Posting, 0, len(req.Postings))
	for _, p := range req.Postings {
		if p.Amount.IsNegative() {
			return false, ledgerdomain.ErrInvalidLineAmount
		}
		if p.Amount.IsZero() {
			continue
		}
		if _, ok := ledgerdomain.AccountName(p.Account); !ok {
			return false, ledgerdomain.ErrInvalidAccount
		}
		postings = append(postings, p)
	}
	if len(postings) < 2 {
		return false, ledgerdomain.ErrInvalidEntryLines
	}
	if err := ledgerdomain.ValidateBalanced(postings); err != nil {
		return false, err
	}

	now := s.clock.Now().UTC()
	entry := ledgerdomain.LedgerEntry{
		ID:         s.genID.Generate(),
		ContractID: req.ContractID,
		SourceType: sourceType,
		SourceID:   req.SourceID,
		Currency:   currency,
		OccurredAt: req.OccurredAt.UTC(),
		CreatedAt:  now,
	}
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		s.log.Debug("ledger entry already posted",
			zap.String("source_type", string(sourceType)),
			zap.String("source_id", req.SourceID.String()),
		)
		return false, nil
	}

	lines := make([]ledgerdomain.LedgerEntryLine, 0, len(postings))
	for _, p := range postings {
		accountID, err := s.ensureAccount(ctx, tx, p.Account, now)
		if err != nil {
			return false, err
		}
		lines = append(lines, ledgerdomain.LedgerEntryLine{
			ID:            s.genID.Generate(),
			LedgerEntryID: entry.ID,
			AccountID:     accountID,
			Direction:     p.Direction,
			Amount:        p.Amount,
			CreatedAt:     now,
		})
	}
	if err := tx.WithContext(ctx).Create(&lines).Error; err != nil {
		return false, err
	}

	s.obsMetrics.RecordLedgerEntry(ctx, string(sourceType))
	return true, nil
}

// DepositBalance is credits minus debits on deposit_liability for the contract.
func (s *Service) DepositBalance(ctx context.Context, contractID snowflake.ID) (ledgerdomain.DepositBalance, error) {
	if contractID == 0 {
		return ledgerdomain.DepositBalance{}, ledgerdomain.ErrInvalidContract
	}

	var rows []struct {
		Direction ledgerdomain.LedgerEntryDirection
		Amount    decimal.Decimal
	}
	err := s.db.WithContext(ctx).
		Table("ledger_entry_lines AS l").
		Select("l.direction, l.amount").
		Joins("JOIN ledger_entries e ON e.id = l.ledger_entry_id").
		Joins("JOIN ledger_accounts a ON a.id = l.account_id").
		Where("e.contract_id = ? AND a.code = ?", contractID, ledgerdomain.AccountCodeDepositLiability).
		Scan(&rows).Error
	if err != nil {
		return ledgerdomain.DepositBalance{}, err
	}

	balance := decimal.Zero
	for _, row := range rows {
		if row.Direction == ledgerdomain.LedgerEntryDirectionCredit {
			balance = balance.Add(row.Amount)
		} else {
			balance = balance.Sub(row.Amount)
		}
	}
	return ledgerdomain.DepositBalance{
		ContractID: contractID,
		Currency:   s.billing.Get().Currency,
		Balance:    balance,
	}, nil
}

func (s *Service) ensureAccount(ctx context.Context, tx *gorm.DB, code ledgerdomain.LedgerAccountCode, now time.Time) (snowflake.ID, error) {
	var account ledgerdomain.LedgerAccount
	err := tx.WithContext(ctx).Where("code = ?", code).First(&account).Error
	if err == nil {
		return account.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, err
	}

	name, _ := ledgerdomain.AccountName(code)
	account = ledgerdomain.LedgerAccount{
		ID:        s.genID.Generate(),
		Code:      code,
		Name:      name,
		CreatedAt: now,
	}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&account).Error; err != nil {
		return 0, err
	}
	if err := tx.WithContext(ctx).Where("code = ?", code).First(&account).Error; err != nil {
		return 0, err
	}
	return account.ID, nil
}
