package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	contractdomain "github.com/smallbiznis/rentbill/internal/contract/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() contractdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, contract *contractdomain.Contract) error {
	return db.WithContext(ctx).Create(contract).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*contractdomain.Contract, error) {
	stmt := db.WithContext(ctx)
	if forUpdate && stmt.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var contract contractdomain.Contract
	if err := stmt.Where("id = ?", id).First(&contract).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contract, nil
}

func (r *repo) FindActiveByRoom(ctx context.Context, db *gorm.DB, roomID snowflake.ID) (*contractdomain.Contract, error) {
	var contract contractdomain.Contract
	err := db.WithContext(ctx).
		Where("room_id = ? AND is_active = ?", roomID, true).
		Order("start_date desc").
		First(&contract).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contract, nil
}

func (r *repo) Deactivate(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Model(&contractdomain.Contract{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_active":     false,
			"terminated_at": at,
			"end_date":      at,
			"updated_at":    at,
		}).Error
}

func (r *repo) AddDeposit(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal) error {
	return db.WithContext(ctx).Model(&contractdomain.Contract{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"deposit":    gorm.Expr("deposit + ?", amount),
			"updated_at": time.Now().UTC(),
		}).Error
}
