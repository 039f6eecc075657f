package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/smallbiznis/rentbill/internal/billing/domain"
	readingdomain "github.com/smallbiznis/rentbill/internal/meterreading/domain"
	"github.com/smallbiznis/rentbill/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() readingdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reading *readingdomain.MeterReading) error {
	return db.WithContext(ctx).Create(reading).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*readingdomain.MeterReading, error) {
	stmt := db.WithContext(ctx)
	if forUpdate {
		stmt = option.WithForUpdate().Apply(stmt)
	}
	return first(stmt.Where("id = ?", id))
}

func (r *repo) FindLatest(ctx context.Context, db *gorm.DB, roomID snowflake.ID) (*readingdomain.MeterReading, error) {
	return first(db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("month_year desc"))
}

func (r *repo) FindLatestBefore(ctx context.Context, db *gorm.DB, roomID snowflake.ID, period billingdomain.Period) (*readingdomain.MeterReading, error) {
	return first(db.WithContext(ctx).
		Where("room_id = ? AND month_year < ?", roomID, period.String()).
		Order("month_year desc"))
}

func (r *repo) ExistsAfter(ctx context.Context, db *gorm.DB, roomID snowflake.ID, period billingdomain.Period) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&readingdomain.MeterReading{}).
		Where("room_id = ? AND month_year > ?", roomID, period.String()).
		Count(&count).Error
	return count > 0, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, roomID snowflake.ID, period string) ([]readingdomain.MeterReading, error) {
	stmt := db.WithContext(ctx).Model(&readingdomain.MeterReading{})
	if roomID != 0 {
		stmt = stmt.Where("room_id = ?", roomID)
	}
	if period != "" {
		stmt = stmt.Where("month_year = ?", period)
	}
	var readings []readingdomain.MeterReading
	if err := stmt.Order("month_year desc, id desc").Find(&readings).Error; err != nil {
		return nil, err
	}
	return readings, nil
}

func (r *repo) UpdateCurrent(ctx context.Context, db *gorm.DB, id snowflake.ID, current billingdomain.Readings, at time.Time) error {
	return db.WithContext(ctx).Model(&readingdomain.MeterReading{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"current_water": current.Water,
			"current_elec":  current.Elec,
			"updated_at":    at,
		}).Error
}

func (r *repo) DeleteByRoomPeriod(ctx context.Context, db *gorm.DB, roomID snowflake.ID, period billingdomain.Period) error {
	return db.WithContext(ctx).
		Where("room_id = ? AND month_year = ?", roomID, period.String()).
		Delete(&readingdomain.MeterReading{}).Error
}

func first(stmt *gorm.DB) (*readingdomain.MeterReading, error) {
	var reading readingdomain.MeterReading
	if err := stmt.First(&reading).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &reading, nil
}
