package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	roomdomain "github.com/smallbiznis/rentbill/internal/room/domain"
	"github.com/smallbiznis/rentbill/pkg/db/option"
	"github.com/smallbiznis/rentbill/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() roomdomain.Repository {
	return &repo{}
}

func (r *repo) store(db *gorm.DB) repository.Repository[roomdomain.Room] {
	return repository.ProvideStore[roomdomain.Room](db)
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, room *roomdomain.Room) error {
	return r.store(db).Create(ctx, room)
}

// FindByID returns nil, nil when the room does not exist.
func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID, forUpdate bool) (*roomdomain.Room, error) {
	opts := []option.QueryOption{}
	if forUpdate {
		opts = append(opts, option.WithForUpdate())
	}
	return r.store(db).FindOne(ctx, &roomdomain.Room{ID: id}, opts...)
}

func (r *repo) List(ctx context.Context, db *gorm.DB, status roomdomain.RoomStatus) ([]roomdomain.Room, error) {
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"number": true}, Field: "number"}),
	}
	if status != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "status", Operator: option.EQ, Value: status}))
	}
	items, err := r.store(db).Find(ctx, nil, opts...)
	if err != nil {
		return nil, err
	}
	rooms := make([]roomdomain.Room, 0, len(items))
	for _, item := range items {
		rooms = append(rooms, *item)
	}
	return rooms, nil
}

func (r *repo) UpdateOccupancy(ctx context.Context, db *gorm.DB, id snowflake.ID, status roomdomain.RoomStatus, contractID *snowflake.ID) error {
	return db.WithContext(ctx).Model(&roomdomain.Room{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":              status,
			"current_contract_id": contractID,
			"updated_at":          time.Now().UTC(),
		}).Error
}
