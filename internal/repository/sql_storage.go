package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tasklist/internal/model"
)

// SQLStorage keeps key-value slots in a SQL table.
type SQLStorage struct {
	db *gorm.DB
}

func NewSQLStorage(db *gorm.DB) *SQLStorage {
	return &SQLStorage{db: db}
}

func (r *SQLStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var record model.Record
	err := r.db.WithContext(ctx).Where("name = ?", key).First(&record).Error
	switch {
	case err == nil:
		return record.Value, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "", false, nil
	default:
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
}

// Set replaces the slot in one statement so readers never see a partial value.
func (r *SQLStorage) Set(ctx context.Context, key, value string) error {
	record := model.Record{Name: key, Value: value}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *SQLStorage) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
