package database

import (
	"context"

	"github.com/pathakanu/noteminder/internal/model"
	"gorm.io/gorm"
)

// AlertLog is the append-only history of fired reminders.
type AlertLog struct {
	db *gorm.DB
}

// NewAlertLog wraps db.
func NewAlertLog(db *gorm.DB) *AlertLog {
	return &AlertLog{db: db}
}

// Record appends rec.
func (l *AlertLog) Record(ctx context.Context, rec *model.AlertRecord) error {
	return l.db.WithContext(ctx).Create(rec).Error
}

// Recent returns up to limit records for userID, newest first.
func (l *AlertLog) Recent(ctx context.Context, userID string, limit int) ([]model.AlertRecord, error) {
	var records []model.AlertRecord
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("fired_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
