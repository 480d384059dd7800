package database

import (
	"context"
	"errors"

	"github.com/pathakanu/noteminder/internal/model"
	"gorm.io/gorm"
)

// SessionStore persists the single signed-in session.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore wraps db.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save replaces any stored session with s.
func (st *SessionStore) Save(ctx context.Context, s *model.StoredSession) error {
	return st.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.StoredSession{}).Error; err != nil {
			return err
		}
		s.ID = 0
		return tx.Create(s).Error
	})
}

// Load returns the stored session, or nil when none exists.
func (st *SessionStore) Load(ctx context.Context) (*model.StoredSession, error) {
	var s model.StoredSession
	err := st.db.WithContext(ctx).Order("created_at DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Clear removes the stored session.
func (st *SessionStore) Clear(ctx context.Context) error {
	return st.db.WithContext(ctx).Where("1 = 1").Delete(&model.StoredSession{}).Error
}
