package model

import "time"

// AlertRecord is a reminder alert that fired, kept as local history.
type AlertRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	NoteID       string    `gorm:"index;not null" json:"note_id"`
	UserID       string    `gorm:"index" json:"user_id"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	VisualEffect string    `gorm:"size:16" json:"visual_effect,omitempty"`
	ReminderTime time.Time `gorm:"not null" json:"reminder_time"`
	Channels     string    `gorm:"type:text" json:"channels"`
	FiredAt      time.Time `gorm:"autoCreateTime" json:"fired_at"`
}

// StoredSession is the signed-in session persisted between runs. At most one row exists.
type StoredSession struct {
	ID           uint   `gorm:"primaryKey"`
	UserID       string `gorm:"not null"`
	Email        string
	AccessToken  string `gorm:"type:text;not null"`
	RefreshToken string `gorm:"type:text"`
	ExpiresAt    time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}
