package model

import (
	"strings"
	"time"

	"github.com/pathakanu/noteminder/internal/errs"
)

// RecurringUnit is the unit of a recurrence rule.
type RecurringUnit string

const (
	UnitMinutes RecurringUnit = "minutes"
	UnitHours   RecurringUnit = "hours"
	UnitDays    RecurringUnit = "days"
)

// Valid reports whether u is one of the supported units.
func (u RecurringUnit) Valid() bool {
	switch u {
	case UnitMinutes, UnitHours, UnitDays:
		return true
	}
	return false
}

// VisualEffect names the animation shown while a reminder is firing.
type VisualEffect string

const (
	EffectShake  VisualEffect = "shake"
	EffectBlink  VisualEffect = "blink"
	EffectBounce VisualEffect = "bounce"
	EffectPulse  VisualEffect = "pulse"
)

// DefaultEffect is used when a reminder is set without an explicit effect.
const DefaultEffect = EffectPulse

// Valid reports whether e is one of the supported effects.
func (e VisualEffect) Valid() bool {
	switch e {
	case EffectShake, EffectBlink, EffectBounce, EffectPulse:
		return true
	}
	return false
}

// NoteFields holds the user-editable columns of a note.
type NoteFields struct {
	Content           string         `json:"content"`
	ReminderTime      *time.Time     `json:"reminder_time"`
	IsRecurring       bool           `json:"is_recurring"`
	RecurringInterval *int           `json:"recurring_interval"`
	RecurringUnit     *RecurringUnit `json:"recurring_unit"`
	VisualEffect      *VisualEffect  `json:"visual_effect"`
}

// Note is a row of the notes table.
type Note struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	NoteFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasReminder reports whether a reminder time is configured.
func (f NoteFields) HasReminder() bool {
	return f.ReminderTime != nil
}

// Effect returns the effect to play, falling back to DefaultEffect when a
// reminder exists but no effect was stored. It is empty without a reminder.
func (f NoteFields) Effect() VisualEffect {
	if f.ReminderTime == nil {
		return ""
	}
	if f.VisualEffect == nil || *f.VisualEffect == "" {
		return DefaultEffect
	}
	return *f.VisualEffect
}

// WithDefaults fills the visual effect when a reminder is set without one.
func (f NoteFields) WithDefaults() NoteFields {
	if f.ReminderTime != nil && (f.VisualEffect == nil || *f.VisualEffect == "") {
		effect := DefaultEffect
		f.VisualEffect = &effect
	}
	return f
}

// Normalize clears the columns that only apply alongside another one and
// fills the default effect: recurrence needs is_recurring, an effect needs a
// reminder time.
func (f NoteFields) Normalize() NoteFields {
	if f.ReminderTime == nil {
		f.VisualEffect = nil
	}
	if !f.IsRecurring {
		f.RecurringInterval = nil
		f.RecurringUnit = nil
	}
	return f.WithDefaults()
}

// Validate checks the required content and the cross-field invariants.
func (f NoteFields) Validate() error {
	if strings.TrimSpace(f.Content) == "" {
		return errs.Validation("content", "must not be empty")
	}

	recurringSet := f.RecurringInterval != nil || f.RecurringUnit != nil
	if f.IsRecurring {
		if f.ReminderTime == nil {
			return errs.Validation("is_recurring", "requires a reminder time")
		}
		if f.RecurringInterval == nil || f.RecurringUnit == nil {
			return errs.Validation("recurring", "interval and unit are required for a recurring reminder")
		}
		if *f.RecurringInterval <= 0 {
			return errs.Validation("recurring_interval", "must be positive")
		}
		if !f.RecurringUnit.Valid() {
			return errs.Validation("recurring_unit", "must be one of minutes, hours, days")
		}
	} else if recurringSet {
		return errs.Validation("recurring", "interval and unit are only allowed on a recurring reminder")
	}

	if f.VisualEffect != nil {
		if f.ReminderTime == nil {
			return errs.Validation("visual_effect", "requires a reminder time")
		}
		if !f.VisualEffect.Valid() {
			return errs.Validation("visual_effect", "must be one of shake, blink, bounce, pulse")
		}
	}
	return nil
}

// Columns returns every editable column keyed by its store name.
func (f NoteFields) Columns() map[string]any {
	return map[string]any{
		ColContent:           f.Content,
		ColReminderTime:      f.ReminderTime,
		ColIsRecurring:       f.IsRecurring,
		ColRecurringInterval: f.RecurringInterval,
		ColRecurringUnit:     f.RecurringUnit,
		ColVisualEffect:      f.VisualEffect,
	}
}

// Store column names.
const (
	ColID                = "id"
	ColUserID            = "user_id"
	ColContent           = "content"
	ColReminderTime      = "reminder_time"
	ColIsRecurring       = "is_recurring"
	ColRecurringInterval = "recurring_interval"
	ColRecurringUnit     = "recurring_unit"
	ColVisualEffect      = "visual_effect"
	ColCreatedAt         = "created_at"
)
