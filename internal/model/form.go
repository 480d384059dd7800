package model

import "time"

// NoteForm is the raw state of the create/edit form. Fields() applies the
// submission rules: recurrence is only kept when the box is ticked, and the
// effect only when a reminder is set.
type NoteForm struct {
	Content           string
	ReminderTime      *time.Time
	IsRecurring       bool
	RecurringInterval int
	RecurringUnit     RecurringUnit
	VisualEffect      VisualEffect
}

// NewNoteForm returns a blank form with the defaults of a new note.
func NewNoteForm() NoteForm {
	return NoteForm{
		RecurringInterval: 1,
		RecurringUnit:     UnitHours,
		VisualEffect:      DefaultEffect,
	}
}

// Fields converts the form into the columns that are submitted.
func (f NoteForm) Fields() NoteFields {
	fields := NoteFields{
		Content:     f.Content,
		IsRecurring: f.IsRecurring && f.ReminderTime != nil,
	}
	if f.ReminderTime != nil {
		at := f.ReminderTime.UTC()
		fields.ReminderTime = &at

		effect := f.VisualEffect
		if effect == "" {
			effect = DefaultEffect
		}
		fields.VisualEffect = &effect
	}
	if fields.IsRecurring {
		interval := f.RecurringInterval
		unit := f.RecurringUnit
		fields.RecurringInterval = &interval
		fields.RecurringUnit = &unit
	}
	return fields
}
