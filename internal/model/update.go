package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pathakanu/noteminder/internal/errs"
)

// NoteUpdate is either a Replace or a Patch.
type NoteUpdate interface {
	// Apply returns current with the update merged in.
	Apply(current NoteFields) NoteFields
	// Columns returns only the columns the update writes.
	Columns() map[string]any
	isNoteUpdate()
}

// Replace overwrites every editable column.
type Replace struct {
	Fields NoteFields
}

func (r Replace) Apply(NoteFields) NoteFields { return r.Fields }

func (r Replace) Columns() map[string]any { return r.Fields.Columns() }

func (Replace) isNoteUpdate() {}

// Optional is a patch slot. The zero value leaves the column untouched;
// Set writes a value and Clear writes null.
type Optional[T any] struct {
	set   bool
	value *T
}

// Set returns a slot that writes v.
func Set[T any](v T) Optional[T] {
	return Optional[T]{set: true, value: &v}
}

// Clear returns a slot that writes null.
func Clear[T any]() Optional[T] {
	return Optional[T]{set: true}
}

// IsSet reports whether the slot is part of the patch.
func (o Optional[T]) IsSet() bool { return o.set }

// Value returns the value written by the slot, nil for Clear.
func (o Optional[T]) Value() *T { return o.value }

// Patch changes only the slots that are set.
type Patch struct {
	Content           Optional[string]
	ReminderTime      Optional[time.Time]
	IsRecurring       Optional[bool]
	RecurringInterval Optional[int]
	RecurringUnit     Optional[RecurringUnit]
	VisualEffect      Optional[VisualEffect]
}

func (Patch) isNoteUpdate() {}

// Empty reports whether no slot is set.
func (p Patch) Empty() bool {
	return !p.Content.set && !p.ReminderTime.set && !p.IsRecurring.set &&
		!p.RecurringInterval.set && !p.RecurringUnit.set && !p.VisualEffect.set
}

func (p Patch) Apply(current NoteFields) NoteFields {
	next := current
	if p.Content.set {
		next.Content = deref(p.Content.value)
	}
	if p.ReminderTime.set {
		next.ReminderTime = p.ReminderTime.value
	}
	if p.IsRecurring.set {
		next.IsRecurring = deref(p.IsRecurring.value)
	}
	if p.RecurringInterval.set {
		next.RecurringInterval = p.RecurringInterval.value
	}
	if p.RecurringUnit.set {
		next.RecurringUnit = p.RecurringUnit.value
	}
	if p.VisualEffect.set {
		next.VisualEffect = p.VisualEffect.value
	}
	return next
}

func (p Patch) Columns() map[string]any {
	cols := make(map[string]any)
	if p.Content.set {
		cols[ColContent] = deref(p.Content.value)
	}
	if p.ReminderTime.set {
		cols[ColReminderTime] = p.ReminderTime.value
	}
	if p.IsRecurring.set {
		cols[ColIsRecurring] = deref(p.IsRecurring.value)
	}
	if p.RecurringInterval.set {
		cols[ColRecurringInterval] = p.RecurringInterval.value
	}
	if p.RecurringUnit.set {
		cols[ColRecurringUnit] = p.RecurringUnit.value
	}
	if p.VisualEffect.set {
		cols[ColVisualEffect] = p.VisualEffect.value
	}
	return cols
}

// Merge applies p to current and normalises the dependent columns the patch
// did not name. Clearing the reminder also ends an unnamed recurrence. It
// returns the merged fields and every column to write. Slots set by p are
// kept as given, so a contradictory patch still fails validation.
func (p Patch) Merge(current NoteFields) (NoteFields, map[string]any) {
	merged := p.Apply(current)
	if merged.ReminderTime == nil && merged.IsRecurring && !p.IsRecurring.set {
		merged.IsRecurring = false
	}

	next := merged.Normalize()
	if p.RecurringInterval.set {
		next.RecurringInterval = p.RecurringInterval.value
	}
	if p.RecurringUnit.set {
		next.RecurringUnit = p.RecurringUnit.value
	}
	if p.VisualEffect.value != nil {
		next.VisualEffect = p.VisualEffect.value
	}

	cols := p.Columns()
	if !p.IsRecurring.set && next.IsRecurring != current.IsRecurring {
		cols[ColIsRecurring] = next.IsRecurring
	}
	if !samePtr(next.RecurringInterval, merged.RecurringInterval) {
		cols[ColRecurringInterval] = next.RecurringInterval
	}
	if !samePtr(next.RecurringUnit, merged.RecurringUnit) {
		cols[ColRecurringUnit] = next.RecurringUnit
	}
	if !samePtr(next.VisualEffect, merged.VisualEffect) {
		cols[ColVisualEffect] = next.VisualEffect
	}
	return next, cols
}

func samePtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ParsePatch decodes a JSON object into a Patch. Absent keys are left
// untouched and explicit nulls clear the column.
func ParsePatch(data []byte) (Patch, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Patch{}, errs.Validation("body", err.Error())
	}

	var p Patch
	var err error
	for key, value := range raw {
		switch key {
		case ColContent:
			p.Content, err = decodeSlot[string](value)
		case ColReminderTime:
			p.ReminderTime, err = decodeSlot[time.Time](value)
		case ColIsRecurring:
			p.IsRecurring, err = decodeSlot[bool](value)
		case ColRecurringInterval:
			p.RecurringInterval, err = decodeSlot[int](value)
		case ColRecurringUnit:
			p.RecurringUnit, err = decodeSlot[RecurringUnit](value)
		case ColVisualEffect:
			p.VisualEffect, err = decodeSlot[VisualEffect](value)
		default:
			return Patch{}, errs.Validation(key, "unknown field")
		}
		if err != nil {
			return Patch{}, errs.Validation(key, err.Error())
		}
	}
	return p, nil
}

func decodeSlot[T any](raw json.RawMessage) (Optional[T], error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Clear[T](), nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return Optional[T]{}, fmt.Errorf("decode: %w", err)
	}
	return Set(v), nil
}

func deref[T any](v *T) T {
	var zero T
	if v == nil {
		return zero
	}
	return *v
}
