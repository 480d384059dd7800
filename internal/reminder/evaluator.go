// Package reminder decides when a note's reminder fires and what the note
// card shows until then.
package reminder

import (
	"fmt"
	"time"

	"github.com/pathakanu/noteminder/internal/model"
)

// CheckInterval is the polling period of the reminder check.
const CheckInterval = time.Minute

// DueLabel replaces the countdown once the reminder time has passed.
const DueLabel = "Due!"

// State of a displayed note's reminder.
type State int

const (
	// Pending is the initial state: not yet due, or no reminder.
	Pending State = iota
	// Triggered means the alert fired and awaits dismissal.
	Triggered
)

func (s State) String() string {
	if s == Triggered {
		return "triggered"
	}
	return "pending"
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*s = Pending
	case "triggered":
		*s = Triggered
	default:
		return fmt.Errorf("unknown reminder state %q", text)
	}
	return nil
}

// Status is the rendered reminder indicator of one note.
type Status struct {
	State       State              `json:"state"`
	HasReminder bool               `json:"has_reminder"`
	Due         bool               `json:"due"`
	Remaining   time.Duration      `json:"remaining"`
	Label       string             `json:"label,omitempty"`
	Effect      model.VisualEffect `json:"effect,omitempty"`
}

// FormatRemaining renders d as whole hours and the remaining whole minutes.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int64(d / time.Hour)
	minutes := int64((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// Evaluator is the reminder state machine of one displayed note. It is not
// safe for concurrent use; the Scheduler serialises access.
type Evaluator struct {
	note   model.Note
	state  State
	fired  bool
	checks int
}

// NewEvaluator starts a Pending evaluator for n.
func NewEvaluator(n model.Note) *Evaluator {
	return &Evaluator{note: n}
}

// Note returns the note being evaluated.
func (e *Evaluator) Note() model.Note { return e.note }

// State returns the current state.
func (e *Evaluator) State() State { return e.state }

// Checks returns how many threshold checks have run.
func (e *Evaluator) Checks() int { return e.checks }

// Armed reports whether a future check can still trigger.
func (e *Evaluator) Armed() bool {
	return e.note.ReminderTime != nil && !e.fired
}

// Check compares now with the reminder time. It reports true exactly once
// per evaluator lifetime: the first time now reaches the reminder time.
// Notes without a reminder are never checked.
func (e *Evaluator) Check(now time.Time) (Status, bool) {
	if e.note.ReminderTime == nil {
		return e.Status(now), false
	}
	e.checks++

	entered := false
	if !e.fired && !now.Before(*e.note.ReminderTime) {
		e.fired = true
		e.state = Triggered
		entered = true
	}
	return e.Status(now), entered
}

// Status renders the indicator at now without changing state.
func (e *Evaluator) Status(now time.Time) Status {
	st := Status{State: e.state}
	if e.state == Triggered {
		st.Effect = e.note.Effect()
	}
	if e.note.ReminderTime == nil {
		return st
	}

	st.HasReminder = true
	remaining := e.note.ReminderTime.Sub(now)
	if remaining > 0 {
		st.Remaining = remaining
		st.Label = FormatRemaining(remaining)
	} else {
		st.Due = true
		st.Label = DueLabel
	}
	return st
}

// Dismiss returns a Triggered evaluator to Pending. The alert stays spent
// until Reset.
func (e *Evaluator) Dismiss() bool {
	if e.state != Triggered {
		return false
	}
	e.state = Pending
	return true
}

// Reset reloads the evaluator with n, as if the note was displayed afresh.
func (e *Evaluator) Reset(n model.Note) {
	e.note = n
	e.state = Pending
	e.fired = false
}

// Refresh swaps in a newer copy of the same note without touching state.
func (e *Evaluator) Refresh(n model.Note) {
	e.note = n
}
