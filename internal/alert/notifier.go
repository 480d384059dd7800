package alert

import (
	"context"
	"errors"

	"github.com/pathakanu/noteminder/internal/errs"
	"github.com/pathakanu/noteminder/internal/model"
)

// NotificationTitle heads every system notification.
const NotificationTitle = "Reminder!"

// ErrNoChannel is returned when no notification recipient is configured.
var ErrNoChannel = errors.New("notification channel not configured")

// Sender delivers a message to a recipient address.
type Sender interface {
	SendWhatsAppMessage(to, body string) error
}

// Summarizer shortens note content for the notification body.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// Notifier shows the system notification of a fired reminder.
type Notifier struct {
	granted    bool
	to         string
	sender     Sender
	summarizer Summarizer
}

// NewNotifier returns a notifier that delivers to to through sender when
// granted is true. summarizer may be nil.
func NewNotifier(granted bool, to string, sender Sender, summarizer Summarizer) *Notifier {
	return &Notifier{granted: granted, to: to, sender: sender, summarizer: summarizer}
}

// Notify sends the notification for n. Without permission it returns a
// PermissionError and sends nothing.
func (n *Notifier) Notify(ctx context.Context, note model.Note) error {
	if !n.granted {
		return &errs.PermissionError{Permission: "notification"}
	}
	if n.sender == nil || n.to == "" {
		return ErrNoChannel
	}
	return n.sender.SendWhatsAppMessage(n.to, n.body(ctx, note))
}

func (n *Notifier) body(ctx context.Context, note model.Note) string {
	text := note.Content
	if n.summarizer != nil {
		if summary, err := n.summarizer.Summarize(ctx, note.Content); err == nil && summary != "" {
			text = summary
		}
	}
	return NotificationTitle + "\n" + text
}
