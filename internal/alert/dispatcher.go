// Package alert performs the side effects of a fired reminder: sound,
// system notification, visual effect feed and history.
package alert

import (
	"context"
	"strings"
	"time"

	"github.com/pathakanu/noteminder/internal/errs"
	"github.com/pathakanu/noteminder/internal/metrics"
	"github.com/pathakanu/noteminder/internal/model"
	"go.uber.org/zap"
)

// Channel names used in metrics and the alert history.
const (
	ChannelSound        = "sound"
	ChannelNotification = "notification"
	ChannelVisual       = "visual"
	ChannelHistory      = "history"
)

// Recorder stores fired alerts.
type Recorder interface {
	Record(ctx context.Context, rec *model.AlertRecord) error
}

// Dispatcher runs every alert channel for a fired reminder. No failure is
// surfaced to the caller.
type Dispatcher struct {
	sound    Sound
	notifier *Notifier
	hub      *Hub
	history  Recorder
	logger   *zap.Logger
	now      func() time.Time
}

// NewDispatcher wires the alert channels. Any of them may be nil.
func NewDispatcher(sound Sound, notifier *Notifier, hub *Hub, history Recorder, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		sound:    sound,
		notifier: notifier,
		hub:      hub,
		history:  history,
		logger:   logger,
		now:      time.Now,
	}
}

// Alert plays the sound, shows the notification, starts the visual effect
// and records the alert.
func (d *Dispatcher) Alert(ctx context.Context, n model.Note) {
	var delivered []string

	if d.sound != nil {
		if err := d.sound.Play(ctx); err != nil {
			d.fail(ChannelSound, n, err)
		} else {
			delivered = append(delivered, ChannelSound)
		}
	}

	if d.notifier != nil {
		if err := d.notifier.Notify(ctx, n); err != nil {
			d.fail(ChannelNotification, n, err)
		} else {
			delivered = append(delivered, ChannelNotification)
		}
	}

	if d.hub != nil {
		note := n
		d.hub.Broadcast(Event{Type: EventTriggered, Note: &note, Effect: n.Effect(), At: d.now().UTC()})
		delivered = append(delivered, ChannelVisual)
	}

	if d.history != nil {
		rec := &model.AlertRecord{
			NoteID:       n.ID,
			UserID:       n.UserID,
			Content:      n.Content,
			VisualEffect: string(n.Effect()),
			Channels:     strings.Join(delivered, ","),
		}
		if n.ReminderTime != nil {
			rec.ReminderTime = *n.ReminderTime
		}
		if err := d.history.Record(ctx, rec); err != nil {
			d.fail(ChannelHistory, n, err)
		}
	}
}

// Dismissed stops the visual effect on connected dashboards.
func (d *Dispatcher) Dismissed(_ context.Context, n model.Note) {
	if d.hub == nil {
		return
	}
	note := n
	d.hub.Broadcast(Event{Type: EventDismissed, Note: &note, At: d.now().UTC()})
}

func (d *Dispatcher) fail(channel string, n model.Note, err error) {
	metrics.AlertChannelFailuresTotal.WithLabelValues(channel).Inc()
	if errs.IsPermission(err) {
		d.logger.Debug("alert channel skipped", zap.String("channel", channel), zap.String("note_id", n.ID), zap.Error(err))
		return
	}
	d.logger.Debug("alert channel failed", zap.String("channel", channel), zap.String("note_id", n.ID), zap.Error(err))
}
