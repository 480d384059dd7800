package reminder

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/pathakanu/noteminder/internal/metrics"
	"github.com/pathakanu/noteminder/internal/model"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TickSpec is the cron schedule of the reminder check.
const TickSpec = "@every 1m"

// AlertTimeout bounds the side effects of one fired reminder.
const AlertTimeout = 30 * time.Second

// Alerter performs the side effects of a reminder that just fired.
type Alerter interface {
	Alert(ctx context.Context, n model.Note)
}

// Dismisser is told when a triggered reminder is dismissed.
type Dismisser interface {
	Dismissed(ctx context.Context, n model.Note)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLocation sets the cron time zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// Scheduler tracks every displayed note and fires due reminders.
type Scheduler struct {
	mu         sync.Mutex
	evaluators map[string]*Evaluator
	pending    map[string]*dueItem
	queue      dueQueue

	alerter  Alerter
	inflight sync.WaitGroup
	now      func() time.Time
	loc      *time.Location
	cron     *cron.Cron
	logger   *zap.Logger
}

// NewScheduler returns a stopped scheduler that reports fired reminders to
// alerter. alerter may be nil.
func NewScheduler(alerter Alerter, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		evaluators: make(map[string]*Evaluator),
		pending:    make(map[string]*dueItem),
		alerter:    alerter,
		now:        time.Now,
		loc:        time.Local,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(cron.WithLocation(s.loc))
	return s
}

// Start registers the periodic check and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(TickSpec, s.Tick); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron loop and waits for a running check and the alerts
// it dispatched.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.Wait()
}

// Wait blocks until every dispatched alert has returned.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// Track starts evaluating n and checks it immediately. Tracking an already
// tracked note refreshes its data; a changed reminder time resets it.
func (s *Scheduler) Track(n model.Note) {
	now := s.now()

	s.mu.Lock()
	fired := s.trackLocked(n, now)
	s.updateGauge()
	s.mu.Unlock()

	s.alert(fired)
}

// Untrack stops evaluating the note id. No alert fires for it afterwards.
func (s *Scheduler) Untrack(id string) {
	s.mu.Lock()
	s.untrackLocked(id)
	s.updateGauge()
	s.mu.Unlock()
}

// Sync reconciles the tracked set with the displayed notes.
func (s *Scheduler) Sync(notes []model.Note) {
	now := s.now()

	s.mu.Lock()
	seen := make(map[string]struct{}, len(notes))
	var fired []model.Note
	for _, n := range notes {
		seen[n.ID] = struct{}{}
		fired = append(fired, s.trackLocked(n, now)...)
	}
	for id := range s.evaluators {
		if _, ok := seen[id]; !ok {
			s.untrackLocked(id)
		}
	}
	s.updateGauge()
	s.mu.Unlock()

	s.alert(fired)
}

// Clear untracks every note.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	for id := range s.evaluators {
		s.untrackLocked(id)
	}
	s.updateGauge()
	s.mu.Unlock()
}

// Tick checks every tracked note whose reminder is due.
func (s *Scheduler) Tick() {
	now := s.now()

	s.mu.Lock()
	var fired []model.Note
	for {
		next := s.queue.peek()
		if next == nil || next.due.After(now) {
			break
		}
		heap.Pop(&s.queue)
		delete(s.pending, next.id)

		e, ok := s.evaluators[next.id]
		if !ok {
			continue
		}
		if _, entered := e.Check(now); entered {
			fired = append(fired, e.Note())
		}
	}
	s.mu.Unlock()

	s.alert(fired)
}

// Dismiss returns a triggered note to Pending. It reports false when the
// note is not tracked or not triggered.
func (s *Scheduler) Dismiss(id string) bool {
	s.mu.Lock()
	e, ok := s.evaluators[id]
	dismissed := ok && e.Dismiss()
	var n model.Note
	if dismissed {
		n = e.Note()
	}
	s.mu.Unlock()

	if dismissed {
		s.logger.Info("reminder dismissed", zap.String("note_id", id))
		if d, ok := s.alerter.(Dismisser); ok {
			ctx, cancel := context.WithTimeout(context.Background(), AlertTimeout)
			d.Dismissed(ctx, n)
			cancel()
		}
	}
	return dismissed
}

// Reset reloads the note id so its reminder can fire again.
func (s *Scheduler) Reset(id string) {
	now := s.now()

	s.mu.Lock()
	var fired []model.Note
	if e, ok := s.evaluators[id]; ok {
		e.Reset(e.Note())
		fired = s.armLocked(e, now)
	}
	s.mu.Unlock()

	s.alert(fired)
}

// Status renders the indicator of the note id.
func (s *Scheduler) Status(id string) (Status, bool) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.evaluators[id]
	if !ok {
		return Status{}, false
	}
	return e.Status(now), true
}

// Checks returns how many threshold checks ran for the note id.
func (s *Scheduler) Checks(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.evaluators[id]; ok {
		return e.Checks()
	}
	return 0
}

// Len returns the number of tracked notes.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.evaluators)
}

func (s *Scheduler) trackLocked(n model.Note, now time.Time) []model.Note {
	e, ok := s.evaluators[n.ID]
	if !ok {
		e = NewEvaluator(n)
		s.evaluators[n.ID] = e
		return s.armLocked(e, now)
	}
	if sameReminder(e.Note().ReminderTime, n.ReminderTime) {
		e.Refresh(n)
		return nil
	}
	e.Reset(n)
	return s.armLocked(e, now)
}

// armLocked runs the immediate check and queues the next one if the
// reminder is still in the future.
func (s *Scheduler) armLocked(e *Evaluator, now time.Time) []model.Note {
	id := e.Note().ID
	if item, ok := s.pending[id]; ok {
		s.queue.remove(item)
		delete(s.pending, id)
	}
	if e.Note().ReminderTime == nil {
		return nil
	}

	if _, entered := e.Check(now); entered {
		return []model.Note{e.Note()}
	}
	if e.Armed() {
		item := &dueItem{id: id, due: *e.Note().ReminderTime}
		heap.Push(&s.queue, item)
		s.pending[id] = item
	}
	return nil
}

func (s *Scheduler) untrackLocked(id string) {
	if item, ok := s.pending[id]; ok {
		s.queue.remove(item)
		delete(s.pending, id)
	}
	delete(s.evaluators, id)
}

func (s *Scheduler) updateGauge() {
	metrics.TrackedNotes.Set(float64(len(s.evaluators)))
}

// alert dispatches fired reminders without blocking the caller.
func (s *Scheduler) alert(fired []model.Note) {
	for _, n := range fired {
		metrics.RemindersTriggeredTotal.Inc()
		s.logger.Info("reminder triggered", zap.String("note_id", n.ID), zap.String("effect", string(n.Effect())))
		if s.alerter == nil {
			continue
		}
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			ctx, cancel := context.WithTimeout(context.Background(), AlertTimeout)
			defer cancel()
			s.alerter.Alert(ctx, n)
		}()
	}
}

func sameReminder(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
