package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pathakanu/noteminder/internal/alert"
	"github.com/pathakanu/noteminder/internal/database"
	"github.com/pathakanu/noteminder/internal/model"
	"github.com/pathakanu/noteminder/internal/notes"
	"github.com/pathakanu/noteminder/internal/reminder"
	"github.com/pathakanu/noteminder/internal/session"
	"github.com/pathakanu/noteminder/internal/supabase"
	"github.com/pathakanu/noteminder/internal/supabase/supabasetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	t         *testing.T
	srv       *supabasetest.Server
	dash      *Dashboard
	handler   http.Handler
	scheduler *reminder.Scheduler

	mu  sync.Mutex
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{t: t, now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	logger := zaptest.NewLogger(t)

	f.srv = supabasetest.NewServer(t)
	client := supabase.New(f.srv.URL, supabasetest.AnonKey, 5*time.Second, logger)
	sess := session.New(client, nil, logger)

	db, err := database.New("file:"+uuid.NewString()+"?mode=memory&cache=shared", nil)
	require.NoError(t, err)
	alerts := database.NewAlertLog(db)

	dispatcher := alert.NewDispatcher(nil, nil, nil, alerts, logger)
	f.scheduler = reminder.NewScheduler(dispatcher, logger, reminder.WithClock(f.clock))
	f.dash = New(sess, notes.NewRepository(client, sess, logger), f.scheduler, nil, alerts, logger)
	f.handler = f.dash.Handler()
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(f.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) signIn(email string) string {
	f.t.Helper()
	userID, token := f.srv.SignIn(email, time.Hour)
	rec := f.do(http.MethodPost, "/auth/session", sessionRequest{AccessToken: token})
	require.Equal(f.t, http.StatusOK, rec.Code, rec.Body.String())
	return userID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/healthz", nil).Code)

	rec := f.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "noteminder_tracked_notes")
}

func TestNotesRequireSignIn(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/notes", "/alerts", "/auth/me"} {
		rec := f.do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	require.Zero(t, f.srv.Requests("GET /rest/v1/notes"))
}

func TestMagicLinkFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/auth/magic-link", magicLinkRequest{Email: "nope"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "email", decode[errorResponse](t, rec).Field)

	rec = f.do(http.MethodPost, "/auth/magic-link", magicLinkRequest{Email: "ada@example.com"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	token, ok := f.srv.PendingOTP("ada@example.com")
	require.True(t, ok)
	rec = f.do(http.MethodPost, "/auth/verify", verifyRequest{Email: "ada@example.com", Token: token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ada@example.com", decode[session.User](t, rec).Email)
}

func TestCreateListPatchDelete(t *testing.T) {
	f := newFixture(t)
	f.signIn("ada@example.com")
	at := f.clock().Add(2 * time.Hour)

	rec := f.do(http.MethodPost, "/notes", `{"content":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, f.srv.Requests("POST /rest/v1/notes"))

	rec = f.do(http.MethodPost, "/notes", model.NoteFields{Content: "dentist", ReminderTime: &at})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[NoteView](t, rec)
	require.Equal(t, "2h 0m", created.Reminder.Label)
	require.Equal(t, reminder.Pending, created.Reminder.State)

	rec = f.do(http.MethodGet, "/notes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]NoteView](t, rec)
	require.Len(t, list, 1)
	require.Equal(t, created.ID, list[0].ID)

	rec = f.do(http.MethodPatch, "/notes/"+created.ID, `{"content":"dentist at 3"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decode[NoteView](t, rec)
	require.Equal(t, "dentist at 3", patched.Content)
	require.True(t, at.Equal(*patched.ReminderTime))
	require.Equal(t, model.EffectPulse, *patched.VisualEffect)

	rec = f.do(http.MethodPut, "/notes/"+created.ID, model.NoteFields{Content: "no reminder"})
	require.Equal(t, http.StatusOK, rec.Code)
	replaced := decode[NoteView](t, rec)
	require.Nil(t, replaced.ReminderTime)
	require.Empty(t, replaced.Reminder.Label)

	require.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/notes/"+created.ID, nil).Code)
	require.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/notes/"+created.ID, nil).Code)
	require.Zero(t, f.scheduler.Len())
}

func TestPatchRejectsUnknownField(t *testing.T) {
	f := newFixture(t)
	f.signIn("ada@example.com")
	rec := f.do(http.MethodPost, "/notes", model.NoteFields{Content: "x"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[NoteView](t, rec).ID

	rec = f.do(http.MethodPatch, "/notes/"+id, `{"colour":"red"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "colour", decode[errorResponse](t, rec).Field)
}

func TestDueReminderTriggersAndDismisses(t *testing.T) {
	f := newFixture(t)
	f.signIn("ada@example.com")
	past := f.clock().Add(-time.Minute)
	blink := model.EffectBlink

	rec := f.do(http.MethodPost, "/notes", model.NoteFields{Content: "stand up", ReminderTime: &past, VisualEffect: &blink})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	view := decode[NoteView](t, rec)
	require.Equal(t, reminder.Triggered, view.Reminder.State)
	require.Equal(t, reminder.DueLabel, view.Reminder.Label)
	require.Equal(t, model.EffectBlink, view.Reminder.Effect)

	rec = f.do(http.MethodGet, "/notes", nil)
	require.Equal(t, reminder.Triggered, decode[[]NoteView](t, rec)[0].Reminder.State)

	rec = f.do(http.MethodPost, "/notes/"+view.ID+"/dismiss", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[reminder.Status](t, rec)
	require.Equal(t, reminder.Pending, st.State)
	require.Empty(t, st.Effect)

	f.scheduler.Wait()
	rec = f.do(http.MethodGet, "/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]model.AlertRecord](t, rec)
	require.Len(t, history, 1)
	require.Equal(t, view.ID, history[0].NoteID)

	require.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/notes/missing/dismiss", nil).Code)
	require.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/alerts?limit=-1", nil).Code)
}

func TestStoreFailureIsBadGateway(t *testing.T) {
	f := newFixture(t)
	f.signIn("ada@example.com")
	f.srv.FailNext("GET /rest/v1/notes", http.StatusServiceUnavailable, "down")

	rec := f.do(http.MethodGet, "/notes", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, decode[errorResponse](t, rec).Error, "down")
}

func TestSignOutClearsReminders(t *testing.T) {
	f := newFixture(t)
	f.signIn("ada@example.com")
	at := f.clock().Add(time.Hour)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/notes", model.NoteFields{Content: "a", ReminderTime: &at}).Code)
	require.Equal(t, 1, f.scheduler.Len())

	require.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/auth/signout", nil).Code)
	require.Zero(t, f.scheduler.Len())
	require.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/notes", nil).Code)
}

func TestDuplicateSubmissionsShareOneCall(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodPost, "/notes", nil)
	req.Header.Set(FormIDHeader, uuid.NewString())

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(context.Context) (*model.Note, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return &model.Note{ID: "n1"}, nil
	}

	var wg sync.WaitGroup
	results := make([]*model.Note, 4)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = f.dash.submit(req, fn)
	}()
	<-started
	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = f.dash.submit(req, fn)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	for _, n := range results {
		require.Equal(t, "n1", n.ID)
	}

	_, _ = f.dash.submit(httptest.NewRequest(http.MethodPost, "/notes", nil), func(context.Context) (*model.Note, error) {
		calls.Add(1)
		return &model.Note{}, nil
	})
	require.Equal(t, int32(2), calls.Load(), "requests without a form id are never collapsed")
}

func TestHubRoute(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := alert.NewHub(nil)
	go hub.Run(ctx)
	f.dash.hub = hub
	f.handler = f.dash.Handler()

	rec := f.do(http.MethodGet, "/ws", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "the feed carries note contents")

	f.signIn("ada@example.com")
	rec = f.do(http.MethodGet, "/ws", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, "plain GET is not a websocket upgrade")

	rec = f.do(http.MethodGet, "/ws", nil,
		"Connection", "Upgrade",
		"Upgrade", "websocket",
		"Sec-WebSocket-Version", "13",
		"Sec-WebSocket-Key", "dGhlIHNhbXBsZSBub25jZQ==",
		"Origin", "https://evil.example",
	)
	require.Equal(t, http.StatusForbidden, rec.Code, "cross-origin upgrades are refused")
}

func TestPatchClearsDependentFields(t *testing.T) {
	f := newFixture(t)
	f.signIn("ada@example.com")
	at := f.clock().Add(time.Hour)
	interval := 2
	unit := model.UnitHours

	rec := f.do(http.MethodPost, "/notes", model.NoteFields{Content: "dentist", ReminderTime: &at})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode[NoteView](t, rec).ID

	rec = f.do(http.MethodPatch, "/notes/"+id, `{"reminder_time":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cleared := decode[NoteView](t, rec)
	require.Nil(t, cleared.ReminderTime)
	require.Nil(t, cleared.VisualEffect)
	require.False(t, cleared.Reminder.HasReminder)

	rec = f.do(http.MethodPost, "/notes", model.NoteFields{
		Content: "stretch", ReminderTime: &at, IsRecurring: true,
		RecurringInterval: &interval, RecurringUnit: &unit,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id = decode[NoteView](t, rec).ID

	rec = f.do(http.MethodPatch, "/notes/"+id, `{"is_recurring":false}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stopped := decode[NoteView](t, rec)
	require.False(t, stopped.IsRecurring)
	require.Nil(t, stopped.RecurringInterval)
	require.Nil(t, stopped.RecurringUnit)
	require.NotNil(t, stopped.ReminderTime)
}

func TestSwitchingUserClearsReminders(t *testing.T) {
	f := newFixture(t)
	f.signIn("ada@example.com")
	at := f.clock().Add(time.Hour)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/notes", model.NoteFields{Content: "a", ReminderTime: &at}).Code)
	require.Equal(t, 1, f.scheduler.Len())

	f.signIn("ada@example.com")
	require.Equal(t, 1, f.scheduler.Len(), "signing in again as the same user keeps reminders")

	f.signIn("bob@example.com")
	require.Zero(t, f.scheduler.Len())
}

func TestSharedSubmissionOutlivesFirstClient(t *testing.T) {
	f := newFixture(t)
	formID := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	first := httptest.NewRequest(http.MethodPost, "/notes", nil).WithContext(ctx)
	first.Header.Set(FormIDHeader, formID)
	second := httptest.NewRequest(http.MethodPost, "/notes", nil)
	second.Header.Set(FormIDHeader, formID)

	started := make(chan struct{})
	var once sync.Once
	fn := func(ctx context.Context) (*model.Note, error) {
		once.Do(func() { close(started) })
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(100 * time.Millisecond):
			return &model.Note{ID: "n1"}, nil
		}
	}

	var wg sync.WaitGroup
	var firstErr, secondErr error
	var got *model.Note
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, firstErr = f.dash.submit(first, fn)
	}()
	<-started
	go func() {
		defer wg.Done()
		got, secondErr = f.dash.submit(second, fn)
	}()
	cancel()
	wg.Wait()

	require.NoError(t, firstErr)
	require.NoError(t, secondErr)
	require.Equal(t, "n1", got.ID)
}
