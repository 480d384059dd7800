// Package dashboard serves the note dashboard over HTTP.
package dashboard

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pathakanu/noteminder/internal/alert"
	"github.com/pathakanu/noteminder/internal/database"
	"github.com/pathakanu/noteminder/internal/notes"
	"github.com/pathakanu/noteminder/internal/reminder"
	"github.com/pathakanu/noteminder/internal/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// FormIDHeader identifies one instance of a submitted form.
const FormIDHeader = "X-Form-ID"

// Dashboard coordinates the signed-in session, note storage and reminder
// scheduling behind the HTTP API.
type Dashboard struct {
	session   *session.Session
	notes     *notes.Repository
	scheduler *reminder.Scheduler
	hub       *alert.Hub
	alerts    *database.AlertLog
	forms     singleflight.Group
	logger    *zap.Logger
}

// New wires a Dashboard. Signing out, or signing in as another user,
// untracks every note.
func New(s *session.Session, repo *notes.Repository, scheduler *reminder.Scheduler, hub *alert.Hub, alerts *database.AlertLog, logger *zap.Logger) *Dashboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dashboard{
		session:   s,
		notes:     repo,
		scheduler: scheduler,
		hub:       hub,
		alerts:    alerts,
		logger:    logger,
	}
	var (
		mu   sync.Mutex
		last string
	)
	if user, ok := s.Current(); ok {
		last = user.ID
	}
	s.OnChange(func(user session.User, signedIn bool) {
		mu.Lock()
		previous := last
		if signedIn {
			last = user.ID
		} else {
			last = ""
		}
		mu.Unlock()

		switch {
		case !signedIn:
			scheduler.Clear()
			logger.Info("signed out, reminders cleared", zap.String("user_id", previous))
		case previous != "" && previous != user.ID:
			scheduler.Clear()
			logger.Info("user switched, reminders cleared",
				zap.String("previous_user_id", previous),
				zap.String("user_id", user.ID),
			)
		}
	})
	return d
}

// StartScheduler starts the periodic reminder check.
func (d *Dashboard) StartScheduler() error {
	return d.scheduler.Start()
}

// StopScheduler stops the reminder check and waits for a running one.
func (d *Dashboard) StopScheduler() {
	d.scheduler.Stop()
}

// Handler returns the HTTP handler of the dashboard API.
func (d *Dashboard) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(d.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Route("/auth", func(ar chi.Router) {
		ar.Post("/magic-link", d.handleJSON(d.requestMagicLink))
		ar.Post("/verify", d.handleJSON(d.verify))
		ar.Post("/session", d.handleJSON(d.adoptSession))
		ar.Post("/signout", d.handleJSON(d.signOut))
		ar.Get("/me", d.handleJSON(d.me))
	})

	r.Group(func(gr chi.Router) {
		gr.Use(d.requireSession)

		gr.Get("/notes", d.handleJSON(d.listNotes))
		gr.Post("/notes", d.handleJSON(d.createNote))
		gr.Put("/notes/{id}", d.handleJSON(d.replaceNote))
		gr.Patch("/notes/{id}", d.handleJSON(d.patchNote))
		gr.Delete("/notes/{id}", d.handleJSON(d.deleteNote))
		gr.Post("/notes/{id}/dismiss", d.handleJSON(d.dismissNote))
		gr.Get("/alerts", d.handleJSON(d.recentAlerts))
		if d.hub != nil {
			gr.Handle("/ws", d.hub)
		}
	})
	return r
}

func (d *Dashboard) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		d.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
