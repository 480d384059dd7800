package dashboard

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pathakanu/noteminder/internal/errs"
	"github.com/pathakanu/noteminder/internal/model"
	"github.com/pathakanu/noteminder/internal/reminder"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

// NoteView is a note card: the note plus its reminder indicator.
type NoteView struct {
	model.Note
	Reminder reminder.Status `json:"reminder"`
}

func (d *Dashboard) view(n model.Note) NoteView {
	st, _ := d.scheduler.Status(n.ID)
	return NoteView{Note: n, Reminder: st}
}

func (d *Dashboard) listNotes(r *http.Request) (any, int, error) {
	list, err := d.notes.List(r.Context())
	if err != nil {
		return nil, 0, err
	}
	d.scheduler.Sync(list)

	views := make([]NoteView, 0, len(list))
	for _, n := range list {
		views = append(views, d.view(n))
	}
	return views, http.StatusOK, nil
}

func (d *Dashboard) createNote(r *http.Request) (any, int, error) {
	var fields model.NoteFields
	if err := decodeJSON(r, &fields); err != nil {
		return nil, 0, err
	}
	note, err := d.submit(r, func(ctx context.Context) (*model.Note, error) {
		return d.notes.Create(ctx, fields)
	})
	if err != nil {
		return nil, 0, err
	}
	d.scheduler.Track(*note)
	return d.view(*note), http.StatusCreated, nil
}

func (d *Dashboard) replaceNote(r *http.Request) (any, int, error) {
	var fields model.NoteFields
	if err := decodeJSON(r, &fields); err != nil {
		return nil, 0, err
	}
	return d.update(r, model.Replace{Fields: fields})
}

func (d *Dashboard) patchNote(r *http.Request) (any, int, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, 0, errs.Validation("body", err.Error())
	}
	patch, err := model.ParsePatch(body)
	if err != nil {
		return nil, 0, err
	}
	return d.update(r, patch)
}

func (d *Dashboard) update(r *http.Request, u model.NoteUpdate) (any, int, error) {
	id := chi.URLParam(r, "id")
	note, err := d.submit(r, func(ctx context.Context) (*model.Note, error) {
		return d.notes.Update(ctx, id, u)
	})
	if err != nil {
		return nil, 0, err
	}
	d.scheduler.Track(*note)
	return d.view(*note), http.StatusOK, nil
}

func (d *Dashboard) deleteNote(r *http.Request) (any, int, error) {
	id := chi.URLParam(r, "id")
	if err := d.notes.Delete(r.Context(), id); err != nil {
		return nil, 0, err
	}
	d.scheduler.Untrack(id)
	return nil, http.StatusNoContent, nil
}

func (d *Dashboard) dismissNote(r *http.Request) (any, int, error) {
	id := chi.URLParam(r, "id")
	d.scheduler.Dismiss(id)
	st, ok := d.scheduler.Status(id)
	if !ok {
		return nil, 0, errs.NotFound(id)
	}
	return st, http.StatusOK, nil
}

func (d *Dashboard) recentAlerts(r *http.Request) (any, int, error) {
	user, ok := d.session.Current()
	if !ok {
		return nil, 0, errs.ErrNotSignedIn
	}
	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, 0, errs.Validation("limit", "must be a positive integer")
		}
		limit = min(n, maxAlertLimit)
	}
	records, err := d.alerts.Recent(r.Context(), user.ID, limit)
	if err != nil {
		return nil, 0, err
	}
	return records, http.StatusOK, nil
}

// submit runs fn once per in-flight form instance. Concurrent requests
// carrying the same form id share the first request's result, so the shared
// call does not end when the first client goes away.
func (d *Dashboard) submit(r *http.Request, fn func(ctx context.Context) (*model.Note, error)) (*model.Note, error) {
	formID := r.Header.Get(FormIDHeader)
	if formID == "" {
		return fn(r.Context())
	}
	key := r.Method + " " + r.URL.Path + " " + formID
	ctx := context.WithoutCancel(r.Context())
	v, err, shared := d.forms.Do(key, func() (any, error) {
		return fn(ctx)
	})
	if shared {
		d.logger.Debug("duplicate submission collapsed")
	}
	if err != nil {
		return nil, err
	}
	return v.(*model.Note), nil
}
