// Package notes implements the note operations against the hosted store,
// scoped to the signed-in user.
package notes

import (
	"context"
	"fmt"

	"github.com/pathakanu/noteminder/internal/errs"
	"github.com/pathakanu/noteminder/internal/model"
	"github.com/pathakanu/noteminder/internal/session"
	"github.com/pathakanu/noteminder/internal/supabase"
	"go.uber.org/zap"
)

// Table is the store table holding notes.
const Table = "notes"

// Store is the row API of the hosted backend.
type Store interface {
	Select(ctx context.Context, token, table string, f supabase.Filter, out any) error
	Insert(ctx context.Context, token, table string, row any, out any) error
	Update(ctx context.Context, token, table string, cols map[string]any, f supabase.Filter, out any) error
	Delete(ctx context.Context, token, table string, f supabase.Filter, out any) error
}

// Sessions exposes the signed-in user and token.
type Sessions interface {
	Current() (session.User, bool)
	AccessToken() (string, error)
}

// Repository performs one store round trip per operation; there is no
// caching, batching or retry.
type Repository struct {
	store   Store
	session Sessions
	logger  *zap.Logger
}

// NewRepository returns a repository acting for the user of s.
func NewRepository(store Store, s Sessions, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{store: store, session: s, logger: logger}
}

func (r *Repository) credentials(op string) (session.User, string, error) {
	user, ok := r.session.Current()
	if !ok {
		return session.User{}, "", &errs.StoreError{Op: op, Err: errs.ErrNotSignedIn}
	}
	token, err := r.session.AccessToken()
	if err != nil {
		return session.User{}, "", &errs.StoreError{Op: op, Err: err}
	}
	return user, token, nil
}

// List returns the user's notes, newest first.
func (r *Repository) List(ctx context.Context) ([]model.Note, error) {
	_, token, err := r.credentials("list")
	if err != nil {
		return nil, err
	}

	notes := []model.Note{}
	f := supabase.Filter{OrderBy: model.ColCreatedAt, Descending: true}
	if err := r.store.Select(ctx, token, Table, f, &notes); err != nil {
		r.logger.Error("list notes", zap.Error(err))
		return nil, err
	}
	return notes, nil
}

// Get returns one note by id.
func (r *Repository) Get(ctx context.Context, id string) (*model.Note, error) {
	if id == "" {
		return nil, errs.Validation("id", "must not be empty")
	}
	_, token, err := r.credentials("get")
	if err != nil {
		return nil, err
	}

	var rows []model.Note
	if err := r.store.Select(ctx, token, Table, supabase.ByID(id), &rows); err != nil {
		r.logger.Error("get note", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.NotFound(id)
	}
	return &rows[0], nil
}

// Create validates fields and inserts a note owned by the current user.
// Invalid input is rejected before any store call.
func (r *Repository) Create(ctx context.Context, fields model.NoteFields) (*model.Note, error) {
	fields = fields.WithDefaults()
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	user, token, err := r.credentials("insert")
	if err != nil {
		return nil, err
	}

	row := fields.Columns()
	row[model.ColUserID] = user.ID

	var rows []model.Note
	if err := r.store.Insert(ctx, token, Table, row, &rows); err != nil {
		r.logger.Error("create note", zap.Error(err))
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &errs.StoreError{Op: "insert", Message: "no row returned"}
	}
	r.logger.Info("note created", zap.String("id", rows[0].ID))
	return &rows[0], nil
}

// Update applies u to the note id. A Patch reads the current row first so
// the merged note can be validated; only the patched columns and the
// dependent columns they clear are written.
func (r *Repository) Update(ctx context.Context, id string, u model.NoteUpdate) (*model.Note, error) {
	if id == "" {
		return nil, errs.Validation("id", "must not be empty")
	}

	var cols map[string]any
	switch upd := u.(type) {
	case model.Replace:
		fields := upd.Fields.WithDefaults()
		if err := fields.Validate(); err != nil {
			return nil, err
		}
		cols = fields.Columns()
	case model.Patch:
		if upd.Empty() {
			return nil, errs.Validation("update", "no fields to change")
		}
		current, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		merged, written := upd.Merge(current.NoteFields)
		if err := merged.Validate(); err != nil {
			return nil, err
		}
		cols = written
	default:
		return nil, fmt.Errorf("unsupported update %T", u)
	}

	_, token, err := r.credentials("update")
	if err != nil {
		return nil, err
	}

	var rows []model.Note
	if err := r.store.Update(ctx, token, Table, cols, supabase.ByID(id), &rows); err != nil {
		r.logger.Error("update note", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.NotFound(id)
	}
	r.logger.Info("note updated", zap.String("id", id))
	return &rows[0], nil
}

// Delete removes the note id. Deleting an id that matches no visible row
// returns a NotFoundError.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errs.Validation("id", "must not be empty")
	}
	_, token, err := r.credentials("delete")
	if err != nil {
		return err
	}

	var rows []model.Note
	if err := r.store.Delete(ctx, token, Table, supabase.ByID(id), &rows); err != nil {
		r.logger.Error("delete note", zap.String("id", id), zap.Error(err))
		return err
	}
	if len(rows) == 0 {
		return errs.NotFound(id)
	}
	r.logger.Info("note deleted", zap.String("id", id))
	return nil
}
