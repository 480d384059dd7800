// Package session holds the signed-in user. A Session is created once and
// injected into the components that act on behalf of the user.
package session

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pathakanu/noteminder/internal/errs"
	"github.com/pathakanu/noteminder/internal/model"
	"github.com/pathakanu/noteminder/internal/supabase"
	"go.uber.org/zap"
)

// Auth is the subset of the auth provider used by a Session.
type Auth interface {
	SendMagicLink(ctx context.Context, email, redirectTo string) error
	VerifyOTP(ctx context.Context, email, token string) (*supabase.AuthSession, error)
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Store persists the session between runs.
type Store interface {
	Save(ctx context.Context, s *model.StoredSession) error
	Load(ctx context.Context) (*model.StoredSession, error)
	Clear(ctx context.Context) error
}

// User is the signed-in account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type state struct {
	user         User
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// Session tracks the current user and performs sign-in and sign-out.
type Session struct {
	auth       Auth
	store      Store
	redirectTo string
	validate   *validator.Validate
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.RWMutex
	current   *state
	listeners []func(User, bool)
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides the time source used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithRedirect sets the URL the emailed link points back to.
func WithRedirect(url string) Option {
	return func(s *Session) { s.redirectTo = url }
}

// New returns a signed-out session. store may be nil to keep the session in memory only.
func New(auth Auth, store Store, logger *zap.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		auth:     auth,
		store:    store,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to run after every sign-in and sign-out.
func (s *Session) OnChange(fn func(user User, signedIn bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Current returns the signed-in user. It reports false when signed out or
// when the access token has expired.
func (s *Session) Current() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.activeLocked() {
		return User{}, false
	}
	return s.current.user, true
}

// AccessToken returns the bearer token for store calls.
func (s *Session) AccessToken() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.activeLocked() {
		return "", errs.ErrNotSignedIn
	}
	return s.current.accessToken, nil
}

func (s *Session) activeLocked() bool {
	if s.current == nil {
		return false
	}
	return s.current.expiresAt.IsZero() || s.now().Before(s.current.expiresAt)
}

// RequestMagicLink validates email and asks the provider to send a sign-in
// link. It does not sign the user in.
func (s *Session) RequestMagicLink(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return errs.Validation("email", "must be a valid email address")
	}
	if err := s.auth.SendMagicLink(ctx, email, s.redirectTo); err != nil {
		return fmt.Errorf("request magic link: %w", err)
	}
	s.logger.Info("magic link requested", zap.String("email", email))
	return nil
}

// Verify exchanges the emailed one-time token for a session.
func (s *Session) Verify(ctx context.Context, email, token string) (User, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return User{}, errs.Validation("email", "must be a valid email address")
	}
	if strings.TrimSpace(token) == "" {
		return User{}, errs.Validation("token", "must not be empty")
	}

	auth, err := s.auth.VerifyOTP(ctx, email, strings.TrimSpace(token))
	if err != nil {
		return User{}, fmt.Errorf("verify sign-in token: %w", err)
	}
	user := User{ID: auth.User.ID, Email: auth.User.Email}
	return user, s.establish(ctx, user, auth.AccessToken, auth.RefreshToken)
}

// Adopt signs in with the tokens carried by a clicked magic link.
func (s *Session) Adopt(ctx context.Context, accessToken, refreshToken string) (User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return User{}, errs.Validation("access_token", "must not be empty")
	}
	u, err := s.auth.GetUser(ctx, accessToken)
	if err != nil {
		return User{}, fmt.Errorf("adopt session: %w", err)
	}
	user := User{ID: u.ID, Email: u.Email}
	return user, s.establish(ctx, user, accessToken, refreshToken)
}

// Restore loads the persisted session. Expired sessions are discarded.
func (s *Session) Restore(ctx context.Context) (User, bool, error) {
	if s.store == nil {
		return User{}, false, nil
	}
	stored, err := s.store.Load(ctx)
	if err != nil {
		return User{}, false, fmt.Errorf("restore session: %w", err)
	}
	if stored == nil {
		return User{}, false, nil
	}
	if !stored.ExpiresAt.IsZero() && !s.now().Before(stored.ExpiresAt) {
		s.logger.Info("stored session expired", zap.String("email", stored.Email))
		if err := s.store.Clear(ctx); err != nil {
			s.logger.Warn("clear expired session", zap.Error(err))
		}
		return User{}, false, nil
	}

	user := User{ID: stored.UserID, Email: stored.Email}
	s.set(&state{
		user:         user,
		accessToken:  stored.AccessToken,
		refreshToken: stored.RefreshToken,
		expiresAt:    stored.ExpiresAt,
	})
	return user, true, nil
}

// SignOut clears the session. Provider and persistence failures are logged,
// never returned: the local state is always cleared.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	prev := s.current
	s.current = nil
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	if prev != nil {
		if err := s.auth.SignOut(ctx, prev.accessToken); err != nil {
			s.logger.Warn("provider sign-out failed", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Clear(ctx); err != nil {
			s.logger.Warn("clear stored session", zap.Error(err))
		}
	}
	for _, fn := range listeners {
		fn(User{}, false)
	}
	s.logger.Info("signed out")
}

func (s *Session) establish(ctx context.Context, user User, accessToken, refreshToken string) error {
	st := &state{
		user:         user,
		accessToken:  accessToken,
		refreshToken: refreshToken,
		expiresAt:    tokenExpiry(accessToken),
	}
	if s.store != nil {
		err := s.store.Save(ctx, &model.StoredSession{
			UserID:       user.ID,
			Email:        user.Email,
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresAt:    st.expiresAt,
		})
		if err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
	}
	s.set(st)
	s.logger.Info("signed in", zap.String("email", user.Email))
	return nil
}

func (s *Session) set(st *state) {
	s.mu.Lock()
	s.current = st
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(st.user, true)
	}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// provider verifies the token on every call.
func tokenExpiry(accessToken string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
