package session

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pathakanu/noteminder/internal/database"
	"github.com/pathakanu/noteminder/internal/errs"
	"github.com/pathakanu/noteminder/internal/supabase"
	"github.com/pathakanu/noteminder/internal/supabase/supabasetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestSession(t *testing.T, opts ...Option) (*Session, *supabasetest.Server, *database.SessionStore) {
	t.Helper()
	srv := supabasetest.NewServer(t)
	client := supabase.New(srv.URL, supabasetest.AnonKey, 5*time.Second, zaptest.NewLogger(t))

	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := database.New(fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano()), nil)
	require.NoError(t, err)
	store := database.NewSessionStore(db)

	return New(client, store, zaptest.NewLogger(t), opts...), srv, store
}

func TestSignedOutByDefault(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSession(t)

	_, ok := s.Current()
	require.False(t, ok)
	_, err := s.AccessToken()
	require.ErrorIs(t, err, errs.ErrNotSignedIn)
}

func TestRequestMagicLinkValidatesEmail(t *testing.T) {
	t.Parallel()
	s, srv, _ := newTestSession(t)
	ctx := context.Background()

	for _, bad := range []string{"", "   ", "not-an-email", "a@"} {
		err := s.RequestMagicLink(ctx, bad)
		require.True(t, errs.IsValidation(err), "email %q", bad)
	}
	require.Zero(t, srv.Requests("POST /auth/v1/otp"), "invalid emails must not reach the provider")

	require.NoError(t, s.RequestMagicLink(ctx, " ada@example.com "))
	_, pending := srv.PendingOTP("ada@example.com")
	require.True(t, pending)

	_, ok := s.Current()
	require.False(t, ok, "requesting a link does not sign in")
}

func TestRequestMagicLinkProviderRejection(t *testing.T) {
	t.Parallel()
	s, srv, _ := newTestSession(t)
	srv.Reject("blocked@example.com")

	err := s.RequestMagicLink(context.Background(), "blocked@example.com")
	require.True(t, errs.IsStore(err))
}

func TestVerifySignsInAndPersists(t *testing.T) {
	t.Parallel()
	s, srv, store := newTestSession(t)
	ctx := context.Background()

	var events []bool
	s.OnChange(func(_ User, signedIn bool) { events = append(events, signedIn) })

	require.NoError(t, s.RequestMagicLink(ctx, "ada@example.com"))
	token, _ := srv.PendingOTP("ada@example.com")

	user, err := s.Verify(ctx, "ada@example.com", token)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", user.Email)

	current, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, user, current)

	stored, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, user.ID, stored.UserID)
	require.False(t, stored.ExpiresAt.IsZero(), "expiry is read from the token")

	s.SignOut(ctx)
	_, ok = s.Current()
	require.False(t, ok)
	stored, _ = store.Load(ctx)
	require.Nil(t, stored)
	require.Equal(t, []bool{true, false}, events)
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	t.Parallel()
	s, _, _ := newTestSession(t)
	ctx := context.Background()
	require.NoError(t, s.RequestMagicLink(ctx, "ada@example.com"))

	_, err := s.Verify(ctx, "ada@example.com", "999999")
	require.True(t, errs.IsStore(err))
	_, ok := s.Current()
	require.False(t, ok)

	_, err = s.Verify(ctx, "ada@example.com", " ")
	require.True(t, errs.IsValidation(err))
}

func TestAdoptAndRestore(t *testing.T) {
	t.Parallel()
	s, srv, store := newTestSession(t)
	ctx := context.Background()
	userID, token := srv.SignIn("bob@example.com", time.Hour)

	user, err := s.Adopt(ctx, token, "refresh")
	require.NoError(t, err)
	require.Equal(t, userID, user.ID)

	restored := New(supabase.New(srv.URL, supabasetest.AnonKey, time.Second, nil), store, nil)
	got, ok, err := restored.Restore(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, user, got)
	tok, err := restored.AccessToken()
	require.NoError(t, err)
	require.Equal(t, token, tok)
}

func TestExpiredSessionIsAbsent(t *testing.T) {
	t.Parallel()
	now := time.Now()
	s, srv, store := newTestSession(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	_, token := srv.SignIn("eve@example.com", time.Hour)

	_, err := s.Adopt(ctx, token, "")
	require.NoError(t, err)
	_, ok := s.Current()
	require.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = s.Current()
	require.False(t, ok)

	later := New(nil, store, nil, WithClock(func() time.Time { return now }))
	_, ok, err = later.Restore(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	stored, _ := store.Load(ctx)
	require.Nil(t, stored, "expired session is discarded")
}

func TestSignOutClearsEvenWhenProviderFails(t *testing.T) {
	t.Parallel()
	s, srv, _ := newTestSession(t)
	ctx := context.Background()
	_, token := srv.SignIn("ada@example.com", time.Hour)
	_, err := s.Adopt(ctx, token, "")
	require.NoError(t, err)

	srv.FailNext("POST /auth/v1/logout", 500, "boom")
	s.SignOut(ctx)

	_, ok := s.Current()
	require.False(t, ok)
}
