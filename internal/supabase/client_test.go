package supabase_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pathakanu/noteminder/internal/errs"
	"github.com/pathakanu/noteminder/internal/model"
	"github.com/pathakanu/noteminder/internal/supabase"
	"github.com/pathakanu/noteminder/internal/supabase/supabasetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newClient(t *testing.T, url string) *supabase.Client {
	t.Helper()
	return supabase.New(url, supabasetest.AnonKey, 5*time.Second, zaptest.NewLogger(t))
}

func TestMagicLinkAndVerify(t *testing.T) {
	t.Parallel()
	srv := supabasetest.NewServer(t)
	c := newClient(t, srv.URL)
	ctx := context.Background()

	require.NoError(t, c.SendMagicLink(ctx, "ada@example.com", "http://localhost:8080/auth/callback"))
	token, ok := srv.PendingOTP("ada@example.com")
	require.True(t, ok)

	session, err := c.VerifyOTP(ctx, "ada@example.com", token)
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken)
	require.Equal(t, "ada@example.com", session.User.Email)

	user, err := c.GetUser(ctx, session.AccessToken)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, user.ID)

	require.NoError(t, c.SignOut(ctx, session.AccessToken))
}

func TestProviderRejectionIsStoreError(t *testing.T) {
	t.Parallel()
	srv := supabasetest.NewServer(t)
	srv.Reject("spam@example.com")
	c := newClient(t, srv.URL)

	err := c.SendMagicLink(context.Background(), "spam@example.com", "")
	var storeErr *errs.StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, http.StatusUnprocessableEntity, storeErr.Status)
	require.Equal(t, "Signups not allowed for this instance", storeErr.Message)

	_, err = c.VerifyOTP(context.Background(), "ada@example.com", "000000")
	require.True(t, errs.IsStore(err))
}

func TestRowsRoundTrip(t *testing.T) {
	t.Parallel()
	srv := supabasetest.NewServer(t)
	c := newClient(t, srv.URL)
	ctx := context.Background()
	userID, token := srv.SignIn("bob@example.com", time.Hour)

	var inserted []model.Note
	row := map[string]any{"user_id": userID, "content": "first"}
	require.NoError(t, c.Insert(ctx, token, "notes", row, &inserted))
	require.Len(t, inserted, 1)
	require.NotEmpty(t, inserted[0].ID)

	var updated []model.Note
	require.NoError(t, c.Update(ctx, token, "notes", map[string]any{"content": "second"}, supabase.ByID(inserted[0].ID), &updated))
	require.Len(t, updated, 1)
	require.Equal(t, "second", updated[0].Content)

	var listed []model.Note
	require.NoError(t, c.Select(ctx, token, "notes", supabase.Filter{OrderBy: "created_at", Descending: true}, &listed))
	require.Len(t, listed, 1)

	var removed []model.Note
	require.NoError(t, c.Delete(ctx, token, "notes", supabase.ByID(inserted[0].ID), &removed))
	require.Len(t, removed, 1)
	require.Empty(t, srv.Notes())
}

func TestQueryEncoding(t *testing.T) {
	t.Parallel()
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, srv.URL+"/")

	var out []model.Note
	f := supabase.Filter{Columns: "id", Eq: map[string]string{"id": "42"}, OrderBy: "created_at", Descending: true, Limit: 1}
	require.NoError(t, c.Select(context.Background(), "user-token", "notes", f, &out))

	require.Equal(t, "/rest/v1/notes", got.URL.Path)
	q := got.URL.Query()
	require.Equal(t, "id", q.Get("select"))
	require.Equal(t, "eq.42", q.Get("id"))
	require.Equal(t, "created_at.desc.nullslast", q.Get("order"))
	require.Equal(t, "1", q.Get("limit"))
	require.Equal(t, supabasetest.AnonKey, got.Header.Get("apikey"))
	require.Equal(t, "Bearer user-token", got.Header.Get("Authorization"))
}

func TestNetworkFailureIsStoreError(t *testing.T) {
	t.Parallel()
	c := newClient(t, "http://127.0.0.1:1")

	err := c.AuthHealth(context.Background())
	var storeErr *errs.StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, "auth_health", storeErr.Op)
	require.Error(t, storeErr.Unwrap())
}

func TestMagicLinkCarriesRedirect(t *testing.T) {
	t.Parallel()
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	c := newClient(t, srv.URL)

	require.NoError(t, c.SendMagicLink(context.Background(), "ada@example.com", "http://localhost:8080/auth/callback"))
	require.Equal(t, "/auth/v1/otp", got.URL.Path)
	require.Equal(t, "http://localhost:8080/auth/callback", got.URL.Query().Get("redirect_to"))
	require.Equal(t, supabasetest.AnonKey, got.Header.Get("apikey"))
}

func TestRowFailureKeepsStatus(t *testing.T) {
	t.Parallel()
	srv := supabasetest.NewServer(t)
	c := newClient(t, srv.URL)
	_, token := srv.SignIn("bob@example.com", time.Hour)
	srv.FailNext("GET /rest/v1/notes", http.StatusServiceUnavailable, "upstream connect error")

	var out []model.Note
	err := c.Select(context.Background(), token, "notes", supabase.Filter{}, &out)
	var storeErr *errs.StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, "select", storeErr.Op)
	require.Equal(t, http.StatusServiceUnavailable, storeErr.Status)
	require.Equal(t, "upstream connect error", storeErr.Message)
}

func TestCanceledContextStopsRequest(t *testing.T) {
	t.Parallel()
	srv := supabasetest.NewServer(t)
	c := newClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out []model.Note
	err := c.Select(ctx, "", "notes", supabase.Filter{}, &out)
	var storeErr *errs.StoreError
	require.ErrorAs(t, err, &storeErr)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, srv.TotalRequests())
}
