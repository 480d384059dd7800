// Package supabasetest runs an in-memory stand-in for the hosted backend:
// the GoTrue email endpoints and the PostgREST notes table with row-level
// security by token subject.
package supabasetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pathakanu/noteminder/internal/model"
)

// AnonKey is the public key the fake accepts.
const AnonKey = "test-anon-key"

var signingKey = []byte("supabasetest-secret")

// Server is a fake backend bound to an httptest.Server.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[string]string // email -> user id
	otps     map[string]string // email -> pending one-time token
	rejected map[string]bool
	notes    []model.Note
	seq      int
	requests map[string]int
	failures map[string]failure
}

type failure struct {
	status  int
	message string
}

// NewServer starts a fake backend that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:    make(map[string]string),
		otps:     make(map[string]string),
		rejected: make(map[string]bool),
		requests: make(map[string]int),
		failures: make(map[string]failure),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/otp", s.handleOTP)
	mux.HandleFunc("/auth/v1/verify", s.handleVerify)
	mux.HandleFunc("/auth/v1/user", s.handleUser)
	mux.HandleFunc("/auth/v1/logout", s.handleLogout)
	mux.HandleFunc("/auth/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"name": "GoTrue"})
	})
	mux.HandleFunc("/rest/v1/notes", s.handleNotes)
	s.Server = httptest.NewServer(s.count(mux))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.requests[key]++
		f, failing := s.failures[key]
		delete(s.failures, key)
		s.mu.Unlock()

		if r.Header.Get("apikey") != AnonKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid API key"})
			return
		}
		if failing {
			writeJSON(w, f.status, map[string]string{"message": f.message})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Requests returns how many requests hit method+path, e.g. "POST /rest/v1/notes".
func (s *Server) Requests(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

// TotalRequests returns the number of requests received so far.
func (s *Server) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.requests {
		total += n
	}
	return total
}

// FailNext makes the next request to method+path answer with status and message.
func (s *Server) FailNext(key string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[key] = failure{status: status, message: message}
}

// Reject makes magic-link requests for email fail.
func (s *Server) Reject(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[email] = true
}

// PendingOTP returns the token last emailed to email.
func (s *Server) PendingOTP(email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	token, ok := s.otps[email]
	return token, ok
}

// SignIn registers email if needed and returns an access token valid for ttl.
func (s *Server) SignIn(email string, ttl time.Duration) (userID, accessToken string) {
	s.mu.Lock()
	userID = s.userIDLocked(email)
	s.mu.Unlock()
	return userID, issueToken(userID, email, ttl)
}

// Notes returns a copy of every stored row.
func (s *Server) Notes() []model.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Note(nil), s.notes...)
}

// Seed stores a note directly, assigning id and timestamps when empty.
func (s *Server) Seed(n model.Note) model.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(n)
}

func (s *Server) userIDLocked(email string) string {
	id, ok := s.users[email]
	if !ok {
		id = uuid.NewString()
		s.users[email] = id
	}
	return id
}

func (s *Server) insertLocked(n model.Note) model.Note {
	s.seq++
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC().Add(time.Duration(s.seq) * time.Millisecond)
	}
	n.UpdatedAt = n.CreatedAt
	s.notes = append(s.notes, n)
	return n
}

func issueToken(userID, email string, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"role":  "authenticated",
		"exp":   time.Now().Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return token
}

// subject returns the user id of the bearer token, or "" for the anon key.
func subject(r *http.Request) (string, string, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == AnonKey {
		return "", "", true
	}
	token, err := jwt.Parse(raw, func(*jwt.Token) (interface{}, error) { return signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", "", false
	}
	claims, _ := token.Claims.(jwt.MapClaims)
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	return sub, email, true
}

func (s *Server) handleOTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "email required"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejected[body.Email] {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"msg": "Signups not allowed for this instance"})
		return
	}
	s.userIDLocked(body.Email)
	s.otps[body.Email] = fmt.Sprintf("%06d", 100000+len(s.otps))
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": err.Error()})
		return
	}
	s.mu.Lock()
	want, ok := s.otps[body.Email]
	if !ok || want != body.Token {
		s.mu.Unlock()
		writeJSON(w, http.StatusForbidden, map[string]string{"msg": "Token has expired or is invalid"})
		return
	}
	delete(s.otps, body.Email)
	userID := s.userIDLocked(body.Email)
	s.mu.Unlock()

	ttl := time.Hour
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  issueToken(userID, body.Email, ttl),
		"refresh_token": uuid.NewString(),
		"token_type":    "bearer",
		"expires_in":    int(ttl.Seconds()),
		"expires_at":    time.Now().Add(ttl).Unix(),
		"user":          map[string]string{"id": userID, "email": body.Email},
	})
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	sub, email, ok := subject(r)
	if !ok || sub == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": sub, "email": email})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := subject(r); !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	sub, _, ok := subject(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "JWT expired"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q := r.URL.Query()
	matches := func(n model.Note) bool {
		if n.UserID != sub {
			return false
		}
		if id := q.Get("id"); id != "" && "eq."+n.ID != id {
			return false
		}
		return true
	}

	switch r.Method {
	case http.MethodGet:
		var out []model.Note
		for _, n := range s.notes {
			if matches(n) {
				out = append(out, n)
			}
		}
		if strings.HasPrefix(q.Get("order"), "created_at.desc") {
			sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
		}
		if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit < len(out) {
			out = out[:limit]
		}
		writeJSON(w, http.StatusOK, emptyIfNil(out))

	case http.MethodPost:
		var n model.Note
		if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		if sub == "" || n.UserID != sub {
			writeJSON(w, http.StatusForbidden, map[string]string{"message": `new row violates row-level security policy for table "notes"`})
			return
		}
		n.ID = ""
		n.CreatedAt = time.Time{}
		writeJSON(w, http.StatusCreated, []model.Note{s.insertLocked(n)})

	case http.MethodPatch:
		data, _ := io.ReadAll(r.Body)
		var cols map[string]json.RawMessage
		if err := json.Unmarshal(data, &cols); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
			return
		}
		var out []model.Note
		for i, n := range s.notes {
			if !matches(n) {
				continue
			}
			updated, err := merge(n, cols)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
				return
			}
			updated.UpdatedAt = time.Now().UTC()
			s.notes[i] = updated
			out = append(out, updated)
		}
		writeJSON(w, http.StatusOK, emptyIfNil(out))

	case http.MethodDelete:
		var kept, removed []model.Note
		for _, n := range s.notes {
			if matches(n) {
				removed = append(removed, n)
			} else {
				kept = append(kept, n)
			}
		}
		s.notes = kept
		writeJSON(w, http.StatusOK, emptyIfNil(removed))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func merge(n model.Note, cols map[string]json.RawMessage) (model.Note, error) {
	current, err := json.Marshal(n)
	if err != nil {
		return n, err
	}
	var row map[string]json.RawMessage
	if err := json.Unmarshal(current, &row); err != nil {
		return n, err
	}
	for k, v := range cols {
		row[k] = v
	}
	merged, err := json.Marshal(row)
	if err != nil {
		return n, err
	}
	var out model.Note
	err = json.Unmarshal(merged, &out)
	return out, err
}

func emptyIfNil(notes []model.Note) []model.Note {
	if notes == nil {
		return []model.Note{}
	}
	return notes
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
