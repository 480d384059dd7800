// Package supabase is a thin client for the hosted backend: PostgREST for
// table rows and GoTrue for email sign-in.
package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pathakanu/noteminder/internal/errs"
	"github.com/pathakanu/noteminder/internal/metrics"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"
)

const schema = "public"

// Client talks to one project of the hosted backend.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	base    http.RoundTripper
	logger  *zap.Logger
}

// New returns a client for the project at baseURL authenticated with the public anon key.
func New(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		timeout: timeout,
		base:    http.DefaultTransport,
		logger:  logger,
	}
}

// boundTransport ties the requests of one call to its context and keeps the
// status of the last response. The SDKs build requests without a context
// and report errors as text.
type boundTransport struct {
	ctx    context.Context
	base   http.RoundTripper
	query  map[string]string
	status int
}

func (t *boundTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(t.ctx)
	if len(t.query) > 0 {
		q := r.URL.Query()
		for k, v := range t.query {
			q.Set(k, v)
		}
		r.URL.RawQuery = q.Encode()
	}
	resp, err := t.base.RoundTrip(r)
	if resp != nil {
		t.status = resp.StatusCode
	}
	return resp, err
}

// rest returns a PostgREST client acting as token, or as the anon role when
// token is empty.
func (c *Client) rest(token string, rt *boundTransport) *postgrest.Client {
	if token == "" {
		token = c.apiKey
	}
	pc := postgrest.NewClient(c.baseURL+"/rest/v1", schema, map[string]string{
		"apikey":        c.apiKey,
		"Authorization": "Bearer " + token,
	})
	if pc.ClientError == nil {
		pc.Transport.Parent = rt
	}
	return pc
}

// auth returns a GoTrue client, signed in as token when it is not empty.
func (c *Client) auth(token string, rt *boundTransport) gotrue.Client {
	gc := gotrue.New("", c.apiKey).
		WithCustomGoTrueURL(c.baseURL + "/auth/v1").
		WithClient(http.Client{Timeout: c.timeout, Transport: rt})
	if token != "" {
		gc = gc.WithToken(token)
	}
	return gc
}

// call runs one SDK request under ctx, records it and maps its failure to a
// StoreError.
func (c *Client) call(ctx context.Context, op string, rt *boundTransport, fn func() error) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore(op, start, err) }()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	rt.ctx = ctx
	rt.base = c.base

	if err := fn(); err != nil {
		return c.storeError(op, rt.status, err)
	}
	return nil
}

func (c *Client) storeError(op string, status int, err error) error {
	if status < 400 {
		c.logger.Debug("backend request failed", zap.String("op", op), zap.Error(err))
		return &errs.StoreError{Op: op, Status: status, Err: err}
	}
	msg := errorMessage(err.Error())
	if msg == "" {
		msg = http.StatusText(status)
	}
	c.logger.Debug("backend returned error",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("message", msg),
	)
	return &errs.StoreError{Op: op, Status: status, Message: msg}
}

// errorBody covers the error shapes of PostgREST and GoTrue.
type errorBody struct {
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func (e errorBody) text() string {
	for _, s := range []string{e.Message, e.Msg, e.ErrorDescription, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// errorMessage extracts the provider message from an SDK error. postgrest-go
// reports "(code) message"; gotrue-go reports "response status code N: body".
func errorMessage(text string) string {
	if strings.HasPrefix(text, statusPrefix) {
		_, body, ok := strings.Cut(text, ": ")
		if !ok {
			return ""
		}
		var eb errorBody
		if json.Unmarshal([]byte(body), &eb) == nil {
			return eb.text()
		}
		return strings.TrimSpace(body)
	}
	if strings.HasPrefix(text, "error parsing error response") {
		return ""
	}
	if strings.HasPrefix(text, "(") {
		if _, msg, ok := strings.Cut(text, ") "); ok {
			return msg
		}
	}
	return text
}
