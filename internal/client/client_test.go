package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/transient-web/internal/session"
)

type navRecorder struct {
	routes []string
}

func (n *navRecorder) Navigate(route string) {
	n.routes = append(n.routes, route)
}

type countingRecorder map[string]int

func (r countingRecorder) RecordRequest(method, outcome string) {
	r[method+" "+outcome]++
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, countingRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	rec := countingRecorder{}
	c, err := New(Options{BaseURL: srv.URL, HTTPClient: srv.Client(), Recorder: rec})
	require.NoError(t, err)
	return c, rec
}

func TestDoSuccessPassesBodyThrough(t *testing.T) {
	payload := `{"id":"1","username":"alice"}`
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, payload)
	})
	nav := &navRecorder{}

	outcome, err := c.Get(context.Background(), nav, session.State{}, "/api/me", nil)
	require.NoError(t, err)
	require.True(t, outcome.OK())
	assert.Equal(t, OutcomeSuccess, outcome.Kind)
	assert.Equal(t, http.StatusOK, outcome.Response.StatusCode)
	assert.Equal(t, payload, string(outcome.Response.Body))
	assert.Equal(t, "application/json", outcome.Response.Header.Get("Content-Type"))
	assert.Empty(t, nav.routes)
	assert.Equal(t, 1, rec["GET success"])

	var user struct {
		Username string `json:"username"`
	}
	require.NoError(t, outcome.Response.DecodeJSON(&user))
	assert.Equal(t, "alice", user.Username)
}

func TestDoUnauthorizedRedirectsWithoutError(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid session ID", http.StatusUnauthorized)
	})
	nav := &navRecorder{}

	outcome, err := c.Get(context.Background(), nav, session.State{}, "/api/me", nil)
	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, OutcomeAuthFailure, outcome.Kind)
	assert.Nil(t, outcome.Response)
	assert.False(t, outcome.OK())
	assert.Equal(t, []string{"home"}, nav.routes)
	assert.Equal(t, 1, rec["GET auth_failure"])
}

func TestDoUnauthorizedWithCustomHomeRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, HomeRoute: "login"})
	require.NoError(t, err)

	var got string
	outcome, err := c.Get(context.Background(), NavigatorFunc(func(route string) { got = route }), session.State{}, "/api/me", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAuthFailure, outcome.Kind)
	assert.Equal(t, "login", got)
}

func TestDoServerErrorPropagatesResponse(t *testing.T) {
	body := `{"message":"Error connecting to database","kind":"connection"}`
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, body)
	})
	nav := &navRecorder{}

	outcome, err := c.Get(context.Background(), nav, session.State{}, "/api/me", nil)
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.Empty(t, nav.routes)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, body, string(statusErr.Body))
	assert.Equal(t, KindConnection, statusErr.Kind())
	assert.Equal(t, "Error connecting to database", statusErr.Message())
	assert.Equal(t, 1, rec["GET error"])
}

func TestDoForbiddenIsNotAuthFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not logged in", http.StatusForbidden)
	})
	nav := &navRecorder{}

	_, err := c.Get(context.Background(), nav, session.State{}, "/api/self", nil)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
	assert.Equal(t, ErrorKind(""), statusErr.Kind())
	assert.Equal(t, "Not logged in\n", statusErr.Message())
	assert.Empty(t, nav.routes)
}

func TestDoTransportErrorIsPropagated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	rec := countingRecorder{}
	c, err := New(Options{BaseURL: base, Recorder: rec})
	require.NoError(t, err)
	nav := &navRecorder{}

	outcome, err := c.Get(context.Background(), nav, session.State{}, "/api/me", nil)
	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.Empty(t, nav.routes)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.NotNil(t, errors.Unwrap(err))
	assert.Equal(t, 1, rec["GET unhandled"])
}

func TestDoCanceledContextUnwrapsToCause(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Get(ctx, nil, session.State{}, "/api/me", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoForwardsArgumentsUnchanged(t *testing.T) {
	var got *http.Request
	var gotBody string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	})

	state := session.State{SessionID: "abc", Username: "alice"}
	outcome, err := c.Get(context.Background(), nil, state, "/api/users/search?limit=5", url.Values{"q": {"al ice"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, outcome.Response.StatusCode)
	assert.Equal(t, "/api/users/search", got.URL.Path)
	assert.Equal(t, "5", got.URL.Query().Get("limit"))
	assert.Equal(t, "al ice", got.URL.Query().Get("q"))

	ck, err := got.Cookie(session.SessionIDCookie)
	require.NoError(t, err)
	assert.Equal(t, "abc", ck.Value)

	_, err = c.PostJSON(context.Background(), nil, state, "/api/user/login", map[string]string{"username": "alice"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"username":"alice"}`, gotBody)
}

func TestNewRejectsRelativeBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "/api"})
	require.Error(t, err)
}

func TestResponseDecodeJSONNil(t *testing.T) {
	var r *Response
	require.Error(t, r.DecodeJSON(&struct{}{}))
}

func TestDoOversizedBodyIsTransportError(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), MaxBodyBytes+1))
	})
	nav := &navRecorder{}

	outcome, err := c.Get(context.Background(), nav, session.State{}, "/api/me", nil)
	assert.Nil(t, outcome)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, errBodyTooLarge)
	assert.Empty(t, nav.routes)
	assert.Equal(t, 1, rec["GET unhandled"])
}

func TestDoBodyAtLimitIsAccepted(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("a"), MaxBodyBytes))
	})

	outcome, err := c.Get(context.Background(), &navRecorder{}, session.State{}, "/api/me", nil)
	require.NoError(t, err)
	assert.Equal(t, MaxBodyBytes, len(outcome.Response.Body))
}
