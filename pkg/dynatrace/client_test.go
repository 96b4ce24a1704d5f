package dynatrace

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "dt0c01.TESTTOKEN.SECRETPART"

func newTestClient(t *testing.T, serverURL string, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(Config{
		URL:           serverURL,
		EnvironmentID: "env-1",
		APIToken:      testToken,
		MaxRetries:    3,
		UserAgent:     "test-agent/1.0",
	}, opts...)
	require.NoError(t, err)
	return c
}

// recordSleeps replaces the backoff wait and records every requested delay.
func recordSleeps(c *Client) *[]time.Duration {
	var delays []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	return &delays
}

// stubDoer fails the first failures calls with err and then delegates to next.
type stubDoer struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
	next     HTTPDoer
	requests []*http.Request
}

func (s *stubDoer) Do(req *http.Request) (*http.Response, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	if n <= s.failures || s.next == nil {
		return nil, s.err
	}
	return s.next.Do(req)
}

func resetErr() error {
	return &url.Error{Op: "Get", URL: "https://managed.example.com", Err: syscall.ECONNRESET}
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing url", Config{EnvironmentID: "e", APIToken: "t"}},
		{"missing environment", Config{URL: "https://x", APIToken: "t"}},
		{"missing token", Config{URL: "https://x", EnvironmentID: "e"}},
		{"negative retries", Config{URL: "https://x", EnvironmentID: "e", APIToken: "t", MaxRetries: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestGetBaseURL(t *testing.T) {
	c, err := NewClient(Config{URL: "https://managed.example.com/", EnvironmentID: "abc-123", APIToken: "t"})
	require.NoError(t, err)
	assert.Equal(t, "https://managed.example.com/e/abc-123/api/v2", c.GetBaseURL())
	assert.Equal(t, "abc-123", c.EnvironmentID())
}

func TestRequestHeadersAndURL(t *testing.T) {
	var mu sync.Mutex
	var seen []*http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Clone(context.Background()))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"totalCount":0,"problems":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	q := url.Values{"from": {"now-2h"}}
	for i := 0; i < 2; i++ {
		_, err := c.Get(context.Background(), "/problems", &RequestOptions{Query: q})
		require.NoError(t, err)
	}

	require.Len(t, seen, 2)
	for _, r := range seen {
		assert.Equal(t, "/e/env-1/api/v2/problems", r.URL.Path)
		assert.Equal(t, "now-2h", r.URL.Query().Get("from"))
		assert.Equal(t, "Api-Token "+testToken, r.Header.Get("Authorization"))
		assert.Equal(t, ContentTypeJSON, r.Header.Get("Content-Type"))
		assert.Equal(t, ContentTypeJSON, r.Header.Get("Accept"))
		assert.Equal(t, "test-agent/1.0", r.Header.Get("User-Agent"))
	}
	assert.Equal(t, seen[0].Header, seen[1].Header)
	assert.Equal(t, seen[0].URL.String(), seen[1].URL.String())
}

func TestPostPutDelete(t *testing.T) {
	var methods []string
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		methods = append(methods, r.Method)
		bodies = append(bodies, string(b))
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = io.WriteString(w, `{"id":"c-1"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ctx := context.Background()

	resp, err := c.Post(ctx, "/problems/P-1/comments", CommentRequest{Message: "hi"}, nil)
	require.NoError(t, err)
	var out Comment
	require.NoError(t, resp.Decode(&out))
	assert.Equal(t, "c-1", out.ID)

	_, err = c.Put(ctx, "/problems/P-1/comments/c-1", CommentRequest{Message: "edited"}, nil)
	require.NoError(t, err)

	resp, err = c.Delete(ctx, "/problems/P-1/comments/c-1", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.Equal(t, []string{"POST", "PUT", "DELETE"}, methods)
	assert.JSONEq(t, `{"message":"hi"}`, bodies[0])
	assert.JSONEq(t, `{"message":"edited"}`, bodies[1])
	assert.Empty(t, bodies[2])
}

func TestRetryBackoffOnTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	stub := &stubDoer{failures: 3, err: resetErr(), next: srv.Client()}
	c := newTestClient(t, srv.URL, WithHTTPClient(stub))
	delays := recordSleeps(c)

	resp, err := c.Get(context.Background(), "/events", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4, stub.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *delays)
}

func TestRetryExhaustedReturnsLastError(t *testing.T) {
	stub := &stubDoer{failures: 100, err: resetErr()}
	c := newTestClient(t, "https://managed.example.com", WithHTTPClient(stub))
	delays := recordSleeps(c)

	_, err := c.Get(context.Background(), "/events", nil)
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, KindConnectionReset, transportErr.Kind)
	assert.Equal(t, 3, transportErr.Attempt)
	assert.ErrorIs(t, err, syscall.ECONNRESET)
	assert.Equal(t, 4, stub.calls)
	assert.Len(t, *delays, 3)
}

func TestZeroRetriesMeansSingleAttempt(t *testing.T) {
	stub := &stubDoer{failures: 100, err: resetErr()}
	c := newTestClient(t, "https://managed.example.com", WithHTTPClient(stub), WithRetryPolicy(RetryPolicy{MaxRetries: 0, BaseDelay: time.Second}))
	delays := recordSleeps(c)

	_, err := c.Get(context.Background(), "/events", nil)
	require.Error(t, err)
	assert.Equal(t, 1, stub.calls)
	assert.Empty(t, *delays)
}

func TestHTTPErrorsAreNotRetried(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 429, 500, 503} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(status)
				_, _ = io.WriteString(w, `{"error":{"code":`+strconv.Itoa(status)+`,"message":"nope"}}`)
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			delays := recordSleeps(c)

			_, err := c.Get(context.Background(), "/problems/P-1", nil)
			require.Error(t, err)

			var statusErr *HTTPStatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, status, statusErr.StatusCode)
			assert.Equal(t, status, StatusCode(err))
			assert.Equal(t, int32(1), calls.Load())
			assert.Empty(t, *delays)
		})
	}
}

func TestHTTPStatusErrorBodyAndSentinels(t *testing.T) {
	body := `{"error":{"code":400,"message":"Constraints violated.","constraintViolations":[{"path":"from","message":"must be a timestamp","parameterLocation":"QUERY","location":null}]}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Get(context.Background(), "/problems", nil)
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, body, string(statusErr.Body))
	require.NotNil(t, statusErr.API)
	assert.Equal(t, "Constraints violated.; from: must be a timestamp", statusErr.Message())
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, IsAuthError(err))

	assert.ErrorIs(t, &HTTPStatusError{StatusCode: 401}, ErrUnauthorized)
	assert.ErrorIs(t, &HTTPStatusError{StatusCode: 403}, ErrForbidden)
	assert.ErrorIs(t, &HTTPStatusError{StatusCode: 404}, ErrNotFound)
	assert.ErrorIs(t, &HTTPStatusError{StatusCode: 405}, ErrMethodNotAllowed)
	assert.True(t, IsAuthError(&HTTPStatusError{StatusCode: 403}))
}

func TestHTTPStatusErrorWithoutEnvelope(t *testing.T) {
	e := newHTTPStatusError("GET", "https://x/api", 502, []byte("  Bad Gateway \n"))
	assert.Nil(t, e.API)
	assert.Equal(t, "Bad Gateway", e.Message())
	assert.Contains(t, e.Error(), "status 502")
}

func TestRetryStopsWhenContextCanceledDuringBackoff(t *testing.T) {
	stub := &stubDoer{failures: 100, err: resetErr()}
	c := newTestClient(t, "https://managed.example.com", WithHTTPClient(stub))

	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	_, err := c.Get(ctx, "/events", nil)
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, KindCanceled, transportErr.Kind)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stub.calls)
}

func TestCanceledContextIsNotRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	delays := recordSleeps(c)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Get(ctx, "/events", nil)
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, KindCanceled, transportErr.Kind)
	assert.False(t, transportErr.Retryable())
	assert.Empty(t, *delays)
}

func TestDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `not json`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.ListProblems(context.Background(), ListProblemsParams{})
	require.Error(t, err)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "/problems", decodeErr.Path)
	assert.Equal(t, "not json", string(decodeErr.Body))
}

func TestTestConnection(t *testing.T) {
	tests := []struct {
		name      string
		statuses  map[string]int
		want      bool
		wantCalls int32
	}{
		{"first probe succeeds", map[string]int{"/eventProperties": 200}, true, 1},
		{"falls through to last probe", map[string]int{"/eventProperties": 404, "/eventTypes": 404, "/events": 200}, true, 3},
		{"unauthorized stops immediately", map[string]int{"/eventProperties": 401, "/eventTypes": 200}, false, 1},
		{"forbidden stops immediately", map[string]int{"/eventProperties": 403, "/eventTypes": 200}, false, 1},
		{"all probes fail", map[string]int{"/eventProperties": 500, "/eventTypes": 404, "/events": 503}, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				assert.Empty(t, r.URL.RawQuery)
				status, ok := tt.statuses[strings.TrimPrefix(r.URL.Path, "/e/env-1/api/v2")]
				if !ok {
					status = http.StatusNotFound
				}
				w.WriteHeader(status)
				_, _ = io.WriteString(w, `{}`)
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			assert.Equal(t, tt.want, c.TestConnection(context.Background()))
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestTestConnectionTransportFailure(t *testing.T) {
	stub := &stubDoer{failures: 100, err: resetErr()}
	c := newTestClient(t, "https://managed.example.com", WithHTTPClient(stub))
	recordSleeps(c)

	assert.False(t, c.TestConnection(context.Background()))
	// Three probes, each with one attempt plus three retries.
	assert.Equal(t, 12, stub.calls)
}

func TestClassifyTransportError(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		err  error
		want TransportErrorKind
	}{
		{"dns", &url.Error{Err: &net.DNSError{Err: "no such host", Name: "managed.invalid", IsNotFound: true}}, KindDNS},
		{"refused", &url.Error{Err: syscall.ECONNREFUSED}, KindConnectionRefused},
		{"reset", &url.Error{Err: syscall.ECONNRESET}, KindConnectionReset},
		{"eof", &url.Error{Err: io.EOF}, KindConnectionReset},
		{"deadline", &url.Error{Err: context.DeadlineExceeded}, KindTimeout},
		{"other", errors.New("tls: bad certificate"), KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyTransportError(ctx, tt.err))
		})
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, KindCanceled, classifyTransportError(canceled, syscall.ECONNRESET))
}

func TestConnectionRefusedIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := newTestClient(t, addr)
	delays := recordSleeps(c)

	_, err := c.Get(context.Background(), "/events", nil)
	require.Error(t, err)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, KindConnectionRefused, transportErr.Kind)
	assert.Len(t, *delays, 3)
}
