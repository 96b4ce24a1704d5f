package dynatrace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/logging"
)

const (
	DefaultTimeout = 30 * time.Second
	apiPathPrefix  = "/api/v2"
)

// connectionProbes are cheap read endpoints available on every Managed cluster version
// we support; some older clusters lack one or two of them.
var connectionProbes = []string{"/eventProperties", "/eventTypes", "/events"}

// HTTPDoer is the transport used by the client. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the Dynatrace Managed API v2 client
type Client struct {
	httpClient    HTTPDoer
	baseURL       string
	environmentID string
	signer        Signer
	retry         RetryPolicy
	logger        *logging.Logger

	// sleep waits between retries; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Config holds client configuration
type Config struct {
	// URL is the cluster address, e.g. https://managed.example.com
	URL           string
	EnvironmentID string
	APIToken      string
	// Timeout bounds a single attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// MaxRetries is the number of retries on transport errors. Zero disables retries.
	MaxRetries int
	UserAgent  string
	Logger     *logging.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// WithRetryPolicy overrides the retry policy derived from Config.MaxRetries.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// NewClient creates a new Dynatrace Managed client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("cluster URL is required")
	}
	if cfg.EnvironmentID == "" {
		return nil, fmt.Errorf("environment ID is required")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("API token is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative, got %d", cfg.MaxRetries)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       BaseURL(cfg.URL, cfg.EnvironmentID),
		environmentID: cfg.EnvironmentID,
		signer:        NewSigner(cfg.APIToken, cfg.UserAgent),
		retry:         RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: DefaultBaseDelay},
		logger:        cfg.Logger,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns {clusterURL}/e/{environmentID}/api/v2.
func BaseURL(clusterURL, environmentID string) string {
	return strings.TrimSuffix(clusterURL, "/") + "/e/" + url.PathEscape(environmentID) + apiPathPrefix
}

// GetBaseURL returns the API base URL
func (c *Client) GetBaseURL() string {
	return c.baseURL
}

// RequestOptions carries per-call query parameters and header overrides.
type RequestOptions struct {
	Query   url.Values
	Headers map[string]string
	// ContentType overrides application/json.
	ContentType string
	// RawBody is sent as-is instead of JSON-encoding the body argument.
	RawBody []byte
}

// Response is a received 2xx/3xx response with its body fully read.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	path string
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return &DecodeError{Path: r.path, Body: r.Body, Err: err}
	}
	return nil
}

// Get issues a GET request against path relative to the base URL.
func (c *Client) Get(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts)
}

// Post issues a POST request. body is JSON-encoded unless opts.RawBody is set.
func (c *Client) Post(ctx context.Context, path string, body interface{}, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts)
}

// Put issues a PUT request.
func (c *Client) Put(ctx context.Context, path string, body interface{}, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts *RequestOptions) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts)
}

// Do sends one logical request, retrying transport failures according to the retry policy.
// Any HTTP status of 400 or above is returned immediately as *HTTPStatusError.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}

	payload, contentType, err := encodeBody(body, opts)
	if err != nil {
		return nil, err
	}
	fullURL := c.buildURL(path, opts.Query)

	for attempt := 0; ; attempt++ {
		resp, err := c.doRequest(ctx, method, fullURL, path, payload, contentType, opts.Headers, attempt)

		decision := c.retry.Decide(err, attempt)
		switch decision.State {
		case StateSuccess:
			return resp, nil
		case StateRetryScheduled:
			c.logger.APIRetry(method, path, attempt+1, decision.Delay, err)
			if waitErr := c.sleep(ctx, decision.Delay); waitErr != nil {
				return nil, &TransportError{Method: method, URL: fullURL, Attempt: attempt, Kind: KindCanceled, Err: waitErr}
			}
		case StateExhausted:
			c.logger.Warn("API_RETRY_EXHAUSTED method=%s endpoint=%q attempts=%d error=%q", method, path, attempt+1, err.Error())
			return nil, err
		default:
			return nil, err
		}
	}
}

// doRequest performs a single attempt.
func (c *Client) doRequest(ctx context.Context, method, fullURL, path string, payload []byte, contentType string, extra map[string]string, attempt int) (*Response, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.signer.Sign(req, contentType)
	for k, v := range extra {
		req.Header.Set(k, v)
	}

	c.logger.Access("API_CALL method=%s url=%q attempt=%d", method, fullURL, attempt+1)
	c.logger.LogHTTPRequest("api_request", &logging.HTTPRequestInfo{
		Method:  method,
		URL:     fullURL,
		Headers: flattenHeader(req.Header),
		Body:    string(payload),
	})

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		transportErr := &TransportError{
			Method:  method,
			URL:     fullURL,
			Attempt: attempt,
			Kind:    classifyTransportError(ctx, err),
			Err:     err,
		}
		c.logger.APIRequest(method, path, 0, duration, transportErr)
		return nil, transportErr
	}
	defer resp.Body.Close()

	body, err := c.readAndLogBody(resp, duration)
	if err != nil {
		c.logger.APIRequest(method, path, resp.StatusCode, duration, err)
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	c.logger.APIRequest(method, path, resp.StatusCode, duration, nil)

	if resp.StatusCode >= http.StatusBadRequest {
		statusErr := newHTTPStatusError(method, fullURL, resp.StatusCode, body)
		c.logAPIError(method, fullURL, resp.StatusCode, body, statusErr)
		return nil, statusErr
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		path:       path,
	}, nil
}

// readAndLogBody reads the response body and logs it at DEBUG level.
func (c *Client) readAndLogBody(resp *http.Response, duration time.Duration) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.LogHTTPResponse("api_response", &logging.HTTPResponseInfo{
		StatusCode: resp.StatusCode,
		Headers:    flattenHeader(resp.Header),
		Body:       string(body),
	}, duration)
	return body, nil
}

// logAPIError logs API errors with request/response details
func (c *Client) logAPIError(method, fullURL string, statusCode int, body []byte, err error) {
	c.logger.LogHTTPError("api_error", &logging.HTTPRequestInfo{
		Method: method,
		URL:    fullURL,
	}, &logging.HTTPResponseInfo{
		StatusCode: statusCode,
		Body:       string(body),
	}, err)
}

func (c *Client) buildURL(path string, query url.Values) string {
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	full := c.baseURL + path
	if len(query) == 0 {
		return full
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return full + sep + query.Encode()
}

func encodeBody(body interface{}, opts *RequestOptions) ([]byte, string, error) {
	if opts.RawBody != nil {
		contentType := opts.ContentType
		if contentType == "" {
			contentType = ContentTypePlainText
		}
		return opts.RawBody, contentType, nil
	}
	if body == nil {
		return nil, opts.ContentType, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
	}
	return payload, opts.ContentType, nil
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

// TestConnection probes a short list of endpoints. It succeeds on the first 2xx,
// fails immediately on 401/403, and otherwise moves on to the next candidate.
func (c *Client) TestConnection(ctx context.Context) bool {
	for _, path := range connectionProbes {
		_, err := c.Get(ctx, path, nil)
		if err == nil {
			c.logger.Info("CONNECTION_TEST endpoint=%q result=ok", path)
			return true
		}
		if IsAuthError(err) {
			c.logger.Error("CONNECTION_TEST endpoint=%q result=auth_failed status=%d", path, StatusCode(err))
			return false
		}
		c.logger.Warn("CONNECTION_TEST endpoint=%q result=failed error=%q", path, err.Error())
		if ctx.Err() != nil {
			return false
		}
	}
	return false
}
