package logging

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	panPattern     = regexp.MustCompile(`\b(?:\d{4}[ -]?){3}\d{4}\b`)
	ssnPattern     = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b|\b\d{9}\b`)
	jsonKeyPattern = regexp.MustCompile(`("(?:access_token|refresh_token|id_token|token|api_key|apiKey|apiToken|password|client_secret|secret)"\s*:\s*")([^"]*)(")`)
)

// MaskSecret keeps only the last 4 characters: "mysecrettoken123" becomes "xxxn123".
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "xxx" + s
	}
	return "xxx" + s[len(s)-4:]
}

// SanitizePII redacts card numbers, SSNs and secret-looking JSON values.
func SanitizePII(s string) string {
	s = panPattern.ReplaceAllString(s, "[PAN-REDACTED]")
	s = ssnPattern.ReplaceAllString(s, "[SSN-REDACTED]")
	return jsonKeyPattern.ReplaceAllStringFunc(s, func(m string) string {
		parts := jsonKeyPattern.FindStringSubmatch(m)
		return parts[1] + MaskSecret(parts[2]) + parts[3]
	})
}

// SanitizeAndMaskSecrets applies SanitizePII and masks every given secret verbatim.
func SanitizeAndMaskSecrets(s string, secrets ...string) string {
	s = SanitizePII(s)
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, MaskSecret(secret))
	}
	return s
}

func isSensitiveHeader(name string) bool {
	n := strings.ToLower(name)
	switch n {
	case "authorization", "proxy-authorization", "cookie", "set-cookie":
		return true
	}
	return strings.Contains(n, "token") || strings.Contains(n, "secret") || strings.Contains(n, "key")
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if isSensitiveHeader(k) {
			out[k] = MaskSecret(v)
		} else {
			out[k] = v
		}
	}
	return out
}

func formatHeaders(headers map[string]string) string {
	if len(headers) == 0 {
		return "{}"
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, headers[k]))
	}
	return "{" + strings.Join(parts, " ") + "}"
}

// HTTPRequestInfo describes an outgoing request for debug logging
type HTTPRequestInfo struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// HTTPResponseInfo describes a received response for debug logging
type HTTPResponseInfo struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}

// LogHTTPRequest logs a request at DEBUG level with headers and body sanitized.
func (l *Logger) LogHTTPRequest(context string, req *HTTPRequestInfo, secrets ...string) {
	if req == nil || !l.Enabled(LevelDebug) {
		return
	}
	l.Debug("HTTP_REQUEST context=%s method=%s url=%q headers=%s body=%q",
		context, req.Method, req.URL,
		formatHeaders(sanitizeHeaders(req.Headers)),
		SanitizeAndMaskSecrets(req.Body, secrets...))
}

// LogHTTPResponse logs a response at DEBUG level with headers and body sanitized.
func (l *Logger) LogHTTPResponse(context string, resp *HTTPResponseInfo, duration time.Duration, secrets ...string) {
	if resp == nil || !l.Enabled(LevelDebug) {
		return
	}
	l.Debug("HTTP_RESPONSE context=%s status=%d duration=%s headers=%s body=%q",
		context, resp.StatusCode, duration,
		formatHeaders(sanitizeHeaders(resp.Headers)),
		SanitizeAndMaskSecrets(resp.Body, secrets...))
}

// LogHTTPError logs a failed exchange at WARN level.
func (l *Logger) LogHTTPError(context string, req *HTTPRequestInfo, resp *HTTPResponseInfo, err error, secrets ...string) {
	if !l.Enabled(LevelWarn) {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP_ERROR context=%s", context)
	if req != nil {
		fmt.Fprintf(&b, " method=%s url=%q", req.Method, req.URL)
	}
	if resp != nil {
		fmt.Fprintf(&b, " status=%d body=%q", resp.StatusCode, SanitizeAndMaskSecrets(resp.Body, secrets...))
	}
	if err != nil {
		fmt.Fprintf(&b, " error=%q", SanitizeAndMaskSecrets(err.Error(), secrets...))
	}
	l.Warn("%s", b.String())
}

func LogHTTPRequest(context string, req *HTTPRequestInfo, secrets ...string) {
	if defaultLogger != nil {
		defaultLogger.LogHTTPRequest(context, req, secrets...)
	}
}

func LogHTTPResponse(context string, resp *HTTPResponseInfo, duration time.Duration, secrets ...string) {
	if defaultLogger != nil {
		defaultLogger.LogHTTPResponse(context, resp, duration, secrets...)
	}
}
