package dynatrace

import (
	"fmt"
	"net/http"
	"runtime"
)

const (
	ContentTypeJSON      = "application/json"
	ContentTypePlainText = "text/plain; charset=utf-8"

	DefaultServerName    = "dynatrace-managed-mcp"
	DefaultServerVersion = "1.0.0"
)

// Signer produces the headers attached to every outgoing request.
type Signer struct {
	apiToken  string
	userAgent string
}

// NewSigner creates a signer for the given API token and User-Agent.
func NewSigner(apiToken, userAgent string) Signer {
	if userAgent == "" {
		userAgent = DefaultUserAgent(DefaultServerName, DefaultServerVersion)
	}
	return Signer{apiToken: apiToken, userAgent: userAgent}
}

// Headers returns a fresh header set. An empty contentType means JSON.
func (s Signer) Headers(contentType string) http.Header {
	if contentType == "" {
		contentType = ContentTypeJSON
	}
	h := make(http.Header, 4)
	h.Set("Authorization", "Api-Token "+s.apiToken)
	h.Set("Content-Type", contentType)
	h.Set("Accept", ContentTypeJSON)
	h.Set("User-Agent", s.userAgent)
	return h
}

// Sign copies the signed headers onto req, replacing any existing values.
func (s Signer) Sign(req *http.Request, contentType string) {
	for k, v := range s.Headers(contentType) {
		req.Header[k] = v
	}
}

// UserAgent returns the User-Agent this signer sends.
func (s Signer) UserAgent() string {
	return s.userAgent
}

// DefaultUserAgent builds "name/version (Go goX.Y; os arch)".
func DefaultUserAgent(name, version string) string {
	if name == "" {
		name = DefaultServerName
	}
	if version == "" {
		version = DefaultServerVersion
	}
	return fmt.Sprintf("%s/%s (Go %s; %s %s)", name, version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
