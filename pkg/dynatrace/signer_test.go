package dynatrace

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerHeaders(t *testing.T) {
	s := NewSigner("tok", "agent/2")
	h := s.Headers("")
	assert.Equal(t, "Api-Token tok", h.Get("Authorization"))
	assert.Equal(t, ContentTypeJSON, h.Get("Content-Type"))
	assert.Equal(t, ContentTypeJSON, h.Get("Accept"))
	assert.Equal(t, "agent/2", h.Get("User-Agent"))

	assert.Equal(t, ContentTypePlainText, s.Headers(ContentTypePlainText).Get("Content-Type"))
	assert.Equal(t, s.Headers(""), s.Headers(""), "headers must be identical across calls")
}

func TestSignerSignOverridesExisting(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://x/api", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer stale")

	NewSigner("tok", "").Sign(req, "")
	assert.Equal(t, []string{"Api-Token tok"}, req.Header.Values("Authorization"))
	assert.True(t, strings.HasPrefix(req.Header.Get("User-Agent"), DefaultServerName+"/"))
}

func TestDefaultUserAgent(t *testing.T) {
	ua := DefaultUserAgent("srv", "2.0.0")
	assert.True(t, strings.HasPrefix(ua, "srv/2.0.0 (Go go"), ua)
	assert.True(t, strings.HasPrefix(DefaultUserAgent("", ""), DefaultServerName+"/"+DefaultServerVersion))
}
