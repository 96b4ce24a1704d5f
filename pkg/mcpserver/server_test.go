package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/auth"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/logging"
)

const initializeRequest = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test-client","version":"1.0.0"}}}`

// newTestServer creates a server with a single echo tool.
func newTestServer(t *testing.T, logger *logging.Logger, authorizer auth.Authorizer) *Server {
	t.Helper()

	s := New(Options{
		Name:       "Test MCP Server",
		Version:    "1.0.0-test",
		Logger:     logger,
		Authorizer: authorizer,
	})
	s.MCP().AddTool(mcp.NewTool("echo",
		mcp.WithDescription("A test tool for integration testing"),
		mcp.WithString("message", mcp.Description("A test message")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		msg, _ := req.GetArguments()["message"].(string)
		if msg == "" {
			return mcp.NewToolResultError("message is required"), nil
		}
		return mcp.NewToolResultText("Echo: " + msg), nil
	})
	return s
}

func callTool(t *testing.T, s *Server, args string) mcp.JSONRPCMessage {
	t.Helper()
	msg := `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":` + args + `}}`
	return s.MCP().HandleMessage(context.Background(), json.RawMessage(msg))
}

func postJSON(t *testing.T, url, body, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestToolCallMiddlewareLogs(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServer(t, logging.NewWriterLogger(&buf, logging.LevelInfo), nil)

	resp := callTool(t, s, `{"message":"hi"}`)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), "Echo: hi")

	logged := buf.String()
	assert.Contains(t, logged, `TOOL_CALL tool="echo"`)
	assert.Contains(t, logged, "args=[message]")
	assert.Contains(t, logged, "success=true")
	assert.NotContains(t, logged, "hi\"", "argument values must not be logged")
}

func TestToolCallMiddlewareMarksErrorResults(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServer(t, logging.NewWriterLogger(&buf, logging.LevelInfo), nil)

	callTool(t, s, `{}`)
	assert.Contains(t, buf.String(), "success=false")
}

func TestToolCallMiddlewareNilLogger(t *testing.T) {
	s := newTestServer(t, nil, nil)
	assert.NotPanics(t, func() { callTool(t, s, `{"message":"x"}`) })
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, logging.NewWriterLogger(io.Discard, logging.LevelInfo), auth.NewStaticToken("s3cret"))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "1.0.0-test", body["version"])
}

func TestHTTPEndpointAuth(t *testing.T) {
	s := newTestServer(t, logging.NewWriterLogger(io.Discard, logging.LevelInfo), auth.NewStaticToken("s3cret"))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"wrong token", "nope", http.StatusUnauthorized},
		{"valid token", "s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+EndpointPath, initializeRequest, tt.token)
			defer resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHTTPInitialize(t *testing.T) {
	s := newTestServer(t, logging.NewWriterLogger(io.Discard, logging.LevelInfo), nil)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp := postJSON(t, ts.URL+EndpointPath, initializeRequest, "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"serverInfo"`)
	assert.Contains(t, string(body), "Test MCP Server")
	assert.Contains(t, string(body), `"tools"`)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, logging.NewWriterLogger(io.Discard, logging.LevelInfo), nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * shutdownTimeout):
		t.Fatal("server did not shut down")
	}
}
