// Package mcpserver assembles the MCP server and runs it over stdio or HTTP.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/auth"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/logging"
)

const (
	// EndpointPath serves the streamable HTTP transport.
	EndpointPath    = "/mcp"
	shutdownTimeout = 5 * time.Second
)

// Options configures the MCP server
type Options struct {
	Name         string
	Version      string
	Instructions string
	Logger       *logging.Logger
	// Authorizer guards the HTTP endpoint. Nil allows every request.
	Authorizer auth.Authorizer
}

// Server wraps the mcp-go server with the transports used by the binary.
type Server struct {
	mcp        *server.MCPServer
	version    string
	logger     *logging.Logger
	authorizer auth.Authorizer
}

// New creates the server with tool, prompt and resource capabilities.
func New(opts Options) *Server {
	s := &Server{
		version:    opts.Version,
		logger:     opts.Logger,
		authorizer: opts.Authorizer,
	}
	if s.authorizer == nil {
		s.authorizer = auth.AllowAll{}
	}

	serverOpts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(s.toolCallMiddleware),
	}
	if opts.Instructions != "" {
		serverOpts = append(serverOpts, server.WithInstructions(opts.Instructions))
	}
	s.mcp = server.NewMCPServer(opts.Name, opts.Version, serverOpts...)
	return s
}

// MCP exposes the underlying server for tool, prompt and resource registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// toolCallMiddleware tags each call with a request ID and logs its outcome.
func (s *Server) toolCallMiddleware(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestID := uuid.NewString()
		s.logger.Debug("TOOL_START tool=%q request_id=%s", req.Params.Name, requestID)

		start := time.Now()
		result, err := next(ctx, req)
		success := err == nil && (result == nil || !result.IsError)
		s.logger.ToolCall(req.Params.Name, requestID, req.GetArguments(), time.Since(start), success)
		return result, err
	}
}

// ServeStdio runs the protocol on stdin/stdout until ctx is canceled or stdin closes.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(s.logger.StdLogger())
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handler returns the HTTP routes: /health without auth and the MCP endpoint at /mcp.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle(EndpointPath, server.NewStreamableHTTPServer(s.mcp, server.WithEndpointPath(EndpointPath)))
	return s.accessLog(auth.Middleware(s.authorizer, mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"version": s.version,
	})
}

// ServeHTTP listens on addr until ctx is canceled, then drains in-flight requests.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.serve(ctx, ln)
}

func (s *Server) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          s.logger.StdLogger(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP shutdown: %w", err)
		}
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Access("HTTP method=%s path=%s status=%d duration=%s remote=%s",
			r.Method, r.URL.Path, rec.status, time.Since(start), r.RemoteAddr)
	})
}
