package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/auth"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/config"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/dynatrace"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/logging"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/mcpserver"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/prompts"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/reference"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/tools"
)

const (
	AppName = "dynatrace-managed-mcp"
	Version = "1.1.0"

	connectionTestTimeout = 30 * time.Second
)

// Exit codes
const (
	exitError            = 1
	exitConnectionFailed = 2
)

const serverInstructions = `Tools for a Dynatrace Managed environment through the REST API v2.
Start with get_environment_info to confirm connectivity.
Read selector://reference before writing entity, problem, event or metric selectors.
Time frames accept relative values such as now-2h or ISO 8601 timestamps.`

type options struct {
	logDir             string
	logLevel           string
	logStderr          bool
	httpMode           bool
	host               string
	port               int
	skipConnectionTest bool
	showVersion        bool
}

// exitCodeError carries a process exit code through cobra.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var exitErr *exitCodeError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}
		os.Exit(exitError)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   AppName,
		Short: "MCP server for Dynatrace Managed",
		Long: `A Model Context Protocol (MCP) server that exposes a Dynatrace Managed
environment to LLMs through the REST API v2.

ENVIRONMENT VARIABLES (Required):
    DYNATRACE_MANAGED_URL       Cluster URL, e.g. https://managed.example.com
    DYNATRACE_ENVIRONMENT_ID    Environment ID inside the cluster
    DYNATRACE_API_TOKEN         API token (Api-Token scheme)

ENVIRONMENT VARIABLES (Optional):
    REQUEST_TIMEOUT             Per-attempt timeout in milliseconds (default: 30000)
    MAX_RETRIES                 Retries for network failures (default: 3)
    MCP_SERVER_NAME             Server name reported to clients
    MCP_SERVER_VERSION          Server version reported to clients
    MCP_LOG_DIR                 Log directory (default: ~/dynatrace-managed-mcp/logs)
    MCP_LOG_LEVEL               off, error, warn, info, access, debug (default: info)
    MCP_LOG_STDERR              Mirror logs to stderr (default: false)
    MCP_HTTP_AUTH_TOKEN         Bearer token required by the HTTP transport

Variables are also read from ./.env and ~/.mcp_env. Values already set in the
environment win over file values, and flags win over both.`,
		Example: `  # Run over stdio
  ` + AppName + `

  # Run in HTTP mode with debug logging
  ` + AppName + ` --http --port 8080 --log-level debug`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showVersion {
				fmt.Printf("%s version %s\n", AppName, Version)
				return nil
			}
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.logDir, "log-dir", "", "Directory for log files, or - for stderr only (env: MCP_LOG_DIR)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level: off, error, warn, info, access, debug (env: MCP_LOG_LEVEL)")
	flags.BoolVar(&opts.logStderr, "log-stderr", false, "Mirror log output to stderr (env: MCP_LOG_STDERR)")
	flags.BoolVar(&opts.httpMode, "http", false, "Run in HTTP mode instead of stdio")
	flags.StringVar(&opts.host, "host", "127.0.0.1", "Host for HTTP server")
	flags.IntVarP(&opts.port, "port", "p", 3000, "Port for HTTP server")
	flags.BoolVar(&opts.skipConnectionTest, "skip-connection-test", false, "Start even if the cluster cannot be reached")
	flags.BoolVar(&opts.showVersion, "version", false, "Show version information")

	return cmd
}

// resolve picks the flag value when it was set, otherwise the env value when present.
func resolve(cmd *cobra.Command, flag, flagValue, envKey, envValue, defaultValue string) logging.ConfigValue {
	if cmd.Flags().Changed(flag) {
		return logging.ConfigValue{Value: flagValue, Source: logging.SourceFlag}
	}
	if config.Source(envKey) == logging.SourceEnvironment && envValue != "" {
		return logging.ConfigValue{Value: envValue, Source: logging.SourceEnvironment}
	}
	return logging.ConfigValue{Value: defaultValue, Source: logging.SourceDefault}
}

func run(cmd *cobra.Command, opts options) error {
	loaded, err := config.LoadEnvFiles(config.DefaultEnvFiles()...)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logDir := resolve(cmd, "log-dir", opts.logDir, config.EnvLogDir, cfg.LogDir, logging.DefaultLogDir(AppName))
	logLevel := resolve(cmd, "log-level", opts.logLevel, config.EnvLogLevel, cfg.LogLevel, "info")
	logStderr := cfg.LogToStderr
	if cmd.Flags().Changed("log-stderr") {
		logStderr = opts.logStderr
	}

	if err := logging.Init(logging.Config{
		LogDir:  logDir.Value,
		AppName: AppName,
		Level:   logging.ParseLogLevel(logLevel.Value),
		Stderr:  logStderr,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger := logging.GetLogger()
	defer logger.Close()

	transport := "stdio"
	addr := net.JoinHostPort(opts.host, strconv.Itoa(opts.port))
	if opts.httpMode {
		transport = "http " + addr
	}

	logger.LogStartup(logging.GetStartupInfo(
		Version,
		logDir,
		logLevel,
		logging.ConfigValue{Value: cfg.URL, Source: config.Source(config.EnvClusterURL)},
		logging.ConfigValue{Value: cfg.EnvironmentID, Source: config.Source(config.EnvEnvironmentID)},
		cfg.Timeout(),
		cfg.MaxRetries,
		transport,
	))
	for _, f := range loaded {
		logger.Info("Loaded environment file: %s", f)
	}

	fmt.Fprintf(os.Stderr, "Initializing Dynatrace Managed MCP Server v%s...\n", Version)

	client, err := dynatrace.NewClient(cfg.ClientConfig(logger))
	if err != nil {
		logger.Error("Failed to create Dynatrace client: %v", err)
		return fmt.Errorf("failed to create Dynatrace client: %w", err)
	}

	if opts.skipConnectionTest {
		logger.Warn("Connection test skipped")
	} else {
		fmt.Fprintf(os.Stderr, "Testing connection to %s...\n", client.GetBaseURL())
		ctx, cancel := context.WithTimeout(cmd.Context(), connectionTestTimeout)
		ok := client.TestConnection(ctx)
		cancel()
		if !ok {
			logger.LogShutdown("connection test failed")
			return &exitCodeError{
				code: exitConnectionFailed,
				err:  fmt.Errorf("cannot reach Dynatrace environment at %s; check URL, environment ID and token scopes", client.GetBaseURL()),
			}
		}
		fmt.Fprintf(os.Stderr, "✅ Successfully connected to %s\n", client.GetBaseURL())
	}

	srv := mcpserver.New(mcpserver.Options{
		Name:         cfg.ServerName,
		Version:      cfg.ServerVersion,
		Instructions: serverInstructions,
		Logger:       logger,
		Authorizer:   auth.NewStaticToken(cfg.HTTPAuthToken),
	})

	registry := tools.NewRegistry(tools.Config{Client: client, Logger: logger})
	registry.RegisterAll(srv.MCP())

	prompts.NewRegistry().Register(srv.MCP())

	refProvider := reference.NewProvider()
	refProvider.Register(srv.MCP())
	switch {
	case refProvider.HasOverride():
		logger.Info("Selector reference: using custom override file")
	case refProvider.HasCustomExtensions():
		logger.Info("Selector reference: loaded custom extensions")
	default:
		logger.Info("Selector reference: using embedded default")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.httpMode {
		if cfg.HTTPAuthToken == "" && !isLoopback(opts.host) {
			logger.Warn("HTTP transport on %s has no %s set; every client is allowed", opts.host, config.EnvHTTPAuthToken)
		}
		fmt.Fprintf(os.Stderr, "Dynatrace Managed MCP Server listening on http://%s%s\n", addr, mcpserver.EndpointPath)
		err = srv.ServeHTTP(ctx, addr)
	} else {
		fmt.Fprintf(os.Stderr, "Dynatrace Managed MCP Server running on stdio\n")
		err = srv.ServeStdio(ctx)
	}

	if err != nil {
		logger.Error("Server error: %v", err)
		logger.LogShutdown(fmt.Sprintf("error: %v", err))
		return err
	}
	if ctx.Err() != nil {
		logger.LogShutdown("received signal")
	} else {
		logger.LogShutdown("normal exit")
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
