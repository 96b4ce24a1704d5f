package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/config"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/logging"
)

func TestResolvePrecedence(t *testing.T) {
	t.Setenv(config.EnvLogLevel, "warn")

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "debug"}))
	got := resolve(cmd, "log-level", "debug", config.EnvLogLevel, "warn", "info")
	assert.Equal(t, logging.ConfigValue{Value: "debug", Source: logging.SourceFlag}, got)

	cmd = newRootCmd()
	require.NoError(t, cmd.ParseFlags(nil))
	got = resolve(cmd, "log-level", "info", config.EnvLogLevel, "warn", "info")
	assert.Equal(t, logging.ConfigValue{Value: "warn", Source: logging.SourceEnvironment}, got)

	got = resolve(cmd, "log-dir", "", config.EnvLogDir, "", "/default")
	assert.Equal(t, logging.ConfigValue{Value: "/default", Source: logging.SourceDefault}, got)
}

func TestRootCmdFlags(t *testing.T) {
	flags := newRootCmd().Flags()

	for name, want := range map[string]string{
		"host":                 "127.0.0.1",
		"port":                 "3000",
		"log-level":            "info",
		"http":                 "false",
		"skip-connection-test": "false",
	} {
		f := flags.Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, want, f.DefValue, name)
	}
}

func TestVersionNeedsNoConfig(t *testing.T) {
	t.Setenv(config.EnvClusterURL, "")

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--version"})
	assert.NoError(t, cmd.Execute())
}

func TestExitCodeError(t *testing.T) {
	err := error(&exitCodeError{code: exitConnectionFailed, err: errors.New("unreachable")})

	var exitErr *exitCodeError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.code)
	assert.EqualError(t, err, "unreachable")
}

func TestIsLoopback(t *testing.T) {
	assert.True(t, isLoopback("127.0.0.1"))
	assert.True(t, isLoopback("localhost"))
	assert.True(t, isLoopback("::1"))
	assert.False(t, isLoopback("0.0.0.0"))
	assert.False(t, isLoopback("example.com"))
}
