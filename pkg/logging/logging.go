package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message
type LogLevel int

// ConfigSource indicates where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceEnvironment ConfigSource = "environment"
	SourceFlag        ConfigSource = "flag"
)

const (
	LevelOff LogLevel = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelAccess
	LevelDebug
)

// StderrLogDir selects stderr as the only sink instead of a log file.
const StderrLogDir = "-"

func (l LogLevel) String() string {
	switch l {
	case LevelOff:
		return "OFF"
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelAccess:
		return "ACCESS"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off":
		return LevelOff
	case "error":
		return LevelError
	case "warn", "warning":
		return LevelWarn
	case "info":
		return LevelInfo
	case "access":
		return LevelAccess
	case "debug":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// Logger writes leveled diagnostics to a daily log file and optionally stderr.
// It never writes to stdout, which carries the MCP stdio protocol.
type Logger struct {
	mu        sync.Mutex
	level     LogLevel
	zl        *zap.Logger
	access    *zap.Logger
	file      *os.File
	logDir    string
	appName   string
	startTime time.Time
}

type Config struct {
	LogDir  string
	AppName string
	Level   LogLevel
	// Stderr mirrors every line to stderr.
	Stderr bool
}

var (
	defaultLogger *Logger
	once          sync.Once
)

func DefaultLogDir(appName string) string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", appName, "logs")
	}
	return filepath.Join(homeDir, appName, "logs")
}

// Init creates the process-wide logger used by the package-level functions.
func Init(cfg Config) error {
	var initErr error
	once.Do(func() {
		defaultLogger, initErr = NewLogger(cfg)
	})
	return initErr
}

func NewLogger(cfg Config) (*Logger, error) {
	if cfg.AppName == "" {
		cfg.AppName = "dynatrace-managed-mcp"
	}

	if cfg.LogDir == StderrLogDir {
		l := NewWriterLogger(os.Stderr, cfg.Level)
		l.appName = cfg.AppName
		l.logDir = StderrLogDir
		return l, nil
	}

	logDir := cfg.LogDir
	if logDir == "" {
		logDir = DefaultLogDir(cfg.AppName)
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	timestamp := time.Now().Format("2006-01-02")
	logFileName := fmt.Sprintf("%s-%s.log", cfg.AppName, timestamp)
	logPath := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(file)}
	if cfg.Stderr {
		sinks = append(sinks, zapcore.Lock(os.Stderr))
	}

	l := newLogger(zapcore.NewMultiWriteSyncer(sinks...), cfg.Level)
	l.file = file
	l.logDir = logDir
	l.appName = cfg.AppName
	return l, nil
}

// NewWriterLogger logs to w only. Used for stderr-only mode and in tests.
func NewWriterLogger(w io.Writer, level LogLevel) *Logger {
	return newLogger(zapcore.Lock(zapcore.AddSync(w)), level)
}

func newLogger(ws zapcore.WriteSyncer, level LogLevel) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	// Level gating happens in Logger.log so the ACCESS level can sit between INFO and DEBUG.
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, zapcore.DebugLevel)
	zl := zap.New(core)

	return &Logger{
		level:     level,
		zl:        zl,
		access:    zl.Named("access"),
		startTime: time.Now(),
	}
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.zl.Sync()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	if l == nil || l.zl == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return level != LevelOff && level <= l.level
}

// LogDir returns the directory holding the log file, or "-" for stderr.
func (l *Logger) LogDir() string {
	return l.logDir
}

// Zap exposes the underlying zap logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	if l == nil || l.zl == nil {
		return zap.NewNop()
	}
	return l.zl
}

// StdLogger adapts the logger to *log.Logger at ERROR level.
func (l *Logger) StdLogger() *log.Logger {
	std, err := zap.NewStdLogAt(l.Zap(), zapcore.ErrorLevel)
	if err != nil {
		return log.New(os.Stderr, "", log.LstdFlags)
	}
	return std
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	message := fmt.Sprintf(format, args...)
	switch level {
	case LevelError:
		l.zl.Error(message)
	case LevelWarn:
		l.zl.Warn(message)
	case LevelInfo:
		l.zl.Info(message)
	case LevelAccess:
		l.access.Info(message)
	case LevelDebug:
		l.zl.Debug(message)
	}
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Access(format string, args ...interface{}) {
	l.log(LevelAccess, format, args...)
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// API operations logging (no sensitive data)
func (l *Logger) APIRequest(method, endpoint string, statusCode int, duration time.Duration, err error) {
	if err != nil {
		l.Access("API_REQUEST method=%s endpoint=%q status=%d duration=%s error=%q", method, endpoint, statusCode, duration, err.Error())
	} else {
		l.Access("API_REQUEST method=%s endpoint=%q status=%d duration=%s", method, endpoint, statusCode, duration)
	}
}

// APIRetry records a scheduled retry after a transport failure.
func (l *Logger) APIRetry(method, endpoint string, retry int, delay time.Duration, err error) {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	l.Warn("API_RETRY method=%s endpoint=%q retry=%d delay=%s error=%q", method, endpoint, retry, delay, reason)
}

func (l *Logger) ToolCall(toolName, requestID string, args map[string]interface{}, duration time.Duration, success bool) {
	argKeys := make([]string, 0, len(args))
	for k := range args {
		argKeys = append(argKeys, k)
	}
	sort.Strings(argKeys)
	l.Info("TOOL_CALL tool=%q request_id=%s args=%v duration=%s success=%v", toolName, requestID, argKeys, duration, success)
}

// ConfigValue holds a configuration value and its source
type ConfigValue struct {
	Value  string
	Source ConfigSource
}

type StartupInfo struct {
	Version       string
	GoVersion     string
	OS            string
	Arch          string
	NumCPU        int
	LogDir        ConfigValue
	LogLevel      ConfigValue
	ClusterURL    ConfigValue
	EnvironmentID ConfigValue
	Timeout       time.Duration
	MaxRetries    int
	Transport     string
	PID           int
	StartTime     time.Time
}

func (l *Logger) LogStartup(info StartupInfo) {
	if l == nil {
		return
	}
	l.Info("========================================")
	l.Info("SERVER STARTUP")
	l.Info("========================================")
	l.Info("Application: %s", l.appName)
	l.Info("Version: %s", info.Version)
	l.Info("Go Version: %s", info.GoVersion)
	l.Info("OS: %s", info.OS)
	l.Info("Architecture: %s", info.Arch)
	l.Info("Number of CPUs: %d", info.NumCPU)
	l.Info("Process ID: %d", info.PID)
	l.Info("Start Time: %s", info.StartTime.Format(time.RFC3339))
	l.Info("----------------------------------------")
	l.Info("CONFIGURATION (value [source])")
	l.Info("----------------------------------------")
	l.Info("Log Directory: %s [%s]", info.LogDir.Value, info.LogDir.Source)
	l.Info("Log Level: %s [%s]", info.LogLevel.Value, info.LogLevel.Source)
	l.Info("Cluster URL: %s [%s]", info.ClusterURL.Value, info.ClusterURL.Source)
	l.Info("Environment ID: %s [%s]", info.EnvironmentID.Value, info.EnvironmentID.Source)
	l.Info("Request Timeout: %s", info.Timeout)
	l.Info("Max Retries: %d", info.MaxRetries)
	l.Info("Transport: %s", info.Transport)
	l.Info("========================================")
}

func (l *Logger) LogShutdown(reason string) {
	if l == nil {
		return
	}
	uptime := time.Since(l.startTime)
	l.Info("========================================")
	l.Info("SERVER SHUTDOWN")
	l.Info("========================================")
	l.Info("Reason: %s", reason)
	l.Info("Uptime: %s", uptime)
	l.Info("========================================")
}

func GetLogger() *Logger {
	return defaultLogger
}

func GetStartupInfo(version string, logDir, logLevel, clusterURL, environmentID ConfigValue, timeout time.Duration, maxRetries int, transport string) StartupInfo {
	return StartupInfo{
		Version:       version,
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
		NumCPU:        runtime.NumCPU(),
		LogDir:        logDir,
		LogLevel:      logLevel,
		ClusterURL:    clusterURL,
		EnvironmentID: environmentID,
		Timeout:       timeout,
		MaxRetries:    maxRetries,
		Transport:     transport,
		PID:           os.Getpid(),
		StartTime:     time.Now(),
	}
}

// Global convenience functions

func Error(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Error(format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Warn(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Info(format, args...)
	}
}

func Access(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Access(format, args...)
	}
}

func Debug(format string, args ...interface{}) {
	if defaultLogger != nil {
		defaultLogger.Debug(format, args...)
	}
}
