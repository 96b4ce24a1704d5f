package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/dynatrace"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/logging"
)

// Config holds configuration options for the tool registry
type Config struct {
	Client *dynatrace.Client
	Logger *logging.Logger
}

// Registry holds all tool registrations
type Registry struct {
	client *dynatrace.Client
	logger *logging.Logger
	names  []string
}

// NewRegistry creates a new tool registry
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		client: cfg.Client,
		logger: cfg.Logger,
	}
}

// RegisterAll registers all tools with the MCP server
func (r *Registry) RegisterAll(s *server.MCPServer) {
	r.registerEnvironmentTools(s)
	r.registerProblemTools(s)
	r.registerCommentTools(s)
	r.registerEntityTools(s)
	r.registerTagTools(s)
	r.registerEventTools(s)
	r.registerMetricTools(s)
	r.registerAuditLogTools(s)
	r.registerLogTools(s)
	r.registerSecurityTools(s)

	r.logger.Info("Registered %d tools", len(r.names))
}

// Names lists the registered tools in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (r *Registry) add(s *server.MCPServer, tool mcp.Tool, handler server.ToolHandlerFunc) {
	r.names = append(r.names, tool.Name)
	s.AddTool(tool, handler)
}

type toolKind int

const (
	readTool toolKind = iota
	writeTool
	deleteTool
)

// newTool fills in description and behavior annotations shared by every tool.
func newTool(name, title, description string, kind toolKind, opts ...mcp.ToolOption) mcp.Tool {
	base := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithTitleAnnotation(title),
		mcp.WithReadOnlyHintAnnotation(kind == readTool),
		mcp.WithDestructiveHintAnnotation(kind == deleteTool),
		mcp.WithIdempotentHintAnnotation(kind != writeTool),
		mcp.WithOpenWorldHintAnnotation(true),
	}
	return mcp.NewTool(name, append(base, opts...)...)
}

// Common argument declarations

func formatOption() mcp.ToolOption {
	return mcp.WithString("format",
		mcp.Description("Output format: 'markdown' (default, summarized), 'json' or 'yaml' (full API response)."),
		mcp.Enum(formatMarkdown, formatJSON, formatYAML),
	)
}

func pageSizeOption(max int) mcp.ToolOption {
	return mcp.WithNumber("pageSize",
		mcp.Description(fmt.Sprintf("Number of results per page. Range: 1-%d.", max)),
		mcp.Min(1),
		mcp.Max(float64(max)),
	)
}

func nextPageKeyOption() mcp.ToolOption {
	return mcp.WithString("nextPageKey",
		mcp.Description("Cursor from a previous response. When set, all other query arguments are ignored."),
	)
}

func fromOption() mcp.ToolOption {
	return mcp.WithString("from",
		mcp.Description("Start of the timeframe: ISO 8601, epoch milliseconds or relative like 'now-2h'."),
	)
}

func toOption() mcp.ToolOption {
	return mcp.WithString("to",
		mcp.Description("End of the timeframe: ISO 8601, epoch milliseconds or relative like 'now'. Defaults to now."),
	)
}

// Result helpers

func textResult(text string) *mcp.CallToolResult {
	return mcp.NewToolResultText(text)
}

func errorResult(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError("Error: " + message)
}

func invalidArgs(format string, args ...interface{}) *mcp.CallToolResult {
	return errorResult("Invalid arguments: " + fmt.Sprintf(format, args...))
}

// apiError renders a failed API call; action reads like "list problems".
func apiError(action string, err error) *mcp.CallToolResult {
	msg := fmt.Sprintf("Failed to %s: %s", action, describeError(err))
	switch {
	case errors.Is(err, dynatrace.ErrUnauthorized):
		msg += "\nCheck that DYNATRACE_API_TOKEN is valid and has not expired."
	case errors.Is(err, dynatrace.ErrForbidden):
		msg += "\nThe API token is missing a scope required by this endpoint."
	case errors.Is(err, dynatrace.ErrNotFound):
		msg += "\nThe requested object does not exist in this environment."
	}
	return errorResult(msg)
}

func describeError(err error) string {
	var statusErr *dynatrace.HTTPStatusError
	if errors.As(err, &statusErr) {
		if m := statusErr.Message(); m != "" {
			return fmt.Sprintf("%d - %s", statusErr.StatusCode, m)
		}
		return fmt.Sprintf("%d", statusErr.StatusCode)
	}
	var transportErr *dynatrace.TransportError
	if errors.As(err, &transportErr) {
		return fmt.Sprintf("%s error after %d attempt(s): %v", transportErr.Kind, transportErr.Attempt+1, transportErr.Err)
	}
	return err.Error()
}

// Argument helpers

func getString(args map[string]interface{}, key string, defaultVal string) string {
	if val, ok := args[key].(string); ok {
		return strings.TrimSpace(val)
	}
	return defaultVal
}

func getInt(args map[string]interface{}, key string, defaultVal int) int {
	switch val := args[key].(type) {
	case float64:
		return int(val)
	case int:
		return val
	case int64:
		return int(val)
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return int(n)
		}
	}
	return defaultVal
}

func getFloat(args map[string]interface{}, key string) (float64, bool) {
	switch val := args[key].(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	}
	return 0, false
}

func getBool(args map[string]interface{}, key string, defaultVal bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultVal
}

func getStringSlice(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case []interface{}:
		result := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok {
				result = append(result, s)
			}
		}
		return result
	case []string:
		return val
	}
	return nil
}

// getStringMap accepts an object whose values are scalars and stringifies them.
func getStringMap(args map[string]interface{}, key string) map[string]string {
	obj, ok := args[key].(map[string]interface{})
	if !ok || len(obj) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case string:
			out[k] = t
		case nil:
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}

func requireString(args map[string]interface{}, key string) (string, *mcp.CallToolResult) {
	v := getString(args, key, "")
	if v == "" {
		return "", invalidArgs("%s is required", key)
	}
	return v, nil
}

func pageArgs(args map[string]interface{}, max int) (dynatrace.Page, *mcp.CallToolResult) {
	p := dynatrace.Page{
		PageSize:    getInt(args, "pageSize", 0),
		NextPageKey: getString(args, "nextPageKey", ""),
	}
	if _, set := args["pageSize"]; set && (p.PageSize < 1 || p.PageSize > max) {
		return p, invalidArgs("pageSize must be between 1 and %d", max)
	}
	return p, nil
}

func timeframeArgs(args map[string]interface{}) dynatrace.Timeframe {
	return dynatrace.Timeframe{
		From: getString(args, "from", ""),
		To:   getString(args, "to", ""),
	}
}

func requestArgs(req mcp.CallToolRequest) map[string]interface{} {
	args := req.GetArguments()
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func toolContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*time.Minute)
}

// Rendering

const (
	formatMarkdown = "markdown"
	formatJSON     = "json"
	formatYAML     = "yaml"
)

// render returns v as JSON or YAML when asked to, otherwise the Markdown built by md.
func render(args map[string]interface{}, v interface{}, md func() string) *mcp.CallToolResult {
	switch strings.ToLower(getString(args, "format", formatMarkdown)) {
	case formatJSON:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errorResult(fmt.Sprintf("Failed to encode response: %s", err))
		}
		return textResult("```json\n" + string(out) + "\n```")
	case formatYAML:
		out, err := toYAML(v)
		if err != nil {
			return errorResult(fmt.Sprintf("Failed to encode response: %s", err))
		}
		return textResult("```yaml\n" + out + "```")
	default:
		return textResult(md())
	}
}

// toYAML goes through JSON first so field names match the API.
func toYAML(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	out, err := yaml.Marshal(generic)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func formatTime(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func pageFooter(b *strings.Builder, shown, total int, nextPageKey string) {
	if nextPageKey != "" {
		fmt.Fprintf(b, "\nShowing %d of %d. More results available, call again with nextPageKey: %s\n", shown, total, nextPageKey)
		return
	}
	fmt.Fprintf(b, "\nShowing %d of %d (last page).\n", shown, total)
}

func nextSteps(b *strings.Builder, steps ...string) {
	if len(steps) == 0 {
		return
	}
	b.WriteString("\nNext Steps:\n")
	for i, s := range steps {
		fmt.Fprintf(b, "%d. %s\n", i+1, s)
	}
}

func stubName(e *dynatrace.EntityStub) string {
	if e == nil {
		return "-"
	}
	if e.Name != "" {
		return fmt.Sprintf("%s (%s)", e.Name, e.EntityID.ID)
	}
	return e.EntityID.ID
}

func zoneNames(zones []dynatrace.ManagementZone) string {
	if len(zones) == 0 {
		return "None"
	}
	names := make([]string, 0, len(zones))
	for _, z := range zones {
		names = append(names, z.Name)
	}
	return strings.Join(names, ", ")
}

func tagStrings(tags []dynatrace.METag) string {
	if len(tags) == 0 {
		return "None"
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.StringRepresentation != "" {
			out = append(out, t.StringRepresentation)
		} else if t.Value != "" {
			out = append(out, t.Key+":"+t.Value)
		} else {
			out = append(out, t.Key)
		}
	}
	return strings.Join(out, ", ")
}
