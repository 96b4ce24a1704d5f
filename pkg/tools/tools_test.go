package tools

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/dynatrace"
	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/logging"
)

type reply struct {
	status int
	body   string
}

type apiCall struct {
	method string
	path   string
	query  map[string]string
	body   string
}

type fakeCluster struct {
	mu     sync.Mutex
	routes map[string]reply
	calls  []apiCall
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.EscapedPath(), "/e/env-1/api/v2")
	b, _ := io.ReadAll(r.Body)
	q := map[string]string{}
	for k := range r.URL.Query() {
		q[k] = r.URL.Query().Get(k)
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: r.Method, path: path, query: q, body: string(b)})
	rep, ok := f.routes[r.Method+" "+path]
	f.mu.Unlock()

	if !ok {
		rep = reply{status: http.StatusNotFound, body: `{"error":{"code":404,"message":"Not found"}}`}
	}
	if rep.status == 0 {
		rep.status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}

func (f *fakeCluster) lastCall(t *testing.T) apiCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls, "expected an API call")
	return f.calls[len(f.calls)-1]
}

func newTestRegistry(t *testing.T, routes map[string]reply) (*Registry, *fakeCluster) {
	t.Helper()
	fake := &fakeCluster{routes: routes}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := dynatrace.NewClient(dynatrace.Config{
		URL:           srv.URL,
		EnvironmentID: "env-1",
		APIToken:      "dt0c01.TEST.SECRET",
		UserAgent:     "tools-test",
	})
	require.NoError(t, err)

	return NewRegistry(Config{
		Client: client,
		Logger: logging.NewWriterLogger(io.Discard, logging.LevelInfo),
	}), fake
}

func call(t *testing.T, handler server.ToolHandlerFunc, args map[string]interface{}) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	return resultText(t, result.Content[0]), result.IsError
}

func resultText(t *testing.T, c mcp.Content) string {
	t.Helper()
	text, ok := mcp.AsTextContent(c)
	require.True(t, ok, "unexpected content type %T", c)
	return text.Text
}

func TestRegisterAll(t *testing.T) {
	r, _ := newTestRegistry(t, nil)
	s := server.NewMCPServer("test", "0.0.1", server.WithToolCapabilities(false))

	r.RegisterAll(s)

	names := r.Names()
	assert.Len(t, names, 40)
	seen := map[string]bool{}
	for _, n := range names {
		assert.False(t, seen[n], "duplicate tool %s", n)
		seen[n] = true
	}
	for _, want := range []string{
		"get_environment_info",
		"list_problems", "get_problem", "get_problem_details", "close_problem",
		"list_comments", "get_comment", "add_comment", "update_comment", "delete_comment",
		"list_entities", "get_entity", "get_monitored_entity_details", "find_monitored_entity_by_name",
		"list_monitoring_states", "list_entity_types", "get_entity_type", "create_custom_device",
		"list_tags", "add_tags", "delete_tags",
		"list_events", "get_event", "ingest_event", "list_event_types", "get_event_type",
		"list_event_properties", "get_event_property",
		"list_metrics", "get_metric", "query_metrics", "ingest_metrics", "delete_metric",
		"list_units", "get_unit",
		"list_audit_logs", "get_audit_log", "get_logs_for_entity",
		"list_vulnerabilities", "get_vulnerability_details",
	} {
		assert.True(t, seen[want], "missing tool %s", want)
	}
}

func TestNewToolAnnotations(t *testing.T) {
	tests := []struct {
		kind        toolKind
		readOnly    bool
		destructive bool
		idempotent  bool
	}{
		{readTool, true, false, true},
		{writeTool, false, false, false},
		{deleteTool, false, true, true},
	}
	for _, tt := range tests {
		tool := newTool("x", "X", "desc", tt.kind)
		a := tool.Annotations
		assert.Equal(t, "X", a.Title)
		require.NotNil(t, a.ReadOnlyHint)
		require.NotNil(t, a.DestructiveHint)
		require.NotNil(t, a.IdempotentHint)
		assert.Equal(t, tt.readOnly, *a.ReadOnlyHint)
		assert.Equal(t, tt.destructive, *a.DestructiveHint)
		assert.Equal(t, tt.idempotent, *a.IdempotentHint)
	}
}

func TestListProblemsMarkdown(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"GET /problems": {body: `{"totalCount":2,"pageSize":1,"nextPageKey":"next-1","problems":[
			{"problemId":"-123_456V2","displayId":"P-2301","title":"Response time degradation","status":"OPEN",
			 "severityLevel":"PERFORMANCE","impactLevel":"SERVICES","startTime":1700000000000,"endTime":-1,
			 "affectedEntities":[{"entityId":{"id":"SERVICE-1","type":"SERVICE"},"name":"checkout"}],
			 "rootCauseEntity":{"entityId":{"id":"HOST-9","type":"HOST"},"name":"db-1"}}]}`},
	})

	text, isErr := call(t, r.listProblems, map[string]interface{}{
		"problemSelector": `status("open")`,
		"pageSize":        float64(1),
		"from":            "now-2h",
	})
	require.False(t, isErr, text)

	assert.Contains(t, text, "Found 2 problems!")
	assert.Contains(t, text, "P-2301")
	assert.Contains(t, text, "ongoing")
	assert.Contains(t, text, "checkout (SERVICE-1)")
	assert.Contains(t, text, "Root cause: db-1 (HOST-9)")
	assert.Contains(t, text, "nextPageKey: next-1")
	assert.Contains(t, text, "Next Steps:")

	q := fake.lastCall(t).query
	assert.Equal(t, `status("open")`, q["problemSelector"])
	assert.Equal(t, "1", q["pageSize"])
	assert.Equal(t, "now-2h", q["from"])
}

func TestListProblemsEmpty(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]reply{
		"GET /problems": {body: `{"totalCount":0,"problems":[]}`},
	})

	text, isErr := call(t, r.listProblems, nil)
	assert.False(t, isErr)
	assert.Equal(t, "No problems found", text)
}

func TestPageSizeValidation(t *testing.T) {
	r, fake := newTestRegistry(t, nil)

	for _, size := range []float64{0, 501} {
		text, isErr := call(t, r.listProblems, map[string]interface{}{"pageSize": size})
		assert.True(t, isErr)
		assert.Equal(t, "Error: Invalid arguments: pageSize must be between 1 and 500", text)
	}
	assert.Empty(t, fake.calls)
}

func TestRequiredArguments(t *testing.T) {
	r, fake := newTestRegistry(t, nil)

	tests := []struct {
		name    string
		handler server.ToolHandlerFunc
		args    map[string]interface{}
		missing string
	}{
		{"get_problem", r.getProblem, nil, "problemId"},
		{"close_problem", r.closeProblem, map[string]interface{}{"problemId": "P-1"}, "message"},
		{"add_comment", r.addComment, map[string]interface{}{"problemId": "P-1", "message": "   "}, "message"},
		{"get_entity", r.getEntity, nil, "entityId"},
		{"find_monitored_entity_by_name", r.findMonitoredEntityByName, map[string]interface{}{"entityType": "HOST"}, "name"},
		{"list_tags", r.listTags, nil, "entitySelector"},
		{"delete_tags", r.deleteTags, map[string]interface{}{"entitySelector": `type("HOST")`}, "key"},
		{"query_metrics", r.queryMetrics, nil, "metricSelector"},
		{"get_logs_for_entity", r.getLogsForEntity, nil, "entityId"},
		{"get_vulnerability_details", r.getVulnerabilityDetails, nil, "securityProblemId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, tt.handler, tt.args)
			assert.True(t, isErr)
			assert.Equal(t, "Error: Invalid arguments: "+tt.missing+" is required", text)
		})
	}
	assert.Empty(t, fake.calls)
}

func TestListEntitiesNeedsSelectorOrCursor(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"GET /entities": {body: `{"totalCount":0,"entities":[]}`},
	})

	text, isErr := call(t, r.listEntities, nil)
	assert.True(t, isErr)
	assert.Contains(t, text, "entitySelector is required unless nextPageKey is set")

	_, isErr = call(t, r.listEntities, map[string]interface{}{"nextPageKey": "k"})
	assert.False(t, isErr)
	assert.Equal(t, map[string]string{"nextPageKey": "k"}, fake.lastCall(t).query)
}

func TestGetProblemDetailsDefaultFields(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"GET /problems/P-1": {body: `{"problemId":"P-1","displayId":"P-77","title":"Failure rate increase","status":"OPEN",
			"evidenceDetails":{"totalCount":1,"details":[{"evidenceType":"METRIC","displayName":"Failure rate",
				"entity":{"entityId":{"id":"SERVICE-1","type":"SERVICE"},"name":"checkout"},"rootCauseRelevant":true}]},
			"recentComments":{"totalCount":1,"comments":[{"id":"c1","authorName":"ops","content":"investigating","createdAtTimestamp":1700000000000}]}}`},
	})

	text, isErr := call(t, r.getProblemDetails, map[string]interface{}{"problemId": "P-1"})
	require.False(t, isErr, text)

	assert.Equal(t, problemDetailFields, fake.lastCall(t).query["fields"])
	assert.Contains(t, text, "Failure rate on checkout (SERVICE-1) [root cause]")
	assert.Contains(t, text, "ops: investigating")
	assert.Contains(t, text, "add_comment")
}

func TestRenderFormats(t *testing.T) {
	routes := map[string]reply{
		"GET /units/MilliSecond": {body: `{"unitId":"MilliSecond","displayName":"millisecond","symbol":"ms"}`},
	}
	r, _ := newTestRegistry(t, routes)

	text, isErr := call(t, r.getUnit, map[string]interface{}{"unitId": "MilliSecond", "format": "json"})
	require.False(t, isErr)
	assert.True(t, strings.HasPrefix(text, "```json\n"))
	assert.Contains(t, text, `"unitId": "MilliSecond"`)

	text, isErr = call(t, r.getUnit, map[string]interface{}{"unitId": "MilliSecond", "format": "yaml"})
	require.False(t, isErr)
	assert.True(t, strings.HasPrefix(text, "```yaml\n"))
	assert.Contains(t, text, "unitId: MilliSecond")
	assert.Contains(t, text, "symbol: ms")

	text, _ = call(t, r.getUnit, map[string]interface{}{"unitId": "MilliSecond"})
	assert.Contains(t, text, "Unit: MilliSecond")
	assert.Contains(t, text, "Symbol: ms")
}

func TestAPIErrorResults(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]reply{
		"GET /problems":        {status: http.StatusUnauthorized, body: `{"error":{"code":401,"message":"Token Authentication failed"}}`},
		"GET /metrics/query":   {status: http.StatusForbidden, body: `{"error":{"code":403,"message":"Token is missing required scope"}}`},
		"GET /events/missing1": {status: http.StatusNotFound, body: `{"error":{"code":404,"message":"Event not found"}}`},
	})

	text, isErr := call(t, r.listProblems, nil)
	assert.True(t, isErr)
	assert.Contains(t, text, "Error: Failed to list problems: 401 - Token Authentication failed")
	assert.Contains(t, text, "DYNATRACE_API_TOKEN")

	text, isErr = call(t, r.queryMetrics, map[string]interface{}{"metricSelector": "builtin:host.cpu.usage"})
	assert.True(t, isErr)
	assert.Contains(t, text, "403 - Token is missing required scope")
	assert.Contains(t, text, "missing a scope")

	text, isErr = call(t, r.getEvent, map[string]interface{}{"eventId": "missing1"})
	assert.True(t, isErr)
	assert.Contains(t, text, "Failed to get event missing1: 404 - Event not found")
	assert.Contains(t, text, "does not exist")
}

func TestTagMutationUnsupported(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]reply{
		"DELETE /tags": {status: http.StatusMethodNotAllowed, body: `{"error":{"code":405,"message":"Method not allowed"}}`},
	})
	tags := []interface{}{map[string]interface{}{"key": "team", "value": "core"}}

	text, isErr := call(t, r.addTags, map[string]interface{}{"entitySelector": `type("HOST")`, "tags": tags})
	assert.True(t, isErr)
	assert.Contains(t, text, "not supported in this Managed environment")

	text, isErr = call(t, r.deleteTags, map[string]interface{}{"entitySelector": `type("HOST")`, "key": "team"})
	assert.True(t, isErr)
	assert.Contains(t, text, "405 - Method not allowed")
	assert.Contains(t, text, "not supported in this Managed environment")
}

func TestAddTags(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"POST /tags": {body: `{"matchedEntitiesCount":3,"appliedTags":[{"key":"team","value":"core","stringRepresentation":"team:core"}]}`},
	})

	text, isErr := call(t, r.addTags, map[string]interface{}{
		"entitySelector": `type("HOST")`,
		"tags":           []interface{}{map[string]interface{}{"key": "team", "value": "core"}},
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "Tags applied to 3 entities.")
	assert.Contains(t, text, "team:core")
	assert.JSONEq(t, `{"tags":[{"key":"team","value":"core"}]}`, fake.lastCall(t).body)

	text, isErr = call(t, r.addTags, map[string]interface{}{
		"entitySelector": `type("HOST")`,
		"tags":           []interface{}{map[string]interface{}{"value": "x"}},
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "tags[0].key is required")
}

func TestFindMonitoredEntityByName(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"GET /entities": {body: `{"totalCount":1,"entities":[{"entityId":"SERVICE-42","displayName":"checkout"}]}`},
	})

	text, isErr := call(t, r.findMonitoredEntityByName, map[string]interface{}{"entityType": "service", "name": "checkout"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "checkout (SERVICE-42)")
	assert.Equal(t, `type("SERVICE"),entityName("checkout")`, fake.lastCall(t).query["entitySelector"])
}

func TestListMonitoringStatesDefaults(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"GET /entities": {body: `{"totalCount":1,"entities":[{"entityId":"PROCESS_GROUP_INSTANCE-1","displayName":"java","firstSeenTms":1700000000000,"lastSeenTms":1700000600000}]}`},
	})

	text, isErr := call(t, r.listMonitoringStates, nil)
	require.False(t, isErr, text)

	q := fake.lastCall(t).query
	assert.Equal(t, `type("PROCESS_GROUP_INSTANCE")`, q["entitySelector"])
	assert.Equal(t, entityStateFields, q["fields"])
	assert.Contains(t, text, "first seen 2023-11-14T22:13:20Z")
	assert.Contains(t, text, "Entity availability information provided instead")
}

func TestCreateCustomDevice(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"POST /entities/custom": {body: `{"entityId":"CUSTOM_DEVICE-1","groupId":"CUSTOM_DEVICE_GROUP-1"}`},
	})

	text, isErr := call(t, r.createCustomDevice, map[string]interface{}{
		"customDeviceId": "fw-1",
		"displayName":    "Firewall 1",
		"ipAddresses":    []interface{}{"10.0.0.1"},
		"listenPorts":    []interface{}{float64(443)},
		"properties":     map[string]interface{}{"vendor": "acme", "rack": float64(7)},
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "CUSTOM_DEVICE-1")
	assert.JSONEq(t, `{"customDeviceId":"fw-1","displayName":"Firewall 1","ipAddresses":["10.0.0.1"],"listenPorts":[443],"properties":{"vendor":"acme","rack":"7"}}`,
		fake.lastCall(t).body)

	text, isErr = call(t, r.createCustomDevice, map[string]interface{}{
		"customDeviceId": "fw-1",
		"displayName":    "Firewall 1",
		"listenPorts":    []interface{}{float64(70000)},
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "listenPorts")
}

func TestIngestEvent(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"POST /events/ingest": {status: http.StatusCreated, body: `{"reportCount":1,"eventIngestResults":[{"correlationId":"c-1","status":"OK"}]}`},
	})

	text, isErr := call(t, r.ingestEvent, map[string]interface{}{"eventType": "NOT_A_TYPE", "title": "x"})
	assert.True(t, isErr)
	assert.Contains(t, text, "eventType must be one of")
	assert.Empty(t, fake.calls)

	text, isErr = call(t, r.ingestEvent, map[string]interface{}{
		"eventType":      "CUSTOM_DEPLOYMENT",
		"title":          "Deploy 1.2",
		"entitySelector": `type("SERVICE")`,
		"startTime":      float64(1700000000000),
		"properties":     map[string]interface{}{"version": "1.2"},
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "correlationId c-1: OK")
	assert.JSONEq(t, `{"eventType":"CUSTOM_DEPLOYMENT","title":"Deploy 1.2","entitySelector":"type(\"SERVICE\")","startTime":1700000000000,"properties":{"version":"1.2"}}`,
		fake.lastCall(t).body)
}

func TestIngestMetrics(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"POST /metrics/ingest": {status: http.StatusAccepted, body: `{"linesOk":1,"linesInvalid":0}`},
	})

	text, isErr := call(t, r.ingestMetrics, nil)
	assert.True(t, isErr)
	assert.Contains(t, text, "either lines or data is required")

	text, isErr = call(t, r.ingestMetrics, map[string]interface{}{
		"lines": []interface{}{map[string]interface{}{"metricId": "bad id", "value": float64(1)}},
	})
	assert.True(t, isErr)
	assert.Contains(t, text, "lines[0]")
	assert.Empty(t, fake.calls)

	text, isErr = call(t, r.ingestMetrics, map[string]interface{}{
		"lines": []interface{}{map[string]interface{}{
			"metricId":   "custom.queue.depth",
			"dimensions": map[string]interface{}{"queue": "orders"},
			"value":      float64(12),
		}},
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "1 of 1 lines accepted")
	assert.Equal(t, "custom.queue.depth,queue=orders 12", fake.lastCall(t).body)

	text, isErr = call(t, r.ingestMetrics, map[string]interface{}{"data": "a 1\nb 2\n"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "of 2 lines accepted")
	assert.Equal(t, "a 1\nb 2", fake.lastCall(t).body)
}

func TestDeleteMetricRejectsBuiltin(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"DELETE /metrics/custom.queue.depth": {status: http.StatusAccepted},
	})

	text, isErr := call(t, r.deleteMetric, map[string]interface{}{"metricId": "builtin:host.cpu.usage"})
	assert.True(t, isErr)
	assert.Contains(t, text, "built-in metrics cannot be deleted")
	assert.Empty(t, fake.calls)

	text, isErr = call(t, r.deleteMetric, map[string]interface{}{"metricId": "custom.queue.depth"})
	require.False(t, isErr, text)
	assert.Equal(t, "Metric custom.queue.depth deleted.", text)
}

func TestQueryMetricsRendersGaps(t *testing.T) {
	r, _ := newTestRegistry(t, map[string]reply{
		"GET /metrics/query": {body: `{"totalCount":1,"resolution":"1m","result":[{"metricId":"builtin:host.cpu.usage",
			"data":[{"dimensions":["HOST-1"],"dimensionMap":{"dt.entity.host":"HOST-1"},"timestamps":[1700000000000,1700000060000],"values":[12.5,null]}]}]}`},
	})

	text, isErr := call(t, r.queryMetrics, map[string]interface{}{"metricSelector": "builtin:host.cpu.usage"})
	require.False(t, isErr, text)
	assert.Contains(t, text, "at resolution 1m")
	assert.Contains(t, text, "HOST-1")
	assert.Contains(t, text, "12.5")
	assert.Contains(t, text, "null")
}

func TestCommentTools(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"POST /problems/P-1/comments":       {status: http.StatusCreated, body: `{"id":"c-9","content":"on it","authorName":"ops"}`},
		"PUT /problems/P-1/comments/c-9":    {status: http.StatusNoContent},
		"DELETE /problems/P-1/comments/c-9": {status: http.StatusNoContent},
	})

	text, isErr := call(t, r.addComment, map[string]interface{}{"problemId": "P-1", "message": "on it", "context": "chat"})
	require.False(t, isErr, text)
	assert.Equal(t, "Comment c-9 added to problem P-1.", text)
	assert.JSONEq(t, `{"message":"on it","context":"chat"}`, fake.lastCall(t).body)

	text, isErr = call(t, r.updateComment, map[string]interface{}{"problemId": "P-1", "commentId": "c-9", "message": "fixed"})
	require.False(t, isErr, text)
	assert.Equal(t, "Comment c-9 on problem P-1 updated.", text)

	text, isErr = call(t, r.deleteComment, map[string]interface{}{"problemId": "P-1", "commentId": "c-9"})
	require.False(t, isErr, text)
	assert.Equal(t, "Comment c-9 deleted from problem P-1.", text)
}

func TestGetLogsForEntity(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"GET /logs/search": {body: `{"sliceSize":1,"results":[{"timestamp":1700000000000,"status":"ERROR","content":"connection refused"}]}`},
	})

	text, isErr := call(t, r.getLogsForEntity, map[string]interface{}{"entityId": "HOST-1", "query": `status="ERROR"`})
	require.False(t, isErr, text)
	assert.Contains(t, text, "connection refused")

	q := fake.lastCall(t).query
	assert.Equal(t, `dt.entity.id="HOST-1" AND status="ERROR"`, q["query"])
	assert.Equal(t, "100", q["limit"])
}

func TestGetEnvironmentInfoFallsBack(t *testing.T) {
	r, _ := newTestRegistry(t, nil)

	text, isErr := call(t, r.getEnvironmentInfo, nil)
	require.False(t, isErr, text)
	assert.Contains(t, text, "Environment ID: env-1")
	assert.Contains(t, text, "Unknown - API endpoint not accessible")
	assert.Contains(t, text, "local clock")
}

func TestListVulnerabilities(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"GET /securityProblems": {body: `{"totalCount":1,"pageSize":50,"securityProblems":[
			{"securityProblemId":"2919200225913269102","displayId":"S-42","title":"Remote code execution","status":"OPEN","technology":"JAVA","vulnerabilityType":"THIRD_PARTY",
			 "cveIds":["CVE-2021-44228"],"riskAssessment":{"riskLevel":"CRITICAL","riskScore":10}}]}`},
	})

	text, isErr := call(t, r.listVulnerabilities, map[string]interface{}{
		"securityProblemSelector": `riskLevel("CRITICAL")`,
	})
	require.False(t, isErr, text)
	assert.Contains(t, text, "S-42: Remote code execution")
	assert.Contains(t, text, "Risk: CRITICAL (10.0)")
	assert.Contains(t, text, "CVEs: CVE-2021-44228")

	got := fake.lastCall(t)
	assert.Equal(t, `riskLevel("CRITICAL")`, got.query["securityProblemSelector"])
	assert.Equal(t, "+riskAssessment", got.query["fields"])
}

func TestListAuditLogs(t *testing.T) {
	r, fake := newTestRegistry(t, map[string]reply{
		"GET /auditlogs": {body: `{"totalCount":1,"pageSize":100,"auditLogs":[
			{"logId":"164000000000000000","eventType":"UPDATE","category":"CONFIG","user":"admin","userType":"USER_NAME","timestamp":1700000000000,"success":false}]}`},
	})

	text, isErr := call(t, r.listAuditLogs, map[string]interface{}{"filter": `category("CONFIG")`})
	require.False(t, isErr, text)
	assert.Contains(t, text, "CONFIG/UPDATE by admin (USER_NAME) [failed]")
	assert.Contains(t, text, "logId: 164000000000000000")
	assert.Equal(t, `category("CONFIG")`, fake.lastCall(t).query["filter"])

	_, isErr = call(t, r.listAuditLogs, map[string]interface{}{"pageSize": float64(5001)})
	assert.True(t, isErr)
}
