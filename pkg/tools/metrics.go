package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/dynatrace"
)

// maxSeriesPoints caps how many data points per series the Markdown view prints.
const maxSeriesPoints = 20

func (r *Registry) registerMetricTools(s *server.MCPServer) {
	r.add(s, newTool("list_metrics", "List Metrics",
		"[Query Tool] List available metrics. Search by text or narrow with a metric selector.",
		readTool,
		mcp.WithString("metricSelector", mcp.Description("Metric selector, e.g. 'builtin:host.*' or 'builtin:service.response.time'.")),
		mcp.WithString("text", mcp.Description("Free-text search over metric IDs, names and descriptions.")),
		mcp.WithString("fields", mcp.Description("Fields to return, e.g. '+unit,+aggregationTypes'.")),
		pageSizeOption(500),
		nextPageKeyOption(),
		formatOption(),
	), r.listMetrics)

	r.add(s, newTool("get_metric", "Get Metric Descriptor",
		"[Query Tool] Get the descriptor of a metric: unit, dimensions and aggregations.",
		readTool,
		mcp.WithString("metricId", mcp.Required(), mcp.Description("The metric key, e.g. builtin:host.cpu.usage.")),
		formatOption(),
	), r.getMetric)

	r.add(s, newTool("query_metrics", "Query Metrics",
		"[Query Tool] Query data points of one or more metrics over a timeframe.",
		readTool,
		mcp.WithString("metricSelector", mcp.Required(),
			mcp.Description("Metric selector with optional transformations, e.g. 'builtin:host.cpu.usage:splitBy(\"dt.entity.host\"):avg'."),
		),
		mcp.WithString("resolution", mcp.Description("Resolution of the data points, e.g. '1m', '5m', '1h' or 'Inf'.")),
		mcp.WithString("entitySelector", mcp.Description(`Restrict to entities, e.g. 'type("HOST"),tag("env:prod")'.`)),
		fromOption(),
		toOption(),
		formatOption(),
	), r.queryMetrics)

	r.add(s, newTool("ingest_metrics", "Ingest Metrics",
		"[Action Tool] Push custom metric data points. Give either structured lines or raw line protocol in data.",
		writeTool,
		mcp.WithArray("lines",
			mcp.Description("Data points to ingest."),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"metricId":   map[string]any{"type": "string"},
					"dimensions": map[string]any{"type": "object"},
					"value":      map[string]any{"type": "number"},
					"timestamp":  map[string]any{"type": "number", "description": "Epoch milliseconds"},
				},
				"required": []string{"metricId", "value"},
			}),
		),
		mcp.WithString("data",
			mcp.Description("Raw line protocol, one data point per line: 'metric.key,dim=value 42 [timestamp]'."),
		),
	), r.ingestMetrics)

	r.add(s, newTool("delete_metric", "Delete Metric",
		"[Action Tool] Delete a custom metric and all of its data. Built-in metrics cannot be deleted.",
		deleteTool,
		mcp.WithString("metricId", mcp.Required(), mcp.Description("Key of the custom metric.")),
	), r.deleteMetric)

	r.add(s, newTool("list_units", "List Units",
		"[Query Tool] List units of measure.",
		readTool,
		mcp.WithString("unitSelector", mcp.Description(`Unit selector, e.g. 'compatibleUnits("MilliSecond")'.`)),
		pageSizeOption(500),
		nextPageKeyOption(),
		formatOption(),
	), r.listUnits)

	r.add(s, newTool("get_unit", "Get Unit",
		"[Query Tool] Get one unit of measure.",
		readTool,
		mcp.WithString("unitId", mcp.Required(), mcp.Description("Unit ID, e.g. MilliSecond.")),
		formatOption(),
	), r.getUnit)
}

func (r *Registry) listMetrics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	page, bad := pageArgs(args, 500)
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	list, err := r.client.ListMetrics(ctx, dynatrace.ListMetricsParams{
		Page:           page,
		MetricSelector: getString(args, "metricSelector", ""),
		Text:           getString(args, "text", ""),
		Fields:         getString(args, "fields", ""),
	})
	if err != nil {
		return apiError("list metrics", err), nil
	}

	return render(args, list, func() string {
		if len(list.Metrics) == 0 {
			return "No metrics found"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d metrics!\n\n", list.TotalCount)
		for _, m := range list.Metrics {
			fmt.Fprintf(&b, "- %s", m.MetricID)
			if m.DisplayName != "" {
				fmt.Fprintf(&b, ": %s", m.DisplayName)
			}
			if m.Unit != "" {
				fmt.Fprintf(&b, " [%s]", m.Unit)
			}
			b.WriteString("\n")
		}
		for _, w := range list.Warnings {
			fmt.Fprintf(&b, "Warning: %s\n", w)
		}
		pageFooter(&b, len(list.Metrics), list.TotalCount, list.NextPageKey)
		nextSteps(&b,
			`Use "get_metric" for the dimensions and aggregations of a metric`,
			`Use "query_metrics" to fetch data points`,
		)
		return b.String()
	}), nil
}

func (r *Registry) getMetric(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, bad := requireString(args, "metricId")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	m, err := r.client.GetMetric(ctx, id)
	if err != nil {
		return apiError("get metric "+id, err), nil
	}

	return render(args, m, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Metric: %s\n", m.MetricID)
		fmt.Fprintf(&b, "  Name: %s\n", orDash(m.DisplayName))
		fmt.Fprintf(&b, "  Unit: %s\n", orDash(m.Unit))
		if m.Description != "" {
			fmt.Fprintf(&b, "  Description: %s\n", m.Description)
		}
		if len(m.AggregationTypes) > 0 {
			fmt.Fprintf(&b, "  Aggregations: %s\n", strings.Join(m.AggregationTypes, ", "))
		}
		if m.DefaultAggregation != nil {
			fmt.Fprintf(&b, "  Default aggregation: %s\n", m.DefaultAggregation.Type)
		}
		if len(m.EntityType) > 0 {
			fmt.Fprintf(&b, "  Entity types: %s\n", strings.Join(m.EntityType, ", "))
		}
		if m.LastWritten > 0 {
			fmt.Fprintf(&b, "  Last written: %s\n", formatTime(m.LastWritten))
		}
		if len(m.DimensionDefinitions) > 0 {
			b.WriteString("\nDimensions:\n")
			for _, d := range m.DimensionDefinitions {
				fmt.Fprintf(&b, "  %s (%s) %s\n", d.Key, d.Type, d.DisplayName)
			}
		}
		nextSteps(&b, fmt.Sprintf(`Use "query_metrics" with metricSelector '%s' to fetch data points`, m.MetricID))
		return b.String()
	}), nil
}

func (r *Registry) queryMetrics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	selector, bad := requireString(args, "metricSelector")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	data, err := r.client.QueryMetrics(ctx, dynatrace.QueryMetricsParams{
		Timeframe:      timeframeArgs(args),
		MetricSelector: selector,
		Resolution:     getString(args, "resolution", ""),
		EntitySelector: getString(args, "entitySelector", ""),
	})
	if err != nil {
		return apiError("query metrics", err), nil
	}

	return render(args, data, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Metric query returned %d series collections", len(data.Result))
		if data.Resolution != "" {
			fmt.Fprintf(&b, " at resolution %s", data.Resolution)
		}
		b.WriteString("\n")
		for _, coll := range data.Result {
			fmt.Fprintf(&b, "\n%s (%d series)\n", coll.MetricID, len(coll.Data))
			for _, series := range coll.Data {
				writeSeries(&b, series)
			}
			for _, w := range coll.Warnings {
				fmt.Fprintf(&b, "  Warning: %s\n", w)
			}
		}
		for _, w := range data.Warnings {
			fmt.Fprintf(&b, "Warning: %s\n", w)
		}
		return b.String()
	}), nil
}

func writeSeries(b *strings.Builder, s dynatrace.MetricSeries) {
	label := strings.Join(s.Dimensions, ", ")
	if label == "" {
		label = "(no dimensions)"
	}
	fmt.Fprintf(b, "  %s\n", label)

	start := 0
	if len(s.Timestamps) > maxSeriesPoints {
		start = len(s.Timestamps) - maxSeriesPoints
		fmt.Fprintf(b, "    (showing last %d of %d points)\n", maxSeriesPoints, len(s.Timestamps))
	}
	for i := start; i < len(s.Timestamps); i++ {
		value := "null"
		if i < len(s.Values) && s.Values[i] != nil {
			value = fmt.Sprintf("%g", *s.Values[i])
		}
		fmt.Fprintf(b, "    %s  %s\n", formatTime(s.Timestamps[i]), value)
	}
}

func (r *Registry) ingestMetrics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	raw, _ := args["lines"].([]interface{})
	data := getString(args, "data", "")
	if len(raw) == 0 && data == "" {
		return invalidArgs("either lines or data is required"), nil
	}
	if len(raw) > 0 && data != "" {
		return invalidArgs("give lines or data, not both"), nil
	}

	var lines []dynatrace.MetricLine
	for i, v := range raw {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return invalidArgs("lines[%d] must be an object", i), nil
		}
		value, ok := getFloat(obj, "value")
		if !ok {
			return invalidArgs("lines[%d].value must be a number", i), nil
		}
		line := dynatrace.MetricLine{
			MetricID:   getString(obj, "metricId", ""),
			Dimensions: getStringMap(obj, "dimensions"),
			Value:      value,
		}
		if ts, ok := getFloat(obj, "timestamp"); ok {
			line.Timestamp = int64(ts)
		}
		if err := line.Validate(); err != nil {
			return invalidArgs("lines[%d]: %s", i, err), nil
		}
		lines = append(lines, line)
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	var (
		res   *dynatrace.MetricIngestResult
		err   error
		total int
	)
	if len(lines) > 0 {
		total = len(lines)
		res, err = r.client.IngestMetrics(ctx, lines)
	} else {
		total = countLines(data)
		res, err = r.client.IngestMetricData(ctx, data)
	}
	if err != nil {
		return apiError("ingest metrics", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Metric ingestion: %d of %d lines accepted, %d invalid.\n", res.LinesOk, total, res.LinesInvalid)
	if res.Error != nil {
		for _, l := range res.Error.InvalidLines {
			fmt.Fprintf(&b, "- line %d: %s\n", l.Line+1, l.Error)
		}
	}
	if res.Warnings != nil && res.Warnings.Message != "" {
		fmt.Fprintf(&b, "Warning: %s\n", res.Warnings.Message)
	}
	nextSteps(&b, `Data appears after about a minute; use "query_metrics" to verify`)
	return textResult(b.String()), nil
}

func countLines(data string) int {
	n := 0
	for _, l := range strings.Split(data, "\n") {
		if strings.TrimSpace(l) != "" {
			n++
		}
	}
	return n
}

func (r *Registry) deleteMetric(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, bad := requireString(args, "metricId")
	if bad != nil {
		return bad, nil
	}
	if strings.HasPrefix(id, "builtin:") {
		return invalidArgs("built-in metrics cannot be deleted"), nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	if err := r.client.DeleteMetric(ctx, id); err != nil {
		return apiError("delete metric "+id, err), nil
	}
	return textResult(fmt.Sprintf("Metric %s deleted.", id)), nil
}

func (r *Registry) listUnits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	page, bad := pageArgs(args, 500)
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	list, err := r.client.ListUnits(ctx, getString(args, "unitSelector", ""), page)
	if err != nil {
		return apiError("list units", err), nil
	}

	return render(args, list, func() string {
		if len(list.Units) == 0 {
			return "No units found"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d units:\n\n", list.TotalCount)
		for _, u := range list.Units {
			fmt.Fprintf(&b, "- %s", u.UnitID)
			if u.Symbol != "" {
				fmt.Fprintf(&b, " (%s)", u.Symbol)
			}
			if u.DisplayName != "" {
				fmt.Fprintf(&b, ": %s", u.DisplayName)
			}
			b.WriteString("\n")
		}
		pageFooter(&b, len(list.Units), list.TotalCount, list.NextPageKey)
		return b.String()
	}), nil
}

func (r *Registry) getUnit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, bad := requireString(args, "unitId")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	u, err := r.client.GetUnit(ctx, id)
	if err != nil {
		return apiError("get unit "+id, err), nil
	}

	return render(args, u, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Unit: %s\n", u.UnitID)
		fmt.Fprintf(&b, "  Name: %s\n", orDash(u.DisplayName))
		if u.DisplayNamePlural != "" {
			fmt.Fprintf(&b, "  Plural: %s\n", u.DisplayNamePlural)
		}
		fmt.Fprintf(&b, "  Symbol: %s\n", orDash(u.Symbol))
		if u.Description != "" {
			fmt.Fprintf(&b, "  Description: %s\n", u.Description)
		}
		return b.String()
	}), nil
}
