package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/dynatrace"
)

func (r *Registry) registerEventTools(s *server.MCPServer) {
	r.add(s, newTool("list_events", "List Events",
		"[Query Tool] List events such as deployments, configuration changes and availability events within a timeframe.",
		readTool,
		mcp.WithString("eventSelector",
			mcp.Description(`Event selector, e.g. 'eventType("CUSTOM_DEPLOYMENT")' or 'status("OPEN")'.`),
		),
		mcp.WithString("entitySelector",
			mcp.Description(`Only events on these entities, e.g. 'entityId("HOST-1234")'.`),
		),
		fromOption(),
		toOption(),
		pageSizeOption(1000),
		nextPageKeyOption(),
		formatOption(),
	), r.listEvents)

	r.add(s, newTool("get_event", "Get Event",
		"[Query Tool] Get one event by its eventId.",
		readTool,
		mcp.WithString("eventId", mcp.Required(), mcp.Description("The event ID.")),
		formatOption(),
	), r.getEvent)

	r.add(s, newTool("ingest_event", "Ingest Custom Event",
		"[Action Tool] Send a custom event, e.g. a deployment or an alert, to the entities matching a selector. Custom event ingestion is subject to licensing.",
		writeTool,
		mcp.WithString("eventType", mcp.Required(),
			mcp.Description("Type of the event."),
			mcp.Enum(dynatrace.IngestEventTypes...),
		),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the event.")),
		mcp.WithString("entitySelector",
			mcp.Description(`Target entities, e.g. 'type("HOST"),entityName("web-1")'. Without it the event is attached to the environment.`),
		),
		mcp.WithNumber("startTime", mcp.Description("Start time in epoch milliseconds. Defaults to now.")),
		mcp.WithNumber("endTime", mcp.Description("End time in epoch milliseconds.")),
		mcp.WithNumber("timeout", mcp.Description("Minutes until the event closes automatically."), mcp.Min(1)),
		mcp.WithObject("properties", mcp.Description("Custom string key/value properties.")),
	), r.ingestEvent)

	r.add(s, newTool("list_event_types", "List Event Types",
		"[Query Tool] List the event types known to this environment.",
		readTool,
		pageSizeOption(500),
		nextPageKeyOption(),
		formatOption(),
	), r.listEventTypes)

	r.add(s, newTool("get_event_type", "Get Event Type",
		"[Query Tool] Get the description of one event type.",
		readTool,
		mcp.WithString("eventType", mcp.Required(), mcp.Description("Event type, e.g. CUSTOM_DEPLOYMENT.")),
		formatOption(),
	), r.getEventType)

	r.add(s, newTool("list_event_properties", "List Event Properties",
		"[Query Tool] List the event properties that can be used in event selectors and custom events.",
		readTool,
		pageSizeOption(500),
		nextPageKeyOption(),
		formatOption(),
	), r.listEventProperties)

	r.add(s, newTool("get_event_property", "Get Event Property",
		"[Query Tool] Get the description of one event property.",
		readTool,
		mcp.WithString("propertyKey", mcp.Required(), mcp.Description("Property key, e.g. dt.event.deployment.version.")),
		formatOption(),
	), r.getEventProperty)
}

func (r *Registry) listEvents(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	page, bad := pageArgs(args, 1000)
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	list, err := r.client.ListEvents(ctx, dynatrace.ListEventsParams{
		Page:           page,
		Timeframe:      timeframeArgs(args),
		EventSelector:  getString(args, "eventSelector", ""),
		EntitySelector: getString(args, "entitySelector", ""),
	})
	if err != nil {
		return apiError("list events", err), nil
	}

	return render(args, list, func() string {
		if len(list.Events) == 0 {
			return "No events found"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d events!\n\n", list.TotalCount)
		for _, e := range list.Events {
			fmt.Fprintf(&b, "- %s [%s] %s\n", formatTime(e.StartTime), e.EventType, e.Title)
			fmt.Fprintf(&b, "  eventId: %s, status: %s, entity: %s\n", e.EventID, orDash(e.Status), stubName(e.EntityID))
		}
		for _, w := range list.Warnings {
			fmt.Fprintf(&b, "Warning: %s\n", w)
		}
		pageFooter(&b, len(list.Events), list.TotalCount, list.NextPageKey)
		nextSteps(&b, `Use "get_event" with an eventId for all event properties`)
		return b.String()
	}), nil
}

func (r *Registry) getEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, bad := requireString(args, "eventId")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	e, err := r.client.GetEvent(ctx, id)
	if err != nil {
		return apiError("get event "+id, err), nil
	}

	return render(args, e, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Event: %s\n", e.Title)
		fmt.Fprintf(&b, "  ID: %s\n", e.EventID)
		fmt.Fprintf(&b, "  Type: %s, Status: %s\n", e.EventType, orDash(e.Status))
		fmt.Fprintf(&b, "  Time: %s -> %s\n", formatTime(e.StartTime), formatTime(e.EndTime))
		fmt.Fprintf(&b, "  Entity: %s\n", stubName(e.EntityID))
		if e.CorrelationID != "" {
			fmt.Fprintf(&b, "  Correlation ID: %s\n", e.CorrelationID)
		}
		if len(e.ManagementZones) > 0 {
			fmt.Fprintf(&b, "  Management Zones: %s\n", zoneNames(e.ManagementZones))
		}
		if e.UnderMaintenance {
			b.WriteString("  Under maintenance: yes\n")
		}
		if len(e.Properties) > 0 {
			b.WriteString("\nProperties:\n")
			for _, p := range e.Properties {
				fmt.Fprintf(&b, "  %s: %s\n", p.Key, p.Value)
			}
		}
		return b.String()
	}), nil
}

func (r *Registry) ingestEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	eventType, bad := requireString(args, "eventType")
	if bad != nil {
		return bad, nil
	}
	if !validEventType(eventType) {
		return invalidArgs("eventType must be one of %s", strings.Join(dynatrace.IngestEventTypes, ", ")), nil
	}
	title, bad := requireString(args, "title")
	if bad != nil {
		return bad, nil
	}

	ev := dynatrace.EventIngest{
		EventType:      eventType,
		Title:          title,
		EntitySelector: getString(args, "entitySelector", ""),
		Timeout:        getInt(args, "timeout", 0),
		Properties:     getStringMap(args, "properties"),
	}
	if v, ok := getFloat(args, "startTime"); ok {
		ev.StartTime = int64(v)
	}
	if v, ok := getFloat(args, "endTime"); ok {
		ev.EndTime = int64(v)
	}
	if ev.StartTime > 0 && ev.EndTime > 0 && ev.EndTime < ev.StartTime {
		return invalidArgs("endTime must not be before startTime"), nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	res, err := r.client.IngestEvent(ctx, ev)
	if err != nil {
		return apiError("ingest event", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Event %q ingested, reported on %d entities.\n", title, res.ReportCount)
	for _, result := range res.EventIngestResults {
		fmt.Fprintf(&b, "- correlationId %s: %s\n", result.CorrelationID, result.Status)
	}
	nextSteps(&b, `Use "list_events" with eventSelector 'eventType("`+eventType+`")' to confirm the event`)
	return textResult(b.String()), nil
}

func validEventType(t string) bool {
	for _, known := range dynatrace.IngestEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (r *Registry) listEventTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	page, bad := pageArgs(args, 500)
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	list, err := r.client.ListEventTypes(ctx, page)
	if err != nil {
		return apiError("list event types", err), nil
	}

	return render(args, list, func() string {
		if len(list.EventTypeInfos) == 0 {
			return "No event types found"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d event types:\n\n", list.TotalCount)
		for _, t := range list.EventTypeInfos {
			fmt.Fprintf(&b, "- %s", t.Type)
			if t.SeverityLevel != "" {
				fmt.Fprintf(&b, " [%s]", t.SeverityLevel)
			}
			if t.DisplayName != "" {
				fmt.Fprintf(&b, ": %s", t.DisplayName)
			}
			b.WriteString("\n")
		}
		pageFooter(&b, len(list.EventTypeInfos), list.TotalCount, list.NextPageKey)
		return b.String()
	}), nil
}

func (r *Registry) getEventType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	typ, bad := requireString(args, "eventType")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	t, err := r.client.GetEventType(ctx, typ)
	if err != nil {
		return apiError("get event type "+typ, err), nil
	}

	return render(args, t, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Event type: %s\n", t.Type)
		fmt.Fprintf(&b, "  Display name: %s\n", orDash(t.DisplayName))
		fmt.Fprintf(&b, "  Severity: %s\n", orDash(t.SeverityLevel))
		if t.Description != "" {
			fmt.Fprintf(&b, "  Description: %s\n", t.Description)
		}
		return b.String()
	}), nil
}

func (r *Registry) listEventProperties(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	page, bad := pageArgs(args, 500)
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	list, err := r.client.ListEventProperties(ctx, page)
	if err != nil {
		return apiError("list event properties", err), nil
	}

	return render(args, list, func() string {
		if len(list.EventProperties) == 0 {
			return "No event properties found"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d event properties:\n\n", list.TotalCount)
		for _, p := range list.EventProperties {
			writeEventProperty(&b, p)
		}
		pageFooter(&b, len(list.EventProperties), list.TotalCount, list.NextPageKey)
		return b.String()
	}), nil
}

func writeEventProperty(b *strings.Builder, p dynatrace.EventProperty) {
	var flags []string
	if p.Filterable {
		flags = append(flags, "filterable")
	}
	if p.Writable {
		flags = append(flags, "writable")
	}
	fmt.Fprintf(b, "- %s", p.Key)
	if len(flags) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(flags, ", "))
	}
	if p.Description != "" {
		fmt.Fprintf(b, ": %s", p.Description)
	}
	b.WriteString("\n")
}

func (r *Registry) getEventProperty(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	key, bad := requireString(args, "propertyKey")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	p, err := r.client.GetEventProperty(ctx, key)
	if err != nil {
		return apiError("get event property "+key, err), nil
	}

	return render(args, p, func() string {
		var b strings.Builder
		writeEventProperty(&b, *p)
		if p.DisplayName != "" {
			fmt.Fprintf(&b, "  Display name: %s\n", p.DisplayName)
		}
		return b.String()
	}), nil
}
