package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/dynatrace"
)

const (
	entityDetailFields = "+properties,+tags,+managementZones,+fromRelationships,+toRelationships,+firstSeenTms,+lastSeenTms"
	entityStateFields  = "+firstSeenTms,+lastSeenTms"
)

func (r *Registry) registerEntityTools(s *server.MCPServer) {
	r.add(s, newTool("list_entities", "List Monitored Entities",
		"[Query Tool] List monitored entities matching an entity selector, e.g. all hosts or all services tagged with a team.",
		readTool,
		mcp.WithString("entitySelector",
			mcp.Description(`Entity selector. Required unless nextPageKey is set. Examples: 'type("HOST")', 'type("SERVICE"),tag("team:core")', 'entityId("HOST-1234")'.`),
		),
		mcp.WithString("fields", mcp.Description("Additional fields, e.g. '+properties,+tags,+fromRelationships'.")),
		fromOption(),
		toOption(),
		pageSizeOption(500),
		nextPageKeyOption(),
		formatOption(),
	), r.listEntities)

	r.add(s, newTool("get_entity", "Get Monitored Entity",
		"[Query Tool] Get one monitored entity by ID.",
		readTool,
		mcp.WithString("entityId", mcp.Required(), mcp.Description("The entity ID, e.g. HOST-1234ABCD.")),
		mcp.WithString("fields", mcp.Description("Additional fields, e.g. '+properties,+tags'.")),
		fromOption(),
		toOption(),
		formatOption(),
	), r.getEntity)

	r.add(s, newTool("get_monitored_entity_details", "Get Monitored Entity Details",
		"[Query Tool] Get a monitored entity with its properties, tags, management zones and relationships to other entities.",
		readTool,
		mcp.WithString("entityId", mcp.Required(), mcp.Description("The entity ID, e.g. SERVICE-1234ABCD.")),
		formatOption(),
	), r.getMonitoredEntityDetails)

	r.add(s, newTool("find_monitored_entity_by_name", "Find Monitored Entity by Name",
		"[Query Tool] Find monitored entities of a given type by name. Use this to resolve a name to an entity ID.",
		readTool,
		mcp.WithString("entityType", mcp.Required(), mcp.Description("Entity type, e.g. SERVICE, HOST, PROCESS_GROUP, APPLICATION.")),
		mcp.WithString("name", mcp.Required(), mcp.Description("Entity name, matched as the API does for entityName.")),
		pageSizeOption(500),
		formatOption(),
	), r.findMonitoredEntityByName)

	r.add(s, newTool("list_monitoring_states", "List Monitoring States",
		"[Query Tool] Show when entities were first and last seen by monitoring. Useful to spot hosts or processes that stopped reporting.",
		readTool,
		mcp.WithString("entitySelector",
			mcp.Description(`Entity selector. Default: 'type("PROCESS_GROUP_INSTANCE")'.`),
		),
		fromOption(),
		toOption(),
		pageSizeOption(500),
		nextPageKeyOption(),
		formatOption(),
	), r.listMonitoringStates)

	r.add(s, newTool("list_entity_types", "List Entity Types",
		"[Query Tool] List the monitored entity types available in this environment.",
		readTool,
		pageSizeOption(500),
		nextPageKeyOption(),
		formatOption(),
	), r.listEntityTypes)

	r.add(s, newTool("get_entity_type", "Get Entity Type",
		"[Query Tool] Get the properties and relationships defined for an entity type.",
		readTool,
		mcp.WithString("type", mcp.Required(), mcp.Description("Entity type, e.g. HOST.")),
		formatOption(),
	), r.getEntityType)

	r.add(s, newTool("create_custom_device", "Create Custom Device",
		"[Action Tool] Create or update a custom device, e.g. a network appliance or external system that is not monitored by OneAgent.",
		writeTool,
		mcp.WithString("customDeviceId", mcp.Required(), mcp.Description("Your ID for the device. The same ID updates the existing device.")),
		mcp.WithString("displayName", mcp.Required(), mcp.Description("Display name of the device.")),
		mcp.WithArray("ipAddresses", mcp.Description("IP addresses of the device."), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithArray("listenPorts", mcp.Description("Ports the device listens on."), mcp.Items(map[string]any{"type": "number"})),
		mcp.WithString("type", mcp.Description("Technology type shown in the UI, e.g. 'F5-Firewall'.")),
		mcp.WithString("faviconUrl", mcp.Description("Icon URL.")),
		mcp.WithString("configUrl", mcp.Description("URL of the device's configuration page.")),
		mcp.WithObject("properties", mcp.Description("Additional key/value properties.")),
		mcp.WithArray("dnsNames", mcp.Description("DNS names of the device."), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("group", mcp.Description("Group the device belongs to.")),
	), r.createCustomDevice)
}

func (r *Registry) listEntities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	page, bad := pageArgs(args, 500)
	if bad != nil {
		return bad, nil
	}
	selector := getString(args, "entitySelector", "")
	if selector == "" && page.NextPageKey == "" {
		return invalidArgs("entitySelector is required unless nextPageKey is set"), nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	list, err := r.client.ListEntities(ctx, dynatrace.ListEntitiesParams{
		Page:           page,
		Timeframe:      timeframeArgs(args),
		EntitySelector: selector,
		Fields:         getString(args, "fields", ""),
	})
	if err != nil {
		return apiError("list entities", err), nil
	}

	return render(args, list, func() string {
		if len(list.Entities) == 0 {
			return "No entities found"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d entities!\n\n", list.TotalCount)
		for _, e := range list.Entities {
			fmt.Fprintf(&b, "- %s (%s)", orDash(e.DisplayName), e.EntityID)
			if e.Type != "" {
				fmt.Fprintf(&b, " type %s", e.Type)
			}
			b.WriteString("\n")
			if len(e.Tags) > 0 {
				fmt.Fprintf(&b, "  Tags: %s\n", tagStrings(e.Tags))
			}
		}
		pageFooter(&b, len(list.Entities), list.TotalCount, list.NextPageKey)
		nextSteps(&b,
			`Use "get_monitored_entity_details" with an entityId for properties and relationships`,
			`Use "list_problems" with the same entitySelector to find problems on these entities`,
		)
		return b.String()
	}), nil
}

func (r *Registry) getEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, bad := requireString(args, "entityId")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	e, err := r.client.GetEntity(ctx, id, getString(args, "fields", ""), timeframeArgs(args))
	if err != nil {
		return apiError("get entity "+id, err), nil
	}

	return render(args, e, func() string {
		var b strings.Builder
		writeEntityHeader(&b, e)
		writeProperties(&b, e.Properties)
		return b.String()
	}), nil
}

func (r *Registry) getMonitoredEntityDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, bad := requireString(args, "entityId")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	e, err := r.client.GetEntity(ctx, id, entityDetailFields, dynatrace.Timeframe{})
	if err != nil {
		return apiError("get entity details for "+id, err), nil
	}

	return render(args, e, func() string {
		var b strings.Builder
		writeEntityHeader(&b, e)
		writeProperties(&b, e.Properties)
		writeRelationships(&b, "Calls / uses (outgoing)", e.FromRelationships)
		writeRelationships(&b, "Called by / used by (incoming)", e.ToRelationships)
		nextSteps(&b,
			fmt.Sprintf(`Use "list_problems" with entitySelector 'entityId("%s")' to see problems on this entity`, e.EntityID),
			fmt.Sprintf(`Use "get_logs_for_entity" with entityId %s to read its logs`, e.EntityID),
			`Use "query_metrics" with an entitySelector to chart its metrics`,
		)
		return b.String()
	}), nil
}

func writeEntityHeader(b *strings.Builder, e *dynatrace.Entity) {
	fmt.Fprintf(b, "Entity: %s\n", orDash(e.DisplayName))
	fmt.Fprintf(b, "  ID: %s\n", e.EntityID)
	fmt.Fprintf(b, "  Type: %s\n", orDash(e.Type))
	if e.FirstSeenTms > 0 || e.LastSeenTms > 0 {
		fmt.Fprintf(b, "  First seen: %s, Last seen: %s\n", formatTime(e.FirstSeenTms), formatTime(e.LastSeenTms))
	}
	if len(e.Tags) > 0 {
		fmt.Fprintf(b, "  Tags: %s\n", tagStrings(e.Tags))
	}
	if len(e.ManagementZones) > 0 {
		fmt.Fprintf(b, "  Management Zones: %s\n", zoneNames(e.ManagementZones))
	}
}

func writeProperties(b *strings.Builder, props map[string]any) {
	if len(props) == 0 {
		return
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("\nProperties:\n")
	for _, k := range keys {
		fmt.Fprintf(b, "  %s: %v\n", k, props[k])
	}
}

func writeRelationships(b *strings.Builder, title string, rels map[string][]dynatrace.EntityID) {
	if len(rels) == 0 {
		return
	}
	keys := make([]string, 0, len(rels))
	for k := range rels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, k := range keys {
		ids := make([]string, 0, len(rels[k]))
		for _, id := range rels[k] {
			ids = append(ids, id.ID)
		}
		fmt.Fprintf(b, "  %s: %s\n", k, strings.Join(ids, ", "))
	}
}

func (r *Registry) findMonitoredEntityByName(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	entityType, bad := requireString(args, "entityType")
	if bad != nil {
		return bad, nil
	}
	name, bad := requireString(args, "name")
	if bad != nil {
		return bad, nil
	}
	page, bad := pageArgs(args, 500)
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	list, err := r.client.FindEntitiesByName(ctx, strings.ToUpper(entityType), name, page)
	if err != nil {
		return apiError("find entity "+name, err), nil
	}

	return render(args, list, func() string {
		if len(list.Entities) == 0 {
			return fmt.Sprintf("No %s entity named %q found. Check the type and spelling, or use \"list_entities\" with a broader selector.", strings.ToUpper(entityType), name)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d matching entities:\n\n", list.TotalCount)
		for _, e := range list.Entities {
			fmt.Fprintf(&b, "- %s (%s)\n", orDash(e.DisplayName), e.EntityID)
		}
		nextSteps(&b, `Use "get_monitored_entity_details" with one of these entity IDs`)
		return b.String()
	}), nil
}

func (r *Registry) listMonitoringStates(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	page, bad := pageArgs(args, 500)
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	// Managed clusters do not all expose /monitoringstate, so availability comes from the entities API.
	list, err := r.client.ListEntities(ctx, dynatrace.ListEntitiesParams{
		Page:           page,
		Timeframe:      timeframeArgs(args),
		EntitySelector: getString(args, "entitySelector", `type("PROCESS_GROUP_INSTANCE")`),
		Fields:         entityStateFields,
	})
	if err != nil {
		return apiError("list monitoring states", err), nil
	}

	return render(args, list, func() string {
		if len(list.Entities) == 0 {
			return "No entities found for the specified selector."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Monitoring availability for %d entities:\n\n", list.TotalCount)
		for _, e := range list.Entities {
			fmt.Fprintf(&b, "- %s (%s): first seen %s, last seen %s\n",
				orDash(e.DisplayName), e.EntityID, formatTime(e.FirstSeenTms), formatTime(e.LastSeenTms))
		}
		pageFooter(&b, len(list.Entities), list.TotalCount, list.NextPageKey)
		b.WriteString("\nNote: Monitoring states may not be directly available. Entity availability information provided instead.\n")
		return b.String()
	}), nil
}

func (r *Registry) listEntityTypes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	page, bad := pageArgs(args, 500)
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	list, err := r.client.ListEntityTypes(ctx, page)
	if err != nil {
		return apiError("list entity types", err), nil
	}

	return render(args, list, func() string {
		if len(list.Types) == 0 {
			return "No entity types found"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d entity types:\n\n", list.TotalCount)
		for _, t := range list.Types {
			fmt.Fprintf(&b, "- %s", t.Type)
			if t.DisplayName != "" {
				fmt.Fprintf(&b, " (%s)", t.DisplayName)
			}
			b.WriteString("\n")
		}
		pageFooter(&b, len(list.Types), list.TotalCount, list.NextPageKey)
		nextSteps(&b, `Use "get_entity_type" for the properties of a type, then "list_entities" with 'type("...")'`)
		return b.String()
	}), nil
}

func (r *Registry) getEntityType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	typ, bad := requireString(args, "type")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	t, err := r.client.GetEntityType(ctx, typ)
	if err != nil {
		return apiError("get entity type "+typ, err), nil
	}

	return render(args, t, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Entity type: %s\n", t.Type)
		if t.DisplayName != "" {
			fmt.Fprintf(&b, "  Display name: %s\n", t.DisplayName)
		}
		if t.DimensionKey != "" {
			fmt.Fprintf(&b, "  Dimension key: %s\n", t.DimensionKey)
		}
		if t.EntityLimitExceeded {
			b.WriteString("  Entity limit exceeded: yes\n")
		}
		if len(t.Properties) > 0 {
			b.WriteString("\nProperties:\n")
			for _, p := range t.Properties {
				fmt.Fprintf(&b, "  %s (%s) %s\n", p.ID, p.Type, p.DisplayName)
			}
		}
		writeTypeRelations(&b, "Outgoing relationships", t.FromRelationships, func(rel dynatrace.EntityTypeRelation) []string { return rel.ToTypes })
		writeTypeRelations(&b, "Incoming relationships", t.ToRelationships, func(rel dynatrace.EntityTypeRelation) []string { return rel.FromTypes })
		return b.String()
	}), nil
}

func writeTypeRelations(b *strings.Builder, title string, rels []dynatrace.EntityTypeRelation, types func(dynatrace.EntityTypeRelation) []string) {
	if len(rels) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, rel := range rels {
		fmt.Fprintf(b, "  %s: %s\n", rel.ID, strings.Join(types(rel), ", "))
	}
}

func (r *Registry) createCustomDevice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, bad := requireString(args, "customDeviceId")
	if bad != nil {
		return bad, nil
	}
	name, bad := requireString(args, "displayName")
	if bad != nil {
		return bad, nil
	}

	device := dynatrace.CustomDevice{
		CustomDeviceID: id,
		DisplayName:    name,
		IPAddresses:    getStringSlice(args, "ipAddresses"),
		Type:           getString(args, "type", ""),
		FaviconURL:     getString(args, "faviconUrl", ""),
		ConfigURL:      getString(args, "configUrl", ""),
		Properties:     getStringMap(args, "properties"),
		DNSNames:       getStringSlice(args, "dnsNames"),
		Group:          getString(args, "group", ""),
	}
	if raw, ok := args["listenPorts"].([]interface{}); ok {
		for _, v := range raw {
			port, ok := v.(float64)
			if !ok || port < 1 || port > 65535 || port != float64(int(port)) {
				return invalidArgs("listenPorts must contain port numbers between 1 and 65535"), nil
			}
			device.ListenPorts = append(device.ListenPorts, int(port))
		}
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	res, err := r.client.CreateCustomDevice(ctx, device)
	if err != nil {
		return apiError("create custom device "+id, err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Custom device %q created.\n", name)
	if res.EntityID != "" {
		fmt.Fprintf(&b, "  Entity ID: %s\n", res.EntityID)
	}
	if res.GroupID != "" {
		fmt.Fprintf(&b, "  Group ID: %s\n", res.GroupID)
	}
	nextSteps(&b,
		`Use "ingest_metrics" with a dimension dt.entity.custom_device set to the entity ID to report data`,
		`Use "add_tags" to tag the new device`,
	)
	return textResult(b.String()), nil
}
