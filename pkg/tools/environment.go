package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/dynatrace"
)

func (r *Registry) registerEnvironmentTools(s *server.MCPServer) {
	r.add(s, newTool("get_environment_info", "Get Environment Info",
		"[Discovery Tool] Get information about the connected Dynatrace Managed environment: environment ID, API base URL, cluster version and cluster time. Use this first to confirm connectivity.",
		readTool,
		formatOption(),
	), r.getEnvironmentInfo)
}

func (r *Registry) getEnvironmentInfo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	ctx, cancel := toolContext(ctx)
	defer cancel()

	info := r.client.GetEnvironmentInfo(ctx)

	return render(args, info, func() string {
		var b strings.Builder
		b.WriteString("Environment Information:\n")
		fmt.Fprintf(&b, "- Environment ID: %s\n", info.EnvironmentID)
		fmt.Fprintf(&b, "- API Base URL: %s\n", info.BaseURL)
		fmt.Fprintf(&b, "- Cluster Version: %s\n", info.ClusterVersion)
		if info.ClusterTimeKnown {
			fmt.Fprintf(&b, "- Cluster Time (UTC): %s\n", info.ClusterTime.Format(time.RFC3339))
			drift := time.Since(info.ClusterTime)
			if drift < 0 {
				drift = -drift
			}
			if drift > time.Minute {
				fmt.Fprintf(&b, "- Clock drift: local clock differs from the cluster by %s\n", drift.Round(time.Second))
			}
		} else {
			fmt.Fprintf(&b, "- Cluster Time (UTC): %s (local clock, /time not accessible)\n", info.ClusterTime.Format(time.RFC3339))
		}

		nextSteps(&b,
			`Use "list_problems" to see open problems in this environment`,
			`Use "find_monitored_entity_by_name" to locate a host, service or process group`,
			`Read the "selector://reference" resource for entity, problem and metric selector syntax`,
		)
		return b.String()
	}), nil
}

func (r *Registry) registerAuditLogTools(s *server.MCPServer) {
	r.add(s, newTool("list_audit_logs", "List Audit Logs",
		"[Query Tool] List audit log entries recording configuration changes, logins and API access in the environment.",
		readTool,
		mcp.WithString("filter",
			mcp.Description(`Audit log filter, e.g. 'eventType("CREATE")', 'category("CONFIG")', 'user("admin")'.`),
		),
		fromOption(),
		toOption(),
		mcp.WithString("sort",
			mcp.Description("Sort order by timestamp: 'timestamp' or '-timestamp' (default, newest first)."),
			mcp.Enum("timestamp", "-timestamp"),
		),
		pageSizeOption(5000),
		nextPageKeyOption(),
		formatOption(),
	), r.listAuditLogs)

	r.add(s, newTool("get_audit_log", "Get Audit Log Entry",
		"[Query Tool] Get one audit log entry including the change patch.",
		readTool,
		mcp.WithString("logId", mcp.Required(), mcp.Description("ID of the audit log entry.")),
		formatOption(),
	), r.getAuditLog)
}

func (r *Registry) listAuditLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	page, bad := pageArgs(args, 5000)
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	logs, err := r.client.ListAuditLogs(ctx, dynatrace.ListAuditLogsParams{
		Page:      page,
		Timeframe: timeframeArgs(args),
		Filter:    getString(args, "filter", ""),
		Sort:      getString(args, "sort", ""),
	})
	if err != nil {
		return apiError("list audit logs", err), nil
	}

	return render(args, logs, func() string {
		if len(logs.AuditLogs) == 0 {
			return "No audit log entries found for the given filter and timeframe."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d audit log entries:\n\n", logs.TotalCount)
		for _, e := range logs.AuditLogs {
			status := "success"
			if !e.Success {
				status = "failed"
			}
			fmt.Fprintf(&b, "- %s %s/%s by %s (%s) [%s]\n", formatTime(e.Timestamp), e.Category, e.EventType, orDash(e.User), orDash(e.UserType), status)
			fmt.Fprintf(&b, "  logId: %s", e.LogID)
			if e.EntityID != "" {
				fmt.Fprintf(&b, ", entity: %s", e.EntityID)
			}
			b.WriteString("\n")
			if e.Message != "" {
				fmt.Fprintf(&b, "  %s\n", e.Message)
			}
		}
		pageFooter(&b, len(logs.AuditLogs), logs.TotalCount, logs.NextPageKey)
		nextSteps(&b, `Use "get_audit_log" with a logId to see the full change patch`)
		return b.String()
	}), nil
}

func (r *Registry) getAuditLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	logID, bad := requireString(args, "logId")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	e, err := r.client.GetAuditLog(ctx, logID)
	if err != nil {
		return apiError("get audit log "+logID, err), nil
	}

	return render(args, e, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Audit Log Entry %s:\n", e.LogID)
		fmt.Fprintf(&b, "- Time: %s\n", formatTime(e.Timestamp))
		fmt.Fprintf(&b, "- Category: %s\n", orDash(e.Category))
		fmt.Fprintf(&b, "- Event Type: %s\n", orDash(e.EventType))
		fmt.Fprintf(&b, "- User: %s (%s, origin %s)\n", orDash(e.User), orDash(e.UserType), orDash(e.UserOrigin))
		fmt.Fprintf(&b, "- Entity: %s\n", orDash(e.EntityID))
		fmt.Fprintf(&b, "- Success: %v\n", e.Success)
		if e.Message != "" {
			fmt.Fprintf(&b, "- Message: %s\n", e.Message)
		}
		if len(e.Patch) > 0 && string(e.Patch) != "null" {
			b.WriteString("\nPatch:\n```json\n")
			b.Write(e.Patch)
			b.WriteString("\n```\n")
		}
		return b.String()
	}), nil
}

func (r *Registry) registerLogTools(s *server.MCPServer) {
	r.add(s, newTool("get_logs_for_entity", "Get Logs for Entity",
		"[Query Tool] Search log records produced by one monitored entity. The query is scoped with dt.entity.id and can be narrowed with an additional log query.",
		readTool,
		mcp.WithString("entityId", mcp.Required(), mcp.Description("Entity ID, e.g. HOST-1234567890ABCDEF or PROCESS_GROUP_INSTANCE-...")),
		mcp.WithString("query", mcp.Description(`Additional log query joined with AND, e.g. 'status="ERROR"' or 'content="timeout"'.`)),
		fromOption(),
		toOption(),
		mcp.WithString("sort",
			mcp.Description("Sort order: 'timestamp' or '-timestamp' (newest first)."),
			mcp.Enum("timestamp", "-timestamp"),
		),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records to return. Range: 1-1000. Default: 100."), mcp.Min(1), mcp.Max(1000)),
		mcp.WithString("nextSliceKey", mcp.Description("Cursor from a previous response.")),
		formatOption(),
	), r.getLogsForEntity)
}

func (r *Registry) getLogsForEntity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	entityID, bad := requireString(args, "entityId")
	if bad != nil {
		return bad, nil
	}
	limit := getInt(args, "limit", 100)
	if limit < 1 || limit > 1000 {
		return invalidArgs("limit must be between 1 and 1000"), nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	query := dynatrace.EntityLogQuery(entityID, getString(args, "query", ""))
	logs, err := r.client.SearchLogs(ctx, dynatrace.SearchLogsParams{
		Timeframe:    timeframeArgs(args),
		Query:        query,
		Sort:         getString(args, "sort", ""),
		Limit:        limit,
		NextSliceKey: getString(args, "nextSliceKey", ""),
	})
	if err != nil {
		return apiError("get logs for entity "+entityID, err), nil
	}

	return render(args, logs, func() string {
		if len(logs.Results) == 0 {
			return fmt.Sprintf("No log records found for query: %s", query)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d log records for %s:\n\n", len(logs.Results), entityID)
		for _, rec := range logs.Results {
			fmt.Fprintf(&b, "[%s] %s %s\n", formatTime(rec.Timestamp), orDash(rec.Status), strings.TrimSpace(rec.Content))
		}
		if logs.Warnings != "" {
			fmt.Fprintf(&b, "\nWarnings: %s\n", logs.Warnings)
		}
		if logs.NextSliceKey != "" {
			fmt.Fprintf(&b, "\nMore records available, call again with nextSliceKey: %s\n", logs.NextSliceKey)
		}
		return b.String()
	}), nil
}

func (r *Registry) registerSecurityTools(s *server.MCPServer) {
	r.add(s, newTool("list_vulnerabilities", "List Vulnerabilities",
		"[Query Tool] List security problems (third-party and code-level vulnerabilities) detected by Application Security.",
		readTool,
		mcp.WithString("securityProblemSelector",
			mcp.Description(`Security problem selector, e.g. 'status("OPEN")', 'riskLevel("CRITICAL")', 'cveId("CVE-2021-44228")'.`),
		),
		mcp.WithString("sort",
			mcp.Description("Sort field, prefix with - for descending, e.g. '-riskAssessment.riskScore'."),
		),
		mcp.WithString("fields", mcp.Description("Additional fields, e.g. '+riskAssessment,+managementZones'.")),
		fromOption(),
		toOption(),
		pageSizeOption(500),
		nextPageKeyOption(),
		formatOption(),
	), r.listVulnerabilities)

	r.add(s, newTool("get_vulnerability_details", "Get Vulnerability Details",
		"[Query Tool] Get details of one security problem including risk assessment, CVEs and remediation.",
		readTool,
		mcp.WithString("securityProblemId", mcp.Required(), mcp.Description("ID of the security problem.")),
		mcp.WithString("fields", mcp.Description("Additional fields, e.g. '+riskAssessment,+affectedEntities,+description'.")),
		formatOption(),
	), r.getVulnerabilityDetails)
}

func (r *Registry) listVulnerabilities(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	page, bad := pageArgs(args, 500)
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	list, err := r.client.ListSecurityProblems(ctx, dynatrace.ListSecurityProblemsParams{
		Page:                    page,
		Timeframe:               timeframeArgs(args),
		SecurityProblemSelector: getString(args, "securityProblemSelector", ""),
		Sort:                    getString(args, "sort", ""),
		Fields:                  getString(args, "fields", "+riskAssessment"),
	})
	if err != nil {
		return apiError("list vulnerabilities", err), nil
	}

	return render(args, list, func() string {
		if len(list.SecurityProblems) == 0 {
			return "No vulnerabilities found."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d vulnerabilities:\n\n", list.TotalCount)
		for _, sp := range list.SecurityProblems {
			fmt.Fprintf(&b, "%s: %s\n", sp.DisplayID, sp.Title)
			fmt.Fprintf(&b, "  Status: %s, Technology: %s, Type: %s", orDash(sp.Status), orDash(sp.TechnologyType), orDash(sp.VulnerabilityType))
			if sp.Muted {
				b.WriteString(", muted")
			}
			b.WriteString("\n")
			if sp.RiskAssessment != nil {
				fmt.Fprintf(&b, "  Risk: %s (%.1f)\n", sp.RiskAssessment.RiskLevel, sp.RiskAssessment.RiskScore)
			}
			if len(sp.CveIDs) > 0 {
				fmt.Fprintf(&b, "  CVEs: %s\n", strings.Join(sp.CveIDs, ", "))
			}
			fmt.Fprintf(&b, "  securityProblemId: %s\n\n", sp.SecurityProblemID)
		}
		pageFooter(&b, len(list.SecurityProblems), list.TotalCount, list.NextPageKey)
		nextSteps(&b, `Use "get_vulnerability_details" with a securityProblemId for remediation guidance and affected entities`)
		return b.String()
	}), nil
}

func (r *Registry) getVulnerabilityDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, bad := requireString(args, "securityProblemId")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	sp, err := r.client.GetSecurityProblem(ctx, id, getString(args, "fields", "+riskAssessment,+affectedEntities,+description,+managementZones"))
	if err != nil {
		return apiError("get vulnerability "+id, err), nil
	}

	return render(args, sp, func() string {
		var b strings.Builder
		fmt.Fprintf(&b, "Vulnerability %s: %s\n", sp.DisplayID, sp.Title)
		fmt.Fprintf(&b, "- ID: %s\n", sp.SecurityProblemID)
		fmt.Fprintf(&b, "- Status: %s (muted: %v)\n", orDash(sp.Status), sp.Muted)
		fmt.Fprintf(&b, "- Technology: %s\n", orDash(sp.TechnologyType))
		fmt.Fprintf(&b, "- Type: %s\n", orDash(sp.VulnerabilityType))
		if sp.ExternalVulnerabilityID != "" {
			fmt.Fprintf(&b, "- External ID: %s\n", sp.ExternalVulnerabilityID)
		}
		if len(sp.CveIDs) > 0 {
			fmt.Fprintf(&b, "- CVEs: %s\n", strings.Join(sp.CveIDs, ", "))
		}
		fmt.Fprintf(&b, "- First Seen: %s\n", formatTime(sp.FirstSeenTimestamp))
		fmt.Fprintf(&b, "- Last Updated: %s\n", formatTime(sp.LastUpdatedTimestamp))
		if ra := sp.RiskAssessment; ra != nil {
			b.WriteString("\nRisk Assessment:\n")
			fmt.Fprintf(&b, "- Risk: %s (%.1f), base %s (%.1f)\n", ra.RiskLevel, ra.RiskScore, orDash(ra.BaseRiskLevel), ra.BaseRiskScore)
			fmt.Fprintf(&b, "- Exposure: %s, Data assets: %s\n", orDash(ra.Exposure), orDash(ra.DataAssets))
			fmt.Fprintf(&b, "- Public exploit: %s, Vulnerable function in use: %s\n", orDash(ra.PublicExploit), orDash(ra.VulnerableFunctionUsage))
		}
		if len(sp.AffectedEntities) > 0 {
			fmt.Fprintf(&b, "\nAffected Entities (%d): %s\n", len(sp.AffectedEntities), strings.Join(sp.AffectedEntities, ", "))
		}
		fmt.Fprintf(&b, "Management Zones: %s\n", zoneNames(sp.ManagementZones))
		if sp.Description != "" {
			fmt.Fprintf(&b, "\nDescription:\n%s\n", sp.Description)
		}
		if sp.Remediation != "" {
			fmt.Fprintf(&b, "\nRemediation:\n%s\n", sp.Remediation)
		}
		if sp.URL != "" {
			fmt.Fprintf(&b, "\nMore details: %s\n", sp.URL)
		}
		return b.String()
	}), nil
}
