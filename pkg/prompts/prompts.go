// Package prompts provides MCP prompt templates for common Dynatrace Managed workflows
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Registry holds all prompt registrations
type Registry struct {
	prompts  []mcp.Prompt
	handlers map[string]PromptHandler
}

// PromptHandler generates a prompt result for given arguments
type PromptHandler func(arguments map[string]string) (*mcp.GetPromptResult, error)

// NewRegistry creates a new prompt registry
func NewRegistry() *Registry {
	r := &Registry{
		prompts:  make([]mcp.Prompt, 0),
		handlers: make(map[string]PromptHandler),
	}
	r.registerAll()
	return r
}

// ListPrompts returns the available prompts
func (r *Registry) ListPrompts() []mcp.Prompt {
	return r.prompts
}

// GetPrompt returns a prompt result for the given name and arguments
func (r *Registry) GetPrompt(name string, arguments map[string]string) (*mcp.GetPromptResult, error) {
	handler, exists := r.handlers[name]
	if !exists {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}
	return handler(arguments)
}

// Register adds every prompt to the MCP server.
func (r *Registry) Register(s *server.MCPServer) {
	for _, p := range r.prompts {
		name := p.Name
		s.AddPrompt(p, func(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
			return r.GetPrompt(name, req.Params.Arguments)
		})
	}
}

func (r *Registry) registerPrompt(prompt mcp.Prompt, handler PromptHandler) {
	r.prompts = append(r.prompts, prompt)
	r.handlers[prompt.Name] = handler
}

func (r *Registry) registerAll() {
	r.registerEntityDeepDive()
	r.registerDailySummary()
	r.registerProblemTriage()
	r.registerExploreTags()
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return mcp.NewGetPromptResult(description, []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
	})
}

func (r *Registry) registerEntityDeepDive() {
	r.registerPrompt(mcp.NewPrompt("entity-deep-dive",
		mcp.WithPromptDescription("Perform a comprehensive analysis of a monitored entity (service, host, process group, application) using the Managed API v2 tools"),
		mcp.WithArgument("entity_name",
			mcp.ArgumentDescription("Name of the entity to analyze"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("entity_type",
			mcp.ArgumentDescription("Entity type, e.g. SERVICE, HOST, PROCESS_GROUP. Default: SERVICE"),
		),
		mcp.WithArgument("timeframe",
			mcp.ArgumentDescription("Relative timeframe such as now-1h, now-24h or now-7d. Default: now-24h"),
		),
	), func(args map[string]string) (*mcp.GetPromptResult, error) {
		entityName := getString(args, "entity_name", "")
		if entityName == "" {
			return nil, fmt.Errorf("entity_name is required")
		}
		entityType := strings.ToUpper(getString(args, "entity_type", "SERVICE"))
		timeframe := getString(args, "timeframe", "now-24h")

		promptText := fmt.Sprintf(`# Entity Deep Dive Analysis

Analyze the %s entity "%s" for the timeframe from %s to now.

## Analysis Steps

### 1. Entity Discovery
Use **find_monitored_entity_by_name** with:
- entityType: "%s"
- name: "%s"

Note the entity ID. If several entities match, ask which one is meant before continuing.

### 2. Entity Details
Use **get_monitored_entity_details** with the entity ID:
- Note properties, tags and management zones
- Note incoming and outgoing relationships (callers, callees, hosts, process groups)

### 3. Problems
Use **list_problems** with:
- entitySelector: entityId("<entity_id>")
- from: "%s"

For each problem, use **get_problem_details** to read root cause and evidence.

### 4. Events
Use **list_events** with:
- entitySelector: entityId("<entity_id>")
- from: "%s"

Look for deployments, configuration changes and restarts that line up with problems.

### 5. Metrics
Use **query_metrics** with an entitySelector of entityId("<entity_id>") and from "%s".

For **services**: builtin:service.response.time, builtin:service.errors.total.rate, builtin:service.requestCount.total
For **hosts**: builtin:host.cpu.usage, builtin:host.mem.usage, builtin:host.disk.usedPct
For **process groups**: builtin:tech.generic.cpu.usage, builtin:tech.generic.mem.workingSetSize

Use **list_metrics** with a text search if you need other metrics.

### 6. Logs
Use **get_logs_for_entity** with the entity ID, from "%s" and query status="ERROR" to find recent errors.

## Summary
After gathering all information:
1. Summarize the entity's current health status
2. Highlight any open or recent problems
3. Note performance trends (improving, degrading, stable)
4. Call out events or log errors that explain the findings
5. Recommend next steps if issues are found
`, entityType, entityName, timeframe, entityType, entityName, timeframe, timeframe, timeframe, timeframe)

		return userPrompt(fmt.Sprintf("Deep dive analysis of entity: %s", entityName), promptText), nil
	})
}

func (r *Registry) registerDailySummary() {
	r.registerPrompt(mcp.NewPrompt("daily-summary",
		mcp.WithPromptDescription("Generate a daily operations summary covering problems, events, configuration changes and vulnerabilities"),
		mcp.WithArgument("timeframe",
			mcp.ArgumentDescription("Relative timeframe such as now-12h or now-24h. Default: now-24h"),
		),
		mcp.WithArgument("focus_area",
			mcp.ArgumentDescription("Optional focus area: 'all', 'problems', 'changes', 'security'. Default: all"),
		),
	), func(args map[string]string) (*mcp.GetPromptResult, error) {
		timeframe := getString(args, "timeframe", "now-24h")
		focusArea := getString(args, "focus_area", "all")

		var b strings.Builder
		fmt.Fprintf(&b, `# Daily Operations Summary

Generate an operations summary for the timeframe from %s to now.

Start with **get_environment_info** to confirm connectivity and note the cluster version.

`, timeframe)

		if focusArea == "all" || focusArea == "problems" {
			fmt.Fprintf(&b, `## Problems
Use **list_problems** with from "%s" and pageSize 50.
Then use **list_problems** with problemSelector status("open") to isolate what is still open.

For each problem note display ID, status, severity, impact level, affected entities and duration.

Categorize problems as:
- **Critical**: still open and affecting services or applications
- **Resolved**: closed within the timeframe
- **Recurring**: the same title or root cause entity appearing more than once

`, timeframe)
		}

		if focusArea == "all" || focusArea == "changes" {
			fmt.Fprintf(&b, `## Changes
Use **list_events** with from "%s" and eventSelector eventType("CUSTOM_DEPLOYMENT") for deployments,
and eventType("CUSTOM_CONFIGURATION") for configuration changes.

Use **list_audit_logs** with from "%s" to see who changed monitoring configuration.

Correlate changes with the start times of problems.

`, timeframe, timeframe)
		}

		if focusArea == "all" || focusArea == "security" {
			b.WriteString(`## Security Vulnerabilities
Use **list_vulnerabilities** with securityProblemSelector riskLevel("CRITICAL","HIGH") and status("OPEN").

Summarize total open critical and high vulnerabilities, the most affected technologies,
and any with a public exploit.

`)
		}

		fmt.Fprintf(&b, `## Report Format

### Executive Summary
- Overall health: Healthy, Degraded or Critical
- Key numbers at a glance

### Open Issues Requiring Attention
1. Open problems by severity
2. High risk vulnerabilities

### Resolved Since %s
- Problems closed and how long they were open

### Recommendations
- Immediate actions
- Follow-up items
`, timeframe)

		return userPrompt(fmt.Sprintf("Daily operations summary since %s", timeframe), b.String()), nil
	})
}

func (r *Registry) registerProblemTriage() {
	r.registerPrompt(mcp.NewPrompt("problem-triage",
		mcp.WithPromptDescription("Triage a Davis problem: gather root cause, evidence, impact and discussion, then record findings as a comment"),
		mcp.WithArgument("problem_id",
			mcp.ArgumentDescription("The problemId of the problem to triage"),
			mcp.RequiredArgument(),
		),
	), func(args map[string]string) (*mcp.GetPromptResult, error) {
		problemID := getString(args, "problem_id", "")
		if problemID == "" {
			return nil, fmt.Errorf("problem_id is required")
		}

		promptText := fmt.Sprintf(`# Problem Triage

Triage problem %[1]s.

## Step 1: Problem Details
Use **get_problem_details** with problemId "%[1]s".
Note status, severity, impact level, start time, root cause entity and each piece of evidence.

## Step 2: Discussion So Far
Use **list_comments** with problemId "%[1]s" to see what others already found.

## Step 3: Root Cause Entity
If a root cause entity is present:
- Use **get_monitored_entity_details** on it
- Use **list_events** with entitySelector entityId("<root_cause_id>") and a timeframe starting one hour before the problem
- Use **get_logs_for_entity** on it with query status="ERROR"

## Step 4: Impact
Review the impact analysis. For each impacted service or application, note the estimated affected users.

## Step 5: Record Findings
Summarize the likely cause, impact and recommended action, then use **add_comment** with
problemId "%[1]s" and context "problem-triage" to record it.

Do not close the problem unless the user confirms it is resolved. If they do, use **close_problem**
with a message describing the resolution.
`, problemID)

		return userPrompt(fmt.Sprintf("Triage of problem %s", problemID), promptText), nil
	})
}

func (r *Registry) registerExploreTags() {
	r.registerPrompt(mcp.NewPrompt("explore-tags",
		mcp.WithPromptDescription("Explore custom tags on a set of entities, find untagged entities and suggest tagging improvements"),
		mcp.WithArgument("entity_selector",
			mcp.ArgumentDescription(`Entity selector for the entities to inspect, e.g. type("HOST") or type("SERVICE"),mzName("Production")`),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("tag_key",
			mcp.ArgumentDescription("Optional: focus on a specific tag key (e.g. 'environment', 'owner', 'team')"),
		),
	), func(args map[string]string) (*mcp.GetPromptResult, error) {
		selector := getString(args, "entity_selector", "")
		if selector == "" {
			return nil, fmt.Errorf("entity_selector is required")
		}
		tagKey := getString(args, "tag_key", "")

		var b strings.Builder
		fmt.Fprintf(&b, `# Tag Exploration and Analysis

Analyze custom tags on the entities matching %s.

## Step 1: Discover Tags
Use **list_tags** with entitySelector %s.
`, selector, selector)

		if tagKey != "" {
			fmt.Fprintf(&b, `
Focus on tag key **%[1]s**. Then use **list_entities** with entitySelector %[2]s,tag("%[1]s")
to see which entities carry it.
`, tagKey, selector)
		}

		fmt.Fprintf(&b, `
## Step 2: Tag Coverage
Use **list_entities** with entitySelector %s and fields +tags.
Count entities without tags, and entities missing the common keys below.

Common important tags:
- environment (prod, staging, dev)
- owner / team
- application
- criticality

## Step 3: Tagging Recommendations

### Missing Tags
- Which entities lack important tags?

### Tag Standardization
- Are there inconsistent values (e.g. "prod" vs "production")?

### Applying Tags
Tags can be applied with **add_tags**. Some Managed clusters do not allow tag changes through the API;
in that case recommend auto-tagging rules instead.

## Summary
Provide:
1. Tag coverage (share of entities tagged)
2. Most used tag keys
3. Issues found (untagged entities, inconsistencies)
4. Prioritized recommendations
`, selector)

		return userPrompt("Tag exploration and analysis", b.String()), nil
	})
}

// Helper function to get string from args
func getString(args map[string]string, key string, defaultVal string) string {
	if args == nil {
		return defaultVal
	}
	if val := strings.TrimSpace(args[key]); val != "" {
		return val
	}
	return defaultVal
}
