package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/dynatrace"
)

// problemDetailFields are requested by get_problem_details unless overridden.
const problemDetailFields = "+evidenceDetails,+impactAnalysis,+recentComments"

func (r *Registry) registerProblemTools(s *server.MCPServer) {
	r.add(s, newTool("list_problems", "List Problems",
		"[Query Tool] List problems detected by Davis, newest first. Filter with a problem selector (status, severity, impact) or an entity selector.",
		readTool,
		mcp.WithString("problemSelector",
			mcp.Description(`Problem selector, e.g. 'status("open")', 'severityLevel("AVAILABILITY")', 'impactLevel("SERVICES")', 'managementZones("Production")'.`),
		),
		mcp.WithString("entitySelector",
			mcp.Description(`Only problems affecting these entities, e.g. 'type("SERVICE"),tag("team:checkout")'.`),
		),
		fromOption(),
		toOption(),
		mcp.WithString("fields", mcp.Description("Additional fields, e.g. '+evidenceDetails,+impactAnalysis'.")),
		mcp.WithString("sort", mcp.Description("Sort fields, prefix - for descending, e.g. '-startTime' or 'status,-startTime'.")),
		pageSizeOption(500),
		nextPageKeyOption(),
		formatOption(),
	), r.listProblems)

	r.add(s, newTool("get_problem", "Get Problem",
		"[Query Tool] Get one problem by its problemId.",
		readTool,
		mcp.WithString("problemId", mcp.Required(), mcp.Description("The problemId (not the displayId P-xxxx).")),
		mcp.WithString("fields", mcp.Description("Additional fields, e.g. '+evidenceDetails'.")),
		formatOption(),
	), r.getProblem)

	r.add(s, newTool("get_problem_details", "Get Problem Details",
		"[Query Tool] Get the full analysis of a problem: root cause, evidence, impact analysis and recent comments.",
		readTool,
		mcp.WithString("problemId", mcp.Required(), mcp.Description("The problemId (not the displayId P-xxxx).")),
		mcp.WithString("fields", mcp.Description("Fields to request. Default: '"+problemDetailFields+"'.")),
		formatOption(),
	), r.getProblemDetails)

	r.add(s, newTool("close_problem", "Close Problem",
		"[Action Tool] Close an open problem manually and record a closing comment.",
		writeTool,
		mcp.WithString("problemId", mcp.Required(), mcp.Description("The problemId to close.")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Closing comment explaining why the problem is closed.")),
	), r.closeProblem)
}

func (r *Registry) listProblems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	page, bad := pageArgs(args, 500)
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	list, err := r.client.ListProblems(ctx, dynatrace.ListProblemsParams{
		Page:            page,
		Timeframe:       timeframeArgs(args),
		Fields:          getString(args, "fields", ""),
		ProblemSelector: getString(args, "problemSelector", ""),
		EntitySelector:  getString(args, "entitySelector", ""),
		Sort:            getString(args, "sort", ""),
	})
	if err != nil {
		return apiError("list problems", err), nil
	}

	return render(args, list, func() string {
		if len(list.Problems) == 0 {
			return "No problems found"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d problems!\n\n", list.TotalCount)
		for _, p := range list.Problems {
			writeProblemSummary(&b, p)
			b.WriteString("\n")
		}
		for _, w := range list.Warnings {
			fmt.Fprintf(&b, "Warning: %s\n", w)
		}
		pageFooter(&b, len(list.Problems), list.TotalCount, list.NextPageKey)
		nextSteps(&b,
			`Use "get_problem_details" with a problemId for root cause, evidence and impact`,
			`Use "list_comments" to read the discussion on a problem`,
			`Use "get_monitored_entity_details" on an affected entity to inspect it`,
		)
		return b.String()
	}), nil
}

func writeProblemSummary(b *strings.Builder, p dynatrace.Problem) {
	fmt.Fprintf(b, "Problem %s (problemId: %s)\n", p.DisplayID, p.ProblemID)
	fmt.Fprintf(b, "  Title: %s\n", p.Title)
	fmt.Fprintf(b, "  Status: %s, Severity: %s, Impact: %s\n", p.Status, orDash(p.SeverityLevel), orDash(p.ImpactLevel))
	end := "ongoing"
	if p.EndTime > 0 {
		end = formatTime(p.EndTime)
	}
	fmt.Fprintf(b, "  Time: %s -> %s\n", formatTime(p.StartTime), end)
	if len(p.AffectedEntities) > 0 {
		names := make([]string, 0, len(p.AffectedEntities))
		for i := range p.AffectedEntities {
			names = append(names, stubName(&p.AffectedEntities[i]))
		}
		fmt.Fprintf(b, "  Affected: %s\n", strings.Join(names, ", "))
	}
	if p.RootCauseEntity != nil {
		fmt.Fprintf(b, "  Root cause: %s\n", stubName(p.RootCauseEntity))
	}
	if len(p.ManagementZones) > 0 {
		fmt.Fprintf(b, "  Management Zones: %s\n", zoneNames(p.ManagementZones))
	}
}

func (r *Registry) getProblem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return r.problem(ctx, req, "")
}

func (r *Registry) getProblemDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return r.problem(ctx, req, problemDetailFields)
}

func (r *Registry) problem(ctx context.Context, req mcp.CallToolRequest, defaultFields string) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, bad := requireString(args, "problemId")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	p, err := r.client.GetProblem(ctx, id, getString(args, "fields", defaultFields))
	if err != nil {
		return apiError("get problem "+id, err), nil
	}

	return render(args, p, func() string {
		var b strings.Builder
		writeProblemSummary(&b, *p)
		if len(p.ImpactedEntities) > 0 {
			names := make([]string, 0, len(p.ImpactedEntities))
			for i := range p.ImpactedEntities {
				names = append(names, stubName(&p.ImpactedEntities[i]))
			}
			fmt.Fprintf(&b, "  Impacted: %s\n", strings.Join(names, ", "))
		}
		if len(p.EntityTags) > 0 {
			fmt.Fprintf(&b, "  Tags: %s\n", tagStrings(p.EntityTags))
		}
		if len(p.ProblemFilters) > 0 {
			names := make([]string, 0, len(p.ProblemFilters))
			for _, f := range p.ProblemFilters {
				names = append(names, f.Name)
			}
			fmt.Fprintf(&b, "  Alerting profiles: %s\n", strings.Join(names, ", "))
		}
		if p.LinkedProblemInfo != nil {
			fmt.Fprintf(&b, "  Merged into: %s (%s)\n", p.LinkedProblemInfo.DisplayID, p.LinkedProblemInfo.ProblemID)
		}

		if ev := p.EvidenceDetails; ev != nil && len(ev.Details) > 0 {
			fmt.Fprintf(&b, "\nEvidence (%d):\n", ev.TotalCount)
			for _, e := range ev.Details {
				marker := ""
				if e.RootCauseRelevant {
					marker = " [root cause]"
				}
				fmt.Fprintf(&b, "- %s: %s on %s%s\n", e.EvidenceType, e.DisplayName, stubName(e.Entity), marker)
				if e.MetricID != "" {
					fmt.Fprintf(&b, "  metric %s changed %g -> %g %s\n", e.MetricID, e.ValueBeforeChangePoint, e.ValueAfterChangePoint, e.Unit)
				}
			}
		}

		if ia := p.ImpactAnalysis; ia != nil && len(ia.Impacts) > 0 {
			b.WriteString("\nImpact Analysis:\n")
			for _, im := range ia.Impacts {
				fmt.Fprintf(&b, "- %s: %s, estimated affected users %d\n", im.ImpactType, stubName(&im.ImpactedEntity), im.EstimatedAffectedUsers)
			}
		}

		if rc := p.RecentComments; rc != nil && len(rc.Comments) > 0 {
			fmt.Fprintf(&b, "\nRecent Comments (%d):\n", rc.TotalCount)
			for _, c := range rc.Comments {
				fmt.Fprintf(&b, "- %s %s: %s\n", formatTime(c.CreatedAtTimestamp), orDash(c.AuthorName), c.Content)
			}
		}

		nextSteps(&b,
			fmt.Sprintf(`Use "add_comment" with problemId %s to record findings`, p.ProblemID),
			`Use "list_events" with an entitySelector for the root cause entity to see related events`,
			`Use "close_problem" once the issue is resolved`,
		)
		return b.String()
	}), nil
}

func (r *Registry) closeProblem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, bad := requireString(args, "problemId")
	if bad != nil {
		return bad, nil
	}
	message, bad := requireString(args, "message")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	res, err := r.client.CloseProblem(ctx, id, message)
	if err != nil {
		return apiError("close problem "+id, err), nil
	}

	var b strings.Builder
	if res.Closing {
		fmt.Fprintf(&b, "Problem %s is being closed.\n", id)
	} else {
		fmt.Fprintf(&b, "Close request for problem %s accepted.\n", id)
	}
	if res.CloseTimestamp > 0 {
		fmt.Fprintf(&b, "Close time: %s\n", formatTime(res.CloseTimestamp))
	}
	if res.Comment != nil {
		fmt.Fprintf(&b, "Closing comment %s: %s\n", res.Comment.ID, res.Comment.Content)
	}
	return textResult(b.String()), nil
}

func (r *Registry) registerCommentTools(s *server.MCPServer) {
	r.add(s, newTool("list_comments", "List Problem Comments",
		"[Query Tool] List the comments on a problem.",
		readTool,
		mcp.WithString("problemId", mcp.Required(), mcp.Description("The problemId.")),
		pageSizeOption(500),
		nextPageKeyOption(),
		formatOption(),
	), r.listComments)

	r.add(s, newTool("get_comment", "Get Problem Comment",
		"[Query Tool] Get one comment on a problem.",
		readTool,
		mcp.WithString("problemId", mcp.Required(), mcp.Description("The problemId.")),
		mcp.WithString("commentId", mcp.Required(), mcp.Description("The comment ID.")),
		formatOption(),
	), r.getComment)

	r.add(s, newTool("add_comment", "Add Problem Comment",
		"[Action Tool] Add a comment to a problem, e.g. to record investigation findings.",
		writeTool,
		mcp.WithString("problemId", mcp.Required(), mcp.Description("The problemId.")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Comment text.")),
		mcp.WithString("context", mcp.Description("Optional context, e.g. the tool or ticket the comment came from.")),
	), r.addComment)

	r.add(s, newTool("update_comment", "Update Problem Comment",
		"[Action Tool] Replace the text of an existing comment.",
		writeTool,
		mcp.WithString("problemId", mcp.Required(), mcp.Description("The problemId.")),
		mcp.WithString("commentId", mcp.Required(), mcp.Description("The comment ID.")),
		mcp.WithString("message", mcp.Required(), mcp.Description("New comment text.")),
		mcp.WithString("context", mcp.Description("Optional context.")),
	), r.updateComment)

	r.add(s, newTool("delete_comment", "Delete Problem Comment",
		"[Action Tool] Delete a comment from a problem.",
		deleteTool,
		mcp.WithString("problemId", mcp.Required(), mcp.Description("The problemId.")),
		mcp.WithString("commentId", mcp.Required(), mcp.Description("The comment ID.")),
	), r.deleteComment)
}

func (r *Registry) listComments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	id, bad := requireString(args, "problemId")
	if bad != nil {
		return bad, nil
	}
	page, bad := pageArgs(args, 500)
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	list, err := r.client.ListComments(ctx, id, page)
	if err != nil {
		return apiError("list comments for problem "+id, err), nil
	}

	return render(args, list, func() string {
		if len(list.Comments) == 0 {
			return fmt.Sprintf("No comments on problem %s.", id)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Problem %s has %d comments:\n\n", id, list.TotalCount)
		for _, c := range list.Comments {
			writeComment(&b, c)
		}
		pageFooter(&b, len(list.Comments), list.TotalCount, list.NextPageKey)
		return b.String()
	}), nil
}

func writeComment(b *strings.Builder, c dynatrace.Comment) {
	fmt.Fprintf(b, "- [%s] %s by %s", c.ID, formatTime(c.CreatedAtTimestamp), orDash(c.AuthorName))
	if c.Context != "" {
		fmt.Fprintf(b, " (context: %s)", c.Context)
	}
	fmt.Fprintf(b, "\n  %s\n", c.Content)
}

func (r *Registry) getComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	problemID, bad := requireString(args, "problemId")
	if bad != nil {
		return bad, nil
	}
	commentID, bad := requireString(args, "commentId")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	c, err := r.client.GetComment(ctx, problemID, commentID)
	if err != nil {
		return apiError("get comment "+commentID, err), nil
	}

	return render(args, c, func() string {
		var b strings.Builder
		writeComment(&b, *c)
		return b.String()
	}), nil
}

func (r *Registry) addComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	problemID, bad := requireString(args, "problemId")
	if bad != nil {
		return bad, nil
	}
	message, bad := requireString(args, "message")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	c, err := r.client.AddComment(ctx, problemID, dynatrace.CommentRequest{
		Message: message,
		Context: getString(args, "context", ""),
	})
	if err != nil {
		return apiError("add comment to problem "+problemID, err), nil
	}
	if c.ID == "" {
		return textResult(fmt.Sprintf("Comment added to problem %s.", problemID)), nil
	}
	return textResult(fmt.Sprintf("Comment %s added to problem %s.", c.ID, problemID)), nil
}

func (r *Registry) updateComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	problemID, bad := requireString(args, "problemId")
	if bad != nil {
		return bad, nil
	}
	commentID, bad := requireString(args, "commentId")
	if bad != nil {
		return bad, nil
	}
	message, bad := requireString(args, "message")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	err := r.client.UpdateComment(ctx, problemID, commentID, dynatrace.CommentRequest{
		Message: message,
		Context: getString(args, "context", ""),
	})
	if err != nil {
		return apiError("update comment "+commentID, err), nil
	}
	return textResult(fmt.Sprintf("Comment %s on problem %s updated.", commentID, problemID)), nil
}

func (r *Registry) deleteComment(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	problemID, bad := requireString(args, "problemId")
	if bad != nil {
		return bad, nil
	}
	commentID, bad := requireString(args, "commentId")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	if err := r.client.DeleteComment(ctx, problemID, commentID); err != nil {
		return apiError("delete comment "+commentID, err), nil
	}
	return textResult(fmt.Sprintf("Comment %s deleted from problem %s.", commentID, problemID)), nil
}
