package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dynatrace-oss/go-mcp-dynatrace-managed/pkg/dynatrace"
)

func (r *Registry) registerTagTools(s *server.MCPServer) {
	r.add(s, newTool("list_tags", "List Custom Tags",
		"[Query Tool] List the custom tags applied to the selected entities.",
		readTool,
		mcp.WithString("entitySelector", mcp.Required(),
			mcp.Description(`Entity selector, e.g. 'type("HOST")' or 'entityId("SERVICE-1234")'.`),
		),
		fromOption(),
		toOption(),
		formatOption(),
	), r.listTags)

	r.add(s, newTool("add_tags", "Add Custom Tags",
		"[Action Tool] Apply custom tags to every entity matching the selector.",
		writeTool,
		mcp.WithString("entitySelector", mcp.Required(),
			mcp.Description(`Entity selector, e.g. 'type("HOST"),entityName("web-1")'.`),
		),
		mcp.WithArray("tags", mcp.Required(),
			mcp.Description("Tags to apply, each an object with key and optional value."),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"key":   map[string]any{"type": "string"},
					"value": map[string]any{"type": "string"},
				},
				"required": []string{"key"},
			}),
		),
		fromOption(),
		toOption(),
	), r.addTags)

	r.add(s, newTool("delete_tags", "Delete Custom Tags",
		"[Action Tool] Remove a custom tag from every entity matching the selector.",
		deleteTool,
		mcp.WithString("entitySelector", mcp.Required(), mcp.Description("Entity selector.")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Key of the tag to remove.")),
		mcp.WithString("value", mcp.Description("Only remove the tag with this value.")),
		mcp.WithBoolean("deleteAllWithKey", mcp.Description("Remove every tag with this key regardless of value.")),
		fromOption(),
		toOption(),
	), r.deleteTags)
}

// tagMutationUnsupported reports whether the cluster lacks the tag write endpoints.
func tagMutationUnsupported(err error) bool {
	return errors.Is(err, dynatrace.ErrNotFound) || errors.Is(err, dynatrace.ErrMethodNotAllowed)
}

func tagUnsupportedResult(action string, err error) *mcp.CallToolResult {
	return errorResult(fmt.Sprintf("Failed to %s: %s\nTag modification is not supported in this Managed environment. "+
		"Manage tags through auto-tagging rules or the Dynatrace UI instead.", action, describeError(err)))
}

func (r *Registry) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	selector, bad := requireString(args, "entitySelector")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	list, err := r.client.ListTags(ctx, selector, timeframeArgs(args))
	if err != nil {
		return apiError("list tags", err), nil
	}

	return render(args, list, func() string {
		if len(list.Tags) == 0 {
			return "No custom tags found on the selected entities."
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Found %d custom tags:\n\n", list.TotalCount)
		for _, t := range list.Tags {
			fmt.Fprintf(&b, "- %s", tagStrings([]dynatrace.METag{t}))
			if t.Context != "" && t.Context != "CONTEXTLESS" {
				fmt.Fprintf(&b, " [%s]", t.Context)
			}
			b.WriteString("\n")
		}
		nextSteps(&b, `Filter other tools by tag with an entitySelector like 'tag("key:value")'`)
		return b.String()
	}), nil
}

func (r *Registry) addTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	selector, bad := requireString(args, "entitySelector")
	if bad != nil {
		return bad, nil
	}
	raw, _ := args["tags"].([]interface{})
	if len(raw) == 0 {
		return invalidArgs("tags must contain at least one tag"), nil
	}
	tags := make([]dynatrace.AddTag, 0, len(raw))
	for i, v := range raw {
		obj, ok := v.(map[string]interface{})
		if !ok {
			return invalidArgs("tags[%d] must be an object with a key", i), nil
		}
		key := getString(obj, "key", "")
		if key == "" {
			return invalidArgs("tags[%d].key is required", i), nil
		}
		tags = append(tags, dynatrace.AddTag{Key: key, Value: getString(obj, "value", "")})
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	res, err := r.client.AddTags(ctx, selector, timeframeArgs(args), tags)
	if err != nil {
		if tagMutationUnsupported(err) {
			return tagUnsupportedResult("add tags", err), nil
		}
		return apiError("add tags", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tags applied to %d entities.\n", res.MatchedEntitiesCount)
	if len(res.AppliedTags) > 0 {
		fmt.Fprintf(&b, "Applied: %s\n", tagStrings(res.AppliedTags))
	}
	return textResult(b.String()), nil
}

func (r *Registry) deleteTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := requestArgs(req)
	selector, bad := requireString(args, "entitySelector")
	if bad != nil {
		return bad, nil
	}
	key, bad := requireString(args, "key")
	if bad != nil {
		return bad, nil
	}

	ctx, cancel := toolContext(ctx)
	defer cancel()

	res, err := r.client.DeleteTags(ctx, dynatrace.DeleteTagsParams{
		Timeframe:        timeframeArgs(args),
		EntitySelector:   selector,
		Key:              key,
		Value:            getString(args, "value", ""),
		DeleteAllWithKey: getBool(args, "deleteAllWithKey", false),
	})
	if err != nil {
		if tagMutationUnsupported(err) {
			return tagUnsupportedResult("delete tags", err), nil
		}
		return apiError("delete tags", err), nil
	}
	return textResult(fmt.Sprintf("Tag %q removed from %d entities.", key, res.MatchedEntitiesCount)), nil
}
