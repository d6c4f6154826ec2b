package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/cxops/internal/contacts"
	"github.com/kalambet/cxops/internal/cxone"
	"github.com/kalambet/cxops/internal/dashboard"
	"github.com/kalambet/cxops/internal/lists"
	"github.com/kalambet/cxops/internal/report"
)

// MCPDeps holds dependencies for the MCP server. The fields mirror
// AppDeps; both surfaces drive the same operations.
type MCPDeps struct {
	Client    *cxone.Client
	Runner    *report.Runner
	Fetcher   *contacts.Fetcher
	Dashboard *dashboard.Aggregator
}

// NewMCPServer creates an MCP server exposing the console operations as
// agent tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"cxops",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("cxops: contact-center tenant operations. Run report jobs, fetch call lists and completed contacts, watch the live dashboard."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("run_report",
			mcp.WithDescription("Run a report job end to end: submit the template, wait for completion, return the decoded CSV. Blocks until the report is ready or the poll budget is exhausted."),
			mcp.WithString("template_id", mcp.Description("Report template ID"), mcp.Required()),
			mcp.WithString("additional_param", mcp.Description("Optional extra request parameter forwarded verbatim")),
		),
		mcpRunReport(deps),
	)

	s.AddTool(
		mcp.NewTool("report_status",
			mcp.WithDescription("Check the current state of a previously submitted report job."),
			mcp.WithString("job_id", mcp.Description("Report job ID"), mcp.Required()),
		),
		mcpReportStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("list_call_lists",
			mcp.WithDescription("Fetch the tenant's call lists. Optionally restrict to deactivated lists only."),
			mcp.WithBoolean("deactivated", mcp.Description("Return only deactivated list IDs")),
		),
		mcpListCallLists(deps),
	)

	s.AddTool(
		mcp.NewTool("fetch_completed_contacts",
			mcp.WithDescription("Fetch completed contacts in a time window as JSON records."),
			mcp.WithString("start", mcp.Description("Window start, e.g. 2026-08-30T00:00"), mcp.Required()),
			mcp.WithString("end", mcp.Description("Window end, e.g. 2026-08-31T00:00"), mcp.Required()),
			mcp.WithBoolean("all", mcp.Description("Page through the whole window instead of the first page")),
		),
		mcpCompletedContacts(deps),
	)

	s.AddTool(
		mcp.NewTool("dashboard_snapshot",
			mcp.WithDescription("Take a point-in-time snapshot of queue depth, active contacts and agent states."),
		),
		mcpDashboardSnapshot(deps),
	)

	return s
}

func mcpRunReport(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		templateID, err := req.RequireString("template_id")
		if err != nil {
			return mcpError("template_id is required"), nil
		}

		payload, err := deps.Runner.Run(ctx, report.Request{
			TemplateID:      templateID,
			AdditionalParam: req.GetString("additional_param", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("report job failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("%s\n%s", payload.FileName, payload.Content)), nil
	}
}

func mcpReportStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := req.RequireString("job_id")
		if err != nil {
			return mcpError("job_id is required"), nil
		}

		status, err := deps.Runner.CheckStatus(ctx, jobID)
		if err != nil {
			return mcpError(fmt.Sprintf("status check failed: %v", err)), nil
		}

		b, err := json.Marshal(map[string]string{
			"state":           status.State.String(),
			"result_file_url": status.ResultFileURL,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal status: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListCallLists(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		records, err := lists.Fetch(ctx, deps.Client)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to fetch call lists: %v", err)), nil
		}

		if req.GetBool("deactivated", false) {
			var ids []string
			for _, rec := range records {
				if fmt.Sprintf("%v", rec["status"]) == "Deactivated" {
					ids = append(ids, fmt.Sprintf("%v", rec["listId"]))
				}
			}
			if ids == nil {
				ids = []string{}
			}
			b, err := json.Marshal(ids)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to marshal ids: %v", err)), nil
			}
			return mcpText(string(b)), nil
		}

		if records == nil {
			records = []map[string]any{}
		}
		b, err := json.Marshal(records)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal call lists: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpCompletedContacts(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startRaw, err := req.RequireString("start")
		if err != nil {
			return mcpError("start is required"), nil
		}
		endRaw, err := req.RequireString("end")
		if err != nil {
			return mcpError("end is required"), nil
		}

		start, err := parseTimeParam(startRaw)
		if err != nil {
			return mcpError(fmt.Sprintf("invalid start: %v", err)), nil
		}
		end, err := parseTimeParam(endRaw)
		if err != nil {
			return mcpError(fmt.Sprintf("invalid end: %v", err)), nil
		}
		if !end.After(start) {
			return mcpError("end must be after start"), nil
		}

		records, err := deps.Fetcher.Fetch(ctx, contacts.Params{
			Start:    start,
			End:      end,
			Top:      contacts.DefaultTop,
			FetchAll: req.GetBool("all", false),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to fetch contacts: %v", err)), nil
		}

		if records == nil {
			records = []map[string]any{}
		}
		b, err := json.Marshal(records)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal contacts: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpDashboardSnapshot(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		snap, err := deps.Dashboard.Snapshot(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to take snapshot: %v", err)), nil
		}

		b, err := json.Marshal(snap)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal snapshot: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
