package tunable

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rvkernel/rvkernel-mcp/internal/safety"
	"github.com/rvkernel/rvkernel-mcp/internal/tools"
)

// DestructiveTools lists the tunable tools that need a confirmation token.
var DestructiveTools = []string{"tunable_write"}

// TunableTools returns the generic registry tools.
func TunableTools(svc *Service, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) []tools.Registration {
	return []tools.Registration{
		tunableList(svc, audit),
		tunableRead(svc, audit),
		tunableWrite(svc, confirm, audit),
	}
}

func tunableList(svc *Service, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("tunable_list",
		mcp.WithDescription("List the named kernel tunables known to the server."),
		mcp.WithString("group",
			mcp.Description("Only list this group: cpu, gpu, battery, memory, kernel, network, thermal or system"),
		),
		mcp.WithBoolean("check_exists",
			mcp.Description("Also report whether each node exists on this device"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		group := req.GetString("group", "")
		check := req.GetBool("check_exists", false)
		params := map[string]any{"group": group, "check_exists": check}

		entries := svc.List(ctx, group, check)

		tools.LogAudit(audit, "tunable_list", params, "ok", start)
		return tools.JSONResult(entries), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func tunableRead(svc *Service, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("tunable_read",
		mcp.WithDescription("Read one kernel tunable by name. Use tunable_list to discover names."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Tunable name, e.g. vm_swappiness or cpu_policy0_governor"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		name := req.GetString("name", "")
		params := map[string]any{"name": name}

		r, err := svc.Read(ctx, name)
		if err != nil {
			tools.LogAudit(audit, "tunable_read", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "tunable_read", params, "ok", start)
		return tools.JSONResult(r), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func tunableWrite(svc *Service, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "tunable_write"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Write a raw value to a kernel tunable by name. Values are written as-is with no range checks. Requires confirmation."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Tunable name"),
		),
		mcp.WithString("value",
			mcp.Required(),
			mcp.Description("Raw value written to the node"),
		),
		tools.WithConfirmationToken(),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		name := req.GetString("name", "")
		value := req.GetString("value", "")
		params := map[string]any{"name": name, "value": value}

		resource := fmt.Sprintf("%s=%s", name, value)
		if prompt := tools.RequireConfirmation(confirm, req, toolName, resource,
			fmt.Sprintf("This writes %q to %s without validation.", value, name)); prompt != nil {
			return prompt, nil
		}

		r, err := svc.Write(ctx, name, value)
		if err != nil {
			tools.LogAudit(audit, toolName, params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, params, "ok", start)
		return tools.JSONResult(r), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}
