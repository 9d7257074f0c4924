package system

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rvkernel/rvkernel-mcp/internal/safety"
	"github.com/rvkernel/rvkernel-mcp/internal/tools"
)

// SystemTools returns the tool registrations for the device overview.
// They are read-only and require no confirmation.
func SystemTools(mon SystemMonitor, audit *safety.AuditLogger) []tools.Registration {
	return []tools.Registration{
		systemOverview(mon, audit),
	}
}

// ---------------------------------------------------------------------------
// System tools
// ---------------------------------------------------------------------------

func systemOverview(mon SystemMonitor, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("system_overview",
		mcp.WithDescription("Get a device overview: model, Android and kernel version, uptime, CPU usage, memory, GPU load and thermal zone temperatures. CPU usage is measured since the previous sample and is null on the first one."),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		params := map[string]any{}

		overview, err := mon.GetOverview(ctx)
		if err != nil {
			tools.LogAudit(audit, "system_overview", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "system_overview", params, "ok", start)
		return tools.JSONResult(overview), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}
