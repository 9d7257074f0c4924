package battery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rvkernel/rvkernel-mcp/internal/safety"
	"github.com/rvkernel/rvkernel-mcp/internal/tools"
)

// DestructiveTools lists the battery tools that need a confirmation token.
var DestructiveTools = []string{
	"battery_set_bypass_charging",
	"battery_set_thermal_profile",
}

// BatteryTools returns the tool registrations for the battery screen.
func BatteryTools(mgr Manager, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) []tools.Registration {
	return []tools.Registration{
		batteryStatus(mgr, audit),
		batterySetFastCharge(mgr, audit),
		batterySetBypassCharging(mgr, confirm, audit),
		batterySetThermalProfile(mgr, confirm, audit),
	}
}

func batteryStatus(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("battery_status",
		mcp.WithDescription("Show battery level, charging state, temperature, voltage, current, capacity health and charging switches."),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		params := map[string]any{}

		st, err := mgr.Load(ctx)
		if err != nil {
			tools.LogAudit(audit, "battery_status", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "battery_status", params, "ok", start)
		return tools.JSONResult(st), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func batterySetFastCharge(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("battery_set_fast_charge",
		mcp.WithDescription("Force USB fast charging on or off."),
		mcp.WithBoolean("enabled",
			mcp.Required(),
			mcp.Description("true to force fast charging"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		enabled := req.GetBool("enabled", false)
		params := map[string]any{"enabled": enabled}

		if err := mgr.SetFastCharge(ctx, enabled); err != nil {
			tools.LogAudit(audit, "battery_set_fast_charge", params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "battery_set_fast_charge", params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("fast charge enabled=%t", enabled)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func batterySetBypassCharging(mgr Manager, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "battery_set_bypass_charging"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Suspend or resume charging input while plugged in. Requires confirmation."),
		mcp.WithBoolean("enabled",
			mcp.Required(),
			mcp.Description("true to power the device from the charger without charging the battery"),
		),
		tools.WithConfirmationToken(),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		enabled := req.GetBool("enabled", false)
		params := map[string]any{"enabled": enabled}

		resource := fmt.Sprintf("input_suspend=%t", enabled)
		if prompt := tools.RequireConfirmation(confirm, req, toolName, resource,
			"This changes whether the battery charges while a charger is connected."); prompt != nil {
			return prompt, nil
		}

		if err := mgr.SetBypassCharging(ctx, enabled); err != nil {
			tools.LogAudit(audit, toolName, params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("bypass charging enabled=%t", enabled)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func batterySetThermalProfile(mgr Manager, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "battery_set_thermal_profile"

	names := make([]string, 0, len(Profiles))
	for _, p := range Profiles {
		names = append(names, fmt.Sprintf("%s (%s)", p.Name, p.Value))
	}

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Set the thermal profile. Known profiles: "+strings.Join(names, ", ")+". Requires confirmation."),
		mcp.WithString("profile",
			mcp.Required(),
			mcp.Description("Profile name or raw numeric value"),
		),
		tools.WithConfirmationToken(),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		profile := req.GetString("profile", "")
		params := map[string]any{"profile": profile}

		if _, ok := ProfileValue(profile); !ok {
			tools.LogAudit(audit, toolName, params, "error: unknown profile", start)
			return tools.ErrorResult(fmt.Sprintf("unknown thermal profile %q", profile)), nil
		}

		if prompt := tools.RequireConfirmation(confirm, req, toolName, profile,
			"A thermal profile changes throttling limits for the whole device."); prompt != nil {
			return prompt, nil
		}

		if err := mgr.SetThermalProfile(ctx, profile); err != nil {
			tools.LogAudit(audit, toolName, params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("thermal profile set to %s", profile)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}
