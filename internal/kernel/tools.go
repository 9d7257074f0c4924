package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rvkernel/rvkernel-mcp/internal/safety"
	"github.com/rvkernel/rvkernel-mcp/internal/tools"
	"github.com/rvkernel/rvkernel-mcp/internal/transform"
)

// DestructiveTools lists the kernel and memory tools that need a
// confirmation token.
var DestructiveTools = []string{
	"kernel_set_printk",
	"memory_set_zram_algorithm",
	"memory_set_zram_size",
}

// KernelTools returns the tool registrations for kernel and memory
// parameters.
func KernelTools(mgr Manager, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) []tools.Registration {
	return []tools.Registration{
		kernelStatus(mgr, audit),
		memoryStatus(mgr, audit),
		kernelSetSchedAutogroup(mgr, audit),
		kernelSetPrintk(mgr, confirm, audit),
		kernelSetUtilClamp(mgr, audit),
		kernelSetTCPCongestion(mgr, audit),
		memorySetSwappiness(mgr, audit),
		memorySetDirtyRatio(mgr, audit),
		memorySetZramAlgorithm(mgr, confirm, audit),
		memorySetZramSize(mgr, confirm, audit),
	}
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func kernelStatus(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("kernel_status",
		mcp.WithDescription("Show scheduler autogroup, printk levels, util clamp and TCP congestion control."),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		params := map[string]any{}

		st, err := mgr.Load(ctx)
		if err != nil {
			tools.LogAudit(audit, "kernel_status", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "kernel_status", params, "ok", start)
		return tools.JSONResult(st.Params), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func memoryStatus(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("memory_status",
		mcp.WithDescription("Show ZRAM size and algorithm, swappiness and dirty ratios."),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		params := map[string]any{}

		st, err := mgr.Load(ctx)
		if err != nil {
			tools.LogAudit(audit, "memory_status", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "memory_status", params, "ok", start)
		return tools.JSONResult(st.Memory), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// ---------------------------------------------------------------------------
// Kernel writes
// ---------------------------------------------------------------------------

func kernelSetSchedAutogroup(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("kernel_set_sched_autogroup",
		mcp.WithDescription("Enable or disable scheduler autogrouping."),
		mcp.WithBoolean("enabled",
			mcp.Required(),
			mcp.Description("true to enable autogroup"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		enabled := req.GetBool("enabled", false)
		params := map[string]any{"enabled": enabled}

		if err := mgr.SetSchedAutogroup(ctx, enabled); err != nil {
			tools.LogAudit(audit, "kernel_set_sched_autogroup", params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "kernel_set_sched_autogroup", params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("sched_autogroup enabled=%t", enabled)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func kernelSetPrintk(mgr Manager, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "kernel_set_printk"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Set the four printk console log levels, e.g. \"4 4 1 7\". Requires confirmation."),
		mcp.WithString("levels",
			mcp.Required(),
			mcp.Description("Four levels 0-7: console, default message, minimum console, boot-time default"),
		),
		tools.WithConfirmationToken(),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		levels := req.GetString("levels", "")
		params := map[string]any{"levels": levels}

		normalized, err := normalizePrintk(levels)
		if err != nil {
			tools.LogAudit(audit, toolName, params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		if prompt := tools.RequireConfirmation(confirm, req, toolName, normalized,
			"Raising printk levels can flood the kernel log and slow the device."); prompt != nil {
			return prompt, nil
		}

		if err := mgr.SetPrintk(ctx, normalized); err != nil {
			tools.LogAudit(audit, toolName, params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, params, "ok", start)
		return mcp.NewToolResultText("printk set to " + normalized), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func kernelSetUtilClamp(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("kernel_set_util_clamp",
		mcp.WithDescription("Set sched_util_clamp_min or sched_util_clamp_max (0-1024)."),
		mcp.WithString("bound",
			mcp.Required(),
			mcp.Description("Which clamp to set"),
			mcp.Enum("min", "max"),
		),
		mcp.WithNumber("value",
			mcp.Required(),
			mcp.Description("Clamp value 0-1024"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		bound := req.GetString("bound", "")
		value := req.GetInt("value", -1)
		params := map[string]any{"bound": bound, "value": value}

		if bound != "min" && bound != "max" {
			tools.LogAudit(audit, "kernel_set_util_clamp", params, "error: unknown bound", start)
			return tools.ErrorResult(fmt.Sprintf("bound must be min or max, got %q", bound)), nil
		}

		if err := mgr.SetUtilClamp(ctx, bound == "max", value); err != nil {
			tools.LogAudit(audit, "kernel_set_util_clamp", params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "kernel_set_util_clamp", params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("sched_util_clamp_%s set to %d", bound, value)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func kernelSetTCPCongestion(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("kernel_set_tcp_congestion",
		mcp.WithDescription("Set the TCP congestion control algorithm. It must be listed as available."),
		mcp.WithString("algorithm",
			mcp.Required(),
			mcp.Description("Algorithm name, e.g. bbr or cubic"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		algorithm := req.GetString("algorithm", "")
		params := map[string]any{"algorithm": algorithm}

		if err := mgr.SetTCPCongestion(ctx, algorithm); err != nil {
			tools.LogAudit(audit, "kernel_set_tcp_congestion", params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "kernel_set_tcp_congestion", params, "ok", start)
		return mcp.NewToolResultText("tcp congestion control set to " + algorithm), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// ---------------------------------------------------------------------------
// Memory writes
// ---------------------------------------------------------------------------

func memorySetSwappiness(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("memory_set_swappiness",
		mcp.WithDescription("Set vm.swappiness (0-200)."),
		mcp.WithNumber("value",
			mcp.Required(),
			mcp.Description("Swappiness 0-200"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		value := req.GetInt("value", -1)
		params := map[string]any{"value": value}

		if err := mgr.SetSwappiness(ctx, value); err != nil {
			tools.LogAudit(audit, "memory_set_swappiness", params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "memory_set_swappiness", params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("swappiness set to %d", value)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func memorySetDirtyRatio(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("memory_set_dirty_ratio",
		mcp.WithDescription("Set vm.dirty_ratio, or vm.dirty_background_ratio with background=true (0-100)."),
		mcp.WithNumber("value",
			mcp.Required(),
			mcp.Description("Percentage of memory 0-100"),
		),
		mcp.WithBoolean("background",
			mcp.Description("Set dirty_background_ratio instead of dirty_ratio"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		value := req.GetInt("value", -1)
		background := req.GetBool("background", false)
		params := map[string]any{"value": value, "background": background}

		if err := mgr.SetDirtyRatio(ctx, background, value); err != nil {
			tools.LogAudit(audit, "memory_set_dirty_ratio", params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		name := "dirty_ratio"
		if background {
			name = "dirty_background_ratio"
		}
		tools.LogAudit(audit, "memory_set_dirty_ratio", params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("%s set to %d", name, value)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func memorySetZramAlgorithm(mgr Manager, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "memory_set_zram_algorithm"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Change the ZRAM compression algorithm. The swap device is reset, so swapped pages are pulled back into RAM first. Requires confirmation."),
		mcp.WithString("algorithm",
			mcp.Required(),
			mcp.Description("Algorithm name, e.g. lz4 or zstd"),
		),
		tools.WithConfirmationToken(),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		algorithm := req.GetString("algorithm", "")
		params := map[string]any{"algorithm": algorithm}

		if prompt := tools.RequireConfirmation(confirm, req, toolName, algorithm,
			"ZRAM will be swapped off, reset and re-created with the new algorithm."); prompt != nil {
			return prompt, nil
		}

		if err := mgr.SetZramAlgorithm(ctx, algorithm); err != nil {
			tools.LogAudit(audit, toolName, params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, params, "ok", start)
		return mcp.NewToolResultText("zram algorithm set to " + algorithm), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func memorySetZramSize(mgr Manager, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	const toolName = "memory_set_zram_size"

	tool := mcp.NewTool(toolName,
		mcp.WithDescription("Resize ZRAM. The swap device is reset and re-created. Requires confirmation."),
		mcp.WithString("size",
			mcp.Required(),
			mcp.Description("Size in bytes or with a suffix, e.g. 4G or 3072M"),
		),
		tools.WithConfirmationToken(),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		size := req.GetString("size", "")
		params := map[string]any{"size": size}

		bytes, err := transform.ParseSize(size)
		if err != nil {
			tools.LogAudit(audit, toolName, params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		resource := transform.FormatBytes(bytes)
		if prompt := tools.RequireConfirmation(confirm, req, toolName, resource,
			"ZRAM will be swapped off, reset and re-created at "+resource+"."); prompt != nil {
			return prompt, nil
		}

		if err := mgr.SetZramSize(ctx, bytes); err != nil {
			tools.LogAudit(audit, toolName, params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, toolName, params, "ok", start)
		return mcp.NewToolResultText("zram size set to " + resource), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}
