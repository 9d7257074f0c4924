package soc

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rvkernel/rvkernel-mcp/internal/paths"
	"github.com/rvkernel/rvkernel-mcp/internal/safety"
	"github.com/rvkernel/rvkernel-mcp/internal/tools"
)

// DestructiveTools lists the SoC tools that need a confirmation token.
var DestructiveTools = []string{"gpu_set_throttling"}

// SoCTools returns the tool registrations for CPU clusters and the GPU.
func SoCTools(mgr Manager, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) []tools.Registration {
	return []tools.Registration{
		socStatus(mgr, audit),
		socCluster(mgr, audit),
		gpuStatus(mgr, audit),
		cpuSetFreq(mgr, audit),
		cpuSetGovernor(mgr, audit),
		gpuSetFreq(mgr, audit),
		gpuSetGovernor(mgr, audit),
		gpuSetBoost(mgr, audit),
		gpuSetThrottling(mgr, confirm, audit),
	}
}

func clusterOption() mcp.ToolOption {
	return mcp.WithString("cluster",
		mcp.Required(),
		mcp.Description("CPU cluster"),
		mcp.Enum(paths.ClusterLittle.String(), paths.ClusterBig.String(), paths.ClusterPrime.String()),
	)
}

func boundOption() mcp.ToolOption {
	return mcp.WithString("bound",
		mcp.Required(),
		mcp.Description("Which limit to set"),
		mcp.Enum(string(BoundMin), string(BoundMax)),
	)
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func socStatus(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("soc_status",
		mcp.WithDescription("Show frequencies and governors of every CPU cluster and the GPU."),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		params := map[string]any{}

		st, err := mgr.Load(ctx)
		if err != nil {
			tools.LogAudit(audit, "soc_status", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "soc_status", params, "ok", start)
		return tools.JSONResult(st), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func socCluster(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("soc_cluster",
		mcp.WithDescription("Show one CPU cluster, including its frequency table."),
		clusterOption(),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		name := req.GetString("cluster", "")
		params := map[string]any{"cluster": name}

		cluster, ok := paths.ParseCluster(name)
		if !ok {
			tools.LogAudit(audit, "soc_cluster", params, "error: unknown cluster", start)
			return tools.ErrorResult(fmt.Sprintf("unknown cluster %q", name)), nil
		}

		cs, err := mgr.Cluster(ctx, cluster)
		if err != nil {
			tools.LogAudit(audit, "soc_cluster", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "soc_cluster", params, "ok", start)
		return tools.JSONResult(cs), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func gpuStatus(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("gpu_status",
		mcp.WithDescription("Show GPU frequency, load, governor, boost and throttling."),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		params := map[string]any{}

		g, err := mgr.GPU(ctx)
		if err != nil {
			tools.LogAudit(audit, "gpu_status", params, "error: "+err.Error(), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "gpu_status", params, "ok", start)
		return tools.JSONResult(g), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// ---------------------------------------------------------------------------
// CPU writes
// ---------------------------------------------------------------------------

func cpuSetFreq(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("cpu_set_freq",
		mcp.WithDescription("Set the minimum or maximum frequency of a CPU cluster. The value must appear in the cluster's frequency table."),
		clusterOption(),
		boundOption(),
		mcp.WithNumber("mhz",
			mcp.Required(),
			mcp.Description("Frequency in MHz"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		name := req.GetString("cluster", "")
		boundName := req.GetString("bound", "")
		mhz := req.GetInt("mhz", 0)
		params := map[string]any{"cluster": name, "bound": boundName, "mhz": mhz}

		cluster, ok := paths.ParseCluster(name)
		if !ok {
			tools.LogAudit(audit, "cpu_set_freq", params, "error: unknown cluster", start)
			return tools.ErrorResult(fmt.Sprintf("unknown cluster %q", name)), nil
		}
		bound, ok := ParseBound(boundName)
		if !ok {
			tools.LogAudit(audit, "cpu_set_freq", params, "error: unknown bound", start)
			return tools.ErrorResult(fmt.Sprintf("bound must be min or max, got %q", boundName)), nil
		}

		if err := mgr.SetCPUFreq(ctx, cluster, bound, int64(mhz)); err != nil {
			tools.LogAudit(audit, "cpu_set_freq", params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "cpu_set_freq", params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("%s cluster %s frequency set to %d MHz", cluster, bound, mhz)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func cpuSetGovernor(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("cpu_set_governor",
		mcp.WithDescription("Set the scaling governor of a CPU cluster."),
		clusterOption(),
		mcp.WithString("governor",
			mcp.Required(),
			mcp.Description("Governor name, e.g. schedutil or performance"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		name := req.GetString("cluster", "")
		governor := req.GetString("governor", "")
		params := map[string]any{"cluster": name, "governor": governor}

		cluster, ok := paths.ParseCluster(name)
		if !ok {
			tools.LogAudit(audit, "cpu_set_governor", params, "error: unknown cluster", start)
			return tools.ErrorResult(fmt.Sprintf("unknown cluster %q", name)), nil
		}

		if err := mgr.SetCPUGovernor(ctx, cluster, governor); err != nil {
			tools.LogAudit(audit, "cpu_set_governor", params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "cpu_set_governor", params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("%s cluster governor set to %s", cluster, governor)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

// ---------------------------------------------------------------------------
// GPU writes
// ---------------------------------------------------------------------------

func gpuSetFreq(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("gpu_set_freq",
		mcp.WithDescription("Set the minimum or maximum GPU frequency. The value must appear in the GPU frequency table."),
		boundOption(),
		mcp.WithNumber("mhz",
			mcp.Required(),
			mcp.Description("Frequency in MHz"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		boundName := req.GetString("bound", "")
		mhz := req.GetInt("mhz", 0)
		params := map[string]any{"bound": boundName, "mhz": mhz}

		bound, ok := ParseBound(boundName)
		if !ok {
			tools.LogAudit(audit, "gpu_set_freq", params, "error: unknown bound", start)
			return tools.ErrorResult(fmt.Sprintf("bound must be min or max, got %q", boundName)), nil
		}

		if err := mgr.SetGPUFreq(ctx, bound, int64(mhz)); err != nil {
			tools.LogAudit(audit, "gpu_set_freq", params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "gpu_set_freq", params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("GPU %s frequency set to %d MHz", bound, mhz)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func gpuSetGovernor(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("gpu_set_governor",
		mcp.WithDescription("Set the GPU devfreq governor."),
		mcp.WithString("governor",
			mcp.Required(),
			mcp.Description("Governor name, e.g. msm-adreno-tz or performance"),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		governor := req.GetString("governor", "")
		params := map[string]any{"governor": governor}

		if err := mgr.SetGPUGovernor(ctx, governor); err != nil {
			tools.LogAudit(audit, "gpu_set_governor", params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "gpu_set_governor", params, "ok", start)
		return mcp.NewToolResultText("GPU governor set to " + governor), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func gpuSetBoost(mgr Manager, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("gpu_set_boost",
		mcp.WithDescription("Set the Adreno boost level: 0 off, 1 low, 2 medium, 3 high."),
		mcp.WithNumber("level",
			mcp.Required(),
			mcp.Description("Boost level 0-3"),
			mcp.Min(0),
			mcp.Max(3),
		),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		level := req.GetInt("level", -1)
		params := map[string]any{"level": level}

		if err := mgr.SetGPUBoost(ctx, level); err != nil {
			tools.LogAudit(audit, "gpu_set_boost", params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "gpu_set_boost", params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("GPU boost set to %d", level)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}

func gpuSetThrottling(mgr Manager, confirm *safety.ConfirmationTracker, audit *safety.AuditLogger) tools.Registration {
	tool := mcp.NewTool("gpu_set_throttling",
		mcp.WithDescription("Enable or disable GPU thermal throttling. Disabling it requires confirmation."),
		mcp.WithBoolean("enabled",
			mcp.Required(),
			mcp.Description("true to let the GPU throttle under heat"),
		),
		tools.WithConfirmationToken(),
	)

	handler := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		enabled := req.GetBool("enabled", true)
		params := map[string]any{"enabled": enabled}

		if !enabled {
			if prompt := tools.RequireConfirmation(confirm, req, "gpu_set_throttling", "gpu",
				"Disabling throttling lets the GPU run at full clock regardless of temperature."); prompt != nil {
				return prompt, nil
			}
		}

		if err := mgr.SetGPUThrottling(ctx, enabled); err != nil {
			tools.LogAudit(audit, "gpu_set_throttling", params, tools.AuditOutcome(err), start)
			return tools.ErrorResult(err.Error()), nil
		}

		tools.LogAudit(audit, "gpu_set_throttling", params, "ok", start)
		return mcp.NewToolResultText(fmt.Sprintf("GPU throttling enabled=%t", enabled)), nil
	}

	return tools.Registration{Tool: tool, Handler: server.ToolHandlerFunc(handler)}
}
