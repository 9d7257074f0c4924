// Package tools provides shared helper utilities for MCP tool handlers.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rvkernel/rvkernel-mcp/internal/safety"
	"github.com/rvkernel/rvkernel-mcp/internal/sysfs"
)

// ConfirmationTokenParam is the argument name carrying a confirmation token.
const ConfirmationTokenParam = "confirmation_token"

// JSONResult marshals v to indented JSON and returns an mcp.CallToolResult.
func JSONResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf("error marshaling result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// ErrorResult returns an mcp.CallToolResult that describes an error condition.
func ErrorResult(msg string) *mcp.CallToolResult {
	return mcp.NewToolResultText(fmt.Sprintf("error: %s", msg))
}

// LogAudit logs a tool invocation, silently ignoring a nil logger.
func LogAudit(audit *safety.AuditLogger, toolName string, params map[string]any, result string, start time.Time) {
	if audit == nil {
		return
	}
	_ = audit.Log(safety.AuditEntry{
		Timestamp: start,
		Tool:      toolName,
		Params:    params,
		Result:    result,
		Duration:  time.Since(start),
	})
}

// AuditOutcome is the audit result string for err: "ok", "denied" for a
// write refused by the guard, or "error: ..." otherwise.
func AuditOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, sysfs.ErrDenied):
		return "denied"
	default:
		return "error: " + err.Error()
	}
}

// ConfirmPrompt issues a token for toolName on resource and returns the
// prompt asking the caller to repeat the call with it.
func ConfirmPrompt(confirm *safety.ConfirmationTracker, toolName, resource, description string) *mcp.CallToolResult {
	token := confirm.RequestConfirmation(toolName, resource)
	return mcp.NewToolResultText(fmt.Sprintf(
		"Confirmation required for %s on %q.\n\n%s\n\nTo proceed, call %s again with the same arguments and confirmation_token=%q.",
		toolName, resource, description, toolName, token,
	))
}

// RequireConfirmation checks the token of a call to a sensitive tool. It
// returns a prompt result when the call must not proceed yet, or nil when
// the tool is not sensitive or the token is valid for toolName on resource.
func RequireConfirmation(confirm *safety.ConfirmationTracker, req mcp.CallToolRequest, toolName, resource, description string) *mcp.CallToolResult {
	if confirm == nil || !confirm.NeedsConfirmation(toolName) {
		return nil
	}
	if confirm.Confirm(toolName, resource, req.GetString(ConfirmationTokenParam, "")) {
		return nil
	}
	return ConfirmPrompt(confirm, toolName, resource, description)
}

// WithConfirmationToken is the tool option declaring the token argument.
func WithConfirmationToken() mcp.ToolOption {
	return mcp.WithString(ConfirmationTokenParam,
		mcp.Description("Confirmation token returned by a prior call to this tool"),
	)
}
