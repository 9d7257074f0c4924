// Package toolstest holds helpers for exercising tool registrations in
// tests.
package toolstest

import (
	"context"
	"regexp"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rvkernel/rvkernel-mcp/internal/tools"
)

var tokenPattern = regexp.MustCompile(`confirmation_token="?([a-f0-9]+)"?`)

// Request builds a CallToolRequest for name with args.
func Request(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// Text returns the text of the first content entry of result.
func Text(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	tc, ok := mcp.AsTextContent(result.Content[0])
	if !ok {
		t.Fatalf("content[0] is %T, want mcp.TextContent", result.Content[0])
	}
	return tc.Text
}

// Find returns the registration named name.
func Find(t *testing.T, regs []tools.Registration, name string) tools.Registration {
	t.Helper()
	for _, r := range regs {
		if r.Tool.Name == name {
			return r
		}
	}
	t.Fatalf("registration for %q not found", name)
	return tools.Registration{}
}

// Call invokes the tool named name and returns the result text.
func Call(t *testing.T, regs []tools.Registration, name string, args map[string]any) string {
	t.Helper()
	reg := Find(t, regs, name)
	result, err := reg.Handler(context.Background(), Request(name, args))
	if err != nil {
		t.Fatalf("%s handler returned error: %v", name, err)
	}
	return Text(t, result)
}

// Token extracts the confirmation token from a prompt, or "" if absent.
func Token(text string) string {
	m := tokenPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// CallConfirmed calls a sensitive tool twice: once to obtain the token and
// once with it. It returns the text of the second call.
func CallConfirmed(t *testing.T, regs []tools.Registration, name string, args map[string]any) string {
	t.Helper()
	prompt := Call(t, regs, name, args)
	token := Token(prompt)
	if token == "" {
		t.Fatalf("%s: no confirmation token in %q", name, prompt)
	}
	confirmed := make(map[string]any, len(args)+1)
	for k, v := range args {
		confirmed[k] = v
	}
	confirmed[tools.ConfirmationTokenParam] = token
	return Call(t, regs, name, confirmed)
}
