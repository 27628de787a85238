package socketclient

import (
	"context"
	"encoding/json"

	"github.com/codefionn/pytools/internal/rpc"
)

// invoke calls method and decodes the result into out. A failed response is
// returned as its *rpc.Error.
func (c *Client) invoke(ctx context.Context, method rpc.Method, params any, out any) error {
	resp, err := c.Call(ctx, method, params, 0)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Ping sends payload and returns the echo.
func (c *Client) Ping(ctx context.Context, payload any) (json.RawMessage, error) {
	var echo json.RawMessage
	if err := c.invoke(ctx, rpc.MethodPing, payload, &echo); err != nil {
		return nil, err
	}
	return echo, nil
}

// Initialize opens the project at workspace. features switches individual
// capabilities off.
func (c *Client) Initialize(ctx context.Context, workspace string, features map[string]bool) (*rpc.Capabilities, error) {
	params := rpc.InitializeParams{
		Workspace: rpc.WorkspaceParams{Path: workspace},
		Features:  features,
	}
	var caps rpc.Capabilities
	if err := c.invoke(ctx, rpc.MethodInitialize, params, &caps); err != nil {
		return nil, err
	}
	return &caps, nil
}

// ChangeWorkspace switches the project directory.
func (c *Client) ChangeWorkspace(ctx context.Context, path string) error {
	return c.invoke(ctx, rpc.MethodChangeWorkspace, rpc.ChangeWorkspaceParams{Path: path}, nil)
}

// Exit resets the project and stops the server.
func (c *Client) Exit(ctx context.Context) error {
	return c.invoke(ctx, rpc.MethodExit, nil, nil)
}

// Shutdown stops the server.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.invoke(ctx, rpc.MethodShutdown, nil, nil)
}

// Completion returns completion candidates at row (1-based) and column
// (0-based).
func (c *Client) Completion(ctx context.Context, source string, row, column int) ([]rpc.CompletionItem, error) {
	var items []rpc.CompletionItem
	params := rpc.PositionParams{Source: source, Row: row, Column: column}
	if err := c.invoke(ctx, rpc.MethodCompletion, params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Hover returns documentation for the symbol at row and column.
func (c *Client) Hover(ctx context.Context, source string, row, column int) (*rpc.HoverResult, error) {
	var hover rpc.HoverResult
	params := rpc.PositionParams{Source: source, Row: row, Column: column}
	if err := c.invoke(ctx, rpc.MethodHover, params, &hover); err != nil {
		return nil, err
	}
	return &hover, nil
}

// Formatting returns a unified diff that formats source.
func (c *Client) Formatting(ctx context.Context, source string) (string, error) {
	var result rpc.FormattingResult
	if err := c.invoke(ctx, rpc.MethodFormatting, rpc.FormattingParams{Source: source}, &result); err != nil {
		return "", err
	}
	return result.Diff, nil
}

// Diagnostics returns the problems found in source, or in the file at path
// when source is empty.
func (c *Client) Diagnostics(ctx context.Context, source, path string) ([]rpc.Diagnostic, error) {
	var diags []rpc.Diagnostic
	params := rpc.DiagnosticParams{Source: source, Path: path}
	if err := c.invoke(ctx, rpc.MethodDiagnostics, params, &diags); err != nil {
		return nil, err
	}
	return diags, nil
}
