package mcpserver

import (
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// jsonResult formats data as pretty-printed JSON text content (spec.md
// §4.11 step 4), following the teacher's createJSONResponse shape.
func jsonResult(data any) (*mcp.CallToolResult, error) {
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: marshal response: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}

// errResult is the soft-fail shape spec.md §4.11 step 5 requires:
// failures never raise through the protocol layer, they come back as
// an ordinary result with IsError set.
func errResult(operation string, err error) (*mcp.CallToolResult, error) {
	result, marshalErr := jsonResult(map[string]any{
		"success":   false,
		"operation": operation,
		"error":     err.Error(),
	})
	if marshalErr != nil {
		return nil, marshalErr
	}
	result.IsError = true
	return result, nil
}
