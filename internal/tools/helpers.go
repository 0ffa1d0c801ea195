// Package tools implements the MCP tool handlers for Verdict.
//
// Each tool is a struct that receives its dependencies via constructor
// (DIP) and exposes Definition/Handle for registration. Handlers follow
// one contract: every invocation is logged to conversation history,
// every response is a JSON document with a kind tag, and internal
// failures degrade into well-formed rejections instead of MCP errors.
package tools

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/verdict-mcp/verdict/internal/history"
	"github.com/verdict-mcp/verdict/internal/task"
)

// jsonResult marshals a response document into a text tool result.
func jsonResult(v any) *mcp.CallToolResult {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding response: %v", err))
	}
	return mcp.NewToolResultText(string(payload))
}

// mustJSON renders v for conversation-history fields, degrading to a
// placeholder rather than failing the save.
func mustJSON(v any) string {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("{\"marshal_error\": %q}", err.Error())
	}
	return string(payload)
}

// saveRecord logs a tool interaction, best effort. History is an
// advisory channel: a failed save must not fail the tool response.
func saveRecord(hist *history.Service, sessionID, tool, input, output string) {
	if _, err := hist.SaveInteraction(sessionID, tool, input, output); err != nil {
		slog.Warn("saving conversation record failed", "tool", tool, "session", sessionID, "error", err)
	}
}

// persistTask snapshots task metadata to history, best effort.
func persistTask(tasks *task.Manager, meta *task.Metadata, userRequest, action string) {
	if _, err := tasks.Persist(meta, userRequest, action); err != nil {
		slog.Warn("persisting task metadata failed", "task", meta.TaskID, "error", err)
	}
}

// advance walks the task through the given states in order, stopping at
// the first illegal transition. States already reached are skipped, so
// callers can name the full path and let the current state decide how
// much of it applies.
func advance(meta *task.Metadata, path ...task.State) {
	for _, target := range path {
		if meta.State == target {
			continue
		}
		if err := task.ValidateTransition(meta.State, target); err != nil {
			slog.Debug("state advance stopped", "task", meta.TaskID, "from", meta.State, "to", target)
			return
		}
		meta.SetState(target)
	}
}
