// Package resources implements MCP resource handlers.
//
// Resources provide read-only data the host can pull for context. They
// use URI-based addressing (verdict://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/verdict-mcp/verdict/internal/history"
	"github.com/verdict-mcp/verdict/internal/task"
)

// Handler manages verdict resource endpoints.
type Handler struct {
	history *history.Service
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(hist *history.Service) *Handler {
	return &Handler{history: hist}
}

// WorkflowResource describes the task state machine reference.
func (h *Handler) WorkflowResource() mcp.Resource {
	return mcp.NewResource(
		"verdict://workflow/states",
		"Task Workflow States",
		mcp.WithResourceDescription("Every task state with its meaning, expected next action, and allowed transitions"),
		mcp.WithMIMEType("application/json"),
	)
}

// stateEntry is the JSON shape of one workflow state in the reference.
type stateEntry struct {
	State       task.State   `json:"state"`
	Description string       `json:"description"`
	NextAction  string       `json:"next_action"`
	Transitions []task.State `json:"transitions"`
}

// HandleWorkflow returns the full state machine as JSON.
func (h *Handler) HandleWorkflow(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	states := []task.State{
		task.StateCreated, task.StatePlanning, task.StatePlanApproved,
		task.StateImplementing, task.StateReviewReady, task.StateCompleted,
		task.StateBlocked, task.StateCancelled,
	}
	entries := make([]stateEntry, 0, len(states))
	for _, s := range states {
		info := task.Info(s)
		entries = append(entries, stateEntry{
			State:       s,
			Description: info.Description,
			NextAction:  info.NextAction,
			Transitions: task.ValidTransitions(s),
		})
	}
	return jsonContents(req.Params.URI, entries)
}

// StatsResource describes the record store statistics endpoint.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		"verdict://store/stats",
		"Record Store Statistics",
		mcp.WithResourceDescription("Totals for stored conversation records and sessions"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStats returns the record store statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats, err := h.history.Store().Stats()
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonContents(req.Params.URI, stats)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling resource: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource carrying an error message instead of
// failing the read.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
