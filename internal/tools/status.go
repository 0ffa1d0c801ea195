package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/verdict-mcp/verdict/internal/history"
	"github.com/verdict-mcp/verdict/internal/judge"
	"github.com/verdict-mcp/verdict/internal/task"
)

// StatusTool handles the get_task_status MCP tool: a read-only view of
// the task and the store behind it. No records are written and no LLM
// is involved.
type StatusTool struct {
	tasks   *task.Manager
	history *history.Service
}

func NewStatusTool(tasks *task.Manager, hist *history.Service) *StatusTool {
	return &StatusTool{tasks: tasks, history: hist}
}

type statusResponse struct {
	Kind             string         `json:"kind"`
	Task             *task.Metadata `json:"task"`
	StateDescription string         `json:"state_description"`
	NextAction       string         `json:"next_action"`
	ValidTransitions []task.State   `json:"valid_transitions"`
	RecentRecords    int            `json:"recent_records"`
	StoreStats       history.Stats  `json:"store_stats"`
}

// Definition returns the MCP tool definition for registration.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("get_task_status",
		mcp.WithDescription(
			"Inspect the current task: metadata, lifecycle state, valid next states and "+
				"recent history. Read-only.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id from set_coding_task."),
		),
	)
}

// Handle processes the get_task_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	if taskID == "" {
		return mcp.NewToolResultError("'task_id' is required"), nil
	}

	meta, err := t.tasks.Load(taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if meta == nil {
		return mcp.NewToolResultError(fmt.Sprintf("task %q not found", taskID)), nil
	}

	records, err := t.history.History(taskID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	stats, err := t.history.Store().Stats()
	if err != nil {
		return nil, fmt.Errorf("loading store stats: %w", err)
	}

	info := task.Info(meta.State)
	return jsonResult(statusResponse{
		Kind:             judge.KindStatus,
		Task:             meta,
		StateDescription: info.Description,
		NextAction:       info.NextAction,
		ValidTransitions: task.ValidTransitions(meta.State),
		RecentRecords:    len(records),
		StoreStats:       stats,
	}), nil
}
