package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/verdict-mcp/verdict/internal/judge"
	"github.com/verdict-mcp/verdict/internal/task"
	"github.com/verdict-mcp/verdict/internal/workflow"
)

// SetTaskTool handles the set_coding_task MCP tool: the entry point of
// every workflow. It creates task metadata on first call and applies
// updates (including clarified requirements and state transitions) on
// later ones.
type SetTaskTool struct {
	tasks  *task.Manager
	engine *workflow.Engine
}

func NewSetTaskTool(tasks *task.Manager, engine *workflow.Engine) *SetTaskTool {
	return &SetTaskTool{tasks: tasks, engine: engine}
}

type taskResponse struct {
	Kind     string            `json:"kind"`
	Action   string            `json:"action"`
	Task     *task.Metadata    `json:"task"`
	Guidance workflow.Guidance `json:"workflow_guidance"`
}

// Definition returns the MCP tool definition for registration.
func (t *SetTaskTool) Definition() mcp.Tool {
	return mcp.NewTool("set_coding_task",
		mcp.WithDescription(
			"Create or update the coding task definition. Call this FIRST, before any "+
				"planning or implementation, and again whenever requirements change or the "+
				"task moves to a new lifecycle state. Omit task_id to create a new task; "+
				"pass it to update an existing one.",
		),
		mcp.WithString("task_id",
			mcp.Description("Existing task id to update. Omit to create a new task."),
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short task title."),
		),
		mcp.WithString("description",
			mcp.Required(),
			mcp.Description("What the task is about, in a few sentences."),
		),
		mcp.WithString("user_requirements",
			mcp.Required(),
			mcp.Description("The user's requirements, in their words. Changes are versioned."),
		),
		mcp.WithString("task_size",
			mcp.Description("Expected task scope."),
			mcp.Enum("xs", "s", "m", "l", "xl"),
		),
		mcp.WithString("state",
			mcp.Description("Target lifecycle state for an update. Must be a valid transition "+
				"from the current state."),
			mcp.Enum("created", "planning", "plan_approved", "implementing", "testing",
				"review_ready", "completed", "blocked", "cancelled"),
		),
		mcp.WithArray("tags",
			mcp.Description("Free-form labels for the task."),
			mcp.WithStringItems(),
		),
		mcp.WithString("user_request",
			mcp.Description("The raw user request that triggered this call, for the task log."),
		),
	)
}

// Handle processes the set_coding_task tool call.
func (t *SetTaskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title := req.GetString("title", "")
	description := req.GetString("description", "")
	requirements := req.GetString("user_requirements", "")
	if title == "" || description == "" {
		return mcp.NewToolResultError("'title' and 'description' are required"), nil
	}

	size := task.Size(req.GetString("task_size", string(task.SizeM)))
	if err := task.ValidateSize(size); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	tags := req.GetStringSlice("tags", nil)
	userRequest := req.GetString("user_request", "")
	if userRequest == "" {
		userRequest = title
	}

	taskID := req.GetString("task_id", "")
	if taskID == "" {
		meta := t.tasks.Create(title, description, requirements, tags, size)
		persistTask(t.tasks, meta, userRequest, "created")
		guidance := t.engine.NextStage(ctx, workflow.Request{
			Task:      meta,
			Operation: "set_coding_task: task created",
		})
		return jsonResult(taskResponse{
			Kind: judge.KindTask, Action: "created", Task: meta, Guidance: guidance,
		}), nil
	}

	update := task.UpdateRequest{
		Title:        title,
		Description:  description,
		Requirements: &requirements,
		Tags:         tags,
	}
	if raw := req.GetString("state", ""); raw != "" {
		state, err := task.ParseState(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		update.State = &state
	}

	meta, err := t.tasks.Update(taskID, update)
	if err != nil {
		var invalid *task.InvalidTransitionError
		switch {
		case errors.Is(err, task.ErrTaskNotFound):
			return mcp.NewToolResultError(fmt.Sprintf("task %q not found; omit task_id to create a new task", taskID)), nil
		case errors.As(err, &invalid):
			return mcp.NewToolResultError(invalid.Error()), nil
		default:
			return nil, fmt.Errorf("updating task: %w", err)
		}
	}
	persistTask(t.tasks, meta, userRequest, "updated")

	guidance := t.engine.NextStage(ctx, workflow.Request{
		Task:      meta,
		Operation: "set_coding_task: task updated",
	})
	return jsonResult(taskResponse{
		Kind: judge.KindTask, Action: "updated", Task: meta, Guidance: guidance,
	}), nil
}
