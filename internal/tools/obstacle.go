package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/verdict-mcp/verdict/internal/history"
	"github.com/verdict-mcp/verdict/internal/judge"
	"github.com/verdict-mcp/verdict/internal/task"
	"github.com/verdict-mcp/verdict/internal/workflow"
)

// ObstacleTool handles the raise_obstacle MCP tool. It records the
// blocker, moves the task to blocked, and returns a tagged decision
// request for the user — no LLM is involved.
type ObstacleTool struct {
	tasks   *task.Manager
	history *history.Service
	engine  *workflow.Engine
}

func NewObstacleTool(tasks *task.Manager, hist *history.Service, engine *workflow.Engine) *ObstacleTool {
	return &ObstacleTool{tasks: tasks, history: hist, engine: engine}
}

type obstacleResponse struct {
	judge.ObstacleResult
	Guidance workflow.Guidance `json:"workflow_guidance"`
}

// Definition returns the MCP tool definition for registration.
func (t *ObstacleTool) Definition() mcp.Tool {
	return mcp.NewTool("raise_obstacle",
		mcp.WithDescription(
			"Report an external blocker that prevents progress and present the possible "+
				"ways forward. The task moves to the blocked state. Relay the options to "+
				"the user and apply their decision via set_coding_task.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id from set_coding_task."),
		),
		mcp.WithString("problem",
			mcp.Required(),
			mcp.Description("The obstacle, stated concretely."),
		),
		mcp.WithString("research",
			mcp.Required(),
			mcp.Description("What you already tried or researched to get around it."),
		),
		mcp.WithArray("options",
			mcp.Required(),
			mcp.Description("The possible ways forward for the user to choose between."),
			mcp.WithStringItems(),
		),
	)
}

// Handle processes the raise_obstacle tool call.
func (t *ObstacleTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	problem := req.GetString("problem", "")
	research := req.GetString("research", "")
	options := req.GetStringSlice("options", nil)
	if taskID == "" || problem == "" || len(options) == 0 {
		return mcp.NewToolResultError("'task_id', 'problem' and 'options' are required"), nil
	}

	meta, err := t.tasks.Load(taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if meta == nil {
		return mcp.NewToolResultError(fmt.Sprintf("task %q not found; call set_coding_task first", taskID)), nil
	}

	advance(meta, task.StateBlocked)
	persistTask(t.tasks, meta, "obstacle raised: "+problem, "blocked")

	var msg strings.Builder
	msg.WriteString("OBSTACLE ENCOUNTERED\n\n")
	msg.WriteString("Problem: " + problem + "\n\n")
	msg.WriteString("Research done: " + research + "\n\n")
	msg.WriteString("Available options:\n")
	for i, opt := range options {
		fmt.Fprintf(&msg, "%d. %s\n", i+1, opt)
	}
	msg.WriteString("\nAsk the user to choose an option (by number or description) and " +
		"apply their decision via set_coding_task.")

	result := judge.ObstacleResult{
		Kind:     judge.KindObstacle,
		Problem:  problem,
		Research: research,
		Options:  options,
		Message:  msg.String(),
	}

	input := mustJSON(map[string]any{
		"problem": problem, "research": research, "options": options,
	})
	saveRecord(t.history, taskID, "raise_obstacle", input, result.Message)

	guidance := t.engine.NextStage(ctx, workflow.Request{
		Task:      meta,
		Operation: "raise_obstacle: obstacle reported",
	})
	return jsonResult(obstacleResponse{ObstacleResult: result, Guidance: guidance}), nil
}
