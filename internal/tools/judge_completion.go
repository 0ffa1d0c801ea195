package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/verdict-mcp/verdict/internal/history"
	"github.com/verdict-mcp/verdict/internal/judge"
	"github.com/verdict-mcp/verdict/internal/task"
	"github.com/verdict-mcp/verdict/internal/templates"
	"github.com/verdict-mcp/verdict/internal/workflow"
)

// JudgeCompletionTool handles the judge_coding_task_completion MCP
// tool: the final gate before a task reaches the completed state.
type JudgeCompletionTool struct {
	tasks     *task.Manager
	history   *history.Service
	evaluator *judge.Evaluator
	engine    *workflow.Engine
}

func NewJudgeCompletionTool(tasks *task.Manager, hist *history.Service, evaluator *judge.Evaluator, engine *workflow.Engine) *JudgeCompletionTool {
	return &JudgeCompletionTool{tasks: tasks, history: hist, evaluator: evaluator, engine: engine}
}

// Definition returns the MCP tool definition for registration.
func (t *JudgeCompletionTool) Definition() mcp.Tool {
	return mcp.NewTool("judge_coding_task_completion",
		mcp.WithDescription(
			"Final completion gate. Call when you believe the task is done: every "+
				"requirement implemented, tests written and passing. Approval moves the "+
				"task to the completed state; rejection names what remains.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id from set_coding_task."),
		),
		mcp.WithString("completion_summary",
			mcp.Required(),
			mcp.Description("What was implemented, how it was tested, and how each "+
				"requirement is satisfied."),
		),
	)
}

// Handle processes the judge_coding_task_completion tool call.
func (t *JudgeCompletionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	summary := req.GetString("completion_summary", "")
	if taskID == "" || summary == "" {
		return mcp.NewToolResultError("'task_id' and 'completion_summary' are required"), nil
	}

	meta, err := t.tasks.Load(taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if meta == nil {
		return mcp.NewToolResultError(fmt.Sprintf("task %q not found; call set_coding_task first", taskID)), nil
	}

	input := mustJSON(map[string]any{"completion_summary": summary})

	records, _ := t.history.History(taskID)
	verdict, err := t.evaluator.EvaluateCompletion(ctx, templates.JudgeCompletionData{
		Title:        meta.Title,
		Requirements: meta.UserRequirements,
		State:        string(meta.State),
		Summary:      summary,
		Conversation: t.history.FormatContext(records),
	})
	if err != nil {
		verdict = judge.Response{
			Approved:             false,
			RequiredImprovements: []string{"Error occurred during review"},
			Feedback:             fmt.Sprintf("Error during completion review: %v", err),
		}
	}

	// The tracker is a second, mechanical gate: completion without any
	// recorded tests is never approved.
	if verdict.Approved && !meta.Tests().HasTests {
		verdict = judge.Response{
			Approved:             false,
			RequiredImprovements: []string{"Write tests and validate them with judge_testing_implementation"},
			Feedback:             "Completion cannot be approved: no test files are recorded for this task.",
		}
	}

	if verdict.Approved {
		advance(meta, task.StateReviewReady, task.StateCompleted)
		persistTask(t.tasks, meta, "task completed", "completed")
	}

	saveRecord(t.history, taskID, "judge_coding_task_completion", input, mustJSON(verdict))

	result := "completion rejected"
	if verdict.Approved {
		result = "task completed"
	}
	guidance := t.engine.NextStage(ctx, workflow.Request{
		Task:      meta,
		Operation: "judge_coding_task_completion: completion reviewed",
		Result:    result,
	})
	return jsonResult(verdictResponse{
		Kind: judge.KindVerdict, Tool: "judge_coding_task_completion",
		Verdict: verdict, Task: meta, Guidance: guidance,
	}), nil
}
