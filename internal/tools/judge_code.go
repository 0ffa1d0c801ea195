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

// JudgeCodeTool handles the judge_code_change MCP tool.
type JudgeCodeTool struct {
	tasks     *task.Manager
	history   *history.Service
	evaluator *judge.Evaluator
	engine    *workflow.Engine
}

func NewJudgeCodeTool(tasks *task.Manager, hist *history.Service, evaluator *judge.Evaluator, engine *workflow.Engine) *JudgeCodeTool {
	return &JudgeCodeTool{tasks: tasks, history: hist, evaluator: evaluator, engine: engine}
}

// Definition returns the MCP tool definition for registration.
func (t *JudgeCodeTool) Definition() mcp.Tool {
	return mcp.NewTool("judge_code_change",
		mcp.WithDescription(
			"Review a code change against the task requirements. Call this AFTER tests "+
				"for the change are written and passing. Approved changes are recorded in "+
				"the task's modified files.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id from set_coding_task."),
		),
		mcp.WithString("code_change",
			mcp.Required(),
			mcp.Description("The code being changed (diff or full content)."),
		),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Path of the file this change touches."),
		),
		mcp.WithString("change_description",
			mcp.Required(),
			mcp.Description("What the change does and which requirement it addresses."),
		),
	)
}

// Handle processes the judge_code_change tool call.
func (t *JudgeCodeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	codeChange := req.GetString("code_change", "")
	filePath := req.GetString("file_path", "")
	changeDescription := req.GetString("change_description", "")
	if taskID == "" || codeChange == "" {
		return mcp.NewToolResultError("'task_id' and 'code_change' are required"), nil
	}

	meta, err := t.tasks.Load(taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if meta == nil {
		return mcp.NewToolResultError(fmt.Sprintf("task %q not found; call set_coding_task first", taskID)), nil
	}

	input := mustJSON(map[string]any{
		"file_path": filePath, "change_description": changeDescription, "code_change": codeChange,
	})

	records, _ := t.history.History(taskID)
	verdict, err := t.evaluator.EvaluateCode(ctx, templates.JudgeCodeData{
		Title:             meta.Title,
		Requirements:      meta.UserRequirements,
		FilePath:          filePath,
		ChangeDescription: changeDescription,
		CodeChange:        codeChange,
		Conversation:      t.history.FormatContext(records),
	})
	if err != nil {
		verdict = judge.Response{
			Approved:             false,
			RequiredImprovements: []string{"Error occurred during review"},
			Feedback:             fmt.Sprintf("Error during code review: %v", err),
		}
	}

	if verdict.Approved {
		meta.AddModifiedFile(filePath)
		advance(meta, task.StateImplementing)
		persistTask(t.tasks, meta, "code change approved: "+filePath, "code_change_approved")
	}

	saveRecord(t.history, taskID, "judge_code_change", input, mustJSON(verdict))

	result := "change rejected"
	if verdict.Approved {
		result = "change approved: " + filePath
	}
	guidance := t.engine.NextStage(ctx, workflow.Request{
		Task:      meta,
		Operation: "judge_code_change: code reviewed",
		Result:    result,
	})
	return jsonResult(verdictResponse{
		Kind: judge.KindVerdict, Tool: "judge_code_change",
		Verdict: verdict, Task: meta, Guidance: guidance,
	}), nil
}
