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

// JudgeTestingTool handles the judge_testing_implementation MCP tool.
type JudgeTestingTool struct {
	tasks     *task.Manager
	history   *history.Service
	evaluator *judge.Evaluator
	engine    *workflow.Engine
}

func NewJudgeTestingTool(tasks *task.Manager, hist *history.Service, evaluator *judge.Evaluator, engine *workflow.Engine) *JudgeTestingTool {
	return &JudgeTestingTool{tasks: tasks, history: hist, evaluator: evaluator, engine: engine}
}

// Definition returns the MCP tool definition for registration.
func (t *JudgeTestingTool) Definition() mcp.Tool {
	return mcp.NewTool("judge_testing_implementation",
		mcp.WithDescription(
			"Validate the testing work for the current task: which tests exist, what they "+
				"cover and whether they pass. Approved testing records the test files and "+
				"status on the task.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id from set_coding_task."),
		),
		mcp.WithArray("test_files",
			mcp.Required(),
			mcp.Description("Paths of the test files written for this task."),
			mcp.WithStringItems(),
		),
		mcp.WithString("test_results",
			mcp.Required(),
			mcp.Description("The actual test run output or a faithful summary of it."),
		),
		mcp.WithString("test_type",
			mcp.Description("Kind of tests being reported (unit, integration, e2e, ...)."),
		),
		mcp.WithBoolean("all_tests_passing",
			mcp.Required(),
			mcp.Description("Whether every reported test passes."),
		),
	)
}

// Handle processes the judge_testing_implementation tool call.
func (t *JudgeTestingTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	testFiles := req.GetStringSlice("test_files", nil)
	testResults := req.GetString("test_results", "")
	testType := req.GetString("test_type", "unit")
	allPassing := req.GetBool("all_tests_passing", false)
	if taskID == "" || len(testFiles) == 0 {
		return mcp.NewToolResultError("'task_id' and 'test_files' are required"), nil
	}

	meta, err := t.tasks.Load(taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if meta == nil {
		return mcp.NewToolResultError(fmt.Sprintf("task %q not found; call set_coding_task first", taskID)), nil
	}

	input := mustJSON(map[string]any{
		"test_files": testFiles, "test_results": testResults,
		"test_type": testType, "all_tests_passing": allPassing,
	})

	records, _ := t.history.History(taskID)
	verdict, err := t.evaluator.EvaluateTesting(ctx, templates.JudgeTestingData{
		Title:        meta.Title,
		Requirements: meta.UserRequirements,
		TestFiles:    testFiles,
		TestResults:  testResults,
		Conversation: t.history.FormatContext(records),
	})
	if err != nil {
		verdict = judge.Response{
			Approved:             false,
			RequiredImprovements: []string{"Error occurred during review"},
			Feedback:             fmt.Sprintf("Error during testing review: %v", err),
		}
	}

	// Failing tests never pass the gate, whatever the model says.
	if verdict.Approved && !allPassing {
		verdict = judge.Response{
			Approved:             false,
			RequiredImprovements: []string{"Make all tests pass before requesting testing validation"},
			Feedback:             "Testing cannot be approved while tests are failing.",
		}
	}

	// Files and status are tracked whatever the verdict: the tracker
	// reflects what exists, the verdict reflects whether it suffices.
	for _, f := range testFiles {
		meta.AddTestFile(f)
	}
	status := "failing"
	if allPassing {
		status = "passing"
	}
	meta.SetTestStatus(testType, status)
	action := "testing_rejected"
	if verdict.Approved {
		action = "testing_approved"
	}
	persistTask(t.tasks, meta, "testing reviewed", action)

	saveRecord(t.history, taskID, "judge_testing_implementation", input, mustJSON(verdict))

	result := "testing rejected"
	if verdict.Approved {
		result = "testing approved"
	}
	guidance := t.engine.NextStage(ctx, workflow.Request{
		Task:      meta,
		Operation: "judge_testing_implementation: testing reviewed",
		Result:    result,
	})
	return jsonResult(verdictResponse{
		Kind: judge.KindVerdict, Tool: "judge_testing_implementation",
		Verdict: verdict, Task: meta, Guidance: guidance,
	}), nil
}
