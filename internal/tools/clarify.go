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

// ClarifyTool handles the raise_missing_requirements MCP tool. It
// formats the gaps and questions for the user and returns a tagged
// clarification result — the decision belongs to the user, no LLM is
// involved.
type ClarifyTool struct {
	tasks   *task.Manager
	history *history.Service
	engine  *workflow.Engine
}

func NewClarifyTool(tasks *task.Manager, hist *history.Service, engine *workflow.Engine) *ClarifyTool {
	return &ClarifyTool{tasks: tasks, history: hist, engine: engine}
}

type clarificationResponse struct {
	judge.ClarificationResult
	Guidance workflow.Guidance `json:"workflow_guidance"`
}

// Definition returns the MCP tool definition for registration.
func (t *ClarifyTool) Definition() mcp.Tool {
	return mcp.NewTool("raise_missing_requirements",
		mcp.WithDescription(
			"Report ambiguous, incomplete or contradictory requirements and ask the user "+
				"clarifying questions. Use this instead of guessing. Relay the returned "+
				"questions to the user, then apply their answers via set_coding_task.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id from set_coding_task."),
		),
		mcp.WithString("current_request",
			mcp.Required(),
			mcp.Description("Your current understanding of what the user wants."),
		),
		mcp.WithArray("identified_gaps",
			mcp.Required(),
			mcp.Description("The specific gaps or contradictions found in the requirements."),
			mcp.WithStringItems(),
		),
		mcp.WithArray("specific_questions",
			mcp.Required(),
			mcp.Description("Concrete questions whose answers would resolve the gaps."),
			mcp.WithStringItems(),
		),
	)
}

// Handle processes the raise_missing_requirements tool call.
func (t *ClarifyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	currentRequest := req.GetString("current_request", "")
	gaps := req.GetStringSlice("identified_gaps", nil)
	questions := req.GetStringSlice("specific_questions", nil)
	if taskID == "" || len(questions) == 0 {
		return mcp.NewToolResultError("'task_id' and 'specific_questions' are required"), nil
	}

	meta, err := t.tasks.Load(taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if meta == nil {
		return mcp.NewToolResultError(fmt.Sprintf("task %q not found; call set_coding_task first", taskID)), nil
	}

	var msg strings.Builder
	msg.WriteString("REQUIREMENTS CLARIFICATION NEEDED\n\n")
	msg.WriteString("Current understanding: " + currentRequest + "\n\n")
	msg.WriteString("Identified requirement gaps:\n")
	for _, gap := range gaps {
		msg.WriteString("- " + gap + "\n")
	}
	msg.WriteString("\nQuestions for the user:\n")
	for i, q := range questions {
		fmt.Fprintf(&msg, "%d. %s\n", i+1, q)
	}
	msg.WriteString("\nRelay these questions to the user, then call set_coding_task with " +
		"the clarified requirements.")

	result := judge.ClarificationResult{
		Kind:           judge.KindClarification,
		CurrentRequest: currentRequest,
		IdentifiedGaps: gaps,
		Questions:      questions,
		Message:        msg.String(),
	}

	input := mustJSON(map[string]any{
		"current_request": currentRequest, "identified_gaps": gaps, "specific_questions": questions,
	})
	saveRecord(t.history, taskID, "raise_missing_requirements", input, result.Message)

	guidance := t.engine.NextStage(ctx, workflow.Request{
		Task:      meta,
		Operation: "raise_missing_requirements: clarification requested",
	})
	return jsonResult(clarificationResponse{ClarificationResult: result, Guidance: guidance}), nil
}
