package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the verdict-status MCP prompt. It instructs the
// AI to fetch and present the current task's workflow state.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("verdict-status",
		mcp.WithPromptDescription(
			"Check the current judged task: workflow state, tracked files, "+
				"test status, and what to do next.",
		),
		mcp.WithArgument("task_id",
			mcp.ArgumentDescription("Identifier of the task to inspect"),
		),
	)
}

// Handle processes the verdict-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	taskRef := "the current task"
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["task_id"]; ok && v != "" {
			taskRef = "task " + v
		}
	}

	return &mcp.GetPromptResult{
		Description: "Judged task status",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `get_task_status` for " + taskRef + ".\n\n" +
						"Then:\n" +
						"1. Show the workflow state and what it means\n" +
						"2. List the tracked implementation and test files\n" +
						"3. Flag anything blocking approval (failing tests, missing research)\n" +
						"4. Tell me exactly which tool to call next",
				),
			},
		},
	}, nil
}
