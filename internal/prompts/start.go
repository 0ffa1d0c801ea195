// Package prompts implements MCP prompt handlers for the judged coding
// workflow.
//
// MCP prompts are user-triggered (like slash commands), unlike tools
// which the AI calls on its own. They give the user a direct way to
// put a coding session under judgment.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// StartPrompt handles the verdict-start MCP prompt. It instructs the
// AI to open a judged coding task for whatever the user wants built.
type StartPrompt struct{}

// NewStartPrompt creates a StartPrompt.
func NewStartPrompt() *StartPrompt {
	return &StartPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StartPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("verdict-start",
		mcp.WithPromptDescription(
			"Start a judged coding task. Every plan, code change and test "+
				"will be reviewed by the verdict judge before the work counts "+
				"as done.",
		),
		mcp.WithArgument("task",
			mcp.ArgumentDescription("What you want built or changed"),
		),
	)
}

// Handle processes the verdict-start prompt request.
func (p *StartPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	taskDesc := "the task I describe next"
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["task"]; ok && v != "" {
			taskDesc = v
		}
	}

	return &mcp.GetPromptResult{
		Description: "Start a judged coding task",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to work on the following under judgment: %s\n\n"+
						"Please:\n"+
						"1. Call `set_coding_task` with a clear title, description and my requirements\n"+
						"2. Research the approach (collect at least 3 source URLs), write a plan and design, "+
						"then submit them with `judge_coding_plan` before writing any code\n"+
						"3. Submit each code change with `judge_code_change` and your tests with "+
						"`judge_testing_implementation`\n"+
						"4. Finish with `judge_coding_task_completion`\n\n"+
						"If my requirements are unclear, call `raise_missing_requirements` instead of guessing. "+
						"Follow the workflow_guidance in each response.",
					taskDesc,
				)),
			},
		},
	}, nil
}
