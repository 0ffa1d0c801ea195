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

// minResearchURLs is the floor below which a plan is rejected without
// reaching the LLM at all.
const minResearchURLs = 3

// JudgePlanTool handles the judge_coding_plan MCP tool.
type JudgePlanTool struct {
	tasks     *task.Manager
	history   *history.Service
	evaluator *judge.Evaluator
	engine    *workflow.Engine
}

func NewJudgePlanTool(tasks *task.Manager, hist *history.Service, evaluator *judge.Evaluator, engine *workflow.Engine) *JudgePlanTool {
	return &JudgePlanTool{tasks: tasks, history: hist, evaluator: evaluator, engine: engine}
}

type verdictResponse struct {
	Kind     string            `json:"kind"`
	Tool     string            `json:"tool"`
	Verdict  judge.Response    `json:"verdict"`
	Task     *task.Metadata    `json:"task,omitempty"`
	Guidance workflow.Guidance `json:"workflow_guidance"`
}

// Definition returns the MCP tool definition for registration.
func (t *JudgePlanTool) Definition() mcp.Tool {
	return mcp.NewTool("judge_coding_plan",
		mcp.WithDescription(
			"Review the implementation plan, system design and research for the current "+
				"coding task BEFORE writing any code. Requires research from at least 3 "+
				"online sources focusing on existing solutions and well-known libraries. "+
				"An approved plan moves the task to the plan_approved state.",
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id from set_coding_task."),
		),
		mcp.WithString("plan",
			mcp.Required(),
			mcp.Description("The implementation plan to review."),
		),
		mcp.WithString("design",
			mcp.Required(),
			mcp.Description("The system design behind the plan."),
		),
		mcp.WithString("research",
			mcp.Required(),
			mcp.Description("Summary of the research performed: existing solutions considered, "+
				"libraries compared, prior art."),
		),
		mcp.WithArray("research_urls",
			mcp.Required(),
			mcp.Description("URLs of the research sources consulted. At least 3."),
			mcp.WithStringItems(),
		),
	)
}

// Handle processes the judge_coding_plan tool call.
func (t *JudgePlanTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID := req.GetString("task_id", "")
	plan := req.GetString("plan", "")
	design := req.GetString("design", "")
	research := req.GetString("research", "")
	researchURLs := req.GetStringSlice("research_urls", nil)
	if taskID == "" || plan == "" {
		return mcp.NewToolResultError("'task_id' and 'plan' are required"), nil
	}

	meta, err := t.tasks.Load(taskID)
	if err != nil {
		return nil, fmt.Errorf("loading task: %w", err)
	}
	if meta == nil {
		return mcp.NewToolResultError(fmt.Sprintf("task %q not found; call set_coding_task first", taskID)), nil
	}

	input := mustJSON(map[string]any{
		"plan": plan, "design": design, "research": research, "research_urls": researchURLs,
	})

	// Research URL gate runs before any LLM involvement.
	if len(researchURLs) < minResearchURLs {
		verdict := judge.Response{
			Approved: false,
			RequiredImprovements: []string{
				fmt.Sprintf("Insufficient research URLs: %d provided, minimum %d required", len(researchURLs), minResearchURLs),
				"Perform online research and provide at least 3 source URLs",
				"Research should focus on existing well-known libraries and best practices",
			},
			Feedback: fmt.Sprintf("Plan rejected before review: only %d research URLs were provided and "+
				"at least %d are required. Research existing solutions before planning from scratch.",
				len(researchURLs), minResearchURLs),
		}
		return t.respond(ctx, meta, input, verdict), nil
	}

	conversation := t.conversation(taskID)
	verdict, err := t.evaluator.EvaluatePlan(ctx, templates.JudgePlanData{
		Title:        meta.Title,
		Description:  meta.Description,
		Requirements: meta.UserRequirements,
		Plan:         plan,
		Design:       design,
		Research:     research,
		ResearchURLs: researchURLs,
		Conversation: conversation,
	})
	if err != nil {
		verdict = judge.Response{
			Approved:             false,
			RequiredImprovements: []string{"Error occurred during review"},
			Feedback:             fmt.Sprintf("Error during plan review: %v", err),
		}
		return t.respond(ctx, meta, input, verdict), nil
	}

	// An approval is provisional until the research behind it holds up.
	if verdict.Approved {
		override, err := t.evaluator.ValidateResearch(ctx, templates.ResearchData{
			Requirements: meta.UserRequirements,
			Plan:         plan,
			Research:     research,
			ResearchURLs: researchURLs,
		})
		if err != nil {
			verdict = judge.Response{
				Approved:             false,
				RequiredImprovements: []string{"Error occurred during research validation"},
				Feedback:             fmt.Sprintf("Error during research validation: %v", err),
			}
		} else if override != nil {
			verdict = *override
		}
	}

	if verdict.Approved {
		advance(meta, task.StatePlanning, task.StatePlanApproved)
		persistTask(t.tasks, meta, "plan approved", "plan_approved")
	}
	return t.respond(ctx, meta, input, verdict), nil
}

func (t *JudgePlanTool) conversation(taskID string) string {
	records, err := t.history.History(taskID)
	if err != nil {
		return "No previous conversation history."
	}
	return t.history.FormatContext(records)
}

func (t *JudgePlanTool) respond(ctx context.Context, meta *task.Metadata, input string, verdict judge.Response) *mcp.CallToolResult {
	saveRecord(t.history, meta.TaskID, "judge_coding_plan", input, mustJSON(verdict))

	result := "plan rejected"
	if verdict.Approved {
		result = "plan approved"
	}
	guidance := t.engine.NextStage(ctx, workflow.Request{
		Task:      meta,
		Operation: "judge_coding_plan: plan reviewed",
		Result:    result,
	})
	return jsonResult(verdictResponse{
		Kind: judge.KindVerdict, Tool: "judge_coding_plan",
		Verdict: verdict, Task: meta, Guidance: guidance,
	})
}
