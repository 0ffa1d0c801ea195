// Package judge implements the LLM-backed evaluations behind the
// judge_* tools and the fixed result shapes every tool returns.
package judge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/verdict-mcp/verdict/internal/llm"
	"github.com/verdict-mcp/verdict/internal/templates"
)

// Response is the verdict of a judging evaluation.
type Response struct {
	Approved             bool     `json:"approved"`
	RequiredImprovements []string `json:"required_improvements"`
	Feedback             string   `json:"feedback"`
}

// ResearchValidation is the second-pass verdict on research depth,
// run only after a plan is approved.
type ResearchValidation struct {
	ResearchAdequate      bool     `json:"research_adequate"`
	DesignBasedOnResearch bool     `json:"design_based_on_research"`
	Issues                []string `json:"issues"`
	Feedback              string   `json:"feedback"`
}

const responseSchema = `{
  "type": "object",
  "properties": {
    "approved": {"type": "boolean"},
    "required_improvements": {"type": "array", "items": {"type": "string"}},
    "feedback": {"type": "string"}
  },
  "required": ["approved", "required_improvements", "feedback"]
}`

const researchSchema = `{
  "type": "object",
  "properties": {
    "research_adequate": {"type": "boolean"},
    "design_based_on_research": {"type": "boolean"},
    "issues": {"type": "array", "items": {"type": "string"}},
    "feedback": {"type": "string"}
  },
  "required": ["research_adequate", "design_based_on_research", "issues", "feedback"]
}`

// Evaluator runs judging prompts through the LLM collaborator.
type Evaluator struct {
	caller   llm.Caller
	renderer templates.Renderer
}

func NewEvaluator(caller llm.Caller, renderer templates.Renderer) *Evaluator {
	return &Evaluator{caller: caller, renderer: renderer}
}

// EvaluatePlan reviews an implementation plan against the requirements.
func (e *Evaluator) EvaluatePlan(ctx context.Context, data templates.JudgePlanData) (Response, error) {
	return e.evaluate(ctx, templates.JudgePlanSystem, templates.JudgePlanUser, data)
}

// EvaluateCode reviews a single code change.
func (e *Evaluator) EvaluateCode(ctx context.Context, data templates.JudgeCodeData) (Response, error) {
	return e.evaluate(ctx, templates.JudgeCodeSystem, templates.JudgeCodeUser, data)
}

// EvaluateTesting reviews the testing work and reported results.
func (e *Evaluator) EvaluateTesting(ctx context.Context, data templates.JudgeTestingData) (Response, error) {
	return e.evaluate(ctx, templates.JudgeTestingSystem, templates.JudgeTestingUser, data)
}

// EvaluateCompletion is the final gate before a task is marked done.
func (e *Evaluator) EvaluateCompletion(ctx context.Context, data templates.JudgeCompletionData) (Response, error) {
	return e.evaluate(ctx, templates.JudgeCompletionSystem, templates.JudgeCompletionUser, data)
}

// ValidateResearch checks research depth behind an approved plan. It
// returns nil when the research is adequate, or a rejection Response
// that overrides the approval when it is not.
func (e *Evaluator) ValidateResearch(ctx context.Context, data templates.ResearchData) (*Response, error) {
	system, err := e.renderer.Render(templates.ResearchSystem, templates.JudgeSystemData{
		ResponseSchema: researchSchema,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering research system prompt: %w", err)
	}
	user, err := e.renderer.Render(templates.ResearchUser, data)
	if err != nil {
		return nil, fmt.Errorf("rendering research user prompt: %w", err)
	}

	raw, err := e.caller.Complete(ctx, llm.Request{System: system, User: user, MaxTokens: 500})
	if err != nil {
		return nil, fmt.Errorf("research validation call: %w", err)
	}

	jsonText, err := llm.ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("research validation response: %w", err)
	}
	var rv ResearchValidation
	if err := json.Unmarshal([]byte(jsonText), &rv); err != nil {
		return nil, fmt.Errorf("parsing research validation: %w", err)
	}

	if rv.ResearchAdequate && rv.DesignBasedOnResearch {
		return nil, nil
	}
	issues := rv.Issues
	if len(issues) == 0 {
		issues = []string{"Research behind the plan is insufficient"}
	}
	return &Response{
		Approved:             false,
		RequiredImprovements: issues,
		Feedback:             fmt.Sprintf("Research validation failed: %s", rv.Feedback),
	}, nil
}

func (e *Evaluator) evaluate(ctx context.Context, system, user templates.Kind, data any) (Response, error) {
	systemPrompt, err := e.renderer.Render(system, templates.JudgeSystemData{ResponseSchema: responseSchema})
	if err != nil {
		return Response{}, fmt.Errorf("rendering %s: %w", system, err)
	}
	userPrompt, err := e.renderer.Render(user, data)
	if err != nil {
		return Response{}, fmt.Errorf("rendering %s: %w", user, err)
	}

	raw, err := e.caller.Complete(ctx, llm.Request{System: systemPrompt, User: userPrompt})
	if err != nil {
		return Response{}, fmt.Errorf("evaluation call: %w", err)
	}

	jsonText, err := llm.ExtractJSON(raw)
	if err != nil {
		return Response{}, fmt.Errorf("evaluation response: %w", err)
	}
	var resp Response
	if err := json.Unmarshal([]byte(jsonText), &resp); err != nil {
		return Response{}, fmt.Errorf("parsing evaluation response: %w", err)
	}
	if resp.RequiredImprovements == nil {
		resp.RequiredImprovements = []string{}
	}
	return resp, nil
}
