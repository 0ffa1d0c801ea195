// Package workflow computes the next-step guidance every tool returns
// to the coding assistant. One engine serves all tools so navigation
// stays consistent across the whole task lifecycle.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/verdict-mcp/verdict/internal/history"
	"github.com/verdict-mcp/verdict/internal/llm"
	"github.com/verdict-mcp/verdict/internal/task"
	"github.com/verdict-mcp/verdict/internal/templates"
)

// Guidance is the navigation block attached to every tool response.
// A nil NextTool means the workflow is complete.
type Guidance struct {
	NextTool          *string  `json:"next_tool"`
	Reasoning         string   `json:"reasoning"`
	PreparationNeeded []string `json:"preparation_needed"`
	Guidance          string   `json:"guidance"`
}

// guidanceSchema is the response contract sent to the LLM.
const guidanceSchema = `{
  "type": "object",
  "properties": {
    "next_tool": {"type": ["string", "null"], "description": "Next tool to call, or null if workflow complete"},
    "reasoning": {"type": "string", "description": "Why this tool should be used next"},
    "preparation_needed": {"type": "array", "items": {"type": "string"}, "description": "Things to prepare before calling the recommended tool"},
    "guidance": {"type": "string", "description": "Step-by-step guidance for the AI assistant"}
  },
  "required": ["next_tool", "reasoning", "preparation_needed", "guidance"]
}`

// Request describes the operation a tool just performed, so the engine
// can fold its outcome into the guidance prompt.
type Request struct {
	Task      *task.Metadata
	Operation string // e.g. "judge_coding_plan: plan approved"
	Result    string // optional outcome summary from the calling tool
}

// Engine computes guidance from task state, conversation history and
// the LLM collaborator.
type Engine struct {
	history  *history.Service
	caller   llm.Caller
	renderer templates.Renderer
}

func NewEngine(hist *history.Service, caller llm.Caller, renderer templates.Renderer) *Engine {
	return &Engine{history: hist, caller: caller, renderer: renderer}
}

// NextStage computes the next-step guidance for a task. It never
// returns an error: any failure along the way (history load, prompt
// render, LLM call, response parse) degrades to a conservative
// fallback so the judging verdict it accompanies is never lost.
func (e *Engine) NextStage(ctx context.Context, req Request) Guidance {
	meta := req.Task

	conversation := "No previous conversation history."
	records, err := e.history.History(meta.TaskID)
	if err != nil {
		slog.Warn("guidance: loading history failed", "task_id", meta.TaskID, "error", err)
	} else {
		conversation = e.history.FormatContext(records)
	}

	info := task.Info(meta.State)
	userPrompt, err := e.renderer.Render(templates.WorkflowGuidanceUser, templates.WorkflowUserData{
		TaskID:           meta.TaskID,
		Title:            meta.Title,
		Description:      meta.Description,
		Requirements:     meta.UserRequirements,
		State:            string(meta.State),
		StateDescription: info.Description,
		NextAction:       info.NextAction,
		CurrentOperation: req.Operation,
		Transitions:      task.TransitionDiagram(),
		ToolCatalog:      CatalogText(),
		Conversation:     conversation,
		OperationContext: operationContext(meta, req.Result),
	})
	if err != nil {
		return e.fallback(meta, fmt.Errorf("rendering user prompt: %w", err))
	}

	systemPrompt, err := e.renderer.Render(templates.WorkflowGuidanceSystem, templates.WorkflowSystemData{
		ResponseSchema: guidanceSchema,
	})
	if err != nil {
		return e.fallback(meta, fmt.Errorf("rendering system prompt: %w", err))
	}

	raw, err := e.caller.Complete(ctx, llm.Request{System: systemPrompt, User: userPrompt})
	if err != nil {
		return e.fallback(meta, fmt.Errorf("llm call: %w", err))
	}

	guidance, err := parseGuidance(raw)
	if err != nil {
		return e.fallback(meta, err)
	}

	next := "workflow complete"
	if guidance.NextTool != nil {
		next = *guidance.NextTool
	}
	slog.Debug("guidance computed", "task_id", meta.TaskID, "next_tool", next)
	return guidance
}

// parseGuidance digs the guidance object out of raw model output and
// validates the contract before trusting it.
func parseGuidance(raw string) (Guidance, error) {
	jsonText, err := llm.ExtractJSON(raw)
	if err != nil {
		return Guidance{}, fmt.Errorf("extracting guidance JSON: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonText), &fields); err != nil {
		return Guidance{}, fmt.Errorf("parsing guidance JSON: %w", err)
	}
	for _, key := range []string{"next_tool", "reasoning", "preparation_needed", "guidance"} {
		if _, ok := fields[key]; !ok {
			return Guidance{}, fmt.Errorf("guidance response missing required key %q", key)
		}
	}

	var g Guidance
	if err := json.Unmarshal([]byte(jsonText), &g); err != nil {
		return Guidance{}, fmt.Errorf("decoding guidance: %w", err)
	}

	// Models emit the null next_tool in several spellings.
	if g.NextTool != nil {
		switch strings.TrimSpace(*g.NextTool) {
		case "", "null", "None":
			g.NextTool = nil
		}
	}
	if g.PreparationNeeded == nil {
		g.PreparationNeeded = []string{}
	}
	return g, nil
}

// operationContext assembles the operational hints block: what just
// happened and what the file and test trackers imply about progress.
func operationContext(meta *task.Metadata, result string) string {
	var lines []string
	if result != "" {
		lines = append(lines, "- Operation Result: "+result)
	}

	if len(meta.ModifiedFiles) > 0 {
		lines = append(lines, fmt.Sprintf("- Modified Files (%d): %s",
			len(meta.ModifiedFiles), strings.Join(meta.ModifiedFiles, ", ")))
		if meta.State == task.StateImplementing {
			if len(meta.TestFiles) == 0 {
				lines = append(lines, "- IMPLEMENTATION PROGRESS: Implementation files exist but no tests yet. "+
					"Continue implementing and write tests; tests must pass before judge_code_change.")
			} else {
				lines = append(lines, "- IMPLEMENTATION + TESTS: Both implementation and test files exist. "+
					"Ensure all tests pass, then call judge_code_change for review.")
			}
		}
	}

	if len(meta.TestFiles) > 0 {
		lines = append(lines, fmt.Sprintf("- Test Files (%d): %s",
			len(meta.TestFiles), strings.Join(meta.TestFiles, ", ")))
		sum := meta.Tests()
		lines = append(lines, fmt.Sprintf("- Test Status: all passing: %t", sum.AllTestsPassed))
	}

	if len(lines) == 0 {
		return "- No additional context"
	}
	return strings.Join(lines, "\n")
}

// fallback is the guidance of last resort. It recommends nothing and
// tells the assistant to review the task state itself.
func (e *Engine) fallback(meta *task.Metadata, cause error) Guidance {
	slog.Error("guidance computation failed, returning fallback",
		"task_id", meta.TaskID, "error", cause)
	return Guidance{
		NextTool:          nil,
		Reasoning:         "Error occurred during workflow calculation",
		PreparationNeeded: []string{"Review the error and task state"},
		Guidance: fmt.Sprintf("Error calculating next stage: %v. Please review the task state manually "+
			"and decide the next step.", cause),
	}
}
