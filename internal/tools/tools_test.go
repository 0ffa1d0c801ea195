package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/verdict-mcp/verdict/internal/history"
	"github.com/verdict-mcp/verdict/internal/judge"
	"github.com/verdict-mcp/verdict/internal/llm"
	"github.com/verdict-mcp/verdict/internal/task"
	"github.com/verdict-mcp/verdict/internal/templates"
	"github.com/verdict-mcp/verdict/internal/workflow"
)

// --- Test helpers ---

// env bundles the wired dependencies every tool test needs.
type env struct {
	history   *history.Service
	tasks     *task.Manager
	evaluator *judge.Evaluator
	engine    *workflow.Engine
}

// guidanceJSON is a well-formed scripted guidance response.
const guidanceJSON = `{"next_tool": "judge_coding_plan", "reasoning": "r", "preparation_needed": [], "guidance": "g"}`

// approvedJSON is a well-formed scripted approval verdict.
const approvedJSON = `{"approved": true, "required_improvements": [], "feedback": "approved"}`

// rejectedJSON is a well-formed scripted rejection verdict.
const rejectedJSON = `{"approved": false, "required_improvements": ["fix it"], "feedback": "rejected"}`

// adequateResearchJSON passes the research validation second pass.
const adequateResearchJSON = `{"research_adequate": true, "design_based_on_research": true, "issues": [], "feedback": "ok"}`

// setupEnv wires an in-memory store with a scripted LLM. The caller
// function receives every request, so tests can script per-call
// behavior by inspecting the prompt.
func setupEnv(t *testing.T, caller llm.Caller) *env {
	t.Helper()

	store, err := history.NewSQLiteStore(history.DefaultConfig())
	if err != nil {
		t.Fatalf("setup: store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	renderer, err := templates.NewRenderer()
	if err != nil {
		t.Fatalf("setup: renderer: %v", err)
	}

	hist := history.NewService(store, 10)
	tasks := task.NewManager(store)
	return &env{
		history:   hist,
		tasks:     tasks,
		evaluator: judge.NewEvaluator(caller, renderer),
		engine:    workflow.NewEngine(hist, caller, renderer),
	}
}

// scripted returns a caller that always answers with the same text.
func scripted(response string) llm.Caller {
	return llm.CallerFunc(func(_ context.Context, _ llm.Request) (string, error) {
		return response, nil
	})
}

// failingCaller simulates an LLM collaborator that always errors.
func failingCaller(msg string) llm.Caller {
	return llm.CallerFunc(func(_ context.Context, _ llm.Request) (string, error) {
		return "", errors.New(msg)
	})
}

// judgingCaller answers judge prompts with verdict and guidance
// prompts with guidance, keyed off the system prompt.
func judgingCaller(verdict, research string) llm.Caller {
	return llm.CallerFunc(func(_ context.Context, req llm.Request) (string, error) {
		switch {
		case strings.Contains(req.System, "workflow navigator"):
			return guidanceJSON, nil
		case strings.Contains(req.System, "research_adequate"):
			return research, nil
		default:
			return verdict, nil
		}
	})
}

// createTask runs set_coding_task and returns the created task id.
func createTask(t *testing.T, e *env) string {
	t.Helper()
	tool := NewSetTaskTool(e.tasks, e.engine)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"title":             "Add search",
		"description":       "Full-text search",
		"user_requirements": "results ranked by relevance",
		"task_size":         "m",
	}
	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("setup: set_coding_task: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("setup: set_coding_task error: %s", getResultText(result))
	}

	var resp struct {
		Task struct {
			TaskID string `json:"task_id"`
		} `json:"task"`
	}
	if err := json.Unmarshal([]byte(getResultText(result)), &resp); err != nil {
		t.Fatalf("setup: parsing response: %v", err)
	}
	if resp.Task.TaskID == "" {
		t.Fatal("setup: no task id in response")
	}
	return resp.Task.TaskID
}

// advanceTask walks the persisted task through the given states.
func advanceTask(t *testing.T, e *env, taskID string, states ...task.State) {
	t.Helper()
	meta, err := e.tasks.Load(taskID)
	if err != nil || meta == nil {
		t.Fatalf("setup: load task: %v, %v", meta, err)
	}
	for _, s := range states {
		if err := task.ValidateTransition(meta.State, s); err != nil {
			t.Fatalf("setup: advance %s -> %s: %v", meta.State, s, err)
		}
		meta.SetState(s)
	}
	if _, err := e.tasks.Persist(meta, "test setup", "state_advanced"); err != nil {
		t.Fatalf("setup: persist: %v", err)
	}
}

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}
