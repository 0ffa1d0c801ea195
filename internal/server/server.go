// Package server wires all Verdict components and creates the MCP
// server instance.
//
// This is the composition root (DIP): it creates concrete
// implementations and injects them into the tools that depend on
// abstractions. No business logic lives here — only wiring.
package server

import (
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/server"
	"github.com/verdict-mcp/verdict/internal/config"
	"github.com/verdict-mcp/verdict/internal/history"
	"github.com/verdict-mcp/verdict/internal/judge"
	"github.com/verdict-mcp/verdict/internal/llm"
	"github.com/verdict-mcp/verdict/internal/prompts"
	"github.com/verdict-mcp/verdict/internal/resources"
	"github.com/verdict-mcp/verdict/internal/task"
	"github.com/verdict-mcp/verdict/internal/templates"
	"github.com/verdict-mcp/verdict/internal/tools"
	"github.com/verdict-mcp/verdict/internal/workflow"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with every tool
// registered. The returned cleanup function closes the record store's
// database connection and must be called on shutdown (typically via
// defer). It is always non-nil.
func New(cfg config.Config) (*server.MCPServer, func(), error) {
	store, err := history.NewSQLiteStore(history.Config{
		URL:               cfg.DatabaseURL,
		MaxSessionRecords: cfg.MaxSessionRecords,
		RetentionDays:     cfg.RetentionDays,
	})
	if err != nil {
		return nil, noop, fmt.Errorf("opening record store: %w", err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Printf("WARNING: record store close: %v", err)
		}
	}

	renderer, err := templates.NewRenderer()
	if err != nil {
		cleanup()
		return nil, noop, fmt.Errorf("creating template renderer: %w", err)
	}

	hist := history.NewService(store, cfg.ContextRecords)
	tasks := task.NewManager(store)
	caller := llm.NewSamplingCaller(cfg.LLMTimeout, cfg.MaxTokens)
	evaluator := judge.NewEvaluator(caller, renderer)
	engine := workflow.NewEngine(hist, caller, renderer)

	s := server.NewMCPServer(
		"verdict",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)
	// Judging runs on the connected client's model via sampling.
	s.EnableSampling()

	setTask := tools.NewSetTaskTool(tasks, engine)
	s.AddTool(setTask.Definition(), setTask.Handle)

	judgePlan := tools.NewJudgePlanTool(tasks, hist, evaluator, engine)
	s.AddTool(judgePlan.Definition(), judgePlan.Handle)

	judgeCode := tools.NewJudgeCodeTool(tasks, hist, evaluator, engine)
	s.AddTool(judgeCode.Definition(), judgeCode.Handle)

	judgeTesting := tools.NewJudgeTestingTool(tasks, hist, evaluator, engine)
	s.AddTool(judgeTesting.Definition(), judgeTesting.Handle)

	judgeCompletion := tools.NewJudgeCompletionTool(tasks, hist, evaluator, engine)
	s.AddTool(judgeCompletion.Definition(), judgeCompletion.Handle)

	obstacle := tools.NewObstacleTool(tasks, hist, engine)
	s.AddTool(obstacle.Definition(), obstacle.Handle)

	clarify := tools.NewClarifyTool(tasks, hist, engine)
	s.AddTool(clarify.Definition(), clarify.Handle)

	status := tools.NewStatusTool(tasks, hist)
	s.AddTool(status.Definition(), status.Handle)

	startPrompt := prompts.NewStartPrompt()
	s.AddPrompt(startPrompt.Definition(), startPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	resourceHandler := resources.NewHandler(hist)
	s.AddResource(resourceHandler.WorkflowResource(), resourceHandler.HandleWorkflow)
	s.AddResource(resourceHandler.StatsResource(), resourceHandler.HandleStats)

	return s, cleanup, nil
}

// noop is the cleanup returned alongside construction errors.
func noop() {}

func serverInstructions() string {
	return `Verdict is a judging layer for AI coding work. Workflow:

1. set_coding_task — define the task before planning or coding. Keep the
   returned task_id; every other tool needs it.
2. judge_coding_plan — submit plan, design and research (3+ source URLs)
   before writing code.
3. judge_code_change — submit each code change after its tests pass.
4. judge_testing_implementation — submit test files and results.
5. judge_coding_task_completion — the final gate.

When requirements are unclear, call raise_missing_requirements instead
of guessing. When externally blocked, call raise_obstacle. Every
response includes workflow_guidance naming the recommended next tool;
follow it unless the user directs otherwise.`
}
