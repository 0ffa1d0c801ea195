// Package templates renders the prompt templates sent to the LLM
// collaborator. Templates are embedded at compile time so the binary
// is self-contained.
package templates

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

// Kind names one embedded prompt template.
type Kind string

const (
	WorkflowGuidanceSystem Kind = "workflow_guidance_system"
	WorkflowGuidanceUser   Kind = "workflow_guidance_user"
	JudgePlanSystem        Kind = "judge_plan_system"
	JudgePlanUser          Kind = "judge_plan_user"
	JudgeCodeSystem        Kind = "judge_code_system"
	JudgeCodeUser          Kind = "judge_code_user"
	JudgeTestingSystem     Kind = "judge_testing_system"
	JudgeTestingUser       Kind = "judge_testing_user"
	JudgeCompletionSystem  Kind = "judge_completion_system"
	JudgeCompletionUser    Kind = "judge_completion_user"
	ResearchSystem         Kind = "research_system"
	ResearchUser           Kind = "research_user"
)

// WorkflowSystemData parameterizes the workflow guidance system prompt.
type WorkflowSystemData struct {
	ResponseSchema string
}

// WorkflowUserData carries the full task picture for a guidance request.
type WorkflowUserData struct {
	TaskID           string
	Title            string
	Description      string
	Requirements     string
	State            string
	StateDescription string
	NextAction       string
	CurrentOperation string
	Transitions      string
	ToolCatalog      string
	Conversation     string
	OperationContext string
}

// JudgeSystemData parameterizes every judge system prompt.
type JudgeSystemData struct {
	ResponseSchema string
}

// JudgePlanData parameterizes the plan review user prompt.
type JudgePlanData struct {
	Title        string
	Description  string
	Requirements string
	Plan         string
	Design       string
	Research     string
	ResearchURLs []string
	Conversation string
}

// JudgeCodeData parameterizes the code review user prompt.
type JudgeCodeData struct {
	Title             string
	Requirements      string
	FilePath          string
	ChangeDescription string
	CodeChange        string
	Conversation      string
}

// JudgeTestingData parameterizes the testing review user prompt.
type JudgeTestingData struct {
	Title        string
	Requirements string
	TestFiles    []string
	TestResults  string
	Conversation string
}

// JudgeCompletionData parameterizes the completion review user prompt.
type JudgeCompletionData struct {
	Title        string
	Requirements string
	State        string
	Summary      string
	Conversation string
}

// ResearchData parameterizes the research depth validation prompts.
type ResearchData struct {
	Requirements string
	Plan         string
	Research     string
	ResearchURLs []string
}

// Renderer renders a named prompt template with its data.
type Renderer interface {
	Render(kind Kind, data any) (string, error)
}

type renderer struct {
	tmpl *template.Template
}

// NewRenderer parses all embedded prompt templates.
func NewRenderer() (Renderer, error) {
	tmpl, err := template.New("prompts").Funcs(template.FuncMap{
		"join": strings.Join,
	}).ParseFS(promptFS, "prompts/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing embedded prompt templates: %w", err)
	}
	return &renderer{tmpl: tmpl}, nil
}

func (r *renderer) Render(kind Kind, data any) (string, error) {
	var b strings.Builder
	if err := r.tmpl.ExecuteTemplate(&b, string(kind)+".tmpl", data); err != nil {
		return "", fmt.Errorf("rendering template %s: %w", kind, err)
	}
	return strings.TrimSpace(b.String()) + "\n", nil
}
