package workflow

import (
	"sort"
	"strings"
)

// toolCatalog is the static description table fed to the guidance
// prompt. Registration and prompt text are kept in one place on
// purpose: deriving descriptions from the live server at request time
// couples prompt content to registration order and server internals.
var toolCatalog = map[string]string{
	"set_coding_task": "Create or update the coding task definition. Entry point of " +
		"every workflow; also used to apply clarified requirements.",
	"judge_coding_plan": "Review the implementation plan, design and research before " +
		"any code is written. Requires research from at least 3 sources.",
	"judge_code_change": "Review a specific code change against the task requirements. " +
		"Call after tests are written and passing.",
	"judge_testing_implementation": "Validate the testing work: test coverage, quality " +
		"and reported results.",
	"judge_coding_task_completion": "Final gate that decides whether the task is " +
		"genuinely complete.",
	"raise_obstacle": "Report an external blocker and present options to the user for " +
		"a decision.",
	"raise_missing_requirements": "Report ambiguous or contradictory requirements and " +
		"ask the user clarifying questions.",
	"get_task_status": "Inspect the current task state, metadata and recent history.",
}

// KnownTool reports whether name is a registered workflow tool.
func KnownTool(name string) bool {
	_, ok := toolCatalog[name]
	return ok
}

// CatalogText renders the tool catalog as prompt text, sorted by name
// for stable output.
func CatalogText() string {
	names := make([]string, 0, len(toolCatalog))
	for name := range toolCatalog {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(toolCatalog[name])
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
