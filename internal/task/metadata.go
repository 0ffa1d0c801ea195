package task

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeNow is a package-level variable for testability.
// Tests can replace this to control time in assertions.
var timeNow = time.Now

// Size classifies the expected scope of a coding task. It influences
// guidance only — XS/S tasks may skip straight from planning-lite to
// implementation in practice.
type Size string

const (
	SizeXS Size = "xs"
	SizeS  Size = "s"
	SizeM  Size = "m"
	SizeL  Size = "l"
	SizeXL Size = "xl"
)

var validSizes = map[Size]bool{
	SizeXS: true, SizeS: true, SizeM: true, SizeL: true, SizeXL: true,
}

// ValidateSize returns an error if the size is not recognized.
func ValidateSize(s Size) error {
	if !validSizes[s] {
		return fmt.Errorf("invalid task size %q: must be one of: xs, s, m, l, xl", s)
	}
	return nil
}

// Requirements version source tags.
const (
	SourceInitial       = "initial"
	SourceClarification = "clarification"
	SourceUpdate        = "update"
	SourcePrevious      = "previous"
)

// RequirementsVersion is one entry in the append-only requirements
// history. Entries are never reordered or pruned.
type RequirementsVersion struct {
	Content   string `json:"content"`
	Source    string `json:"source"`
	Timestamp int64  `json:"timestamp"`
}

// Metadata is the mutable state object tracking a coding task.
// TaskID and CreatedAt are immutable after construction.
type Metadata struct {
	TaskID    string `json:"task_id"`
	CreatedAt int64  `json:"created_at"`

	Title            string `json:"title"`
	Description      string `json:"description"`
	UserRequirements string `json:"user_requirements"`
	State            State  `json:"state"`
	Size             Size   `json:"task_size"`

	RequirementsHistory []RequirementsVersion `json:"user_requirements_history"`
	ModifiedFiles       []string              `json:"modified_files"`
	TestFiles           []string              `json:"test_files"`
	TestStatus          map[string]string     `json:"test_status"`
	Tags                []string              `json:"tags"`
	UpdatedAt           int64                 `json:"updated_at"`
}

// NewMetadata constructs task metadata in the CREATED state. If
// requirements are non-empty, the initial version is recorded in the
// history with the "initial" source tag.
func NewMetadata(title, description, requirements string, tags []string, size Size) *Metadata {
	now := timeNow().Unix()
	m := &Metadata{
		TaskID:              uuid.NewString(),
		CreatedAt:           now,
		Title:               title,
		Description:         description,
		State:               StateCreated,
		Size:                size,
		RequirementsHistory: []RequirementsVersion{},
		ModifiedFiles:       []string{},
		TestFiles:           []string{},
		TestStatus:          map[string]string{},
		Tags:                tags,
		UpdatedAt:           now,
	}
	if requirements != "" {
		m.UpdateRequirements(requirements, SourceInitial)
	}
	return m
}

// UpdateRequirements sets new requirements text, versioning the change.
// The current value (if non-empty) is appended to the history with the
// "previous" tag before the new value is appended with the caller's
// tag. Setting the same value is a no-op: no history entries, no
// UpdatedAt bump.
func (m *Metadata) UpdateRequirements(requirements, source string) {
	if m.UserRequirements == requirements {
		return
	}
	now := timeNow().Unix()
	if m.UserRequirements != "" {
		m.RequirementsHistory = append(m.RequirementsHistory, RequirementsVersion{
			Content:   m.UserRequirements,
			Source:    SourcePrevious,
			Timestamp: now,
		})
	}
	m.RequirementsHistory = append(m.RequirementsHistory, RequirementsVersion{
		Content:   requirements,
		Source:    source,
		Timestamp: now,
	})
	m.UserRequirements = requirements
	m.UpdatedAt = now
}

// SetState applies a new state without validation — callers run
// ValidateTransition first, before mutating any other field.
func (m *Metadata) SetState(s State) {
	if m.State == s {
		return
	}
	m.State = s
	m.UpdatedAt = timeNow().Unix()
}

// AddModifiedFile records an implementation file touched by the task.
// Set semantics: adding a known path is a no-op.
func (m *Metadata) AddModifiedFile(path string) {
	for _, p := range m.ModifiedFiles {
		if p == path {
			return
		}
	}
	m.ModifiedFiles = append(m.ModifiedFiles, path)
	m.UpdatedAt = timeNow().Unix()
}

// AddTestFile records a test file created for the task.
func (m *Metadata) AddTestFile(path string) {
	for _, p := range m.TestFiles {
		if p == path {
			return
		}
	}
	m.TestFiles = append(m.TestFiles, path)
	m.UpdatedAt = timeNow().Unix()
}

// SetTestStatus records the status of one test type (unit, integration,
// e2e, ...).
func (m *Metadata) SetTestStatus(testType, status string) {
	if m.TestStatus == nil {
		m.TestStatus = map[string]string{}
	}
	m.TestStatus[testType] = status
	m.UpdatedAt = timeNow().Unix()
}

// TestSummary summarizes test coverage for guidance hints.
type TestSummary struct {
	HasTests       bool
	AllTestsPassed bool
}

// Tests reports whether the task has test files and whether every
// recorded test type is passing. AllTestsPassed is false when no test
// status has been recorded.
func (m *Metadata) Tests() TestSummary {
	sum := TestSummary{HasTests: len(m.TestFiles) > 0}
	if len(m.TestStatus) == 0 {
		return sum
	}
	sum.AllTestsPassed = true
	for _, status := range m.TestStatus {
		if status != "passing" {
			sum.AllTestsPassed = false
			break
		}
	}
	return sum
}
