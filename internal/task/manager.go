package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/verdict-mcp/verdict/internal/history"
)

// PersistSource is the record source under which metadata snapshots are
// saved to conversation history.
const PersistSource = "set_coding_task"

// ErrTaskNotFound is returned by Update when no metadata snapshot can
// be loaded for the given task id.
var ErrTaskNotFound = errors.New("task not found")

// envelope is the JSON wrapper around a metadata snapshot inside a
// conversation record's output field.
type envelope struct {
	Action              string    `json:"action"`
	CurrentTaskMetadata *Metadata `json:"current_task_metadata"`
	Timestamp           int64     `json:"timestamp"`
}

// Manager persists task metadata through the conversation record store.
//
// Metadata has no dedicated table: the latest snapshot is embedded in a
// conversation record under session_id == task_id, and Load scans that
// session's history backward for the most recent parseable snapshot.
// The per-session record cap therefore bounds how far back a snapshot
// can survive — an accepted trade of consistency for simplicity.
type Manager struct {
	store history.Store
}

// NewManager creates a Manager over the given record store.
func NewManager(store history.Store) *Manager {
	return &Manager{store: store}
}

// UpdateRequest carries the mutable fields for Update. Nil Requirements
// or State mean "leave unchanged".
type UpdateRequest struct {
	Title        string
	Description  string
	Requirements *string
	State        *State
	Tags         []string
}

// Create builds new task metadata in the CREATED state. The caller is
// responsible for persisting it (see Persist) so that a creation whose
// persistence fails still returns a usable task to the assistant.
func (m *Manager) Create(title, description, requirements string, tags []string, size Size) *Metadata {
	meta := NewMetadata(title, description, requirements, tags, size)
	slog.Info("created coding task", "task", meta.TaskID, "title", title, "size", size)
	return meta
}

// Update loads the task and applies the requested changes. A supplied
// state is validated against the transition table before any other
// field is touched, so a rejected transition leaves the task entirely
// unchanged.
func (m *Manager) Update(taskID string, req UpdateRequest) (*Metadata, error) {
	meta, err := m.Load(taskID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("task %q: %w", taskID, ErrTaskNotFound)
	}

	if req.State != nil {
		if err := ValidateTransition(meta.State, *req.State); err != nil {
			return nil, err
		}
	}

	meta.Title = req.Title
	meta.Description = req.Description
	meta.Tags = req.Tags
	meta.UpdatedAt = timeNow().Unix()

	if req.Requirements != nil {
		meta.UpdateRequirements(*req.Requirements, SourceUpdate)
	}
	if req.State != nil {
		meta.SetState(*req.State)
	}

	slog.Info("updated coding task", "task", taskID, "state", meta.State)
	return meta, nil
}

// Load scans the task's session history newest-to-oldest and returns
// the first metadata snapshot that deserializes. Records that fail to
// parse are skipped silently. Returns nil (not an error) when no
// snapshot exists.
func (m *Manager) Load(taskID string) (*Metadata, error) {
	records, err := m.store.SessionRecords(taskID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading task %q history: %w", taskID, err)
	}

	for _, r := range records {
		var env envelope
		if err := json.Unmarshal([]byte(r.Output), &env); err != nil {
			continue
		}
		if env.CurrentTaskMetadata == nil || env.CurrentTaskMetadata.TaskID == "" {
			continue
		}
		return env.CurrentTaskMetadata, nil
	}
	return nil, nil
}

// Persist saves a metadata snapshot to conversation history under
// session_id == task_id. This is a best-effort side channel: callers
// on a tool's happy path log the returned error instead of failing the
// primary response.
func (m *Manager) Persist(meta *Metadata, userRequest, action string) (string, error) {
	payload, err := json.Marshal(envelope{
		Action:              action,
		CurrentTaskMetadata: meta,
		Timestamp:           timeNow().Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshaling task %q metadata: %w", meta.TaskID, err)
	}

	id, err := m.store.Save(meta.TaskID, PersistSource, userRequest, string(payload))
	if err != nil {
		return "", fmt.Errorf("persisting task %q metadata: %w", meta.TaskID, err)
	}
	return id, nil
}
