package history

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Service is the conversation-history facade used by tools and the
// workflow engine. It caps reads to the context window and renders
// records into LLM-consumable text.
type Service struct {
	store          Store
	contextRecords int
}

// NewService creates a Service over the given store. contextRecords
// bounds how many records are loaded for LLM context enrichment.
func NewService(store Store, contextRecords int) *Service {
	if contextRecords <= 0 {
		contextRecords = 10
	}
	return &Service{store: store, contextRecords: contextRecords}
}

// Store exposes the underlying record store.
func (s *Service) Store() Store { return s.store }

// History returns the most recent records for a session, newest first,
// capped at the configured context window.
func (s *Service) History(sessionID string) ([]Record, error) {
	records, err := s.store.SessionRecords(sessionID, s.contextRecords)
	if err != nil {
		return nil, fmt.Errorf("loading history for session %q: %w", sessionID, err)
	}
	return records, nil
}

// SaveInteraction logs a tool invocation as a conversation record.
func (s *Service) SaveInteraction(sessionID, toolName, input, output string) (string, error) {
	id, err := s.store.Save(sessionID, toolName, input, output)
	if err != nil {
		return "", fmt.Errorf("saving %s interaction: %w", toolName, err)
	}
	slog.Debug("saved conversation record",
		"session", sessionID, "tool", toolName, "record", id)
	return id, nil
}

// FormatContext renders records into a bounded text block for LLM
// prompts. Records are expected newest-first and are rendered in that
// order — the history is advisory context, not a transcript replay.
func (s *Service) FormatContext(records []Record) string {
	if len(records) == 0 {
		return "No previous conversation history."
	}

	var b strings.Builder
	for _, r := range records {
		ts := time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339)
		fmt.Fprintf(&b, "[%s] %s:\nInput: %s\nOutput: %s\n\n", ts, r.Source, r.Input, r.Output)
	}
	return strings.TrimRight(b.String(), "\n")
}
