// Package llm defines the LLM collaborator used by the judge and
// workflow engines, plus helpers for digging structured JSON out of
// model output.
//
// The server has no LLM credentials of its own: completions are
// requested from the connected MCP client via sampling, so the client's
// model does the judging.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Request is one completion request to the collaborator.
type Request struct {
	System    string
	User      string
	MaxTokens int
}

// Caller is the LLM collaborator: a prompt in, text out.
type Caller interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CallerFunc adapts a function to the Caller interface. Tests use this
// to script model behavior.
type CallerFunc func(ctx context.Context, req Request) (string, error)

func (f CallerFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ExtractJSON slices the first '{' through the last '}' out of raw
// model output. Models routinely wrap JSON in prose or code fences;
// this recovers the object without attempting to fix malformed JSON.
func ExtractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", fmt.Errorf("no JSON object found in response (%d chars)", len(raw))
	}
	return raw[start : end+1], nil
}
