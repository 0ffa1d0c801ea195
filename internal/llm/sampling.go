package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ErrNoSamplingSession means the request context carries no MCP server,
// so there is no client session to sample from.
var ErrNoSamplingSession = errors.New("no MCP server session in context")

// SamplingCaller completes prompts by asking the connected MCP client
// to run them through its own model. The server stays credential-free:
// the client decides which model answers and whether to ask the user.
//
// Complete must be called from inside an MCP tool handler, whose
// context carries the server session.
type SamplingCaller struct {
	timeout   time.Duration
	maxTokens int
}

// NewSamplingCaller builds a caller with the given per-request timeout
// and default token cap. Zero values fall back to 90s and 5000 tokens.
func NewSamplingCaller(timeout time.Duration, maxTokens int) *SamplingCaller {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if maxTokens <= 0 {
		maxTokens = 5000
	}
	return &SamplingCaller{timeout: timeout, maxTokens: maxTokens}
}

func (c *SamplingCaller) Complete(ctx context.Context, req Request) (string, error) {
	srv := server.ServerFromContext(ctx)
	if srv == nil {
		return "", ErrNoSamplingSession
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := srv.RequestSampling(ctx, mcp.CreateMessageRequest{
		CreateMessageParams: mcp.CreateMessageParams{
			Messages: []mcp.SamplingMessage{
				{
					Role:    mcp.RoleUser,
					Content: mcp.TextContent{Type: "text", Text: req.User},
				},
			},
			SystemPrompt: req.System,
			MaxTokens:    maxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("sampling request: %w", err)
	}

	text, ok := mcp.AsTextContent(result.Content)
	if !ok {
		return "", fmt.Errorf("sampling returned non-text content (%T)", result.Content)
	}
	return text.Text, nil
}
