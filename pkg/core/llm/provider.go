package llm

import (
	"context"
)

// Provider is the interface for all LLM providers.
type Provider interface {
	GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
	// AdaptInstructions transforms raw instructions into model-specific formats
	AdaptInstructions(rawInstructions string) string
}

// DocumentRequest is one structured call grounded in an attached PDF. The
// attachment is sent inline, so callers should subset large filings to the
// pages the call actually needs before attaching them.
type DocumentRequest struct {
	Prompt       string
	SystemPrompt string
	PDF          []byte
	JSONMode     bool
	MaxTokens    int
}

// DocumentProvider extends Provider with PDF-grounded generation. Both
// hosted backends in this package support inline PDF attachments.
type DocumentProvider interface {
	Provider
	GenerateWithDocument(ctx context.Context, req DocumentRequest) (string, error)
}
