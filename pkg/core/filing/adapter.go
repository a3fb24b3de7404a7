package filing

import (
	"agentic_extraction/pkg/core/llm"
	"context"
)

// ProviderAdapter bridges llm.DocumentProvider to filing.DocumentCaller
type ProviderAdapter struct {
	provider llm.DocumentProvider
}

// NewProviderAdapter creates a new adapter wrapping an llm.DocumentProvider
func NewProviderAdapter(provider llm.DocumentProvider) *ProviderAdapter {
	return &ProviderAdapter{provider: provider}
}

// CallWithDocument implements filing.DocumentCaller. JSON mode is always on
// because every filing agent decodes the response into a schema.
func (a *ProviderAdapter) CallWithDocument(ctx context.Context, userPrompt string, systemPrompt string, pdf []byte) (string, error) {
	return a.provider.GenerateWithDocument(ctx, llm.DocumentRequest{
		Prompt:       userPrompt,
		SystemPrompt: a.provider.AdaptInstructions(systemPrompt),
		PDF:          pdf,
		JSONMode:     true,
	})
}
