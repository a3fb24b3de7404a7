package filing

import (
	"context"
)

// DocumentCaller is the narrow LLM surface the filing agents need: one
// structured call grounded in an attached PDF. Every agent in this package
// expects a JSON object back.
type DocumentCaller interface {
	CallWithDocument(ctx context.Context, userPrompt string, systemPrompt string, pdf []byte) (string, error)
}
