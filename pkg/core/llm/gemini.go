package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

// DefaultGeminiModel is the extraction workhorse. Filings run hundreds of
// pages, so the flash tier is the right cost point for per-statement calls.
const DefaultGeminiModel = "gemini-2.5-flash-preview-05-20"

// GeminiProvider implements Provider and DocumentProvider on Google's
// Gemini API using the official GenAI SDK.
type GeminiProvider struct {
	Model string // e.g. "gemini-2.5-flash-preview-05-20"
}

// Ensure interface compliance
var _ Provider = (*GeminiProvider)(nil)
var _ DocumentProvider = (*GeminiProvider)(nil)

func (p *GeminiProvider) client(ctx context.Context) (*genai.Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client, nil
}

func (p *GeminiProvider) modelName(options map[string]interface{}) string {
	model := p.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	if val, ok := options["model"].(string); ok && val != "" {
		model = val
	}
	return model
}

// GenerateResponse sends a text-only generateContent request.
func (p *GeminiProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	client, err := p.client(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.1)), // SDK expects *float32
	}

	// Check for JSON mode
	// 1. From options
	if val, ok := options["response_format"].(map[string]interface{}); ok {
		if val["type"] == "json_object" {
			config.ResponseMIMEType = "application/json"
		}
	} else if strings.Contains(strings.ToLower(systemPrompt), "json") || strings.Contains(strings.ToLower(prompt), "json") {
		// Heuristic
		config.ResponseMIMEType = "application/json"
	}

	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: systemPrompt},
			},
		}
	}

	result, err := client.Models.GenerateContent(
		ctx,
		p.modelName(options),
		genai.Text(prompt),
		config,
	)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	return result.Text(), nil
}

// GenerateWithDocument runs one generateContent call with the PDF attached
// inline, so the model reads the actual pages rather than extracted text.
func (p *GeminiProvider) GenerateWithDocument(ctx context.Context, req DocumentRequest) (string, error) {
	client, err := p.client(ctx)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.1)),
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: req.SystemPrompt},
			},
		}
	}

	contents := []*genai.Content{
		{
			Parts: []*genai.Part{
				{Text: req.Prompt},
				{InlineData: &genai.Blob{
					MIMEType: "application/pdf",
					Data:     req.PDF,
				}},
			},
			Role: "user",
		},
	}

	result, err := client.Models.GenerateContent(ctx, p.modelName(nil), contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini document generation failed: %w", err)
	}

	return result.Text(), nil
}

func (p *GeminiProvider) AdaptInstructions(raw string) string {
	return raw
}
