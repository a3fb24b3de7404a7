package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultAnthropicModel is used when neither the provider nor the call
// options name a model.
const DefaultAnthropicModel = "claude-sonnet-4-5-20250929"

const defaultAnthropicMaxTokens = 8192

// AnthropicProvider implements Provider and DocumentProvider on the
// Anthropic Messages API. PDFs are attached as base64 document blocks.
type AnthropicProvider struct {
	Model string
}

var _ Provider = (*AnthropicProvider)(nil)
var _ DocumentProvider = (*AnthropicProvider)(nil)

func (p *AnthropicProvider) newClient(options map[string]interface{}) (sdk.Client, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if val, ok := options["api_key"].(string); ok && val != "" {
		apiKey = val
	}
	if apiKey == "" {
		return sdk.Client{}, fmt.Errorf("ANTHROPIC_API_KEY_MISSING: Please set ANTHROPIC_API_KEY env var")
	}
	return sdk.NewClient(option.WithAPIKey(apiKey)), nil
}

func (p *AnthropicProvider) modelName(options map[string]interface{}) string {
	model := p.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	if val, ok := options["model"].(string); ok && val != "" {
		model = val
	}
	return model
}

func (p *AnthropicProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	client, err := p.newClient(options)
	if err != nil {
		return "", err
	}

	maxTokens := int64(defaultAnthropicMaxTokens)
	if val, ok := options["max_tokens"].(int); ok && val > 0 {
		maxTokens = int64(val)
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(p.modelName(options)),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	}
	if systemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: systemPrompt}}
	}

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("ANTHROPIC_API_ERROR: %w", err)
	}
	return collectText(msg), nil
}

// GenerateWithDocument attaches the PDF as a document block ahead of the
// prompt text, mirroring how the Gemini backend inlines the same bytes.
func (p *AnthropicProvider) GenerateWithDocument(ctx context.Context, req DocumentRequest) (string, error) {
	client, err := p.newClient(nil)
	if err != nil {
		return "", err
	}

	maxTokens := int64(defaultAnthropicMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	docBlock := sdk.NewDocumentBlock(sdk.Base64PDFSourceParam{
		Data: base64.StdEncoding.EncodeToString(req.PDF),
	})

	params := sdk.MessageNewParams{
		Model:     sdk.Model(p.modelName(nil)),
		MaxTokens: maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(docBlock, sdk.NewTextBlock(req.Prompt)),
		},
	}

	system := req.SystemPrompt
	if req.JSONMode {
		// No native JSON mode on this API; the instruction plus the
		// downstream repair parser covers it.
		system = strings.TrimSpace(system + "\n\n務必只輸出一個 JSON 物件，不要加任何說明文字或 markdown 圍欄。")
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("ANTHROPIC_API_ERROR: %w", err)
	}
	return collectText(msg), nil
}

func collectText(msg *sdk.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func (p *AnthropicProvider) AdaptInstructions(raw string) string {
	return raw
}
