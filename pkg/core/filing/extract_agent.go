package filing

import (
	"context"
	"fmt"
	"strings"

	"agentic_extraction/pkg/core/pdfdoc"
	"agentic_extraction/pkg/core/prompt"
	"agentic_extraction/pkg/core/utils"
)

// =============================================================================
// EXTRACT AGENT - Per-model structured extraction against a page subset
// =============================================================================

// ExtractAgent runs one extraction model against a carved page subset and
// returns the envelope with completeness and discovered references.
type ExtractAgent struct {
	caller DocumentCaller
}

// NewExtractAgent creates a new extract agent
func NewExtractAgent(caller DocumentCaller) *ExtractAgent {
	return &ExtractAgent{caller: caller}
}

// ExtractInput bundles one extraction call.
type ExtractInput struct {
	Model   ModelConfig
	Subset  []byte              // carved, renumbered pages
	Mapping *pdfdoc.PageMapping // renumbered -> original page mapping
	// PageContext carries Markdown conversions of scanned pages in the
	// subset, keyed into the prompt as supplementary text. Empty for
	// filings with a usable text layer.
	PageContext string
}

// Extract sends the model's prompt plus the page-mapping disclaimer against
// the subset and decodes the extraction envelope. The attached PDF pages are
// renumbered, so the disclaimer is what keeps source_page in original page
// numbers.
func (a *ExtractAgent) Extract(ctx context.Context, in ExtractInput) (*ExtractionEnvelope, error) {
	if a.caller == nil {
		return nil, fmt.Errorf("no document caller configured")
	}
	if len(in.Subset) == 0 {
		return nil, &pdfdoc.EmptySelectionError{}
	}

	systemPrompt, userPrompt := a.buildPrompt(in)

	response, err := a.caller.CallWithDocument(ctx, userPrompt, systemPrompt, in.Subset)
	if err != nil {
		return nil, &ExternalModelError{Op: "LLM query", Err: err}
	}

	var envelope ExtractionEnvelope
	if _, err := utils.SmartParse(response, &envelope); err != nil {
		return nil, &ExternalModelError{Op: "parse extraction envelope", Err: err}
	}
	return &envelope, nil
}

// buildPrompt assembles disclaimer + model prompt + envelope rules.
func (a *ExtractAgent) buildPrompt(in ExtractInput) (string, string) {
	var b strings.Builder

	if in.Mapping != nil {
		b.WriteString(in.Mapping.Disclaimer())
		b.WriteString("\n\n")
	}

	b.WriteString("將提取的數據記錄在 extracted_data 中。\n")
	b.WriteString(a.modelPrompt(in.Model))
	b.WriteString("\n\n")
	b.WriteString(a.envelopeRules())

	if in.PageContext != "" {
		b.WriteString("\n\n以下是掃描頁面的文字轉錄，供對照使用：\n")
		b.WriteString(in.PageContext)
	}

	systemPrompt := "你是一位嚴謹的財務數據提取專家，只根據文件內容回答。"
	if pt, err := prompt.Get().GetPrompt(in.Model.PromptID); err == nil && pt.SystemPrompt != "" {
		systemPrompt = pt.SystemPrompt
	}

	return systemPrompt, b.String()
}

// modelPrompt fetches the statement prompt for this model from the library.
func (a *ExtractAgent) modelPrompt(m ModelConfig) string {
	if pt, err := prompt.Get().GetPrompt(m.PromptID); err == nil && pt.UserPromptTmpl != "" {
		rendered, err := prompt.RenderUserPrompt(pt, prompt.NewContext())
		if err == nil && rendered != "" {
			return rendered
		}
	}

	// Fallback: generic instruction naming the statement
	return fmt.Sprintf("請從提供的 PDF 中定位「%s」相關的表格，提取所有欄位數值並回填 extracted_data，金額欄位一律使用 {\"value\": 數值, \"source_page\": [頁碼], \"source_label\": [\"表名\"]} 結構。", m.DisplayName)
}

// envelopeRules returns the reference-discovery and completeness addendum
// appended to every extraction prompt.
func (a *ExtractAgent) envelopeRules() string {
	if p, err := prompt.Get().GetSystemPrompt(prompt.PromptIDs.ExtractionEnvelopeRules); err == nil && p != "" {
		return p
	}

	// Fallback
	return `**重要補充指令：在提取數據的過程中，請特別注意以下情況：**

1. **引用發現**：如果在當前頁面中看到任何引用其他頁數的文字，如：
   - "詳見附註X"
   - "見第X頁明細表"
   - "參考附註說明"
   - "明細如下表"
   請將這些引用記錄下來。
   如果該引用就在同一頁，則不需記錄。

2. **數據完整性評估**：
   - 若在當前頁面看到「詳見附註X」、「見第X頁明細表」、「如明細表所示」等參照文字，
     或該欄位旁明確顯示需要查看其他頁面才能取得數值，請標記為 **不完整**，並說明缺失原因。
   - 如果該表格根本沒有列出某些子欄位（例如零用金、待交換票據、商業本票等），且也沒有任何「詳見附註」字樣，
     就 **直接填入 null**，但這不視為資料不完整，因為本來就不存在該資訊。

3. **返回格式**：除了 extracted_data 外，還需要包含：
   - discovered_references: 發現的引用列表
   - is_complete: 數據是否完整
   - missing_info_description: 如果不完整，描述缺失的信息

注意事項
   - 如果某個子欄位完全沒有出現，也沒出現任何參照文字，就請回傳 "該欄位": null，並且 is_complete: true。

Return JSON only:
{
  "extracted_data": { ... },
  "discovered_references": [
    {"reference_text": "詳見附註六", "context": "現金及約當現金", "reference_type": "附註", "page_numbers": []}
  ],
  "is_complete": true/false,
  "missing_info_description": "..."
}`
}
