package filing

import (
	"context"
	"fmt"

	"agentic_extraction/pkg/core/prompt"
	"agentic_extraction/pkg/core/utils"
)

// =============================================================================
// VALIDATE AGENT - Second-pass audit of extracted figures against the source
// =============================================================================

// ValidateAgent re-reads the statement pages and audits one model's
// extracted payload number by number.
type ValidateAgent struct {
	caller DocumentCaller
}

// NewValidateAgent creates a new validate agent
func NewValidateAgent(caller DocumentCaller) *ValidateAgent {
	return &ValidateAgent{caller: caller}
}

// ModelPayload names one extracted payload to audit.
type ModelPayload struct {
	Name string
	JSON string
}

// Validate audits one payload against the attached statement pages.
// The model name in the verdict is forced to the requested one; models
// occasionally echo a different label.
func (a *ValidateAgent) Validate(ctx context.Context, subset []byte, modelName string, resultJSON string) (*ValidationResult, error) {
	if a.caller == nil {
		return nil, fmt.Errorf("no document caller configured")
	}

	systemPrompt, userPrompt := a.buildPrompt(modelName, resultJSON)

	response, err := a.caller.CallWithDocument(ctx, userPrompt, systemPrompt, subset)
	if err != nil {
		return nil, &ExternalModelError{Op: "LLM query", Err: err}
	}

	var verdict ValidationResult
	if _, err := utils.SmartParse(response, &verdict); err != nil {
		return nil, &ExternalModelError{Op: "parse validation verdict", Err: err}
	}
	verdict.ModelName = modelName
	return &verdict, nil
}

// ValidateAll audits every payload in order and aggregates the verdicts.
// A failed validation call never fails the run; it is recorded as a failed
// verdict with zero confidence instead.
func (a *ValidateAgent) ValidateAll(ctx context.Context, subset []byte, payloads []ModelPayload) *OverallValidationResult {
	var verdicts []ValidationResult
	for _, p := range payloads {
		fmt.Printf("🔍 驗證 %s 數據...\n", p.Name)
		verdict, err := a.Validate(ctx, subset, p.Name, p.JSON)
		if err != nil {
			fmt.Printf("❌ 驗證 %s 時發生錯誤: %v\n", p.Name, err)
			verdicts = append(verdicts, FailedValidation(p.Name, err))
			continue
		}
		if verdict.IsValid {
			fmt.Printf("✅ %s 驗證通過 (信心分數: %.2f)\n", p.Name, verdict.ConfidenceScore)
		} else {
			fmt.Printf("❌ %s 驗證失敗 (信心分數: %.2f)\n", p.Name, verdict.ConfidenceScore)
		}
		verdicts = append(verdicts, *verdict)
	}
	return Aggregate(verdicts)
}

// FailedValidation is the verdict recorded when the validation call itself
// fails.
func FailedValidation(modelName string, err error) ValidationResult {
	return ValidationResult{
		ModelName:       modelName,
		IsValid:         false,
		Errors:          []string{fmt.Sprintf("驗證過程發生錯誤: %v", err)},
		Warnings:        []string{},
		ConfidenceScore: 0,
		Notes:           "驗證過程中發生技術錯誤",
	}
}

// buildPrompt creates the prompts for one validation call
func (a *ValidateAgent) buildPrompt(modelName string, resultJSON string) (string, string) {
	if pt, err := prompt.Get().GetPrompt(prompt.PromptIDs.ValidationStatementCheck); err == nil {
		pctx := prompt.NewContext().
			Set("ModelName", modelName).
			Set("ResultJSON", resultJSON)
		userPrompt, _ := prompt.RenderUserPrompt(pt, pctx)
		return pt.SystemPrompt, userPrompt
	}

	// Fallback to hardcoded prompt
	systemPrompt := "你是一位嚴格的財務數據審核員。"

	userPrompt := fmt.Sprintf(`請你作為一個嚴格的財務數據審核員，仔細檢查以下提取的 %s 數據是否正確。

提取的數據：
%s

請執行以下檢查：

1. **數字準確性檢查**：
   - 仔細對比PDF中的原始數字與提取的數字
   - 檢查是否有數字錯誤、遺漏或多餘的數字
   - 注意小數點位置、千分位符號
   - 檢查負數是否正確識別（括號表示負數）

2. **單位一致性檢查**：
   - 檢查 unit_is_thousand 欄位是否正確
   - 確認數值單位與PDF中的單位說明一致
   - 注意是否有混合單位的情況

3. **頁數和標籤檢查**：
   - 驗證 source_page 是否指向正確的頁面
   - 檢查 source_label 是否準確反映原文表名

4. **邏輯一致性檢查**：
   - 檢查相關數字之間的邏輯關係
   - 驗證合計數是否正確
   - 檢查是否有明顯不合理的數值

5. **完整性檢查**：
   - 確認所有應該填入的欄位都有數據
   - 檢查是否有遺漏的重要項目

請提供：
- is_valid: 數據是否完全正確（布林值）
- errors: 發現的具體錯誤（如果有）
- warnings: 需要注意的問題（如果有）
- confidence_score: 對驗證結果的信心分數（0-1，1表示非常確信）
- notes: 額外的驗證說明

要求：
- 請極其嚴格地檢查每一個數字
- 即使是微小的差異也要指出
- 如果無法確定某個數字是否正確，請在warnings中說明
- 只有在100%%確信所有數字都正確時，才將is_valid設為true

Return JSON only:
{
  "model_name": "%s",
  "is_valid": true/false,
  "errors": [],
  "warnings": [],
  "confidence_score": 0.95,
  "notes": "..."
}`, modelName, resultJSON, modelName)

	return systemPrompt, userPrompt
}
