package filing

import (
	"context"
	"fmt"
	"sort"

	"agentic_extraction/pkg/core/prompt"
	"agentic_extraction/pkg/core/utils"
)

// =============================================================================
// LOCATOR AGENT - Resolves canonical statements to page numbers via the ToC
// =============================================================================

// LocatorAgent maps the five canonical statements to the original page
// numbers listed in the table of contents.
type LocatorAgent struct {
	caller DocumentCaller
}

// NewLocatorAgent creates a new locator agent
func NewLocatorAgent(caller DocumentCaller) *LocatorAgent {
	return &LocatorAgent{caller: caller}
}

// Resolve carves the ToC pages out of the filing and asks which pages each
// canonical statement starts on. Statements absent from the ToC come back
// with found=false and no pages; the caller decides what to skip.
func (a *LocatorAgent) Resolve(ctx context.Context, src Source, toc *TocInfo) (*FinancialStatementsAnalysis, error) {
	if a.caller == nil {
		return nil, fmt.Errorf("no document caller configured")
	}
	if toc == nil || !toc.HasToc || len(toc.TocPageNumbers) == 0 {
		return nil, fmt.Errorf("no table of contents pages to analyze")
	}

	subset, _, err := src.Subset(toc.TocPageNumbers)
	if err != nil {
		return nil, fmt.Errorf("carve ToC pages: %w", err)
	}

	systemPrompt, userPrompt := a.buildPrompt()

	response, err := a.caller.CallWithDocument(ctx, userPrompt, systemPrompt, subset)
	if err != nil {
		return nil, &ExternalModelError{Op: "LLM query", Err: err}
	}

	var analysis FinancialStatementsAnalysis
	if _, err := utils.SmartParse(response, &analysis); err != nil {
		return nil, &ExternalModelError{Op: "parse statement locations", Err: err}
	}
	for _, e := range analysis.Entries() {
		sort.Ints(e.Location.PageNumbers)
	}
	return &analysis, nil
}

// buildPrompt creates the prompts for statement resolution
func (a *LocatorAgent) buildPrompt() (string, string) {
	if pt, err := prompt.Get().GetPrompt(prompt.PromptIDs.NavigationStatementLocations); err == nil {
		userPrompt, _ := prompt.RenderUserPrompt(pt, prompt.NewContext())
		return pt.SystemPrompt, userPrompt
	}

	// Fallback to hardcoded prompt
	systemPrompt := "你是一位財務報告文件分析專家，熟悉台灣個體財務報告的章節結構。"

	userPrompt := `請分析這個目錄頁，找出以下財務報表項目在目錄中顯示的頁數：

1. 個體資產負債表
2. 個體綜合損益表
3. 個體權益變動表
4. 個體現金流量表
5. 重要會計項目明細表

請仔細查看目錄中的項目名稱，可能會有類似的表達方式，例如：
- "資產負債表"、"Balance Sheet"
- "綜合損益表"、"Comprehensive Income Statement"
- "權益變動表"、"Statement of Changes in Equity"
- "現金流量表"、"Cash Flow Statement"
- "重要會計項目明細表"、"Notes to Financial Statements"、"附註"

注意：
- 請根據目錄中顯示的頁數填寫
- 如果找不到某個項目，請將found設為false
- 如果某個報表跨越多頁，請列出所有相關頁數
- 重要會計項目明細表不等於重要會計項目之說明，請注意區分

Return JSON only:
{
  "individual_balance_sheet": {"item_name": "個體資產負債表", "page_numbers": [15, 16], "found": true, "notes": ""},
  "individual_comprehensive_income": {"item_name": "個體綜合損益表", "page_numbers": [17], "found": true, "notes": ""},
  "individual_equity_changes": {"item_name": "個體權益變動表", "page_numbers": [18], "found": true, "notes": ""},
  "individual_cash_flow": {"item_name": "個體現金流量表", "page_numbers": [19], "found": true, "notes": ""},
  "important_accounting_items": {"item_name": "重要會計項目明細表", "page_numbers": [52, 53], "found": true, "notes": ""}
}`

	return systemPrompt, userPrompt
}
