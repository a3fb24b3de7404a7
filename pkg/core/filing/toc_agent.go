package filing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"agentic_extraction/pkg/core/prompt"
	"agentic_extraction/pkg/core/utils"
)

// =============================================================================
// TOC AGENT - Locates the table of contents in the first pages
// =============================================================================

// TocProbePages caps how many leading pages are attached for ToC location.
// Taiwanese filings put the 目錄 within the first few pages.
const TocProbePages = 5

// Keywords that mark a ToC page when they appear in its extracted text.
var tocKeywords = []string{"目錄", "目 錄", "Contents", "CONTENTS"}

// TocAgent finds the table of contents pages of a filing.
type TocAgent struct {
	caller DocumentCaller
}

// NewTocAgent creates a new ToC agent
func NewTocAgent(caller DocumentCaller) *TocAgent {
	return &TocAgent{caller: caller}
}

// Locate attaches the first pages of the filing and asks where the table of
// contents sits. Pages carrying a ToC keyword in their text layer are passed
// along as hints; scanned filings simply produce no hints.
func (a *TocAgent) Locate(ctx context.Context, src Source) (*TocInfo, error) {
	if a.caller == nil {
		return nil, fmt.Errorf("no document caller configured")
	}

	n := TocProbePages
	if src.PageCount() < n {
		n = src.PageCount()
	}
	subset, mapping, err := src.FirstPages(n)
	if err != nil {
		return nil, fmt.Errorf("carve leading pages: %w", err)
	}

	hints := a.keywordHints(src, mapping.Originals())
	systemPrompt, userPrompt := a.buildPrompt(hints)

	response, err := a.caller.CallWithDocument(ctx, userPrompt, systemPrompt, subset)
	if err != nil {
		return nil, &ExternalModelError{Op: "LLM query", Err: err}
	}

	var info TocInfo
	if _, err := utils.SmartParse(response, &info); err != nil {
		return nil, &ExternalModelError{Op: "parse ToC response", Err: err}
	}
	sort.Ints(info.TocPageNumbers)
	return &info, nil
}

// keywordHints scans the text layer of the attached pages for ToC markers.
func (a *TocAgent) keywordHints(src Source, pages []int) []int {
	var hits []int
	for _, p := range pages {
		text, err := src.PageText(p)
		if err != nil || text == "" {
			continue
		}
		for _, kw := range tocKeywords {
			if strings.Contains(text, kw) {
				hits = append(hits, p)
				break
			}
		}
	}
	return hits
}

// buildPrompt creates the prompts for ToC location
// Tries to load from prompt library first, falls back to hardcoded if not found
func (a *TocAgent) buildPrompt(hints []int) (string, string) {
	hintLine := ""
	if len(hints) > 0 {
		hintLine = fmt.Sprintf("\n提示：第 %s 頁的文字層含有目錄關鍵字，請優先檢查。", joinInts(hints))
	}

	if pt, err := prompt.Get().GetPrompt(prompt.PromptIDs.NavigationTocLocate); err == nil {
		pctx := prompt.NewContext().Set("HintLine", hintLine)
		userPrompt, _ := prompt.RenderUserPrompt(pt, pctx)
		return pt.SystemPrompt, userPrompt
	}

	// Fallback to hardcoded prompt
	systemPrompt := "你是一位財務報告文件分析專家，擅長判讀 PDF 結構。"

	userPrompt := fmt.Sprintf(`請分析這個PDF文件，找出目錄頁（Table of Contents）的位置。

請告訴我：
1. 是否有目錄頁？
2. 如果有，目錄頁在第幾頁？（從1開始計算）

注意：
- 目錄頁通常包含章節標題和對應的頁數。
- 目錄頁可能包含多頁，請不要落下任何一頁。%s

Return JSON only:
{
  "has_toc": true/false,
  "toc_page_numbers": [1, 2],
  "notes": "..."
}`, hintLine)

	return systemPrompt, userPrompt
}

func joinInts(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, "、")
}
