package filing

import (
	"context"
	"fmt"
	"sort"

	"agentic_extraction/pkg/core/prompt"
	"agentic_extraction/pkg/core/utils"
)

// =============================================================================
// REFERENCE AGENT - Resolves discovered references to pages via the ToC
// =============================================================================

// ReferenceAgent looks up where a discovered cross-reference lives, by
// matching the reference text against the table of contents.
type ReferenceAgent struct {
	caller DocumentCaller
}

// NewReferenceAgent creates a new reference agent
func NewReferenceAgent(caller DocumentCaller) *ReferenceAgent {
	return &ReferenceAgent{caller: caller}
}

// Lookup asks which section of the filing the reference points at. The
// attached PDF should be the ToC pages in their original numbering, so the
// returned pages can be unioned into the active set directly.
func (a *ReferenceAgent) Lookup(ctx context.Context, tocSubset []byte, ref DiscoveredReference) (*ReferenceLocation, error) {
	if a.caller == nil {
		return nil, fmt.Errorf("no document caller configured")
	}
	if ref.ReferenceText == "" {
		return nil, fmt.Errorf("empty reference text")
	}

	systemPrompt, userPrompt := a.buildPrompt(ref)

	response, err := a.caller.CallWithDocument(ctx, userPrompt, systemPrompt, tocSubset)
	if err != nil {
		return nil, &ExternalModelError{Op: "LLM query", Err: err}
	}

	var loc ReferenceLocation
	if _, err := utils.SmartParse(response, &loc); err != nil {
		return nil, &ExternalModelError{Op: "parse reference location", Err: err}
	}
	sort.Ints(loc.PageNumbers)
	return &loc, nil
}

// buildPrompt creates the prompts for reference lookup
func (a *ReferenceAgent) buildPrompt(ref DiscoveredReference) (string, string) {
	if pt, err := prompt.Get().GetPrompt(prompt.PromptIDs.NavigationReferenceLookup); err == nil {
		pctx := prompt.NewContext().
			Set("ReferenceText", ref.ReferenceText).
			Set("Context", ref.Context)
		userPrompt, _ := prompt.RenderUserPrompt(pt, pctx)
		return pt.SystemPrompt, userPrompt
	}

	// Fallback to hardcoded prompt
	systemPrompt := "你是一位財務報告文件分析專家，熟悉目錄章節與附註的對應關係。"

	userPrompt := fmt.Sprintf(`根據以下引用文本，在這個PDF的目錄中查找對應的頁面位置：

引用文本：%s
上下文：%s

請在目錄中查找可能對應的章節，舉例：
- "現金及約當現金(附註六)" 可能對應目錄中 "個體財務報告附註(六)"或類似章節

請提供：
1. 是否在目錄中找到對應章節
2. 對應的章節名稱
3. 該章節的頁面範圍
4. 查找的信心分數（0-1）

注意：要仔細比對引用文本與目錄中的章節標題。

Return JSON only:
{
  "found": true/false,
  "section_name": "...",
  "page_numbers": [40, 41],
  "confidence_score": 0.9
}`, ref.ReferenceText, ref.Context)

	return systemPrompt, userPrompt
}
