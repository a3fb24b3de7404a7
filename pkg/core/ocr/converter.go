package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"agentic_extraction/pkg/core/pdfdoc"
	"agentic_extraction/pkg/core/prompt"
	"agentic_extraction/pkg/core/utils"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultVisionModel renders scanned pages. Same family as the extraction
// model so table layouts survive the round trip.
const DefaultVisionModel = "gemini-2.5-flash-preview-05-20"

// DefaultWorkers bounds concurrent vision calls per document.
const DefaultWorkers = 4

// PageSource is what the converter needs from a loaded filing.
// *pdfdoc.Document satisfies it.
type PageSource interface {
	PageCount() int
	ProbeText(pages []int, threshold int) (map[int]bool, error)
	HasImageStreams(pageNr int) bool
	Subset(pages []int) ([]byte, *pdfdoc.PageMapping, error)
}

var _ PageSource = (*pdfdoc.Document)(nil)

// Converter renders scanned filing pages to Markdown through a Gemini
// vision call, one page at a time.
type Converter struct {
	Model   string
	Workers int
}

// NewConverter creates a converter with the default model and pool size
func NewConverter() *Converter {
	return &Converter{Model: DefaultVisionModel, Workers: DefaultWorkers}
}

// ScannedPages reports which of the given pages need conversion: no usable
// text layer but at least one embedded image. Text-less pages without
// images are blanks and are skipped.
func (c *Converter) ScannedPages(src PageSource, pages []int) ([]int, error) {
	probes, err := src.ProbeText(pages, pdfdoc.DefaultProbeThreshold)
	if err != nil {
		return nil, fmt.Errorf("probe text layer: %w", err)
	}

	var scanned []int
	for _, p := range pages {
		if probes[p] && src.HasImageStreams(p) {
			scanned = append(scanned, p)
		}
	}
	return scanned, nil
}

// ConvertPages renders each page to Markdown and returns the transcripts
// keyed by original page number. A failed page yields a placeholder
// transcript instead of failing the batch.
func (c *Converter) ConvertPages(ctx context.Context, src PageSource, pages []int) (map[int]string, error) {
	out := make(map[int]string, len(pages))
	if len(pages) == 0 {
		return out, nil
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %v", err)
	}
	defer client.Close()

	modelName := c.Model
	if modelName == "" {
		modelName = DefaultVisionModel
	}
	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.1)

	workers := c.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, workers)

	for _, p := range pages {
		wg.Add(1)
		go func(pageNr int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			md := c.convertOne(ctx, model, src, pageNr)
			mu.Lock()
			out[pageNr] = md
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	return out, nil
}

// convertOne carves a single page and asks the vision model for Markdown.
func (c *Converter) convertOne(ctx context.Context, model *genai.GenerativeModel, src PageSource, pageNr int) string {
	single, _, err := src.Subset([]int{pageNr})
	if err != nil {
		fmt.Printf("⚠️ 第 %d 頁切割失敗: %v\n", pageNr, err)
		return failedPage(pageNr)
	}

	resp, err := model.GenerateContent(ctx,
		genai.Text(c.pagePrompt(pageNr)),
		genai.Blob{MIMEType: "application/pdf", Data: single},
	)
	if err != nil {
		fmt.Printf("⚠️ 第 %d 頁轉換失敗: %v\n", pageNr, err)
		return failedPage(pageNr)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return failedPage(pageNr)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return utils.CleanMarkdown(sb.String())
}

func failedPage(pageNr int) string {
	return fmt.Sprintf("# 第 %d 頁轉換失敗", pageNr)
}

// pagePrompt creates the conversion prompt for one page
// Tries to load from prompt library first, falls back to hardcoded if not found
func (c *Converter) pagePrompt(pageNr int) string {
	if pt, err := prompt.Get().GetPrompt(prompt.PromptIDs.ExtractionPageMarkdown); err == nil {
		pctx := prompt.NewContext().Set("PageNumber", fmt.Sprintf("%d", pageNr))
		if rendered, rerr := prompt.RenderUserPrompt(pt, pctx); rerr == nil && rendered != "" {
			return rendered
		}
	}

	// Fallback to hardcoded prompt
	return fmt.Sprintf(`這是財務報告的第 %d 頁掃描影像。請將這一頁的內容完整轉換為 Markdown 格式：
- 表格轉為 Markdown 表格，保留所有數字、千分位符號與括號負數
- 保留原始的中文科目名稱與附註編號
- 不要加入任何頁面上沒有的文字或說明`, pageNr)
}
