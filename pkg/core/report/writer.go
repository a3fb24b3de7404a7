// Package report renders the per-document artifacts of an extraction run:
// a machine-readable results JSON, the validation verdicts JSON, a Markdown
// verification narrative and its HTML rendering with a section index.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"agentic_extraction/pkg/core/filing"
	"agentic_extraction/pkg/core/pipeline"
	"agentic_extraction/pkg/core/utils"
)

// Writer emits report files for finished runs into one output directory.
type Writer struct {
	outDir string
}

// NewWriter creates the output directory if needed. An empty dir defaults
// to ./output.
func NewWriter(outDir string) (*Writer, error) {
	if outDir == "" {
		outDir = "output"
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Writer{outDir: outDir}, nil
}

// ExtractionReport is the machine-readable result document, one per PDF.
type ExtractionReport struct {
	PDFName     string                              `json:"pdf_name"`
	GeneratedAt time.Time                           `json:"generated_at"`
	DurationMS  int64                               `json:"duration_ms"`
	TocPages    []int                               `json:"toc_pages"`
	Statements  *filing.FinancialStatementsAnalysis `json:"statements"`
	Results     map[string]ModelResult              `json:"results"`
	Failures    map[string]string                   `json:"failures,omitempty"`
}

// ModelResult is the per-model slice of an ExtractionReport.
type ModelResult struct {
	DisplayName   string          `json:"display_name"`
	Pages         []int           `json:"pages"`
	Rounds        int             `json:"rounds"`
	IsComplete    bool            `json:"is_complete"`
	MissingInfo   string          `json:"missing_info,omitempty"`
	ExtractedData json.RawMessage `json:"extracted_data"`
}

// WriteAll writes every artifact for one run and returns the paths written.
// The validation JSON is skipped when the run produced no verdicts.
func (w *Writer) WriteAll(result *pipeline.RunResult) ([]string, error) {
	if result == nil {
		return nil, fmt.Errorf("nil run result")
	}
	stem := strings.TrimSuffix(result.PDFName, filepath.Ext(result.PDFName))
	var written []string

	extraction, err := json.MarshalIndent(buildExtractionReport(result), "", "  ")
	if err != nil {
		return written, fmt.Errorf("marshal extraction report: %w", err)
	}
	path := filepath.Join(w.outDir, stem+"_extraction.json")
	if err := os.WriteFile(path, extraction, 0644); err != nil {
		return written, fmt.Errorf("write %s: %w", path, err)
	}
	written = append(written, path)

	if result.Validation != nil {
		verdicts, err := json.MarshalIndent(result.Validation, "", "  ")
		if err != nil {
			return written, fmt.Errorf("marshal validation report: %w", err)
		}
		path = filepath.Join(w.outDir, stem+"_validation.json")
		if err := os.WriteFile(path, verdicts, 0644); err != nil {
			return written, fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
	}

	narrative := buildNarrative(result)
	path = filepath.Join(w.outDir, stem+"_verification.md")
	if err := os.WriteFile(path, []byte(narrative), 0644); err != nil {
		return written, fmt.Errorf("write %s: %w", path, err)
	}
	written = append(written, path)

	fragment, err := utils.RenderHTML(narrative)
	if err != nil {
		return written, fmt.Errorf("render narrative: %w", err)
	}
	page, err := buildHTMLPage(result.PDFName, fragment)
	if err != nil {
		return written, err
	}
	path = filepath.Join(w.outDir, stem+"_verification.html")
	if err := os.WriteFile(path, []byte(page), 0644); err != nil {
		return written, fmt.Errorf("write %s: %w", path, err)
	}
	written = append(written, path)

	return written, nil
}

func buildExtractionReport(result *pipeline.RunResult) *ExtractionReport {
	report := &ExtractionReport{
		PDFName:     result.PDFName,
		GeneratedAt: time.Now(),
		DurationMS:  result.Duration.Milliseconds(),
		Statements:  result.Analysis,
		Results:     map[string]ModelResult{},
		Failures:    result.Failures,
	}
	if result.Toc != nil {
		report.TocPages = result.Toc.TocPageNumbers
	}
	for name, attempt := range result.Attempts {
		mr := ModelResult{
			DisplayName: attempt.Model.DisplayName,
			Pages:       attempt.Pages,
			Rounds:      attempt.Rounds,
		}
		if attempt.Envelope != nil {
			mr.IsComplete = attempt.Envelope.IsComplete
			mr.MissingInfo = attempt.Envelope.MissingInfoDescription
			mr.ExtractedData = attempt.Envelope.ExtractedData
		}
		report.Results[name] = mr
	}
	return report
}

// buildNarrative renders the human-readable verification report in Markdown.
// Tables are GFM, which the HTML renderer enables.
func buildNarrative(result *pipeline.RunResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# 財務數據提取驗證報告\n\n")
	fmt.Fprintf(&b, "- **文件**: %s\n", result.PDFName)
	fmt.Fprintf(&b, "- **處理時間**: %s\n", result.Duration.Round(time.Millisecond))
	if result.Toc != nil {
		fmt.Fprintf(&b, "- **目錄頁**: %s\n", joinPages(result.Toc.TocPageNumbers))
	}
	b.WriteString("\n## 報表頁碼解析\n\n")
	b.WriteString("| 報表 | 狀態 | 頁碼 |\n|---|---|---|\n")
	if result.Analysis != nil {
		for _, e := range result.Analysis.Entries() {
			label := e.Location.ItemName
			if label == "" {
				label = e.Name
			}
			if e.Location.Found {
				fmt.Fprintf(&b, "| %s | ✅ | %s |\n", label, joinPages(e.Location.PageNumbers))
			} else {
				fmt.Fprintf(&b, "| %s | ⚠️ 未找到 | - |\n", label)
			}
		}
	}

	b.WriteString("\n## 提取結果\n\n")
	for _, name := range sortedAttemptKeys(result.Attempts) {
		attempt := result.Attempts[name]
		fmt.Fprintf(&b, "### %s (%s)\n\n", attempt.Model.DisplayName, name)
		fmt.Fprintf(&b, "- 使用頁面: %s\n", joinPages(attempt.Pages))
		fmt.Fprintf(&b, "- 引用擴展輪數: %d\n", attempt.Rounds)
		if attempt.Envelope != nil {
			fmt.Fprintf(&b, "- 模型回報完整: %s\n", yesNo(attempt.Envelope.IsComplete))
			if attempt.Envelope.MissingInfoDescription != "" {
				fmt.Fprintf(&b, "- 缺漏說明: %s\n", attempt.Envelope.MissingInfoDescription)
			}
			b.WriteString("\n```json\n")
			b.WriteString(indentJSON(attempt.Envelope.ExtractedData))
			b.WriteString("\n```\n")
		}
		b.WriteString("\n")
	}

	if result.Validation != nil {
		b.WriteString("## 驗證結果\n\n")
		b.WriteString("| 模型 | 判定 | 信心分數 | 錯誤 | 警告 |\n|---|---|---|---|---|\n")
		for _, v := range result.Validation.ValidationResults {
			fmt.Fprintf(&b, "| %s | %s | %.2f | %d | %d |\n",
				v.ModelName, passFail(v.IsValid), v.ConfidenceScore, len(v.Errors), len(v.Warnings))
		}
		fmt.Fprintf(&b, "\n總體判定: %s（平均信心 %.2f，錯誤 %d、警告 %d）\n\n",
			passFail(result.Validation.OverallValid),
			result.Validation.AverageConfidence,
			result.Validation.TotalErrors,
			result.Validation.TotalWarnings)
		for _, v := range result.Validation.ValidationResults {
			for _, msg := range v.Errors {
				fmt.Fprintf(&b, "- ❌ %s: %s\n", v.ModelName, msg)
			}
			for _, msg := range v.Warnings {
				fmt.Fprintf(&b, "- ⚠️ %s: %s\n", v.ModelName, msg)
			}
		}
		b.WriteString("\n")
	}

	if len(result.Failures) > 0 {
		b.WriteString("## 失敗項目\n\n")
		for _, name := range sortedStringKeys(result.Failures) {
			fmt.Fprintf(&b, "- ❌ %s: %s\n", name, result.Failures[name])
		}
		b.WriteString("\n")
	}

	return b.String()
}

// buildHTMLPage wraps the rendered fragment in a full page and prepends a
// section index built from the h2 headings.
func buildHTMLPage(title, fragment string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return "", fmt.Errorf("parse rendered report: %w", err)
	}

	var items []string
	doc.Find("h2").Each(func(i int, sel *goquery.Selection) {
		id := fmt.Sprintf("sec-%d", i+1)
		sel.SetAttr("id", id)
		items = append(items, fmt.Sprintf(`<li><a href="#%s">%s</a></li>`,
			id, html.EscapeString(strings.TrimSpace(sel.Text()))))
	})
	if len(items) > 0 {
		nav := fmt.Sprintf(`<nav class="toc"><ul>%s</ul></nav>`, strings.Join(items, ""))
		if doc.Find("h1").Length() > 0 {
			doc.Find("h1").First().AfterHtml(nav)
		} else {
			doc.Find("body").PrependHtml(nav)
		}
	}

	body, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("serialize report body: %w", err)
	}
	return fmt.Sprintf(htmlShell, html.EscapeString(title), body), nil
}

const htmlShell = `<!DOCTYPE html>
<html lang="zh-Hant">
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: "Noto Sans TC", sans-serif; margin: 2rem auto; max-width: 60rem; line-height: 1.6; }
table { border-collapse: collapse; width: 100%%; margin: 1rem 0; }
th, td { border: 1px solid #ccc; padding: 0.4rem 0.6rem; text-align: left; }
nav.toc { background: #f6f6f6; padding: 0.5rem 1rem; }
pre { background: #f6f6f6; padding: 1rem; overflow-x: auto; }
</style>
</head>
<body>
%s
</body>
</html>
`

func joinPages(pages []int) string {
	if len(pages) == 0 {
		return "-"
	}
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}

func yesNo(ok bool) string {
	if ok {
		return "是"
	}
	return "否"
}

func passFail(ok bool) string {
	if ok {
		return "✅ 通過"
	}
	return "❌ 未通過"
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func sortedAttemptKeys(m map[string]*filing.ExtractionAttempt) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
