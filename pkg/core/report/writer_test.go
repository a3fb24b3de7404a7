package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agentic_extraction/pkg/core/filing"
	"agentic_extraction/pkg/core/pdfdoc"
	"agentic_extraction/pkg/core/pipeline"
	"agentic_extraction/pkg/core/utils"
	"agentic_extraction/pkg/models"
)

func sampleRun(t *testing.T) *pipeline.RunResult {
	t.Helper()
	mapping, err := pdfdoc.NewPageMapping([]int{15, 16, 52, 53}, 100)
	if err != nil {
		t.Fatalf("mapping: %v", err)
	}
	return &pipeline.RunResult{
		PDFName: "annual_2023.pdf",
		Toc:     &filing.TocInfo{HasToc: true, TocPageNumbers: []int{2, 3}},
		Analysis: &filing.FinancialStatementsAnalysis{
			IndividualBalanceSheet:        filing.StatementLocation{ItemName: "個體資產負債表", Found: true, PageNumbers: []int{15, 16}},
			IndividualComprehensiveIncome: filing.StatementLocation{ItemName: "個體綜合損益表", Found: true, PageNumbers: []int{17}},
			IndividualEquityChanges:       filing.StatementLocation{ItemName: "個體權益變動表", Found: false},
			IndividualCashFlow:            filing.StatementLocation{ItemName: "個體現金流量表", Found: true, PageNumbers: []int{19}},
			ImportantAccountingItems:      filing.StatementLocation{ItemName: "重要會計項目明細表", Found: true, PageNumbers: []int{52, 53}},
		},
		Attempts: map[string]*filing.ExtractionAttempt{
			models.ModelCashAndEquivalents: {
				Model:   filing.ModelConfig{Name: models.ModelCashAndEquivalents, DisplayName: "現金及約當現金"},
				Pages:   []int{15, 16, 52, 53},
				Mapping: mapping,
				Envelope: &filing.ExtractionEnvelope{
					ExtractedData: json.RawMessage(`{"total": {"value": 88000, "source_page": [15]}, "unit_is_thousand": true}`),
					IsComplete:    true,
				},
				Rounds: 1,
			},
		},
		Failures: map[string]string{
			models.ModelTotalLiabilities: "model overloaded",
		},
		Validation: &filing.OverallValidationResult{
			ValidationResults: []filing.ValidationResult{
				{
					ModelName:       models.ModelCashAndEquivalents,
					IsValid:         true,
					Errors:          []string{},
					Warnings:        []string{"第 16 頁的合計與明細表略有出入"},
					ConfidenceScore: 0.9,
				},
			},
			OverallValid:      true,
			TotalErrors:       0,
			TotalWarnings:     1,
			AverageConfidence: 0.9,
		},
		Duration: 1234 * time.Millisecond,
	}
}

func TestWriteAll(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	paths, err := w.WriteAll(sampleRun(t))
	if err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if len(paths) != 4 {
		t.Fatalf("expected 4 artifacts, got %d: %v", len(paths), paths)
	}

	data, err := os.ReadFile(filepath.Join(dir, "annual_2023_extraction.json"))
	if err != nil {
		t.Fatalf("read extraction report: %v", err)
	}
	var rep ExtractionReport
	if err := json.Unmarshal(data, &rep); err != nil {
		t.Fatalf("parse extraction report: %v", err)
	}
	if rep.PDFName != "annual_2023.pdf" {
		t.Errorf("pdf_name = %q", rep.PDFName)
	}
	if len(rep.TocPages) != 2 || rep.TocPages[0] != 2 {
		t.Errorf("toc_pages = %v", rep.TocPages)
	}
	cash, ok := rep.Results[models.ModelCashAndEquivalents]
	if !ok {
		t.Fatal("cash result missing from extraction report")
	}
	if cash.DisplayName != "現金及約當現金" || !cash.IsComplete || cash.Rounds != 1 {
		t.Errorf("cash result = %+v", cash)
	}
	if !strings.Contains(string(cash.ExtractedData), "88000") {
		t.Error("extracted data tree not carried into the report")
	}
	if rep.Failures[models.ModelTotalLiabilities] != "model overloaded" {
		t.Errorf("failures = %v", rep.Failures)
	}
	if !rep.Statements.IndividualBalanceSheet.Found {
		t.Error("statement locations not carried into the report")
	}

	data, err = os.ReadFile(filepath.Join(dir, "annual_2023_validation.json"))
	if err != nil {
		t.Fatalf("read validation report: %v", err)
	}
	var verdicts filing.OverallValidationResult
	if err := json.Unmarshal(data, &verdicts); err != nil {
		t.Fatalf("parse validation report: %v", err)
	}
	if !verdicts.OverallValid || len(verdicts.ValidationResults) != 1 {
		t.Errorf("validation report = %+v", verdicts)
	}

	md, err := os.ReadFile(filepath.Join(dir, "annual_2023_verification.md"))
	if err != nil {
		t.Fatalf("read narrative: %v", err)
	}
	narrative := string(md)
	for _, want := range []string{
		"# 財務數據提取驗證報告",
		"- **文件**: annual_2023.pdf",
		"- **處理時間**: 1.234s",
		"| 個體資產負債表 | ✅ | 15, 16 |",
		"| 個體權益變動表 | ⚠️ 未找到 | - |",
		"### 現金及約當現金 (cash_and_equivalents)",
		"- 使用頁面: 15, 16, 52, 53",
		"- 引用擴展輪數: 1",
		"```json",
		"總體判定: ✅ 通過（平均信心 0.90，錯誤 0、警告 1）",
		"- ⚠️ cash_and_equivalents: 第 16 頁的合計與明細表略有出入",
		"## 失敗項目",
		"- ❌ total_liabilities: model overloaded",
	} {
		if !strings.Contains(narrative, want) {
			t.Errorf("narrative missing %q", want)
		}
	}

	page, err := os.ReadFile(filepath.Join(dir, "annual_2023_verification.html"))
	if err != nil {
		t.Fatalf("read html report: %v", err)
	}
	htmlOut := string(page)
	for _, want := range []string{
		"<!DOCTYPE html>",
		"<table>",
		`<nav class="toc">`,
		`id="sec-1"`,
		`href="#sec-1"`,
		"報表頁碼解析",
	} {
		if !strings.Contains(htmlOut, want) {
			t.Errorf("html report missing %q", want)
		}
	}
}

func TestWriteAllSkipsValidationWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter failed: %v", err)
	}

	run := sampleRun(t)
	run.Validation = nil
	paths, err := w.WriteAll(run)
	if err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("expected 3 artifacts without validation, got %d", len(paths))
	}
	if _, err := os.Stat(filepath.Join(dir, "annual_2023_validation.json")); !os.IsNotExist(err) {
		t.Error("validation report should not exist")
	}
}

func TestNarrativeIncompleteAttempt(t *testing.T) {
	run := sampleRun(t)
	attempt := run.Attempts[models.ModelCashAndEquivalents]
	attempt.Envelope.IsComplete = false
	attempt.Envelope.MissingInfoDescription = "外幣存款明細缺少匯率欄位"

	narrative := buildNarrative(run)
	if !strings.Contains(narrative, "- 模型回報完整: 否") {
		t.Error("narrative should flag the incomplete attempt")
	}
	if !strings.Contains(narrative, "- 缺漏說明: 外幣存款明細缺少匯率欄位") {
		t.Error("narrative should carry the missing-info description")
	}
}

func TestBuildHTMLPageIndexesHeadings(t *testing.T) {
	fragment, err := utils.RenderHTML("# 標題\n\n## 第一節\n\n內文\n\n## 第二節\n")
	if err != nil {
		t.Fatalf("RenderHTML failed: %v", err)
	}
	page, err := buildHTMLPage("annual.pdf", fragment)
	if err != nil {
		t.Fatalf("buildHTMLPage failed: %v", err)
	}

	if !strings.Contains(page, `<h2 id="sec-1">第一節</h2>`) {
		t.Error("first heading did not get an anchor id")
	}
	if !strings.Contains(page, `<a href="#sec-2">第二節</a>`) {
		t.Error("index should link the second heading")
	}
	if h1 := strings.Index(page, "</h1>"); h1 < 0 || h1 > strings.Index(page, "<nav") {
		t.Error("section index should come right after the title")
	}
}
