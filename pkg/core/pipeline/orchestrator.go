package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"agentic_extraction/pkg/core/filing"
	"agentic_extraction/pkg/core/ocr"
	"agentic_extraction/pkg/core/pdfdoc"
	"agentic_extraction/pkg/core/store"
	"agentic_extraction/pkg/models"
)

// DefaultModelWorkers bounds how many extraction models run concurrently
// against one document.
const DefaultModelWorkers = 4

// RunSaver persists finished runs. *store.RunsRepo satisfies it.
type RunSaver interface {
	SaveRun(ctx context.Context, run *store.RunRecord) (string, error)
}

// ExtractionOrchestrator manages the end-to-end flow for one filing:
// ToC location -> statement resolution -> scanned-page conversion ->
// per-model extraction sessions -> validation -> storage.
type ExtractionOrchestrator struct {
	caller      filing.DocumentCaller
	config      *filing.ModelsConfig
	converter   *ocr.Converter
	transcripts *ocr.TranscriptCache
	repo        RunSaver
	workers     int
}

// NewExtractionOrchestrator creates an orchestrator with all required
// dependencies.
// caller: document-capable LLM seam (e.g. the provider adapter)
// config: the extraction model registry (from models.yaml or defaults)
func NewExtractionOrchestrator(caller filing.DocumentCaller, config *filing.ModelsConfig) *ExtractionOrchestrator {
	return &ExtractionOrchestrator{
		caller:    caller,
		config:    config,
		converter: ocr.NewConverter(),
		workers:   DefaultModelWorkers,
	}
}

// SetRepository allows injecting a run store (e.g. for testing). A nil
// repository disables persistence.
func (o *ExtractionOrchestrator) SetRepository(repo RunSaver) {
	o.repo = repo
}

// SetConverter swaps or disables the scanned-page converter.
func (o *ExtractionOrchestrator) SetConverter(c *ocr.Converter) {
	o.converter = c
}

// SetTranscriptCache enables reuse of page transcripts across runs. A nil
// cache converts every scanned page fresh.
func (o *ExtractionOrchestrator) SetTranscriptCache(c *ocr.TranscriptCache) {
	o.transcripts = c
}

// SetWorkers overrides the extraction concurrency.
func (o *ExtractionOrchestrator) SetWorkers(n int) {
	if n > 0 {
		o.workers = n
	}
}

// RunResult collects everything one run produced.
type RunResult struct {
	PDFName    string
	Toc        *filing.TocInfo
	Analysis   *filing.FinancialStatementsAnalysis
	Attempts   map[string]*filing.ExtractionAttempt
	Failures   map[string]string
	Validation *filing.OverallValidationResult
	Duration   time.Duration
}

// Run executes the full pipeline for a single PDF file.
func (o *ExtractionOrchestrator) Run(ctx context.Context, pdfPath string) (*RunResult, error) {
	doc, err := pdfdoc.Open(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", pdfPath, err)
	}
	return o.RunDocument(ctx, doc, filepath.Base(pdfPath))
}

// RunDocument executes the full pipeline for an already-loaded filing.
func (o *ExtractionOrchestrator) RunDocument(ctx context.Context, src filing.Source, name string) (*RunResult, error) {
	start := time.Now()
	fmt.Printf("🚀 開始處理 %s（共 %d 頁）...\n", name, src.PageCount())

	// 1. Locate the table of contents
	toc, err := filing.NewTocAgent(o.caller).Locate(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("ToC location failed: %w", err)
	}
	if !toc.HasToc || len(toc.TocPageNumbers) == 0 {
		return nil, fmt.Errorf("no table of contents found in %s", name)
	}
	fmt.Printf("📖 目錄頁: %v\n", toc.TocPageNumbers)

	// 2. Resolve the canonical statements to pages
	analysis, err := filing.NewLocatorAgent(o.caller).Resolve(ctx, src, toc)
	if err != nil {
		return nil, fmt.Errorf("statement location failed: %w", err)
	}
	for _, e := range analysis.Entries() {
		if e.Location.Found {
			fmt.Printf("✅ %s: 第 %v 頁\n", e.Location.ItemName, e.Location.PageNumbers)
		} else {
			fmt.Printf("⚠️ %s: 目錄中找不到\n", e.Location.ItemName)
		}
	}
	if missing := analysis.MissingFrom(o.config.AllRequiredStatements()); len(missing) > 0 {
		fmt.Printf("⚠️ 缺少部分必要報表 %v，仍會嘗試提取\n", missing)
	}

	// 3. Convert scanned pages to Markdown context
	transcripts := o.convertScanned(ctx, src, name, analysis.FoundPages())

	// 4. Per-model extraction sessions
	session, err := filing.NewSession(src, o.caller, toc.TocPageNumbers)
	if err != nil {
		return nil, fmt.Errorf("session setup failed: %w", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	attempts := make(map[string]*filing.ExtractionAttempt)
	failures := make(map[string]string)
	sem := make(chan struct{}, o.workers)

	for _, m := range o.config.Models {
		pages := analysis.PagesFor(m.RequiredStatements)
		if len(pages) == 0 {
			fmt.Printf("⚠️ %s: 找不到任何相關頁面，跳過\n", m.DisplayName)
			failures[m.Name] = "no pages resolved for required statements"
			continue
		}
		if missing := analysis.MissingFrom(m.RequiredStatements); len(missing) > 0 {
			fmt.Printf("⚠️ %s 需要的報表未全數找到: %v，仍會嘗試提取\n", m.DisplayName, missing)
		}

		wg.Add(1)
		go func(model filing.ModelConfig, initial []int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			fmt.Printf("🔄 提取 %s...\n", model.DisplayName)
			attempt, err := session.Run(ctx, model, initial, transcripts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Printf("❌ %s 提取失敗: %v\n", model.DisplayName, err)
				failures[model.Name] = err.Error()
				return
			}
			attempts[model.Name] = attempt
			fmt.Printf("✅ %s 提取完成（%d 頁，擴展 %d 輪）\n", model.DisplayName, len(attempt.Pages), attempt.Rounds)
		}(m, pages)
	}
	wg.Wait()

	if len(attempts) == 0 {
		return nil, fmt.Errorf("all extraction models failed for %s", name)
	}

	// Canonical-schema check on every payload. A mismatch is reported but
	// the raw payload still flows into validation and the report.
	for _, m := range o.config.Models {
		attempt, ok := attempts[m.Name]
		if !ok || attempt.Envelope == nil {
			continue
		}
		if _, err := models.DecodeStatement(m.Name, attempt.Envelope.ExtractedData); err != nil {
			fmt.Printf("⚠️ %s 結構檢查未通過: %v\n", m.DisplayName, err)
		}
	}

	// 5. Second-pass validation against the statement pages
	validation := o.validate(ctx, src, analysis, attempts)

	result := &RunResult{
		PDFName:    name,
		Toc:        toc,
		Analysis:   analysis,
		Attempts:   attempts,
		Failures:   failures,
		Validation: validation,
		Duration:   time.Since(start),
	}

	// 6. Storage (optional)
	if o.repo != nil {
		record := &store.RunRecord{
			PDFName:    result.PDFName,
			TocPages:   toc.TocPageNumbers,
			Locations:  analysis,
			Attempts:   attempts,
			Failures:   failures,
			Validation: validation,
			Duration:   result.Duration,
		}
		if id, err := o.repo.SaveRun(ctx, record); err != nil {
			fmt.Printf("⚠️ 儲存運行結果失敗: %v\n", err)
		} else {
			fmt.Printf("💾 已儲存運行結果 (id: %s)\n", id)
		}
	}

	fmt.Printf("🏁 %s 完成，耗時 %v\n", name, result.Duration)
	return result, nil
}

// convertScanned probes the statement pages and renders the scanned ones to
// Markdown. Best-effort: any failure just means extraction proceeds without
// transcripts.
func (o *ExtractionOrchestrator) convertScanned(ctx context.Context, src filing.Source, name string, pages []int) map[int]string {
	if o.converter == nil || len(pages) == 0 {
		return nil
	}
	ps, ok := src.(ocr.PageSource)
	if !ok {
		return nil
	}

	scanned, err := o.converter.ScannedPages(ps, pages)
	if err != nil {
		fmt.Printf("⚠️ 掃描頁偵測失敗: %v\n", err)
		return nil
	}
	if len(scanned) == 0 {
		return nil
	}
	fmt.Printf("📄 偵測到 %d 個掃描頁 %v\n", len(scanned), scanned)

	// Transcripts cached by an earlier run cover their pages without a new
	// vision call.
	out := make(map[int]string, len(scanned))
	var pending []int
	var cached map[int]string
	if o.transcripts != nil {
		cached = o.transcripts.Load(name)
	}
	for _, p := range scanned {
		if md, ok := cached[p]; ok && md != "" {
			out[p] = md
			continue
		}
		pending = append(pending, p)
	}
	if len(out) > 0 {
		fmt.Printf("📂 快取命中 %d 頁轉錄\n", len(out))
	}
	if len(pending) == 0 {
		return out
	}

	fmt.Printf("🔄 轉換 %d 頁為 Markdown...\n", len(pending))
	fresh, err := o.converter.ConvertPages(ctx, ps, pending)
	if err != nil {
		fmt.Printf("⚠️ 掃描頁轉換失敗: %v\n", err)
		if len(out) == 0 {
			return nil
		}
		return out
	}
	for p, md := range fresh {
		out[p] = md
	}
	if o.transcripts != nil && len(fresh) > 0 {
		if err := o.transcripts.Save(name, o.converter.Model, fresh); err != nil {
			fmt.Printf("⚠️ 轉錄快取寫入失敗: %v\n", err)
		}
	}
	return out
}

// validate re-reads the union of all found statement pages and audits every
// successful payload. Returns nil when there is nothing to audit.
func (o *ExtractionOrchestrator) validate(ctx context.Context, src filing.Source, analysis *filing.FinancialStatementsAnalysis, attempts map[string]*filing.ExtractionAttempt) *filing.OverallValidationResult {
	pages := analysis.FoundPages()
	if len(pages) == 0 {
		return nil
	}
	subset, _, err := src.Subset(pages)
	if err != nil {
		fmt.Printf("⚠️ 驗證頁面切割失敗: %v\n", err)
		return nil
	}

	var payloads []filing.ModelPayload
	for _, m := range o.config.Models {
		attempt, ok := attempts[m.Name]
		if !ok || attempt.Envelope == nil {
			continue
		}
		payloads = append(payloads, filing.ModelPayload{
			Name: m.Name,
			JSON: indentPayload(attempt.Envelope.ExtractedData),
		})
	}
	if len(payloads) == 0 {
		return nil
	}

	return filing.NewValidateAgent(o.caller).ValidateAll(ctx, subset, payloads)
}

// indentPayload pretty-prints a payload for the validation prompt.
func indentPayload(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
