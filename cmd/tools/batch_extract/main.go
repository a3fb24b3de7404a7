package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"agentic_extraction/pkg/core/filing"
	"agentic_extraction/pkg/core/llm"
	"agentic_extraction/pkg/core/ocr"
	"agentic_extraction/pkg/core/pipeline"
	"agentic_extraction/pkg/core/prompt"
	"agentic_extraction/pkg/core/report"
	"agentic_extraction/pkg/core/store"
)

func main() {
	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env not found, using environment variables")
	}

	if len(os.Args) < 2 {
		log.Fatal("Usage: batch_extract <pdf-dir> [output-dir]")
	}
	inDir := os.Args[1]
	outDir := "output"
	if len(os.Args) > 2 {
		outDir = os.Args[2]
	}

	pdfs, err := listPDFs(inDir)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if len(pdfs) == 0 {
		log.Fatalf("Error: no PDF files under %s", inDir)
	}
	fmt.Printf("🚀 批次提取 %d 份文件...\n", len(pdfs))

	if err := prompt.LoadFromDirectory("prompts"); err != nil {
		log.Printf("Warning: prompt library not loaded (%v), using built-in prompts.", err)
	}

	config := loadModels()
	caller := filing.NewProviderAdapter(buildProvider())
	orch := pipeline.NewExtractionOrchestrator(caller, config)
	orch.SetTranscriptCache(ocr.NewTranscriptCache(""))

	if os.Getenv("DATABASE_URL") != "" {
		if err := store.InitDB(context.Background()); err != nil {
			log.Printf("Warning: database unavailable (%v), continuing without persistence.", err)
		} else {
			defer store.Close()
			orch.SetRepository(store.NewRunsRepo())
		}
	}

	writer, err := report.NewWriter(outDir)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	// Each document is an independent unit of work: one failing never stops
	// the batch.
	results := make(map[string]*pipeline.RunResult)
	failures := make(map[string]string)

	start := time.Now()
	for i, path := range pdfs {
		name := filepath.Base(path)
		fmt.Printf("\n=== [%d/%d] %s ===\n", i+1, len(pdfs), name)

		result, err := orch.Run(context.Background(), path)
		if err != nil {
			log.Printf("❌ %s: %v", name, err)
			failures[name] = err.Error()
			continue
		}
		results[name] = result

		if _, err := writer.WriteAll(result); err != nil {
			log.Printf("⚠️ %s 報告寫入失敗: %v", name, err)
		}
	}

	fmt.Printf("\n=== 批次完成（耗時 %v） ===\n", time.Since(start).Round(time.Second))
	fmt.Printf("✅ 成功 %d 份，❌ 失敗 %d 份\n", len(results), len(failures))
	for _, name := range sortedResultKeys(results) {
		r := results[name]
		note := ""
		if r.Validation != nil && !r.Validation.OverallValid {
			note = "，驗證未通過"
		}
		fmt.Printf("   ✅ %s（%d 個模型完成、%d 個失敗%s）\n", name, len(r.Attempts), len(r.Failures), note)
	}
	for _, name := range sortedFailureKeys(failures) {
		fmt.Printf("   ❌ %s: %s\n", name, failures[name])
	}

	if len(results) == 0 {
		log.Fatal("Error: every document failed")
	}
}

func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var pdfs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			pdfs = append(pdfs, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(pdfs)
	return pdfs, nil
}

func buildProvider() llm.DocumentProvider {
	var inner llm.DocumentProvider
	switch strings.ToLower(os.Getenv("LLM_PROVIDER")) {
	case "anthropic":
		inner = &llm.AnthropicProvider{}
	case "", "gemini":
		inner = &llm.GeminiProvider{}
	default:
		log.Fatalf("Unknown LLM_PROVIDER %q (want gemini or anthropic)", os.Getenv("LLM_PROVIDER"))
	}
	return llm.NewGuarded(inner, llm.PolicyFromEnv())
}

func loadModels() *filing.ModelsConfig {
	config, err := filing.LoadModelsConfig("config/models.yaml")
	if err != nil {
		log.Printf("Warning: %v, using built-in model roster.", err)
		return filing.DefaultModels()
	}
	return config
}

func sortedResultKeys(m map[string]*pipeline.RunResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFailureKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
