package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

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
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, assuming environment variables are set.")
	}

	if len(os.Args) < 2 {
		log.Fatal("Usage: pipeline <filing.pdf> [output-dir]")
	}
	pdfPath := os.Args[1]
	outDir := "output"
	if len(os.Args) > 2 {
		outDir = os.Args[2]
	}

	fmt.Println("🚀 財務數據提取管線啟動...")

	// Prompt library is optional: every agent carries a built-in fallback.
	if err := prompt.LoadFromDirectory("prompts"); err != nil {
		log.Printf("Warning: prompt library not loaded (%v), using built-in prompts.", err)
	}

	config := loadModels()
	fmt.Printf("📋 提取模型: %d 個\n", len(config.Models))

	caller := filing.NewProviderAdapter(buildProvider())
	orch := pipeline.NewExtractionOrchestrator(caller, config)
	orch.SetTranscriptCache(ocr.NewTranscriptCache(""))

	// Persistence is optional: no DATABASE_URL means no run store.
	if os.Getenv("DATABASE_URL") != "" {
		if err := store.InitDB(context.Background()); err != nil {
			log.Printf("Warning: database unavailable (%v), continuing without persistence.", err)
		} else {
			defer store.Close()
			orch.SetRepository(store.NewRunsRepo())
		}
	}

	result, err := orch.Run(context.Background(), pdfPath)
	if err != nil {
		log.Fatalf("❌ 提取失敗: %v", err)
	}

	writer, err := report.NewWriter(outDir)
	if err != nil {
		log.Fatalf("❌ 無法建立輸出目錄: %v", err)
	}
	paths, err := writer.WriteAll(result)
	if err != nil {
		log.Fatalf("❌ 報告寫入失敗: %v", err)
	}

	fmt.Println("📂 報告輸出:")
	for _, p := range paths {
		fmt.Printf("   - %s\n", p)
	}
}

// buildProvider selects the hosted backend via LLM_PROVIDER and wraps it in
// the shared call policy (timeout, retries, rate limit).
func buildProvider() llm.DocumentProvider {
	var inner llm.DocumentProvider
	switch strings.ToLower(os.Getenv("LLM_PROVIDER")) {
	case "anthropic":
		inner = &llm.AnthropicProvider{}
		fmt.Println("🤖 使用 Anthropic Claude 供應商")
	case "", "gemini":
		inner = &llm.GeminiProvider{}
		fmt.Println("🤖 使用 Google Gemini 供應商")
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
