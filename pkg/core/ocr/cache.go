package ocr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// TranscriptCache persists page transcripts between runs so reprocessing a
// document skips the vision calls for pages already converted. One JSON file
// per document, keyed by the document's file name.
type TranscriptCache struct {
	dir string
}

// NewTranscriptCache creates a file-backed transcript cache.
// An empty dir defaults to .cache/ocr/transcripts.
func NewTranscriptCache(dir string) *TranscriptCache {
	if dir == "" {
		dir = filepath.Join(".cache", "ocr", "transcripts")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("⚠️ 轉錄快取目錄建立失敗: %v\n", err)
	}
	return &TranscriptCache{dir: dir}
}

// transcriptEntry is the on-disk shape of one document's transcripts.
// Page numbers are strings because JSON object keys must be.
type transcriptEntry struct {
	PDFName     string            `json:"pdf_name"`
	Model       string            `json:"model"`
	Pages       map[string]string `json:"pages"`
	ConvertedAt time.Time         `json:"converted_at"`
}

// Load returns the cached transcripts for a document, keyed by original page
// number. A missing or unreadable cache file is a miss, not an error.
func (c *TranscriptCache) Load(pdfName string) map[int]string {
	data, err := os.ReadFile(c.entryPath(pdfName))
	if err != nil {
		return nil
	}
	var entry transcriptEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}
	out := make(map[int]string, len(entry.Pages))
	for key, md := range entry.Pages {
		nr, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		out[nr] = md
	}
	return out
}

// Save merges the given transcripts into the document's cache file. Pages
// cached earlier survive unless overwritten by a new transcript.
func (c *TranscriptCache) Save(pdfName, model string, pages map[int]string) error {
	merged := c.Load(pdfName)
	if merged == nil {
		merged = make(map[int]string, len(pages))
	}
	for nr, md := range pages {
		merged[nr] = md
	}

	entry := transcriptEntry{
		PDFName:     pdfName,
		Model:       model,
		Pages:       make(map[string]string, len(merged)),
		ConvertedAt: time.Now(),
	}
	for nr, md := range merged {
		entry.Pages[strconv.Itoa(nr)] = md
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal transcripts: %w", err)
	}
	if err := os.WriteFile(c.entryPath(pdfName), data, 0644); err != nil {
		return fmt.Errorf("write transcript cache: %w", err)
	}
	return nil
}

// entryPath maps a document name to its cache file. Path separators in the
// name collapse so the cache stays flat.
func (c *TranscriptCache) entryPath(pdfName string) string {
	stem := strings.TrimSuffix(filepath.Base(pdfName), filepath.Ext(pdfName))
	stem = strings.ReplaceAll(stem, " ", "_")
	return filepath.Join(c.dir, stem+".json")
}
