package filing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"agentic_extraction/pkg/core/pdfdoc"
)

// =============================================================================
// EXTRACTION SESSION - Iterative page-set expansion around one model
// =============================================================================

// MaxExpansionRounds caps how many times a single model may grow its page
// set chasing note references. The cap applies per model, not per document.
const MaxExpansionRounds = 3

// Session drives the extract-discover-expand loop for one document. The
// active page set only ever grows: pages resolved from note references are
// unioned in, never swapped in.
type Session struct {
	src       Source
	extract   *ExtractAgent
	refs      *ReferenceAgent
	tocSubset []byte
	maxRounds int
}

// NewSession prepares a session over src. tocPages locates the table of
// contents in original numbering; reference lookups read that carve-out, so
// with no ToC pages the session still extracts but cannot chase references.
func NewSession(src Source, caller DocumentCaller, tocPages []int) (*Session, error) {
	if src == nil {
		return nil, fmt.Errorf("no document")
	}
	s := &Session{
		src:       src,
		extract:   NewExtractAgent(caller),
		refs:      NewReferenceAgent(caller),
		maxRounds: MaxExpansionRounds,
	}
	if len(tocPages) > 0 {
		subset, _, err := src.Subset(tocPages)
		if err != nil {
			return nil, fmt.Errorf("carve ToC pages: %w", err)
		}
		s.tocSubset = subset
	}
	return s, nil
}

// ExtractionAttempt records the outcome of one model's session run.
type ExtractionAttempt struct {
	Model    ModelConfig
	Pages    []int // final active set, original numbering
	Mapping  *pdfdoc.PageMapping
	Envelope *ExtractionEnvelope
	Rounds   int // expansion rounds actually performed
}

// Run extracts one model, expanding the page set while the model reports
// missing information and names references that resolve to new pages.
// transcripts holds Markdown for scanned pages keyed by original page
// number; pages without an entry are read from the PDF directly.
func (s *Session) Run(ctx context.Context, model ModelConfig, initialPages []int, transcripts map[int]string) (*ExtractionAttempt, error) {
	if len(initialPages) == 0 {
		return nil, fmt.Errorf("model %s: no pages to extract from", model.Name)
	}

	active := unionSorted(nil, initialPages)
	attempt := &ExtractionAttempt{Model: model}

	for round := 0; ; round++ {
		subset, mapping, err := s.src.Subset(active)
		if err != nil {
			return nil, fmt.Errorf("carve pages for %s: %w", model.Name, err)
		}

		envelope, err := s.extract.Extract(ctx, ExtractInput{
			Model:       model,
			Subset:      subset,
			Mapping:     mapping,
			PageContext: composeContext(active, transcripts),
		})
		if err != nil {
			return nil, err
		}

		attempt.Pages = active
		attempt.Mapping = mapping
		attempt.Envelope = envelope
		attempt.Rounds = round

		if envelope.IsComplete {
			return attempt, nil
		}
		if len(envelope.DiscoveredReferences) == 0 {
			fmt.Printf("⚠️ %s 回報資料不完整但未提供引用: %s\n", model.Name, envelope.MissingInfoDescription)
			return attempt, nil
		}
		if round >= s.maxRounds {
			fmt.Printf("⚠️ %s 已達擴展上限 (%d 輪)，以現有頁面為準\n", model.Name, s.maxRounds)
			return attempt, nil
		}

		grown := s.expand(ctx, active, envelope.DiscoveredReferences)
		if len(grown) == len(active) {
			fmt.Printf("⚠️ %s 的引用未解析出新頁面，停止擴展\n", model.Name)
			return attempt, nil
		}

		fmt.Printf("🔄 %s 第 %d 輪擴展: %d 頁 → %d 頁\n", model.Name, round+1, len(active), len(grown))
		active = grown
	}
}

// expand resolves each discovered reference to original page numbers and
// unions them into the active set. A failed lookup is logged and skipped;
// it never aborts the run.
func (s *Session) expand(ctx context.Context, active []int, refs []DiscoveredReference) []int {
	grown := active
	for _, ref := range refs {
		if len(ref.PageNumbers) > 0 {
			grown = unionSorted(grown, s.inRange(ref.PageNumbers))
			continue
		}
		if s.tocSubset == nil {
			fmt.Printf("⚠️ 無目錄頁可查詢引用 %q，略過\n", ref.ReferenceText)
			continue
		}
		loc, err := s.refs.Lookup(ctx, s.tocSubset, ref)
		if err != nil {
			fmt.Printf("⚠️ 查詢引用 %q 失敗: %v\n", ref.ReferenceText, err)
			continue
		}
		if !loc.Found || len(loc.PageNumbers) == 0 {
			fmt.Printf("⚠️ 引用 %q 在目錄中找不到對應頁面\n", ref.ReferenceText)
			continue
		}
		grown = unionSorted(grown, s.inRange(loc.PageNumbers))
	}
	return grown
}

// inRange drops page numbers outside the document. Models sometimes quote
// printed page numbers that run past the PDF itself.
func (s *Session) inRange(pages []int) []int {
	var ok []int
	for _, p := range pages {
		if p >= 1 && p <= s.src.PageCount() {
			ok = append(ok, p)
		}
	}
	return ok
}

// composeContext assembles the Markdown transcripts for the active pages,
// labelled by original page number.
func composeContext(pages []int, transcripts map[int]string) string {
	if len(transcripts) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range pages {
		md, ok := transcripts[p]
		if !ok || strings.TrimSpace(md) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "【原始頁碼 %d】\n%s", p, strings.TrimSpace(md))
	}
	return b.String()
}

// unionSorted merges two page lists into a sorted, de-duplicated set.
func unionSorted(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, p := range a {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range b {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}
