package filing

import (
	"agentic_extraction/pkg/core/pdfdoc"
)

// Source is the slice of a loaded filing that the agents read: page carving
// for LLM attachments plus the text layer for keyword probes.
// *pdfdoc.Document satisfies it.
type Source interface {
	// PageCount returns the number of pages in original numbering.
	PageCount() int
	// PageText returns the text layer of one page, empty for scanned pages.
	PageText(pageNr int) (string, error)
	// Subset carves the given original pages into a standalone PDF.
	Subset(pages []int) ([]byte, *pdfdoc.PageMapping, error)
	// FirstPages carves pages 1..n into a standalone PDF.
	FirstPages(n int) ([]byte, *pdfdoc.PageMapping, error)
}

var _ Source = (*pdfdoc.Document)(nil)
