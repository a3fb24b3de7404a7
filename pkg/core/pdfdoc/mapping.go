package pdfdoc

import (
	"fmt"
	"sort"
	"strings"
)

// PageMapping records which original page each renumbered page of a subset
// came from. Renumbered indices are contiguous from 1 and original page
// numbers strictly increase in renumbered order, so the mapping is a
// bijection onto the selected pages.
type PageMapping struct {
	originals []int
}

// NewPageMapping validates a page selection against a document of totalPages
// pages and builds the renumbering. The selection is deduplicated and sorted
// ascending before indices are assigned.
func NewPageMapping(pages []int, totalPages int) (*PageMapping, error) {
	seen := make(map[int]bool, len(pages))
	unique := make([]int, 0, len(pages))
	for _, p := range pages {
		if seen[p] {
			continue
		}
		seen[p] = true
		unique = append(unique, p)
	}
	if len(unique) == 0 {
		return nil, &EmptySelectionError{}
	}
	sort.Ints(unique)
	for _, p := range unique {
		if p < 1 || p > totalPages {
			return nil, &OutOfRangeError{Page: p, Total: totalPages}
		}
	}
	return &PageMapping{originals: unique}, nil
}

// Len returns the number of pages in the subset.
func (m *PageMapping) Len() int { return len(m.originals) }

// Original returns the original page number behind renumbered page n
// (1-based). The second return is false when n is outside the subset.
func (m *PageMapping) Original(n int) (int, bool) {
	if n < 1 || n > len(m.originals) {
		return 0, false
	}
	return m.originals[n-1], true
}

// Renumbered returns the renumbered index of an original page, or false when
// the page is not part of the subset.
func (m *PageMapping) Renumbered(original int) (int, bool) {
	i := sort.SearchInts(m.originals, original)
	if i < len(m.originals) && m.originals[i] == original {
		return i + 1, true
	}
	return 0, false
}

// Contains reports whether an original page is part of the subset.
func (m *PageMapping) Contains(original int) bool {
	_, ok := m.Renumbered(original)
	return ok
}

// Originals returns a copy of the original page numbers in renumbered order.
func (m *PageMapping) Originals() []int {
	out := make([]int, len(m.originals))
	copy(out, m.originals)
	return out
}

// Disclaimer renders the renumbered-to-original correspondence for inclusion
// in a model prompt, opening with the instruction that any page cited in an
// answer must use the original numbering.
func (m *PageMapping) Disclaimer() string {
	var b strings.Builder
	b.WriteString("⚠️ **頁碼對照提醒**：以下 PDF 為節省 token 只抽取部分頁面。\n")
	b.WriteString("請務必使用「原始頁碼」回答。\n\n")
	for i, orig := range m.originals {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "新編號第 %d 頁 = 原始頁碼第 %d 頁", i+1, orig)
	}
	return b.String()
}
