package pdfdoc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultProbeThreshold is the minimum stripped text length for a page to
// count as text-bearing. Anything below it is treated as a likely scan.
const DefaultProbeThreshold = 1

// ProbeText reports, for every requested page, whether the page is likely a
// scanned image without a usable text layer (true = likely scanned). A page
// counts as text-bearing when its stripped text length reaches threshold.
func (d *Document) ProbeText(pages []int, threshold int) (map[int]bool, error) {
	if threshold < 1 {
		threshold = DefaultProbeThreshold
	}
	for _, p := range pages {
		if p < 1 || p > d.pageCount {
			return nil, &OutOfRangeError{Page: p, Total: d.pageCount}
		}
	}

	r, err := pdf.NewReader(bytes.NewReader(d.raw), int64(len(d.raw)))
	if err != nil {
		return nil, fmt.Errorf("text reader: %w", err)
	}

	out := make(map[int]bool, len(pages))
	for _, p := range pages {
		out[p] = len(strings.TrimSpace(pageText(r, p))) < threshold
	}
	return out, nil
}

// PageText extracts the text layer of a single page. Scanned pages come back
// empty.
func (d *Document) PageText(pageNr int) (string, error) {
	if pageNr < 1 || pageNr > d.pageCount {
		return "", &OutOfRangeError{Page: pageNr, Total: d.pageCount}
	}

	r, err := pdf.NewReader(bytes.NewReader(d.raw), int64(len(d.raw)))
	if err != nil {
		return "", fmt.Errorf("text reader: %w", err)
	}
	return pageText(r, pageNr), nil
}

// pageText pulls the plain text of one page. The parser panics on some
// malformed content streams, so failures of any kind collapse to "".
func pageText(r *pdf.Reader, pageNr int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()

	if pageNr > r.NumPage() {
		return ""
	}
	page := r.Page(pageNr)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return content
}
