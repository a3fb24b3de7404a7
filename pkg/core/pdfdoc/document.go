// Package pdfdoc loads annual-report PDFs and carves renumbered page subsets
// out of them. A subset keeps the language-model context small; the attached
// PageMapping lets every answer still cite the original page numbers.
package pdfdoc

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document is a read-only handle on a loaded PDF. Page carving reuses the
// shared parsed context, so it is guarded by a mutex.
type Document struct {
	path      string
	raw       []byte
	pageCount int

	mu  sync.Mutex
	ctx *model.Context
}

// Open loads and validates a PDF from disk.
func Open(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := FromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	doc.path = path
	return doc, nil
}

// FromBytes loads and validates a PDF already held in memory.
func FromBytes(raw []byte) (*Document, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(raw), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	return &Document{raw: raw, pageCount: ctx.PageCount, ctx: ctx}, nil
}

// Path returns the source file path, empty for in-memory documents.
func (d *Document) Path() string { return d.path }

// PageCount returns the number of pages in the original document.
func (d *Document) PageCount() int { return d.pageCount }

// Bytes returns the raw bytes of the full document.
func (d *Document) Bytes() []byte { return d.raw }

// Subset materializes a new PDF containing only the given original pages in
// ascending order, renumbered from 1, together with the mapping back to the
// original numbering. The input may contain duplicates; it may not be empty
// or reference pages outside [1, PageCount].
func (d *Document) Subset(pages []int) ([]byte, *PageMapping, error) {
	mapping, err := NewPageMapping(pages, d.pageCount)
	if err != nil {
		return nil, nil, err
	}
	sub, err := d.carve(mapping.Originals())
	if err != nil {
		return nil, nil, err
	}
	return sub, mapping, nil
}

// FirstPages subsets the first min(n, PageCount) pages. Used to hand the
// front matter of a document to the table-of-contents locator.
func (d *Document) FirstPages(n int) ([]byte, *PageMapping, error) {
	if n < 1 {
		return nil, nil, &EmptySelectionError{}
	}
	if n > d.pageCount {
		n = d.pageCount
	}
	pages := make([]int, n)
	for i := range pages {
		pages[i] = i + 1
	}
	return d.Subset(pages)
}

func (d *Document) carve(pages []int) ([]byte, error) {
	selected := make([]string, len(pages))
	for i, p := range pages {
		selected[i] = strconv.Itoa(p)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(d.raw), &buf, selected, model.NewDefaultConfiguration()); err != nil {
		return nil, fmt.Errorf("trim pages %v: %w", pages, err)
	}
	return buf.Bytes(), nil
}

// HasImageStreams reports whether the given page carries image XObjects.
// A page with no text layer but image content is a scan worth converting;
// one with neither is blank.
func (d *Document) HasImageStreams(pageNr int) bool {
	if pageNr < 1 || pageNr > d.pageCount {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx == nil || d.ctx.Optimize == nil {
		return false
	}
	return len(pdfcpu.ImageObjNrs(d.ctx, pageNr)) > 0
}
