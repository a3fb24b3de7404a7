package pdfdoc

import "fmt"

// OutOfRangeError reports a page number outside the document's valid range.
// It is never retried; callers treat it as fatal for the requesting operation.
type OutOfRangeError struct {
	Page  int
	Total int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("page %d out of range 1-%d", e.Page, e.Total)
}

// EmptySelectionError reports a page selection that is empty after
// deduplication. The affected extraction is skipped; the run continues.
type EmptySelectionError struct{}

func (e *EmptySelectionError) Error() string {
	return "no pages selected"
}
