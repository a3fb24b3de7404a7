// Package filing implements the page-discovery and scoped-extraction
// workflow for Taiwanese financial filings: locate the table of contents,
// resolve the canonical statements to pages, extract structured figures from
// a renumbered page subset, expand the subset along discovered references,
// and validate the results against the source pages.
package filing

import (
	"encoding/json"
	"sort"
)

// =============================================================================
// CANONICAL STATEMENT NAMES
// =============================================================================

// The five statements the locator resolves. Filings label them with minor
// variations; the resolver prompt carries the synonyms.
const (
	StatementBalanceSheet        = "individual_balance_sheet"        // 個體資產負債表
	StatementComprehensiveIncome = "individual_comprehensive_income" // 個體綜合損益表
	StatementEquityChanges       = "individual_equity_changes"       // 個體權益變動表
	StatementCashFlow            = "individual_cash_flow"            // 個體現金流量表
	StatementAccountingItems     = "important_accounting_items"      // 重要會計項目明細表
)

// StatementNames lists the canonical names in resolver order.
var StatementNames = []string{
	StatementBalanceSheet,
	StatementComprehensiveIncome,
	StatementEquityChanges,
	StatementCashFlow,
	StatementAccountingItems,
}

// =============================================================================
// NAVIGATION RESULTS
// =============================================================================

// TocInfo reports whether the filing has a table of contents and on which
// original pages it sits.
type TocInfo struct {
	HasToc         bool   `json:"has_toc"`
	TocPageNumbers []int  `json:"toc_page_numbers"`
	Notes          string `json:"notes,omitempty"`
}

// StatementLocation is the resolver's answer for one canonical statement.
// Immutable once produced.
type StatementLocation struct {
	ItemName    string `json:"item_name"`
	PageNumbers []int  `json:"page_numbers"`
	Found       bool   `json:"found"`
	Notes       string `json:"notes,omitempty"`
}

// FinancialStatementsAnalysis maps the five canonical statements to the
// original page numbers where the filing prints them.
type FinancialStatementsAnalysis struct {
	IndividualBalanceSheet        StatementLocation `json:"individual_balance_sheet"`
	IndividualComprehensiveIncome StatementLocation `json:"individual_comprehensive_income"`
	IndividualEquityChanges       StatementLocation `json:"individual_equity_changes"`
	IndividualCashFlow            StatementLocation `json:"individual_cash_flow"`
	ImportantAccountingItems      StatementLocation `json:"important_accounting_items"`
}

// Entry pairs a canonical statement name with its resolved location.
type Entry struct {
	Name     string
	Location *StatementLocation
}

// Entries returns the five locations in canonical order.
func (a *FinancialStatementsAnalysis) Entries() []Entry {
	return []Entry{
		{StatementBalanceSheet, &a.IndividualBalanceSheet},
		{StatementComprehensiveIncome, &a.IndividualComprehensiveIncome},
		{StatementEquityChanges, &a.IndividualEquityChanges},
		{StatementCashFlow, &a.IndividualCashFlow},
		{StatementAccountingItems, &a.ImportantAccountingItems},
	}
}

// ByName returns the location for a canonical statement name.
func (a *FinancialStatementsAnalysis) ByName(name string) (*StatementLocation, bool) {
	for _, e := range a.Entries() {
		if e.Name == name {
			return e.Location, true
		}
	}
	return nil, false
}

// PagesFor unions the pages of the named statements, skipping ones that
// were not found. The result is sorted and duplicate-free.
func (a *FinancialStatementsAnalysis) PagesFor(names []string) []int {
	seen := map[int]bool{}
	for _, name := range names {
		loc, ok := a.ByName(name)
		if !ok || !loc.Found {
			continue
		}
		for _, p := range loc.PageNumbers {
			seen[p] = true
		}
	}
	pages := make([]int, 0, len(seen))
	for p := range seen {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	return pages
}

// FoundPages unions the pages of every found statement.
func (a *FinancialStatementsAnalysis) FoundPages() []int {
	return a.PagesFor(StatementNames)
}

// MissingFrom lists which of the given statement names were not found.
func (a *FinancialStatementsAnalysis) MissingFrom(names []string) []string {
	var missing []string
	for _, name := range names {
		if loc, ok := a.ByName(name); ok && !loc.Found {
			missing = append(missing, name)
		}
	}
	return missing
}

// =============================================================================
// REFERENCE DISCOVERY
// =============================================================================

// DiscoveredReference is one cross-reference the extraction call spotted,
// e.g. 詳見附註六 next to a balance-sheet line.
type DiscoveredReference struct {
	ReferenceText string `json:"reference_text"`
	Context       string `json:"context,omitempty"`
	ReferenceType string `json:"reference_type,omitempty"` // 附註, 明細表, 說明
	PageNumbers   []int  `json:"page_numbers,omitempty"`
}

// ReferenceLocation is the lookup answer for one reference: where in the
// filing the referenced section lives, per the table of contents.
type ReferenceLocation struct {
	Found           bool    `json:"found"`
	SectionName     string  `json:"section_name"`
	PageNumbers     []int   `json:"page_numbers"`
	ConfidenceScore float64 `json:"confidence_score"`
}

// ExtractionEnvelope wraps one model's structured output together with the
// completeness signal that drives page-set expansion. ExtractedData stays
// raw here; models.DecodeStatement turns it into the canonical struct.
type ExtractionEnvelope struct {
	ExtractedData          json.RawMessage       `json:"extracted_data"`
	DiscoveredReferences   []DiscoveredReference `json:"discovered_references,omitempty"`
	IsComplete             bool                  `json:"is_complete"`
	MissingInfoDescription string                `json:"missing_info_description,omitempty"`
}

// =============================================================================
// VALIDATION RESULTS
// =============================================================================

// ValidationResult is the second-pass verdict for one extraction model.
type ValidationResult struct {
	ModelName       string   `json:"model_name"`
	IsValid         bool     `json:"is_valid"`
	Errors          []string `json:"errors"`
	Warnings        []string `json:"warnings"`
	ConfidenceScore float64  `json:"confidence_score"`
	Notes           string   `json:"notes,omitempty"`
}

// OverallValidationResult aggregates the per-model verdicts for a run.
type OverallValidationResult struct {
	ValidationResults []ValidationResult `json:"validation_results"`
	OverallValid      bool               `json:"overall_valid"`
	TotalErrors       int                `json:"total_errors"`
	TotalWarnings     int                `json:"total_warnings"`
	AverageConfidence float64            `json:"average_confidence"`
}

// Aggregate folds per-model verdicts into the overall result: valid only if
// every model validated, error and warning counts summed, confidence
// averaged. Returns nil when there is nothing to aggregate.
func Aggregate(results []ValidationResult) *OverallValidationResult {
	if len(results) == 0 {
		return nil
	}
	out := &OverallValidationResult{
		ValidationResults: results,
		OverallValid:      true,
	}
	var confidenceSum float64
	for _, vr := range results {
		out.TotalErrors += len(vr.Errors)
		out.TotalWarnings += len(vr.Warnings)
		confidenceSum += vr.ConfidenceScore
		if !vr.IsValid {
			out.OverallValid = false
		}
	}
	out.AverageConfidence = confidenceSum / float64(len(results))
	return out
}
