package filing

import (
	"math"
	"reflect"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

// Resolver output for a typical filing: equity-changes statement missing
// from the ToC, accounting items overlapping the balance sheet pages.
func sampleAnalysis() *FinancialStatementsAnalysis {
	return &FinancialStatementsAnalysis{
		IndividualBalanceSheet: StatementLocation{
			ItemName: "個體資產負債表", PageNumbers: []int{15, 16}, Found: true,
		},
		IndividualComprehensiveIncome: StatementLocation{
			ItemName: "個體綜合損益表", PageNumbers: []int{17}, Found: true,
		},
		IndividualEquityChanges: StatementLocation{
			ItemName: "個體權益變動表", Found: false,
		},
		IndividualCashFlow: StatementLocation{
			ItemName: "個體現金流量表", PageNumbers: []int{19}, Found: true,
		},
		ImportantAccountingItems: StatementLocation{
			ItemName: "重要會計項目明細表", PageNumbers: []int{52, 16, 53}, Found: true,
		},
	}
}

func TestAnalysisPagesFor(t *testing.T) {
	a := sampleAnalysis()

	tests := []struct {
		name  string
		names []string
		want  []int
	}{
		{
			name:  "balance sheet and notes, overlap removed",
			names: []string{StatementBalanceSheet, StatementAccountingItems},
			want:  []int{15, 16, 52, 53},
		},
		{
			name:  "missing statement contributes nothing",
			names: []string{StatementEquityChanges},
			want:  []int{},
		},
		{
			name:  "unknown name ignored",
			names: []string{"consolidated_balance_sheet", StatementCashFlow},
			want:  []int{19},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.PagesFor(tt.names)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("PagesFor(%v) = %v, want %v", tt.names, got, tt.want)
			}
		})
	}
}

func TestAnalysisFoundPages(t *testing.T) {
	got := sampleAnalysis().FoundPages()
	want := []int{15, 16, 17, 19, 52, 53}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FoundPages() = %v, want %v", got, want)
	}
}

func TestAnalysisMissingFrom(t *testing.T) {
	a := sampleAnalysis()

	missing := a.MissingFrom(StatementNames)
	if !reflect.DeepEqual(missing, []string{StatementEquityChanges}) {
		t.Errorf("MissingFrom(all) = %v, want only equity changes", missing)
	}

	if got := a.MissingFrom([]string{StatementBalanceSheet, StatementAccountingItems}); got != nil {
		t.Errorf("MissingFrom(found ones) = %v, want nil", got)
	}
}

func TestAnalysisEntriesOrder(t *testing.T) {
	entries := sampleAnalysis().Entries()
	if len(entries) != len(StatementNames) {
		t.Fatalf("Entries() returned %d entries, want %d", len(entries), len(StatementNames))
	}
	for i, e := range entries {
		if e.Name != StatementNames[i] {
			t.Errorf("entry %d = %s, want %s", i, e.Name, StatementNames[i])
		}
	}

	// Entries hand out pointers into the struct, so callers can normalize
	// in place.
	entries[0].Location.PageNumbers = []int{99}
	if !reflect.DeepEqual(sampleAnalysis().IndividualBalanceSheet.PageNumbers, []int{15, 16}) {
		t.Fatal("sampleAnalysis must build a fresh value per call")
	}
}

func TestAggregate(t *testing.T) {
	results := []ValidationResult{
		{
			ModelName:       "cash_and_equivalents",
			IsValid:         true,
			Errors:          []string{},
			Warnings:        []string{"匯率精度僅到小數點後兩位"},
			ConfidenceScore: 0.95,
		},
		{
			ModelName:       "total_liabilities",
			IsValid:         false,
			Errors:          []string{"短期借款合計與明細不符", "漏列一筆長期借款"},
			Warnings:        []string{},
			ConfidenceScore: 0.6,
		},
		{
			ModelName:       "prepayments",
			IsValid:         true,
			Errors:          []string{},
			Warnings:        []string{},
			ConfidenceScore: 0.85,
		},
	}

	overall := Aggregate(results)
	if overall == nil {
		t.Fatal("Aggregate returned nil for non-empty results")
	}
	if overall.OverallValid {
		t.Error("one invalid verdict must make the overall result invalid")
	}
	if overall.TotalErrors != 2 {
		t.Errorf("TotalErrors = %d, want 2", overall.TotalErrors)
	}
	if overall.TotalWarnings != 1 {
		t.Errorf("TotalWarnings = %d, want 1", overall.TotalWarnings)
	}
	if want := (0.95 + 0.6 + 0.85) / 3; !almostEqual(overall.AverageConfidence, want) {
		t.Errorf("AverageConfidence = %v, want %v", overall.AverageConfidence, want)
	}
	if len(overall.ValidationResults) != 3 {
		t.Errorf("ValidationResults carries %d verdicts, want 3", len(overall.ValidationResults))
	}
}

func TestAggregateAllValid(t *testing.T) {
	overall := Aggregate([]ValidationResult{
		{ModelName: "cash_and_equivalents", IsValid: true, ConfidenceScore: 1},
		{ModelName: "prepayments", IsValid: true, ConfidenceScore: 0.9},
	})
	if !overall.OverallValid {
		t.Error("all-valid verdicts must aggregate to valid")
	}
	if !almostEqual(overall.AverageConfidence, 0.95) {
		t.Errorf("AverageConfidence = %v, want 0.95", overall.AverageConfidence)
	}
}

func TestAggregateEmpty(t *testing.T) {
	if Aggregate(nil) != nil {
		t.Error("Aggregate(nil) must return nil")
	}
	if Aggregate([]ValidationResult{}) != nil {
		t.Error("Aggregate of empty slice must return nil")
	}
}
