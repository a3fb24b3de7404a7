package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"agentic_extraction/pkg/core/filing"

	"github.com/google/uuid"
)

// RunRecord is one completed extraction run over a single filing.
type RunRecord struct {
	PDFName    string
	TocPages   []int
	Locations  *filing.FinancialStatementsAnalysis
	Attempts   map[string]*filing.ExtractionAttempt
	Failures   map[string]string
	Validation *filing.OverallValidationResult
	Duration   time.Duration
}

// RunsRepo persists extraction runs. Each run gets a fresh id; per-model
// payloads and verdicts live in child tables keyed by (run_id, model_name).
type RunsRepo struct{}

// NewRunsRepo creates a new repository instance.
func NewRunsRepo() *RunsRepo {
	return &RunsRepo{}
}

// Schema assumption (managed outside this package):
//
// CREATE TABLE IF NOT EXISTS extraction_runs (
//   id UUID PRIMARY KEY,
//   pdf_name TEXT NOT NULL,
//   toc_pages INT[],
//   locations JSONB,
//   overall_valid BOOLEAN,
//   total_errors INT,
//   total_warnings INT,
//   average_confidence REAL,
//   duration_ms BIGINT,
//   created_at TIMESTAMPTZ DEFAULT NOW()
// );
//
// CREATE TABLE IF NOT EXISTS extraction_results (
//   run_id UUID REFERENCES extraction_runs(id),
//   model_name TEXT,
//   pages INT[],
//   payload JSONB,
//   is_complete BOOLEAN,
//   rounds INT,
//   missing_info TEXT,
//   failure TEXT,
//   PRIMARY KEY (run_id, model_name)
// );
//
// CREATE TABLE IF NOT EXISTS validation_results (
//   run_id UUID REFERENCES extraction_runs(id),
//   model_name TEXT,
//   is_valid BOOLEAN,
//   errors JSONB,
//   warnings JSONB,
//   confidence REAL,
//   notes TEXT,
//   PRIMARY KEY (run_id, model_name)
// );

// SaveRun persists one run and returns its id. Child rows that fail to
// insert are logged and skipped so a partial save still leaves the run row.
func (r *RunsRepo) SaveRun(ctx context.Context, run *RunRecord) (string, error) {
	pool := GetPool()
	if pool == nil {
		return "", fmt.Errorf("database pool not initialized")
	}

	locationsJSON, err := json.Marshal(run.Locations)
	if err != nil {
		return "", fmt.Errorf("failed to marshal locations: %w", err)
	}

	runID := uuid.New().String()

	var overallValid *bool
	totalErrors, totalWarnings := 0, 0
	avgConfidence := 0.0
	if run.Validation != nil {
		overallValid = &run.Validation.OverallValid
		totalErrors = run.Validation.TotalErrors
		totalWarnings = run.Validation.TotalWarnings
		avgConfidence = run.Validation.AverageConfidence
	}

	query := `
		INSERT INTO extraction_runs (
			id, pdf_name, toc_pages, locations,
			overall_valid, total_errors, total_warnings, average_confidence,
			duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = pool.Exec(ctx, query,
		runID, run.PDFName, run.TocPages, locationsJSON,
		overallValid, totalErrors, totalWarnings, avgConfidence,
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save run: %w", err)
	}

	r.saveResults(ctx, runID, run)
	r.saveVerdicts(ctx, runID, run.Validation)

	return runID, nil
}

// saveResults writes one row per model, successful or failed.
func (r *RunsRepo) saveResults(ctx context.Context, runID string, run *RunRecord) {
	pool := GetPool()

	query := `
		INSERT INTO extraction_results (
			run_id, model_name, pages, payload, is_complete, rounds, missing_info, failure
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, model_name)
		DO UPDATE SET
			pages = EXCLUDED.pages,
			payload = EXCLUDED.payload,
			is_complete = EXCLUDED.is_complete,
			rounds = EXCLUDED.rounds,
			missing_info = EXCLUDED.missing_info,
			failure = EXCLUDED.failure
	`

	for name, attempt := range run.Attempts {
		var payload []byte
		isComplete := false
		missing := ""
		if attempt.Envelope != nil {
			payload = attempt.Envelope.ExtractedData
			isComplete = attempt.Envelope.IsComplete
			missing = attempt.Envelope.MissingInfoDescription
		}
		_, err := pool.Exec(ctx, query,
			runID, name, attempt.Pages, payload, isComplete, attempt.Rounds, missing, nil,
		)
		if err != nil {
			fmt.Printf("  Warning: failed to save result for %s: %v\n", name, err)
		}
	}

	for name, failure := range run.Failures {
		_, err := pool.Exec(ctx, query,
			runID, name, nil, nil, false, 0, "", failure,
		)
		if err != nil {
			fmt.Printf("  Warning: failed to save failure for %s: %v\n", name, err)
		}
	}
}

// saveVerdicts writes the per-model validation rows.
func (r *RunsRepo) saveVerdicts(ctx context.Context, runID string, overall *filing.OverallValidationResult) {
	if overall == nil {
		return
	}
	pool := GetPool()

	query := `
		INSERT INTO validation_results (
			run_id, model_name, is_valid, errors, warnings, confidence, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, model_name)
		DO UPDATE SET
			is_valid = EXCLUDED.is_valid,
			errors = EXCLUDED.errors,
			warnings = EXCLUDED.warnings,
			confidence = EXCLUDED.confidence,
			notes = EXCLUDED.notes
	`

	for _, vr := range overall.ValidationResults {
		errorsJSON, _ := json.Marshal(vr.Errors)
		warningsJSON, _ := json.Marshal(vr.Warnings)
		_, err := pool.Exec(ctx, query,
			runID, vr.ModelName, vr.IsValid, errorsJSON, warningsJSON, vr.ConfidenceScore, vr.Notes,
		)
		if err != nil {
			fmt.Printf("  Warning: failed to save verdict for %s: %v\n", vr.ModelName, err)
		}
	}
}

// RunSummary is one row of run history for a filing.
type RunSummary struct {
	ID                string
	PDFName           string
	OverallValid      *bool
	TotalErrors       int
	AverageConfidence float64
	CreatedAt         time.Time
}

// GetRunsByPDF lists prior runs for a filing, newest first.
func (r *RunsRepo) GetRunsByPDF(ctx context.Context, pdfName string) ([]RunSummary, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	query := `
		SELECT id, pdf_name, overall_valid, total_errors, average_confidence, created_at
		FROM extraction_runs
		WHERE pdf_name = $1
		ORDER BY created_at DESC
	`

	rows, err := pool.Query(ctx, query, pdfName)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.PDFName, &s.OverallValid, &s.TotalErrors, &s.AverageConfidence, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		summaries = append(summaries, s)
	}

	return summaries, nil
}
