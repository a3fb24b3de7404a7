package prompt

// Convenience functions for common prompt operations

// GetNavigationPrompt returns a navigation prompt's system prompt by name.
// Navigation prompts drive page discovery: ToC location, statement-to-page
// resolution and cross-reference lookup.
func GetNavigationPrompt(name string) (string, error) {
	id := "navigation." + name
	return Get().GetSystemPrompt(id)
}

// GetExtractionPrompt returns the system prompt for one extraction model,
// keyed by the canonical model name from config/models.yaml.
func GetExtractionPrompt(modelName string) (string, error) {
	id := "extraction." + modelName
	return Get().GetSystemPrompt(id)
}

// GetValidationPrompt returns a validation prompt's system prompt
func GetValidationPrompt(name string) (string, error) {
	id := "validation." + name
	return Get().GetSystemPrompt(id)
}

// MustGetExtractionPrompt is like GetExtractionPrompt but panics on error
func MustGetExtractionPrompt(modelName string) string {
	p, err := GetExtractionPrompt(modelName)
	if err != nil {
		panic(err)
	}
	return p
}

// PromptIDs contains all known prompt identifiers
var PromptIDs = struct {
	// Navigation (page discovery)
	NavigationTocLocate          string
	NavigationStatementLocations string
	NavigationReferenceLookup    string

	// Extraction
	ExtractionCashAndEquivalents        string
	ExtractionPrepayments               string
	ExtractionReceivablesRelatedParties string
	ExtractionTotalLiabilities          string
	ExtractionEnvelopeRules             string
	ExtractionPageMarkdown              string

	// Validation
	ValidationStatementCheck string
}{
	NavigationTocLocate:          "navigation.toc_locate",
	NavigationStatementLocations: "navigation.statement_locations",
	NavigationReferenceLookup:    "navigation.reference_lookup",

	ExtractionCashAndEquivalents:        "extraction.cash_and_equivalents",
	ExtractionPrepayments:               "extraction.prepayments",
	ExtractionReceivablesRelatedParties: "extraction.receivables_related_parties",
	ExtractionTotalLiabilities:          "extraction.total_liabilities",
	ExtractionEnvelopeRules:             "extraction.envelope_rules",
	ExtractionPageMarkdown:              "extraction.page_markdown",

	ValidationStatementCheck: "validation.statement_check",
}
