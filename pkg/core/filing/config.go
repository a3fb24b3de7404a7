package filing

import (
	"fmt"
	"io/ioutil"

	"gopkg.in/yaml.v2"

	"agentic_extraction/pkg/models"
)

// ModelConfig describes one extraction model: which prompt drives it and
// which canonical statements its page subset comes from.
type ModelConfig struct {
	Name               string   `yaml:"name"`
	DisplayName        string   `yaml:"display_name"`
	PromptID           string   `yaml:"prompt_id"`
	RequiredStatements []string `yaml:"required_statements"`
}

// ModelsConfig is the top-level shape of config/models.yaml.
type ModelsConfig struct {
	Models []ModelConfig `yaml:"models"`
}

// LoadModelsConfig reads the extraction roster from a YAML file.
func LoadModelsConfig(path string) (*ModelsConfig, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read models config: %w", err)
	}
	var cfg ModelsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse models config: %w", err)
	}
	if len(cfg.Models) == 0 {
		return nil, fmt.Errorf("models config %s lists no models", path)
	}
	return &cfg, nil
}

// DefaultModels is the built-in roster, used when no config file is found.
func DefaultModels() *ModelsConfig {
	balanceAndNotes := []string{StatementBalanceSheet, StatementAccountingItems}
	return &ModelsConfig{
		Models: []ModelConfig{
			{
				Name:               models.ModelCashAndEquivalents,
				DisplayName:        "現金及約當現金",
				PromptID:           "extraction.cash_and_equivalents",
				RequiredStatements: balanceAndNotes,
			},
			{
				Name:               models.ModelPrePayments,
				DisplayName:        "預付款項",
				PromptID:           "extraction.prepayments",
				RequiredStatements: balanceAndNotes,
			},
			{
				Name:               models.ModelReceivablesRelatedParties,
				DisplayName:        "應收關係人款項",
				PromptID:           "extraction.receivables_related_parties",
				RequiredStatements: balanceAndNotes,
			},
			{
				Name:               models.ModelTotalLiabilities,
				DisplayName:        "負債總額",
				PromptID:           "extraction.total_liabilities",
				RequiredStatements: balanceAndNotes,
			},
		},
	}
}

// AllRequiredStatements unions required_statements across the roster,
// preserving canonical statement order.
func (c *ModelsConfig) AllRequiredStatements() []string {
	required := map[string]bool{}
	for _, m := range c.Models {
		for _, s := range m.RequiredStatements {
			required[s] = true
		}
	}
	var names []string
	for _, name := range StatementNames {
		if required[name] {
			names = append(names, name)
		}
	}
	return names
}

// ByName returns the config entry for a model name.
func (c *ModelsConfig) ByName(name string) (*ModelConfig, bool) {
	for i := range c.Models {
		if c.Models[i].Name == name {
			return &c.Models[i], true
		}
	}
	return nil, false
}
