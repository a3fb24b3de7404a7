package models

import (
	"encoding/json"
	"fmt"
)

// FieldValue is the atomic unit of every extracted financial figure.
// source_page and source_label are parallel arrays naming every page and
// table label that justifies the value. A field that is genuinely absent
// from the filing is represented as a nil *FieldValue, not a zero value.
type FieldValue struct {
	Value       *float64 `json:"value"`
	SourcePage  []int    `json:"source_page"`
	SourceLabel []string `json:"source_label"`
	Reason      string   `json:"reason,omitempty"`
}

// Num returns the numeric value, treating absent fields as zero.
func (f *FieldValue) Num() float64 {
	if f == nil || f.Value == nil {
		return 0
	}
	return *f.Value
}

// ToThousand normalizes an amount to thousands of TWD. Filings state their
// unit per table; when the table is already in thousands the amount passes
// through unchanged.
func ToThousand(v float64, unitIsThousand bool) float64 {
	if unitIsThousand {
		return v
	}
	return v / 1000
}

// ==== 現金及約當現金明細表 (cash and cash equivalents detail) ====

type BasicCash struct {
	OnHand           *FieldValue `json:"on_hand"`            // 庫存現金
	PettyCash        *FieldValue `json:"petty_cash"`         // 零用金
	RevolvingFund    *FieldValue `json:"revolving_fund"`     // 週轉金
	NotesForExchange *FieldValue `json:"notes_for_exchange"` // 待交換票據
	InTransit        *FieldValue `json:"in_transit"`         // 運送中現金
	UnitIsThousand   bool        `json:"unit_is_thousand"`
}

type TWDDeposit struct {
	Demand         *FieldValue `json:"demand"`   // 活期性存款
	Term           *FieldValue `json:"term"`     // 定期性存款
	Checking       *FieldValue `json:"checking"` // 支票存款
	UnitIsThousand bool        `json:"unit_is_thousand"`
}

// ForeignDeposit is one foreign-currency row: original-currency amount,
// exchange rate and the optional restated TWD amount.
type ForeignDeposit struct {
	Currency       string      `json:"currency"`
	ForeignAmount  *FieldValue `json:"foreign_amount"`
	ExchangeRate   *FieldValue `json:"exchange_rate"`
	TWDAmount      *FieldValue `json:"twd_amount,omitempty"`
	UnitIsThousand bool        `json:"unit_is_thousand"`
}

type ForeignDeposits struct {
	Demand         []ForeignDeposit `json:"demand"`
	Term           []ForeignDeposit `json:"term"`
	Checking       []ForeignDeposit `json:"checking"`
	UnitIsThousand bool             `json:"unit_is_thousand"`
}

// MarketableInstruments covers the 約當現金 rows (commercial paper and
// repurchase agreements).
type MarketableInstruments struct {
	CommercialPaper     *FieldValue `json:"commercial_paper"`     // 商業本票
	RepurchaseAgreement *FieldValue `json:"repurchase_agreement"` // 附買回交易
	UnitIsThousand      bool        `json:"unit_is_thousand"`
}

type CashAndEquivalents struct {
	Cash                  BasicCash             `json:"cash"`
	TWDDeposit            TWDDeposit            `json:"twd_deposit"`
	ForeignDeposits       ForeignDeposits       `json:"foreign_deposits"`
	MarketableInstruments MarketableInstruments `json:"marketable_instruments"`
	AllowanceDoubtful     *FieldValue           `json:"allowance_doubtful"` // 備抵呆帳
	Total                 *FieldValue           `json:"total,omitempty"`    // 合計
	UnitIsThousand        bool                  `json:"unit_is_thousand"`
}

// ==== 預付款項明細表 (prepayments) ====

type PrePayments struct {
	PrepaymentsForGood      *FieldValue `json:"prepayments_for_good"`      // 預付款項
	PrepaymentsForEquipment *FieldValue `json:"prepayments_for_equipment"` // 預付設備款
	UnitIsThousand          bool        `json:"unit_is_thousand"`
}

// ==== 應收帳款及應收票據明細表 (receivables incl. related parties) ====

type ReceivablesRelatedParties struct {
	AccountsReceivable               *FieldValue `json:"accounts_receivable"`
	NotesReceivable                  *FieldValue `json:"notes_receivable"`
	OtherReceivables                 *FieldValue `json:"other_receivables"`
	AccountsReceivableRelatedParties *FieldValue `json:"accounts_receivable_related_parties"`
	OtherReceivablesRelatedParties   *FieldValue `json:"other_receivables_related_parties"`
	UnitIsThousand                   bool        `json:"unit_is_thousand"`
}

// ==== 負債總額 (total liabilities by counterparty) ====

// CounterpartyType classifies who a loan was borrowed from, using the
// categories of the regulatory liabilities worksheet.
type CounterpartyType string

const (
	CounterpartyDomesticBank            CounterpartyType = "國內金融機構"
	CounterpartyGovernment              CounterpartyType = "政府"
	CounterpartyNonFinancialInstitution CounterpartyType = "國內非金融機構或其他企業或關係企業"
	CounterpartyPerson                  CounterpartyType = "個人及非營利團體"
	CounterpartyOverseasBank            CounterpartyType = "國外金融機構或關係企業"
)

// LoanDetail is one borrowing: amount plus the lender and its category.
type LoanDetail struct {
	Amount           *FieldValue      `json:"amount"`
	Counterparty     string           `json:"counterparty"`
	CounterpartyType CounterpartyType `json:"counterparty_type"`
}

type TotalLiabilities struct {
	DomesticBankShortTermLoans []LoanDetail `json:"domestic_bank_short_term_loans"` // 201000 短期
	DomesticBankLongTermLoans  []LoanDetail `json:"domestic_bank_long_term_loans"`  // 201000 長期
	PolicyLoans                []LoanDetail `json:"policy_loans"`                   // 202010
	EnterpriseInterestLoans    []LoanDetail `json:"enterprise_interest_loans"`      // 202020
	PersonalNonprofitLoans     []LoanDetail `json:"personal_nonprofit_loans"`       // 202030
	OverseasFinancialLoans     []LoanDetail `json:"overseas_financial_loans"`       // 203000
	UnitIsThousand             bool         `json:"unit_is_thousand"`
}

func sumLoans(loans []LoanDetail) float64 {
	var total float64
	for _, loan := range loans {
		total += loan.Amount.Num()
	}
	return total
}

// CategoryTotals sums each borrowing category in thousands of TWD, keyed by
// the JSON field name of the category.
func (t *TotalLiabilities) CategoryTotals() map[string]float64 {
	totals := map[string]float64{
		"domestic_bank_short_term_loans": sumLoans(t.DomesticBankShortTermLoans),
		"domestic_bank_long_term_loans":  sumLoans(t.DomesticBankLongTermLoans),
		"policy_loans":                   sumLoans(t.PolicyLoans),
		"enterprise_interest_loans":      sumLoans(t.EnterpriseInterestLoans),
		"personal_nonprofit_loans":       sumLoans(t.PersonalNonprofitLoans),
		"overseas_financial_loans":       sumLoans(t.OverseasFinancialLoans),
	}
	for k, v := range totals {
		totals[k] = ToThousand(v, t.UnitIsThousand)
	}
	return totals
}

// Canonical extraction model names. These key config/models.yaml, the
// results map of a run and the DecodeStatement dispatch.
const (
	ModelCashAndEquivalents        = "cash_and_equivalents"
	ModelPrePayments               = "prepayments"
	ModelReceivablesRelatedParties = "receivables_related_parties"
	ModelTotalLiabilities          = "total_liabilities"
)

// DecodeStatement unmarshals a repaired JSON payload into the canonical
// struct for the named extraction model. The returned value is a pointer to
// one of the statement types above.
func DecodeStatement(modelName string, data []byte) (interface{}, error) {
	var target interface{}
	switch modelName {
	case ModelCashAndEquivalents:
		target = &CashAndEquivalents{}
	case ModelPrePayments:
		target = &PrePayments{}
	case ModelReceivablesRelatedParties:
		target = &ReceivablesRelatedParties{}
	case ModelTotalLiabilities:
		target = &TotalLiabilities{}
	default:
		return nil, fmt.Errorf("unknown extraction model: %s", modelName)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", modelName, err)
	}
	return target, nil
}
