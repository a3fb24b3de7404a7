package models

import (
	"encoding/json"
	"math"
	"testing"
)

// =============================================================================
// SAMPLE EXTRACTION PAYLOADS
// =============================================================================
// Shapes mirror what the extraction prompts ask the model to return. Amounts
// are invented but realistic for a mid-size Taiwanese filer (thousands TWD).

const cashPayload = `{
  "cash": {
    "on_hand": {"value": 1250, "source_page": [52], "source_label": ["現金及約當現金明細表"]},
    "petty_cash": {"value": 300, "source_page": [52], "source_label": ["現金及約當現金明細表"]},
    "revolving_fund": null,
    "notes_for_exchange": {"value": 0, "source_page": [52], "source_label": ["現金及約當現金明細表"]},
    "in_transit": null,
    "unit_is_thousand": true
  },
  "twd_deposit": {
    "demand": {"value": 883210, "source_page": [52], "source_label": ["現金及約當現金明細表"]},
    "term": {"value": 1200000, "source_page": [52, 53], "source_label": ["現金及約當現金明細表", "附註六"]},
    "checking": {"value": 4521, "source_page": [52], "source_label": ["現金及約當現金明細表"]},
    "unit_is_thousand": true
  },
  "foreign_deposits": {
    "demand": [
      {
        "currency": "USD",
        "foreign_amount": {"value": 1530.25, "source_page": [53], "source_label": ["外幣存款明細"]},
        "exchange_rate": {"value": 32.31, "source_page": [53], "source_label": ["外幣存款明細"]},
        "twd_amount": {"value": 49442, "source_page": [53], "source_label": ["外幣存款明細"]},
        "unit_is_thousand": true
      }
    ],
    "term": [],
    "checking": [],
    "unit_is_thousand": true
  },
  "marketable_instruments": {
    "commercial_paper": {"value": 350000, "source_page": [53], "source_label": ["附買回交易明細"]},
    "repurchase_agreement": null,
    "unit_is_thousand": true
  },
  "allowance_doubtful": {"value": -1200, "source_page": [53], "source_label": ["備抵呆帳"], "reason": "以()表示為負數"},
  "total": {"value": 2487323, "source_page": [52], "source_label": ["現金及約當現金明細表"]},
  "unit_is_thousand": true
}`

const liabilitiesPayload = `{
  "domestic_bank_short_term_loans": [
    {"amount": {"value": 500000, "source_page": [60], "source_label": ["短期借款"]}, "counterparty": "台灣銀行", "counterparty_type": "國內金融機構"},
    {"amount": {"value": 250000, "source_page": [60], "source_label": ["短期借款"]}, "counterparty": "合作金庫", "counterparty_type": "國內金融機構"}
  ],
  "domestic_bank_long_term_loans": [
    {"amount": {"value": 1200000, "source_page": [61], "source_label": ["長期借款"]}, "counterparty": "台灣銀行", "counterparty_type": "國內金融機構"}
  ],
  "policy_loans": [],
  "enterprise_interest_loans": [
    {"amount": {"value": 80000, "source_page": [61], "source_label": ["關係人交易"]}, "counterparty": "母公司", "counterparty_type": "國內非金融機構或其他企業或關係企業"}
  ],
  "personal_nonprofit_loans": [],
  "overseas_financial_loans": [],
  "unit_is_thousand": true
}`

func TestDecodeStatementCash(t *testing.T) {
	decoded, err := DecodeStatement(ModelCashAndEquivalents, []byte(cashPayload))
	if err != nil {
		t.Fatalf("DecodeStatement returned error: %v", err)
	}
	cash, ok := decoded.(*CashAndEquivalents)
	if !ok {
		t.Fatalf("DecodeStatement returned %T, want *CashAndEquivalents", decoded)
	}

	if got := cash.Cash.OnHand.Num(); got != 1250 {
		t.Errorf("on_hand = %v, want 1250", got)
	}
	if cash.Cash.RevolvingFund != nil {
		t.Error("revolving_fund should stay nil when the payload has null")
	}
	if got := cash.Cash.RevolvingFund.Num(); got != 0 {
		t.Errorf("nil field Num() = %v, want 0", got)
	}
	if got := cash.AllowanceDoubtful.Num(); got != -1200 {
		t.Errorf("allowance_doubtful = %v, want -1200 (parenthesized negative)", got)
	}
	if len(cash.ForeignDeposits.Demand) != 1 || cash.ForeignDeposits.Demand[0].Currency != "USD" {
		t.Fatalf("foreign demand deposits = %+v, want one USD row", cash.ForeignDeposits.Demand)
	}
	term := cash.TWDDeposit.Term
	if len(term.SourcePage) != 2 || len(term.SourceLabel) != 2 {
		t.Errorf("term deposit provenance pages=%v labels=%v, want parallel pairs", term.SourcePage, term.SourceLabel)
	}
}

func TestDecodeStatementLiabilities(t *testing.T) {
	decoded, err := DecodeStatement(ModelTotalLiabilities, []byte(liabilitiesPayload))
	if err != nil {
		t.Fatalf("DecodeStatement returned error: %v", err)
	}
	tl, ok := decoded.(*TotalLiabilities)
	if !ok {
		t.Fatalf("DecodeStatement returned %T, want *TotalLiabilities", decoded)
	}

	if got := tl.DomesticBankShortTermLoans[0].CounterpartyType; got != CounterpartyDomesticBank {
		t.Errorf("counterparty_type = %q, want %q", got, CounterpartyDomesticBank)
	}

	totals := tl.CategoryTotals()
	if got := totals["domestic_bank_short_term_loans"]; got != 750000 {
		t.Errorf("short term total = %v, want 750000", got)
	}
	if got := totals["domestic_bank_long_term_loans"]; got != 1200000 {
		t.Errorf("long term total = %v, want 1200000", got)
	}
	if got := totals["policy_loans"]; got != 0 {
		t.Errorf("policy loans total = %v, want 0 for empty category", got)
	}
	if got := totals["enterprise_interest_loans"]; got != 80000 {
		t.Errorf("enterprise loans total = %v, want 80000", got)
	}
}

func TestDecodeStatementUnknownModel(t *testing.T) {
	if _, err := DecodeStatement("property_plant_equipment", []byte(`{}`)); err == nil {
		t.Error("unknown model should return an error")
	}
}

func TestDecodeStatementMalformed(t *testing.T) {
	if _, err := DecodeStatement(ModelPrePayments, []byte(`{"prepayments_for_good": "not an object"`)); err == nil {
		t.Error("malformed payload should return an error")
	}
}

func TestToThousand(t *testing.T) {
	tests := []struct {
		name           string
		value          float64
		unitIsThousand bool
		expected       float64
	}{
		{"already thousands", 750000, true, 750000},
		{"raw TWD scaled down", 750000, false, 750},
		{"zero", 0, false, 0},
		{"negative parenthesized", -1200, true, -1200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToThousand(tt.value, tt.unitIsThousand)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ToThousand(%v, %v) = %v, want %v", tt.value, tt.unitIsThousand, got, tt.expected)
			}
		})
	}
}

func TestFieldValueRoundTrip(t *testing.T) {
	v := 49442.0
	fv := FieldValue{
		Value:       &v,
		SourcePage:  []int{53},
		SourceLabel: []string{"外幣存款明細"},
	}
	raw, err := json.Marshal(fv)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back FieldValue
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Num() != 49442 {
		t.Errorf("round trip value = %v, want 49442", back.Num())
	}
	if back.Reason != "" {
		t.Errorf("reason should be omitted when empty, got %q", back.Reason)
	}
}
