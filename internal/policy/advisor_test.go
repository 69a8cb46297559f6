package policy

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/teorey80/emlak-crm-pro-sub001/internal/settlement"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func compute(t *testing.T, in settlement.TransactionInput) *settlement.Result {
	t.Helper()
	res, err := settlement.Compute(in)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	return res
}

func hasCode(warnings []Warning, code string) bool {
	for _, w := range warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func TestCheck_CleanSettlementNoWarnings(t *testing.T) {
	adv := NewAdvisor(decimal.Zero, decimal.Zero) // defaults
	in := settlement.TransactionInput{
		Kind:               settlement.KindSale,
		BasePrice:          d(1_000_000),
		BuyerSideAmount:    d(20_000),
		SellerSideAmount:   d(10_000),
		OfficeSharePercent: d(50),
	}
	if warnings := adv.Check(in, compute(t, in)); len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
}

func TestCheck_HighSaleCommissionRate(t *testing.T) {
	adv := NewAdvisor(d(50), d(200))
	in := settlement.TransactionInput{
		Kind:               settlement.KindSale,
		BasePrice:          d(10_000),
		BuyerSideAmount:    d(6_000), // 60% of price
		OfficeSharePercent: d(50),
	}
	warnings := adv.Check(in, compute(t, in))
	if !hasCode(warnings, CodeHighCommissionRate) {
		t.Errorf("expected HIGH_COMMISSION_RATE, got %v", warnings)
	}
}

func TestCheck_RateAtThresholdNotFlagged(t *testing.T) {
	adv := NewAdvisor(d(50), d(200))
	in := settlement.TransactionInput{
		Kind:               settlement.KindSale,
		BasePrice:          d(10_000),
		BuyerSideAmount:    d(5_000), // exactly 50%
		OfficeSharePercent: d(50),
	}
	warnings := adv.Check(in, compute(t, in))
	if hasCode(warnings, CodeHighCommissionRate) {
		t.Errorf("rate at threshold should not warn, got %v", warnings)
	}
}

func TestCheck_RentalRateOutsideHint(t *testing.T) {
	adv := NewAdvisor(d(50), d(200))
	in := settlement.TransactionInput{
		Kind:               settlement.KindRental,
		BasePrice:          d(15_000),
		RentalRatePercent:  d(250),
		OfficeSharePercent: d(50),
	}
	warnings := adv.Check(in, compute(t, in))
	if !hasCode(warnings, CodeRentalRateOutOfHint) {
		t.Errorf("expected RENTAL_RATE_OUT_OF_HINT, got %v", warnings)
	}
}

func TestCheck_PartnerShareExceedsBasis(t *testing.T) {
	adv := NewAdvisor(d(50), d(200))
	in := settlement.TransactionInput{
		Kind:               settlement.KindSale,
		BasePrice:          d(1_000_000),
		BuyerSideAmount:    d(20_000),
		SellerSideAmount:   d(10_000),
		OfficeSharePercent: d(50),
		PartnerOffice: &settlement.PartnerOfficeSplit{
			ShareBasis:  settlement.BasisBuyerCommission,
			ShareAmount: d(25_000), // more than the 20k buyer commission
		},
	}
	warnings := adv.Check(in, compute(t, in))
	if !hasCode(warnings, CodePartnerExceedsBasis) {
		t.Errorf("expected PARTNER_SHARE_EXCEEDS_BASIS, got %v", warnings)
	}
}

func TestCheck_NegativeNetProfit(t *testing.T) {
	adv := NewAdvisor(d(50), d(200))
	in := settlement.TransactionInput{
		Kind:               settlement.KindSale,
		BasePrice:          d(500_000),
		BuyerSideAmount:    d(1_000),
		Expenses:           []settlement.ExpenseItem{{ID: "e1", Amount: d(3_000)}},
		OfficeSharePercent: d(50),
	}
	warnings := adv.Check(in, compute(t, in))
	if !hasCode(warnings, CodeNegativeNetProfit) {
		t.Errorf("expected NEGATIVE_NET_PROFIT, got %v", warnings)
	}
}

func TestNewAdvisor_Defaults(t *testing.T) {
	adv := NewAdvisor(decimal.Zero, d(-5))
	if !adv.SaleRateWarnThreshold.Equal(d(50)) {
		t.Errorf("expected default sale threshold 50, got %s", adv.SaleRateWarnThreshold)
	}
	if !adv.RentalRateMax.Equal(d(200)) {
		t.Errorf("expected default rental max 200, got %s", adv.RentalRateMax)
	}
}
