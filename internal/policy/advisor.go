// Package policy implements advisory checks over computed settlements.
//
// The engine is deliberately permissive: a commission above 100% of price,
// a partner share larger than its basis, or a loss-making transaction are
// all valid, representable outcomes it must compute faithfully. Flagging
// them is the caller's job, and this package is that caller-side policy.
// Warnings never block a settlement.
package policy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/teorey80/emlak-crm-pro-sub001/internal/settlement"
)

// Warning codes surfaced to the form and reporting layers.
const (
	CodeHighCommissionRate  = "HIGH_COMMISSION_RATE"
	CodeRentalRateOutOfHint = "RENTAL_RATE_OUT_OF_HINT"
	CodePartnerExceedsBasis = "PARTNER_SHARE_EXCEEDS_BASIS"
	CodeNegativeNetProfit   = "NEGATIVE_NET_PROFIT"
)

// Warning is one advisory finding on a computed settlement.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Advisor holds the advisory thresholds.
//
// SaleRateWarnThreshold flags a buyer- or seller-side commission rate above
// the given percent of the sale price. RentalRateMax bounds the expected
// rental commission hint range [0, RentalRateMax] (100 = one month's rent).
type Advisor struct {
	SaleRateWarnThreshold decimal.Decimal
	RentalRateMax         decimal.Decimal
}

// NewAdvisor creates an advisor with the given thresholds. Non-positive
// thresholds fall back to the defaults (50% sale rate, 200 rental rate).
func NewAdvisor(saleRateWarnThreshold, rentalRateMax decimal.Decimal) *Advisor {
	if saleRateWarnThreshold.LessThanOrEqual(decimal.Zero) {
		saleRateWarnThreshold = decimal.NewFromInt(50)
	}
	if rentalRateMax.LessThanOrEqual(decimal.Zero) {
		rentalRateMax = decimal.NewFromInt(200)
	}
	return &Advisor{
		SaleRateWarnThreshold: saleRateWarnThreshold,
		RentalRateMax:         rentalRateMax,
	}
}

// Check inspects a computed settlement against its input and returns every
// advisory finding. A nil slice means nothing unusual.
func (a *Advisor) Check(in settlement.TransactionInput, res *settlement.Result) []Warning {
	var warnings []Warning

	switch in.Kind {
	case settlement.KindSale:
		if res.BuyerCommissionRate.GreaterThan(a.SaleRateWarnThreshold) {
			warnings = append(warnings, Warning{
				Code: CodeHighCommissionRate,
				Message: fmt.Sprintf("buyer-side commission rate %s%% exceeds %s%% of sale price",
					res.BuyerCommissionRate, a.SaleRateWarnThreshold),
			})
		}
		if res.SellerCommissionRate.GreaterThan(a.SaleRateWarnThreshold) {
			warnings = append(warnings, Warning{
				Code: CodeHighCommissionRate,
				Message: fmt.Sprintf("seller-side commission rate %s%% exceeds %s%% of sale price",
					res.SellerCommissionRate, a.SaleRateWarnThreshold),
			})
		}
	case settlement.KindRental:
		if in.RentalRatePercent.IsNegative() || in.RentalRatePercent.GreaterThan(a.RentalRateMax) {
			warnings = append(warnings, Warning{
				Code: CodeRentalRateOutOfHint,
				Message: fmt.Sprintf("rental commission rate %s%% is outside the expected range [0, %s]",
					in.RentalRatePercent, a.RentalRateMax),
			})
		}
	}

	if in.PartnerOffice != nil {
		basis := res.GrossCommission
		basisLabel := "total commission"
		if in.PartnerOffice.ShareBasis == settlement.BasisBuyerCommission {
			basis = in.BuyerSideAmount
			basisLabel = "buyer-side commission"
		}
		if res.PartnerShareAmount.GreaterThan(basis) {
			warnings = append(warnings, Warning{
				Code: CodePartnerExceedsBasis,
				Message: fmt.Sprintf("partner share %s exceeds its basis (%s %s)",
					res.PartnerShareAmount, basisLabel, basis),
			})
		}
	}

	if res.NetProfit.IsNegative() {
		warnings = append(warnings, Warning{
			Code:    CodeNegativeNetProfit,
			Message: fmt.Sprintf("transaction settles at a loss: net profit %s", res.NetProfit),
		})
	}

	return warnings
}
