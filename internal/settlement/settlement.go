// Package settlement implements the transaction settlement engine: the
// calculations that turn a raw sale or rental transaction (price,
// commissions, expenses, partner/cross-consultant splits) into a fully
// resolved revenue allocation across office, consultant(s), and any
// collaborating external office.
//
// The engine is a stateless, single-pass pipeline of four sub-computations
// applied in a fixed order:
//
//  1. expense ledger      — sums itemized transaction expenses
//  2. commission resolver — gross commission (sale: buyer+seller amounts;
//     rental: percentage of monthly rent)
//  3. partner allocator   — optional share owed to a collaborating office
//  4. revenue splitter    — office/consultant division of what remains,
//     with an optional cross-consultant split
//
// All monetary values use shopspring/decimal — never float64 for money.
// Amounts are the source of truth; percentage fields are derived, read-only
// projections and never feed back into amount computation. Every derived
// complement is computed by subtraction, so the conservation invariants
// (parts sum to the whole) hold exactly, not just to rounding tolerance.
package settlement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPrice is returned when the base price (sale price or
	// monthly rent) is negative.
	ErrInvalidPrice = errors.New("settlement: base price must not be negative")

	// ErrInvalidCommission is returned when a sale-side commission amount
	// is negative.
	ErrInvalidCommission = errors.New("settlement: commission amount must not be negative")

	// ErrInvalidExpense is returned when an expense item has a negative
	// amount. The wrapped message identifies the offending item.
	ErrInvalidExpense = errors.New("settlement: expense amount must not be negative")

	// ErrInvalidPartnerShare is returned when the partner office share
	// amount is negative.
	ErrInvalidPartnerShare = errors.New("settlement: partner share amount must not be negative")

	// ErrInvalidSharePercent is returned when the office or listing-owner
	// share percent falls outside [0, 100].
	ErrInvalidSharePercent = errors.New("settlement: share percent must be within [0, 100]")

	// ErrInvalidKind is returned when the transaction kind is neither
	// SALE nor RENTAL.
	ErrInvalidKind = errors.New("settlement: transaction kind must be SALE or RENTAL")
)

var hundred = decimal.NewFromInt(100)

// MoneyScale is the number of decimal places for amounts derived by
// multiplication (rental commission, office share, owner share).
var MoneyScale int32 = 2

// RateScale is the number of decimal places for derived percentage
// projections (commission rates, partner share rate).
var RateScale int32 = 4

// Kind discriminates sale and rental transactions. Only the commission
// resolution step dispatches on it; expense, partner, and split logic are
// shared.
type Kind string

const (
	KindSale   Kind = "SALE"
	KindRental Kind = "RENTAL"
)

// ShareBasis selects which commission amount a partner office's derived
// share rate is projected against.
type ShareBasis string

const (
	BasisBuyerCommission ShareBasis = "BUYER_COMMISSION"
	BasisTotalCommission ShareBasis = "TOTAL_COMMISSION"
)

// ExpenseItem is one itemized transaction expense. Type is a free-text
// category; duplicates are allowed.
type ExpenseItem struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// PartnerOfficeSplit describes a collaborating external office entitled to
// a negotiated share of commission. ShareAmount is entered directly in
// currency — the rate is derived for display, never input.
type PartnerOfficeSplit struct {
	OfficeName  string          `json:"office_name"`
	ContactName string          `json:"contact_name,omitempty"`
	ShareBasis  ShareBasis      `json:"share_basis"`
	ShareAmount decimal.Decimal `json:"share_amount"`
}

// CrossConsultantSplit divides the consultant pool between the consultant
// who listed the property and the consultant who closed the transaction.
// Present only when they differ; a nil split means the whole pool goes to
// the transacting consultant.
type CrossConsultantSplit struct {
	ListingOwnerID          string          `json:"listing_owner_id"`
	TransactingConsultantID string          `json:"transacting_consultant_id"`
	OwnerSharePercent       decimal.Decimal `json:"owner_share_percent"`
}

// TransactionInput is the immutable request to the engine, assembled
// field-by-field by the form layer and never mutated after submission.
//
// For sales, BuyerSideAmount and SellerSideAmount carry the two commission
// amounts (entered in currency, not percentages — percentages are derived
// to avoid rounding drift). For rentals, RentalRatePercent carries the
// commission as a percentage of monthly rent and the sale-side amounts are
// ignored.
type TransactionInput struct {
	Kind               Kind                  `json:"kind"`
	BasePrice          decimal.Decimal       `json:"base_price"` // sale price, or monthly rent
	BuyerSideAmount    decimal.Decimal       `json:"buyer_side_amount"`
	SellerSideAmount   decimal.Decimal       `json:"seller_side_amount"`
	RentalRatePercent  decimal.Decimal       `json:"rental_rate_percent"` // 100 = one month's rent
	Expenses           []ExpenseItem         `json:"expenses"`
	PartnerOffice      *PartnerOfficeSplit   `json:"partner_office,omitempty"`
	CrossConsultant    *CrossConsultantSplit `json:"cross_consultant,omitempty"`
	OfficeSharePercent decimal.Decimal       `json:"office_share_percent"`
}

// ResolvedCommission is the output of the commission resolution step.
// Rates are zero when the base price is zero.
type ResolvedCommission struct {
	GrossCommission decimal.Decimal
	BuyerRate       decimal.Decimal
	SellerRate      decimal.Decimal
}

// PartnerAllocation is the output of the partner-office allocation step.
type PartnerAllocation struct {
	Amount decimal.Decimal
	Rate   decimal.Decimal
}

// RevenueSplit is the output of the internal revenue split step.
// ListingOwnerShareAmount is nil unless a cross-consultant split applies.
type RevenueSplit struct {
	OfficeShareAmount                decimal.Decimal
	ConsultantPoolAmount             decimal.Decimal
	ListingOwnerShareAmount          *decimal.Decimal
	TransactingConsultantShareAmount decimal.Decimal
}

// Result is the fully resolved settlement, reproducible from a given
// TransactionInput. Identical inputs always produce identical results —
// there is no hidden clock or randomness.
type Result struct {
	TotalExpenses                    decimal.Decimal  `json:"total_expenses"`
	GrossCommission                  decimal.Decimal  `json:"gross_commission"`
	BuyerCommissionRate              decimal.Decimal  `json:"buyer_commission_rate"`
	SellerCommissionRate             decimal.Decimal  `json:"seller_commission_rate"`
	GrossProfit                      decimal.Decimal  `json:"gross_profit"`
	PartnerShareAmount               decimal.Decimal  `json:"partner_share_amount"`
	PartnerShareRate                 decimal.Decimal  `json:"partner_share_rate"`
	NetProfit                        decimal.Decimal  `json:"net_profit"`
	OfficeShareAmount                decimal.Decimal  `json:"office_share_amount"`
	ConsultantPoolAmount             decimal.Decimal  `json:"consultant_pool_amount"`
	ListingOwnerShareAmount          *decimal.Decimal `json:"listing_owner_share_amount,omitempty"`
	TransactingConsultantShareAmount decimal.Decimal  `json:"transacting_consultant_share_amount"`
}

// rateOf projects amount against base as a percentage: amount/base*100,
// or zero when base is zero (no division-by-zero propagation).
func rateOf(amount, base decimal.Decimal) decimal.Decimal {
	if base.IsZero() {
		return decimal.Zero
	}
	return amount.Div(base).Mul(hundred).Round(RateScale)
}

// TotalExpenses sums the itemized expense amounts. An empty list yields
// zero. A negative amount fails with ErrInvalidExpense identifying the
// offending item; no partial total is returned.
func TotalExpenses(expenses []ExpenseItem) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, item := range expenses {
		if item.Amount.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: item %s (%s)", ErrInvalidExpense, item.ID, item.Amount)
		}
		total = total.Add(item.Amount)
	}
	return total, nil
}

// ResolveSaleCommission computes gross commission for a sale as the sum of
// the buyer-side and seller-side amounts, with derived display rates.
// No upper bound is enforced on either amount; commissions above 100% of
// price are valid. Rate sanity warnings belong to the caller.
func ResolveSaleCommission(basePrice, buyerAmount, sellerAmount decimal.Decimal) (ResolvedCommission, error) {
	if basePrice.IsNegative() {
		return ResolvedCommission{}, fmt.Errorf("%w: %s", ErrInvalidPrice, basePrice)
	}
	if buyerAmount.IsNegative() || sellerAmount.IsNegative() {
		return ResolvedCommission{}, fmt.Errorf("%w: buyer %s, seller %s", ErrInvalidCommission, buyerAmount, sellerAmount)
	}
	return ResolvedCommission{
		GrossCommission: buyerAmount.Add(sellerAmount),
		BuyerRate:       rateOf(buyerAmount, basePrice),
		SellerRate:      rateOf(sellerAmount, basePrice),
	}, nil
}

// ResolveRentalCommission computes gross commission for a rental as a
// percentage of the monthly rent: rent * rate / 100. The rate is expected
// in [0, 200] (100 = one month's rent) but that range is advisory only;
// the engine accepts any non-negative rent and any rate.
func ResolveRentalCommission(monthlyRent, ratePercent decimal.Decimal) (ResolvedCommission, error) {
	if monthlyRent.IsNegative() {
		return ResolvedCommission{}, fmt.Errorf("%w: %s", ErrInvalidPrice, monthlyRent)
	}
	return ResolvedCommission{
		GrossCommission: monthlyRent.Mul(ratePercent).Div(hundred).Round(MoneyScale),
	}, nil
}

// AllocatePartnerShare resolves the commission share owed to a
// collaborating external office. A nil split means no partner is involved
// and both outputs are zero.
//
// The share amount is entered directly, never computed; the rate is a
// derived display value over the chosen basis (buyer-side or total
// commission), zero when the basis amount is zero. The amount is not
// capped at its basis: a partner may legitimately take more than the
// buyer-side commission, funded from the seller side. Callers needing a
// hard cap must add that policy themselves.
func AllocatePartnerShare(split *PartnerOfficeSplit, buyerCommission, totalCommission decimal.Decimal) (PartnerAllocation, error) {
	if split == nil {
		return PartnerAllocation{Amount: decimal.Zero, Rate: decimal.Zero}, nil
	}
	if split.ShareAmount.IsNegative() {
		return PartnerAllocation{}, fmt.Errorf("%w: %s", ErrInvalidPartnerShare, split.ShareAmount)
	}

	basis := totalCommission
	if split.ShareBasis == BasisBuyerCommission {
		basis = buyerCommission
	}
	return PartnerAllocation{
		Amount: split.ShareAmount,
		Rate:   rateOf(split.ShareAmount, basis),
	}, nil
}

// SplitRevenue divides net profit between the office and the
// consultant(s). The office takes officeSharePercent of net profit; the
// remainder is the consultant pool. With a cross-consultant split, the
// listing owner takes ownerSharePercent of the pool and the transacting
// consultant the rest; otherwise the whole pool goes to the transacting
// consultant.
//
// Net profit may be negative (expenses exceeded commission, or the partner
// share exceeded gross profit). The split is not special-cased: the same
// arithmetic applies and the loss propagates through every share.
func SplitRevenue(netProfit, officeSharePercent decimal.Decimal, cross *CrossConsultantSplit) (RevenueSplit, error) {
	if !percentInRange(officeSharePercent) {
		return RevenueSplit{}, fmt.Errorf("%w: office share %s", ErrInvalidSharePercent, officeSharePercent)
	}

	officeShare := netProfit.Mul(officeSharePercent).Div(hundred).Round(MoneyScale)
	pool := netProfit.Sub(officeShare)

	if cross == nil {
		return RevenueSplit{
			OfficeShareAmount:                officeShare,
			ConsultantPoolAmount:             pool,
			TransactingConsultantShareAmount: pool,
		}, nil
	}

	if !percentInRange(cross.OwnerSharePercent) {
		return RevenueSplit{}, fmt.Errorf("%w: owner share %s", ErrInvalidSharePercent, cross.OwnerSharePercent)
	}

	ownerShare := pool.Mul(cross.OwnerSharePercent).Div(hundred).Round(MoneyScale)
	return RevenueSplit{
		OfficeShareAmount:                officeShare,
		ConsultantPoolAmount:             pool,
		ListingOwnerShareAmount:          &ownerShare,
		TransactingConsultantShareAmount: pool.Sub(ownerShare),
	}, nil
}

// Compute runs the full settlement pipeline: expenses, commission,
// partner deduction, net profit, office/consultant split, and the
// optional cross-consultant split. It fails fast on the first invalid
// input and never returns a partial result.
func Compute(in TransactionInput) (*Result, error) {
	totalExpenses, err := TotalExpenses(in.Expenses)
	if err != nil {
		return nil, err
	}

	var rc ResolvedCommission
	buyerCommission := decimal.Zero
	switch in.Kind {
	case KindSale:
		rc, err = ResolveSaleCommission(in.BasePrice, in.BuyerSideAmount, in.SellerSideAmount)
		buyerCommission = in.BuyerSideAmount
	case KindRental:
		rc, err = ResolveRentalCommission(in.BasePrice, in.RentalRatePercent)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, in.Kind)
	}
	if err != nil {
		return nil, err
	}

	partner, err := AllocatePartnerShare(in.PartnerOffice, buyerCommission, rc.GrossCommission)
	if err != nil {
		return nil, err
	}

	grossProfit := rc.GrossCommission.Sub(totalExpenses)
	netProfit := grossProfit.Sub(partner.Amount)

	split, err := SplitRevenue(netProfit, in.OfficeSharePercent, in.CrossConsultant)
	if err != nil {
		return nil, err
	}

	return &Result{
		TotalExpenses:                    totalExpenses,
		GrossCommission:                  rc.GrossCommission,
		BuyerCommissionRate:              rc.BuyerRate,
		SellerCommissionRate:             rc.SellerRate,
		GrossProfit:                      grossProfit,
		PartnerShareAmount:               partner.Amount,
		PartnerShareRate:                 partner.Rate,
		NetProfit:                        netProfit,
		OfficeShareAmount:                split.OfficeShareAmount,
		ConsultantPoolAmount:             split.ConsultantPoolAmount,
		ListingOwnerShareAmount:          split.ListingOwnerShareAmount,
		TransactingConsultantShareAmount: split.TransactingConsultantShareAmount,
	}, nil
}

// percentInRange reports whether p is within [0, 100].
func percentInRange(p decimal.Decimal) bool {
	return !p.IsNegative() && p.LessThanOrEqual(hundred)
}
