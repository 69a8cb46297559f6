// Package listing handles brokerage portfolio code parsing, validation,
// and derivation of suggested commission rates from comparable closed
// transactions.
package listing

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/teorey80/emlak-crm-pro-sub001/internal/settlement"
)

// codeRegex matches: EMLK-{districtCode}-{SALE|RENT}-{portfolioNo}-{YYYYMMDD}
// Example: EMLK-KADIKOY-SALE-10482-20250812
var codeRegex = regexp.MustCompile(
	`^EMLK-([A-Z]{2,12})-(SALE|RENT)-([0-9]+)-(\d{8})$`,
)

var (
	ErrInvalidCode = errors.New("listing: invalid portfolio code format")
)

// MinSuggestedRate is the floor for suggested commission rates, in percent.
// Prevents degenerate suggestions when comparables cluster near zero.
var MinSuggestedRate = decimal.NewFromInt(1)

// Listing represents a parsed portfolio code.
type Listing struct {
	Code        string          `json:"code"`
	District    string          `json:"district"`
	Kind        settlement.Kind `json:"kind"`
	PortfolioNo string          `json:"portfolio_no"`
	ListedDate  time.Time       `json:"listed_date"`
}

// ParseCode parses and validates a portfolio code string.
// Format: EMLK-{districtCode}-{SALE|RENT}-{portfolioNo}-{YYYYMMDD}
func ParseCode(code string) (*Listing, error) {
	matches := codeRegex.FindStringSubmatch(code)
	if matches == nil {
		return nil, fmt.Errorf("%w: %s (expected EMLK-{district}-{SALE|RENT}-{portfolioNo}-{YYYYMMDD})",
			ErrInvalidCode, code)
	}

	district := matches[1]
	kindStr := matches[2]
	portfolioNo := matches[3]
	dateStr := matches[4]

	kind := settlement.KindSale
	if kindStr == "RENT" {
		kind = settlement.KindRental
	}

	listed, err := time.Parse("20060102", dateStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %s", ErrInvalidCode, dateStr)
	}

	return &Listing{
		Code:        code,
		District:    district,
		Kind:        kind,
		PortfolioNo: portfolioNo,
		ListedDate:  listed,
	}, nil
}

// ComparableRates holds the percentile spread of commission rates across
// comparable closed transactions in the same district and kind.
type ComparableRates struct {
	Percentile25 decimal.Decimal `json:"percentile_25"`
	Percentile50 decimal.Decimal `json:"percentile_50"` // median
	Percentile75 decimal.Decimal `json:"percentile_75"`
}

// SuggestCommissionRate derives a suggested commission rate (in percent)
// for a new listing from comparable closed transactions. The median
// comparable rate anchors the suggestion; the interquartile range relative
// to the median measures market dispersion and adds half its weight as a
// negotiation margin, so wider dispersion yields more room above the median.
//
// The suggestion is advisory only: the form pre-fills it and the
// consultant may override it freely.
func SuggestCommissionRate(comp ComparableRates) (decimal.Decimal, error) {
	iqr := comp.Percentile75.Sub(comp.Percentile25)
	median := comp.Percentile50

	if iqr.IsNegative() {
		return decimal.Decimal{}, errors.New("listing: 75th percentile must not be below 25th percentile")
	}

	if median.LessThanOrEqual(decimal.Zero) {
		return MinSuggestedRate, nil
	}

	two := decimal.NewFromInt(2)
	cv := iqr.Div(median)
	suggested := median.Mul(decimal.NewFromInt(1).Add(cv.Div(two))).Round(2)

	if suggested.LessThan(MinSuggestedRate) {
		return MinSuggestedRate, nil
	}
	return suggested, nil
}
