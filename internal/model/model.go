// Package model defines the core domain types shared across the settlement
// service. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/teorey80/emlak-crm-pro-sub001/internal/settlement"
)

// SettlementRecord is an immutable record of a computed settlement: the
// engine's resolved figures plus the pass-through identity fields stored
// alongside them. Once created, these are never modified or deleted; a
// corrected settlement is recorded as a new row.
type SettlementRecord struct {
	ID              string          `json:"id" db:"id"`
	ListingCode     string          `json:"listing_code" db:"listing_code"` // EMLK-{district}-{kind}-{portfolio}-{date}
	District        string          `json:"district" db:"district"`
	Kind            settlement.Kind `json:"kind" db:"kind"`
	ConsultantID    string          `json:"consultant_id" db:"consultant_id"` // transacting consultant
	ListingOwnerID  string          `json:"listing_owner_id,omitempty" db:"listing_owner_id"`
	PartnerOffice   string          `json:"partner_office,omitempty" db:"partner_office"`
	BasePrice       decimal.Decimal `json:"base_price" db:"base_price"`
	TransactionDate time.Time       `json:"transaction_date" db:"transaction_date"`
	Notes           string          `json:"notes,omitempty" db:"notes"`

	settlement.Result

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ConsultantEarnings is one consultant's aggregate take from recorded
// settlements, counting both transacting-side and listing-owner-side
// shares.
type ConsultantEarnings struct {
	ConsultantID       string                     `json:"consultant_id"`
	SettlementCount    int                        `json:"settlement_count"`
	TransactingTotal   decimal.Decimal            `json:"transacting_total"`
	ListingOwnerTotal  decimal.Decimal            `json:"listing_owner_total"`
	TotalEarnings      decimal.Decimal            `json:"total_earnings"` // transacting + listing-owner
	LossCount          int                        `json:"loss_count"`     // settlements with negative net profit
	EarningsByDistrict map[string]decimal.Decimal `json:"earnings_by_district"`
}
