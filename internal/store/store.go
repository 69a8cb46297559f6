// Package store defines the persistence interface for settlement records.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"

	"github.com/teorey80/emlak-crm-pro-sub001/internal/model"
)

// ErrNotFound is returned when a settlement record does not exist.
var ErrNotFound = errors.New("store: settlement not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- Immutable settlement records ---

	// InsertSettlement appends an immutable settlement record.
	InsertSettlement(ctx context.Context, rec *model.SettlementRecord) error

	// GetSettlement retrieves a settlement by its ID.
	GetSettlement(ctx context.Context, id string) (*model.SettlementRecord, error)

	// ListSettlements returns all settlements, newest first. When
	// listingCode is non-empty only that listing's settlements are returned.
	ListSettlements(ctx context.Context, listingCode string) ([]model.SettlementRecord, error)

	// ListSettlementsByConsultant returns all settlements where the
	// consultant acted on either side (transacting or listing owner).
	ListSettlementsByConsultant(ctx context.Context, consultantID string) ([]model.SettlementRecord, error)

	// --- Aggregation ---

	// GetConsultantEarnings aggregates a consultant's take across all
	// recorded settlements, on both sides of cross-consultant splits.
	GetConsultantEarnings(ctx context.Context, consultantID string) (*model.ConsultantEarnings, error)
}
