package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/teorey80/emlak-crm-pro-sub001/internal/model"
)

// MemoryStore implements Store with an in-memory slice. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu          sync.RWMutex
	settlements []model.SettlementRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) InsertSettlement(_ context.Context, rec *model.SettlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.settlements {
		if existing.ID == rec.ID {
			return fmt.Errorf("settlement %s already exists", rec.ID)
		}
	}

	// Store a copy to avoid external mutation.
	s.settlements = append(s.settlements, *rec)
	return nil
}

func (s *MemoryStore) GetSettlement(_ context.Context, id string) (*model.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.settlements {
		if rec.ID == id {
			copy := rec
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *MemoryStore) ListSettlements(_ context.Context, listingCode string) ([]model.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.SettlementRecord
	for _, rec := range s.settlements {
		if listingCode == "" || rec.ListingCode == listingCode {
			result = append(result, rec)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *MemoryStore) ListSettlementsByConsultant(_ context.Context, consultantID string) ([]model.SettlementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.SettlementRecord
	for _, rec := range s.settlements {
		if rec.ConsultantID == consultantID || rec.ListingOwnerID == consultantID {
			result = append(result, rec)
		}
	}
	return result, nil
}

// GetConsultantEarnings aggregates settlement records into one consultant's
// totals, counting the transacting share where they closed the deal and the
// listing-owner share where their listing was closed by someone else.
func (s *MemoryStore) GetConsultantEarnings(_ context.Context, consultantID string) (*model.ConsultantEarnings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return aggregateEarnings(consultantID, s.settlements), nil
}

// aggregateEarnings folds settlement records into one consultant's earnings.
// Records where the consultant is on neither side are skipped, so callers
// may pass either a pre-filtered or a full record set.
func aggregateEarnings(consultantID string, recs []model.SettlementRecord) *model.ConsultantEarnings {
	earnings := &model.ConsultantEarnings{
		ConsultantID:       consultantID,
		TransactingTotal:   decimal.Zero,
		ListingOwnerTotal:  decimal.Zero,
		TotalEarnings:      decimal.Zero,
		EarningsByDistrict: make(map[string]decimal.Decimal),
	}

	for _, rec := range recs {
		var take decimal.Decimal
		involved := false

		if rec.ConsultantID == consultantID {
			take = take.Add(rec.TransactingConsultantShareAmount)
			earnings.TransactingTotal = earnings.TransactingTotal.Add(rec.TransactingConsultantShareAmount)
			involved = true
		}
		if rec.ListingOwnerID == consultantID && rec.ListingOwnerShareAmount != nil {
			take = take.Add(*rec.ListingOwnerShareAmount)
			earnings.ListingOwnerTotal = earnings.ListingOwnerTotal.Add(*rec.ListingOwnerShareAmount)
			involved = true
		}
		if !involved {
			continue
		}

		earnings.SettlementCount++
		earnings.TotalEarnings = earnings.TotalEarnings.Add(take)
		if rec.District != "" {
			earnings.EarningsByDistrict[rec.District] = earnings.EarningsByDistrict[rec.District].Add(take)
		}
		if rec.NetProfit.IsNegative() {
			earnings.LossCount++
		}
	}

	return earnings
}
