package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/teorey80/emlak-crm-pro-sub001/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary. Settlement records are
// immutable, so a cached record can never go stale — only the aggregate
// earnings keys need invalidation on insert.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate aggregates) ---

func (s *CachedStore) InsertSettlement(ctx context.Context, rec *model.SettlementRecord) error {
	if err := s.primary.InsertSettlement(ctx, rec); err != nil {
		return err
	}
	s.cacheSettlement(ctx, rec)

	// Invalidate earnings for every consultant on the record.
	s.rdb.Del(ctx, earningsKey(rec.ConsultantID))
	if rec.ListingOwnerID != "" {
		s.rdb.Del(ctx, earningsKey(rec.ListingOwnerID))
	}
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetSettlement(ctx context.Context, id string) (*model.SettlementRecord, error) {
	data, err := s.rdb.Get(ctx, settlementKey(id)).Bytes()
	if err == nil {
		var rec model.SettlementRecord
		if json.Unmarshal(data, &rec) == nil {
			return &rec, nil
		}
	}

	// Cache miss: read from primary.
	rec, err := s.primary.GetSettlement(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheSettlement(ctx, rec)
	return rec, nil
}

func (s *CachedStore) GetConsultantEarnings(ctx context.Context, consultantID string) (*model.ConsultantEarnings, error) {
	data, err := s.rdb.Get(ctx, earningsKey(consultantID)).Bytes()
	if err == nil {
		var earnings model.ConsultantEarnings
		if json.Unmarshal(data, &earnings) == nil {
			return &earnings, nil
		}
	}

	// Cache miss.
	earnings, err := s.primary.GetConsultantEarnings(ctx, consultantID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(earnings); err == nil {
		s.rdb.Set(ctx, earningsKey(consultantID), data, s.ttl)
	}
	return earnings, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListSettlements(ctx context.Context, listingCode string) ([]model.SettlementRecord, error) {
	return s.primary.ListSettlements(ctx, listingCode)
}

func (s *CachedStore) ListSettlementsByConsultant(ctx context.Context, consultantID string) ([]model.SettlementRecord, error) {
	return s.primary.ListSettlementsByConsultant(ctx, consultantID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheSettlement(ctx context.Context, rec *model.SettlementRecord) {
	if data, err := json.Marshal(rec); err == nil {
		s.rdb.Set(ctx, settlementKey(rec.ID), data, s.ttl)
	}
}

func settlementKey(id string) string  { return fmt.Sprintf("settlement:%s", id) }
func earningsKey(cid string) string   { return fmt.Sprintf("earnings:%s", cid) }
