package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/teorey80/emlak-crm-pro-sub001/internal/model"
	"github.com/teorey80/emlak-crm-pro-sub001/internal/settlement"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const settlementColumns = `id, listing_code, district, kind, consultant_id,
	listing_owner_id, partner_office,
	base_price::TEXT, transaction_date, notes,
	total_expenses::TEXT, gross_commission::TEXT,
	buyer_commission_rate::TEXT, seller_commission_rate::TEXT,
	gross_profit::TEXT, partner_share_amount::TEXT, partner_share_rate::TEXT,
	net_profit::TEXT, office_share_amount::TEXT, consultant_pool_amount::TEXT,
	listing_owner_share_amount::TEXT, transacting_consultant_share_amount::TEXT,
	created_at`

func (s *PostgresStore) InsertSettlement(ctx context.Context, rec *model.SettlementRecord) error {
	var ownerShare *string
	if rec.ListingOwnerShareAmount != nil {
		v := rec.ListingOwnerShareAmount.String()
		ownerShare = &v
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO settlements (
			id, listing_code, district, kind, consultant_id,
			listing_owner_id, partner_office,
			base_price, transaction_date, notes,
			total_expenses, gross_commission,
			buyer_commission_rate, seller_commission_rate,
			gross_profit, partner_share_amount, partner_share_rate,
			net_profit, office_share_amount, consultant_pool_amount,
			listing_owner_share_amount, transacting_consultant_share_amount,
			created_at
		 ) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8::NUMERIC, $9, $10,
			$11::NUMERIC, $12::NUMERIC, $13::NUMERIC, $14::NUMERIC,
			$15::NUMERIC, $16::NUMERIC, $17::NUMERIC,
			$18::NUMERIC, $19::NUMERIC, $20::NUMERIC,
			$21::NUMERIC, $22::NUMERIC, $23
		 )`,
		rec.ID, rec.ListingCode, rec.District, string(rec.Kind), rec.ConsultantID,
		rec.ListingOwnerID, rec.PartnerOffice,
		rec.BasePrice.String(), rec.TransactionDate, rec.Notes,
		rec.TotalExpenses.String(), rec.GrossCommission.String(),
		rec.BuyerCommissionRate.String(), rec.SellerCommissionRate.String(),
		rec.GrossProfit.String(), rec.PartnerShareAmount.String(), rec.PartnerShareRate.String(),
		rec.NetProfit.String(), rec.OfficeShareAmount.String(), rec.ConsultantPoolAmount.String(),
		ownerShare, rec.TransactingConsultantShareAmount.String(),
		rec.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetSettlement(ctx context.Context, id string) (*model.SettlementRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+settlementColumns+` FROM settlements WHERE id = $1`, id)

	rec, err := scanSettlement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get settlement %s: %w", id, err)
	}
	return rec, nil
}

func (s *PostgresStore) ListSettlements(ctx context.Context, listingCode string) ([]model.SettlementRecord, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements ORDER BY created_at DESC`
	args := []any{}
	if listingCode != "" {
		query = `SELECT ` + settlementColumns + ` FROM settlements
			 WHERE listing_code = $1 ORDER BY created_at DESC`
		args = append(args, listingCode)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSettlements(rows)
}

func (s *PostgresStore) ListSettlementsByConsultant(ctx context.Context, consultantID string) ([]model.SettlementRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+settlementColumns+` FROM settlements
		 WHERE consultant_id = $1 OR listing_owner_id = $1
		 ORDER BY created_at DESC`, consultantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSettlements(rows)
}

// GetConsultantEarnings loads the consultant's settlements and folds them
// with the same aggregation the in-memory store uses, so both backends
// report identical figures.
func (s *PostgresStore) GetConsultantEarnings(ctx context.Context, consultantID string) (*model.ConsultantEarnings, error) {
	recs, err := s.ListSettlementsByConsultant(ctx, consultantID)
	if err != nil {
		return nil, err
	}
	return aggregateEarnings(consultantID, recs), nil
}

// scanRow is satisfied by both pgx.Row and pgx.Rows.
type scanRow interface {
	Scan(dest ...any) error
}

func scanSettlement(row scanRow) (*model.SettlementRecord, error) {
	var rec model.SettlementRecord
	var kind string
	var basePrice, totalExpenses, grossCommission string
	var buyerRate, sellerRate string
	var grossProfit, partnerAmount, partnerRate string
	var netProfit, officeShare, pool, transactingShare string
	var ownerShare *string

	if err := row.Scan(
		&rec.ID, &rec.ListingCode, &rec.District, &kind, &rec.ConsultantID,
		&rec.ListingOwnerID, &rec.PartnerOffice,
		&basePrice, &rec.TransactionDate, &rec.Notes,
		&totalExpenses, &grossCommission,
		&buyerRate, &sellerRate,
		&grossProfit, &partnerAmount, &partnerRate,
		&netProfit, &officeShare, &pool,
		&ownerShare, &transactingShare,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}

	rec.Kind = settlement.Kind(kind)
	rec.BasePrice, _ = decimal.NewFromString(basePrice)
	rec.TotalExpenses, _ = decimal.NewFromString(totalExpenses)
	rec.GrossCommission, _ = decimal.NewFromString(grossCommission)
	rec.BuyerCommissionRate, _ = decimal.NewFromString(buyerRate)
	rec.SellerCommissionRate, _ = decimal.NewFromString(sellerRate)
	rec.GrossProfit, _ = decimal.NewFromString(grossProfit)
	rec.PartnerShareAmount, _ = decimal.NewFromString(partnerAmount)
	rec.PartnerShareRate, _ = decimal.NewFromString(partnerRate)
	rec.NetProfit, _ = decimal.NewFromString(netProfit)
	rec.OfficeShareAmount, _ = decimal.NewFromString(officeShare)
	rec.ConsultantPoolAmount, _ = decimal.NewFromString(pool)
	rec.TransactingConsultantShareAmount, _ = decimal.NewFromString(transactingShare)
	if ownerShare != nil {
		v, _ := decimal.NewFromString(*ownerShare)
		rec.ListingOwnerShareAmount = &v
	}

	return &rec, nil
}

func scanSettlements(rows pgx.Rows) ([]model.SettlementRecord, error) {
	var recs []model.SettlementRecord
	for rows.Next() {
		rec, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}
