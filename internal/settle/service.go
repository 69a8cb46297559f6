// Package settle provides the HTTP handlers and business logic for
// computing, recording, and querying transaction settlements.
//
// All monetary values use shopspring/decimal — never float64 for money.
package settle

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/teorey80/emlak-crm-pro-sub001/internal/listing"
	"github.com/teorey80/emlak-crm-pro-sub001/internal/metrics"
	"github.com/teorey80/emlak-crm-pro-sub001/internal/model"
	"github.com/teorey80/emlak-crm-pro-sub001/internal/policy"
	"github.com/teorey80/emlak-crm-pro-sub001/internal/settlement"
	"github.com/teorey80/emlak-crm-pro-sub001/internal/store"
)

// Service handles settlement operations. The engine itself is stateless
// and the record store is append-only, so no execution lock is needed;
// concurrent requests for different transactions never interfere.
type Service struct {
	store   store.Store
	advisor *policy.Advisor
	wsHub   *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new settlement service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, advisor *policy.Advisor, hub *WSHub) *Service {
	return &Service{
		store:   st,
		advisor: advisor,
		wsHub:   hub,
	}
}

// --- Request/Response types ---

// SettlementRequest is the JSON body for settlement preview and recording.
// The transaction kind is derived from the listing code, never entered
// separately. Commission amounts are entered in currency; all percentage
// fields in the response are derived.
type SettlementRequest struct {
	ListingCode        string                           `json:"listing_code"` // EMLK-{district}-{SALE|RENT}-{portfolioNo}-{YYYYMMDD}
	ConsultantID       string                           `json:"consultant_id"`
	TransactionDate    time.Time                        `json:"transaction_date"`
	Notes              string                           `json:"notes,omitempty"`
	BasePrice          decimal.Decimal                  `json:"base_price"`
	BuyerSideAmount    decimal.Decimal                  `json:"buyer_side_amount"`
	SellerSideAmount   decimal.Decimal                  `json:"seller_side_amount"`
	RentalRatePercent  decimal.Decimal                  `json:"rental_rate_percent"`
	Expenses           []settlement.ExpenseItem         `json:"expenses"`
	PartnerOffice      *settlement.PartnerOfficeSplit   `json:"partner_office,omitempty"`
	CrossConsultant    *settlement.CrossConsultantSplit `json:"cross_consultant,omitempty"`
	OfficeSharePercent decimal.Decimal                  `json:"office_share_percent"`
}

// PreviewResponse is the JSON body returned from POST /settlements/preview.
type PreviewResponse struct {
	ListingCode string             `json:"listing_code"`
	District    string             `json:"district"`
	Kind        settlement.Kind    `json:"kind"`
	Result      *settlement.Result `json:"result"`
	Warnings    []policy.Warning   `json:"warnings,omitempty"`
}

// RecordResponse is the JSON body returned from POST /settlements.
type RecordResponse struct {
	Settlement *model.SettlementRecord `json:"settlement"`
	Warnings   []policy.Warning        `json:"warnings,omitempty"`
}

// SuggestRateRequest is the JSON body for POST /listings/suggest-rate.
type SuggestRateRequest struct {
	ListingCode string                  `json:"listing_code"`
	Comparables listing.ComparableRates `json:"comparables"`
}

// --- Internal helpers ---

// resolveRequest validates the request envelope and parses the listing code.
func resolveRequest(req *SettlementRequest) (*listing.Listing, error) {
	if req.ConsultantID == "" {
		return nil, errors.New("consultant_id is required")
	}
	l, err := listing.ParseCode(req.ListingCode)
	if err != nil {
		return nil, err
	}
	if req.CrossConsultant != nil {
		if req.CrossConsultant.ListingOwnerID == "" {
			return nil, errors.New("cross_consultant.listing_owner_id is required")
		}
		if req.CrossConsultant.TransactingConsultantID == "" {
			req.CrossConsultant.TransactingConsultantID = req.ConsultantID
		}
	}
	return l, nil
}

// computeAndAdvise runs the engine and the advisory policy, recording
// compute metrics. Engine errors are validation failures.
func (s *Service) computeAndAdvise(kind settlement.Kind, req *SettlementRequest, mode string) (*settlement.Result, []policy.Warning, error) {
	input := settlement.TransactionInput{
		Kind:               kind,
		BasePrice:          req.BasePrice,
		BuyerSideAmount:    req.BuyerSideAmount,
		SellerSideAmount:   req.SellerSideAmount,
		RentalRatePercent:  req.RentalRatePercent,
		Expenses:           req.Expenses,
		PartnerOffice:      req.PartnerOffice,
		CrossConsultant:    req.CrossConsultant,
		OfficeSharePercent: req.OfficeSharePercent,
	}

	start := time.Now()
	result, err := settlement.Compute(input)
	metrics.ComputeLatency.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ValidationRejections.Inc()
		return nil, nil, err
	}
	metrics.SettlementsTotal.WithLabelValues(string(kind), mode).Inc()

	warnings := s.advisor.Check(input, result)
	for _, w := range warnings {
		metrics.AdvisoryWarnings.WithLabelValues(w.Code).Inc()
	}
	return result, warnings, nil
}

// --- HTTP Handlers ---

// PreviewSettlement handles POST /api/v1/settlements/preview
// Computes a settlement without persisting it. The form layer calls this
// on every input change and replaces its previous preview with the result.
func (s *Service) PreviewSettlement(w http.ResponseWriter, r *http.Request) {
	var req SettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	l, err := resolveRequest(&req)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, warnings, err := s.computeAndAdvise(l.Kind, &req, "preview")
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PreviewResponse{
		ListingCode: l.Code,
		District:    l.District,
		Kind:        l.Kind,
		Result:      result,
		Warnings:    warnings,
	})
}

// CreateSettlement handles POST /api/v1/settlements
// Computes a settlement, persists it as an immutable record, and
// broadcasts it to connected dashboard clients.
func (s *Service) CreateSettlement(w http.ResponseWriter, r *http.Request) {
	var req SettlementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	l, err := resolveRequest(&req)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, warnings, err := s.computeAndAdvise(l.Kind, &req, "recorded")
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	txnDate := req.TransactionDate
	if txnDate.IsZero() {
		txnDate = time.Now().UTC()
	}

	rec := &model.SettlementRecord{
		ID:              uuid.New().String(),
		ListingCode:     l.Code,
		District:        l.District,
		Kind:            l.Kind,
		ConsultantID:    req.ConsultantID,
		BasePrice:       req.BasePrice,
		TransactionDate: txnDate,
		Notes:           req.Notes,
		Result:          *result,
		CreatedAt:       time.Now().UTC(),
	}
	if req.CrossConsultant != nil {
		rec.ListingOwnerID = req.CrossConsultant.ListingOwnerID
	}
	if req.PartnerOffice != nil {
		rec.PartnerOffice = req.PartnerOffice.OfficeName
	}

	ctx := r.Context()
	if err := s.store.InsertSettlement(ctx, rec); err != nil {
		writeError(w, "failed to record settlement", http.StatusInternalServerError)
		return
	}

	if result.NetProfit.IsNegative() {
		metrics.LossSettlements.Inc()
	}

	slog.Info("settlement recorded",
		"id", rec.ID,
		"listing", rec.ListingCode,
		"kind", string(rec.Kind),
		"consultant", rec.ConsultantID,
		"gross_commission", result.GrossCommission.String(),
		"net_profit", result.NetProfit.String(),
		"warnings", len(warnings),
	)

	// Broadcast to dashboard clients.
	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:         "settlement_recorded",
			SettlementID: rec.ID,
			ListingCode:  rec.ListingCode,
			District:     rec.District,
			Kind:         string(rec.Kind),
			ConsultantID: rec.ConsultantID,
			NetProfit:    result.NetProfit.String(),
			GrossProfit:  result.GrossProfit.String(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(RecordResponse{
		Settlement: rec,
		Warnings:   warnings,
	})
}

// GetSettlement handles GET /api/v1/settlements/{settlementID}
func (s *Service) GetSettlement(w http.ResponseWriter, r *http.Request) {
	settlementID := chi.URLParam(r, "settlementID")

	rec, err := s.store.GetSettlement(r.Context(), settlementID)
	if err != nil {
		writeError(w, "settlement not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rec)
}

// ListSettlements handles GET /api/v1/settlements
// Returns all settlements, optionally filtered by ?listing_code=<code>.
func (s *Service) ListSettlements(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.ListSettlements(r.Context(), r.URL.Query().Get("listing_code"))
	if err != nil {
		writeError(w, "failed to list settlements", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []model.SettlementRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

// ListConsultantSettlements handles GET /api/v1/consultants/{consultantID}/settlements
// Returns every settlement the consultant was involved in, on either side.
func (s *Service) ListConsultantSettlements(w http.ResponseWriter, r *http.Request) {
	consultantID := chi.URLParam(r, "consultantID")

	recs, err := s.store.ListSettlementsByConsultant(r.Context(), consultantID)
	if err != nil {
		writeError(w, "failed to list settlements", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []model.SettlementRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

// GetConsultantSummary handles GET /api/v1/consultants/{consultantID}/summary
// Returns aggregate earnings across both transacting and listing-owner sides.
func (s *Service) GetConsultantSummary(w http.ResponseWriter, r *http.Request) {
	consultantID := chi.URLParam(r, "consultantID")

	earnings, err := s.store.GetConsultantEarnings(r.Context(), consultantID)
	if err != nil {
		writeError(w, "failed to load earnings", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(earnings)
}

// SuggestRate handles POST /api/v1/listings/suggest-rate
// Derives a suggested commission rate from comparable closed transactions.
// The suggestion pre-fills the form and is advisory only.
func (s *Service) SuggestRate(w http.ResponseWriter, r *http.Request) {
	var req SuggestRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	l, err := listing.ParseCode(req.ListingCode)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rate, err := listing.SuggestCommissionRate(req.Comparables)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"listing_code":   l.Code,
		"district":       l.District,
		"kind":           l.Kind,
		"suggested_rate": rate,
	})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
