package settle_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/teorey80/emlak-crm-pro-sub001/internal/listing"
	"github.com/teorey80/emlak-crm-pro-sub001/internal/model"
	"github.com/teorey80/emlak-crm-pro-sub001/internal/policy"
	"github.com/teorey80/emlak-crm-pro-sub001/internal/settle"
	"github.com/teorey80/emlak-crm-pro-sub001/internal/settlement"
	"github.com/teorey80/emlak-crm-pro-sub001/internal/store"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// newTestEnv creates a test Service with in-memory store and chi router.
func newTestEnv(t *testing.T) (*settle.Service, *store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	advisor := policy.NewAdvisor(d(50), d(200))
	svc := settle.NewService(ms, advisor, nil)

	r := chi.NewRouter()
	r.Post("/api/v1/settlements/preview", svc.PreviewSettlement)
	r.Post("/api/v1/settlements", svc.CreateSettlement)
	r.Get("/api/v1/settlements", svc.ListSettlements)
	r.Get("/api/v1/settlements/{settlementID}", svc.GetSettlement)
	r.Get("/api/v1/consultants/{consultantID}/settlements", svc.ListConsultantSettlements)
	r.Get("/api/v1/consultants/{consultantID}/summary", svc.GetConsultantSummary)
	r.Post("/api/v1/listings/suggest-rate", svc.SuggestRate)

	return svc, ms, r
}

func doPost(t *testing.T, router chi.Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest("POST", path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func doGet(t *testing.T, router chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func saleRequest() settle.SettlementRequest {
	return settle.SettlementRequest{
		ListingCode:        "EMLK-KADIKOY-SALE-10482-20250812",
		ConsultantID:       "c-100",
		BasePrice:          d(1_000_000),
		BuyerSideAmount:    d(20_000),
		SellerSideAmount:   d(10_000),
		Expenses:           []settlement.ExpenseItem{{ID: "e1", Type: "notary", Amount: d(2_000)}},
		OfficeSharePercent: d(50),
	}
}

// --- Preview tests ---

func TestPreviewSettlement_SaleSimpleSplit(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/settlements/preview", saleRequest())
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp settle.PreviewResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Kind != settlement.KindSale {
		t.Errorf("expected SALE kind from listing code, got %s", resp.Kind)
	}
	if resp.District != "KADIKOY" {
		t.Errorf("expected district KADIKOY, got %s", resp.District)
	}
	if !resp.Result.GrossCommission.Equal(d(30_000)) {
		t.Errorf("expected gross 30000, got %s", resp.Result.GrossCommission)
	}
	if !resp.Result.NetProfit.Equal(d(28_000)) {
		t.Errorf("expected net 28000, got %s", resp.Result.NetProfit)
	}
	if !resp.Result.OfficeShareAmount.Equal(d(14_000)) {
		t.Errorf("expected office 14000, got %s", resp.Result.OfficeShareAmount)
	}
	if len(resp.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", resp.Warnings)
	}
}

func TestPreviewSettlement_NotPersisted(t *testing.T) {
	_, ms, router := newTestEnv(t)

	doPost(t, router, "/api/v1/settlements/preview", saleRequest())

	recs, _ := ms.ListSettlements(context.Background(), "")
	if len(recs) != 0 {
		t.Errorf("preview must not persist, found %d records", len(recs))
	}
}

func TestPreviewSettlement_WarnsOnHighRate(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := saleRequest()
	req.BasePrice = d(10_000)
	req.BuyerSideAmount = d(6_000) // 60% of price
	req.SellerSideAmount = decimal.Zero
	req.Expenses = nil

	w := doPost(t, router, "/api/v1/settlements/preview", req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp settle.PreviewResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if len(resp.Warnings) == 0 {
		t.Fatal("expected a high-rate warning")
	}
	if resp.Warnings[0].Code != policy.CodeHighCommissionRate {
		t.Errorf("expected HIGH_COMMISSION_RATE, got %s", resp.Warnings[0].Code)
	}
}

func TestPreviewSettlement_InvalidListingCode(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := saleRequest()
	req.ListingCode = "NOT-A-CODE"

	w := doPost(t, router, "/api/v1/settlements/preview", req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid listing code, got %d", w.Code)
	}
}

func TestPreviewSettlement_MissingConsultant(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := saleRequest()
	req.ConsultantID = ""

	w := doPost(t, router, "/api/v1/settlements/preview", req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing consultant_id, got %d", w.Code)
	}
}

func TestPreviewSettlement_EngineValidationRejected(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := saleRequest()
	req.Expenses = []settlement.ExpenseItem{{ID: "bad", Amount: d(-1)}}

	w := doPost(t, router, "/api/v1/settlements/preview", req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative expense, got %d: %s", w.Code, w.Body.String())
	}
}

// --- Recording tests ---

func TestCreateSettlement_PersistsRecord(t *testing.T) {
	_, ms, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/settlements", saleRequest())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp settle.RecordResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Settlement.ID == "" {
		t.Error("expected non-empty settlement id")
	}
	if resp.Settlement.District != "KADIKOY" {
		t.Errorf("expected district KADIKOY, got %s", resp.Settlement.District)
	}
	if resp.Settlement.Kind != settlement.KindSale {
		t.Errorf("expected SALE kind, got %s", resp.Settlement.Kind)
	}
	if resp.Settlement.CreatedAt.IsZero() {
		t.Error("expected non-zero created_at")
	}

	stored, err := ms.GetSettlement(context.Background(), resp.Settlement.ID)
	if err != nil {
		t.Fatalf("record not found in store: %v", err)
	}
	if !stored.NetProfit.Equal(d(28_000)) {
		t.Errorf("expected stored net 28000, got %s", stored.NetProfit)
	}
}

func TestCreateSettlement_RentalCrossConsultant(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := settle.SettlementRequest{
		ListingCode:        "EMLK-BESIKTAS-RENT-77-20250101",
		ConsultantID:       "c-closer",
		TransactionDate:    time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC),
		BasePrice:          d(20_000),
		RentalRatePercent:  d(100),
		OfficeSharePercent: d(50),
		CrossConsultant: &settlement.CrossConsultantSplit{
			ListingOwnerID:    "c-owner",
			OwnerSharePercent: d(30),
		},
	}

	w := doPost(t, router, "/api/v1/settlements", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp settle.RecordResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	rec := resp.Settlement
	if rec.Kind != settlement.KindRental {
		t.Errorf("expected RENTAL kind, got %s", rec.Kind)
	}
	if rec.ListingOwnerID != "c-owner" {
		t.Errorf("expected listing owner c-owner, got %s", rec.ListingOwnerID)
	}
	if rec.ListingOwnerShareAmount == nil || !rec.ListingOwnerShareAmount.Equal(d(3_000)) {
		t.Errorf("expected owner share 3000, got %v", rec.ListingOwnerShareAmount)
	}
	if !rec.TransactingConsultantShareAmount.Equal(d(7_000)) {
		t.Errorf("expected transacting share 7000, got %s", rec.TransactingConsultantShareAmount)
	}
	if !rec.TransactionDate.Equal(time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("transaction date not passed through, got %s", rec.TransactionDate)
	}
}

func TestCreateSettlement_PartnerOfficeStored(t *testing.T) {
	_, _, router := newTestEnv(t)

	req := saleRequest()
	req.PartnerOffice = &settlement.PartnerOfficeSplit{
		OfficeName:  "Anatolia Estates",
		ShareBasis:  settlement.BasisTotalCommission,
		ShareAmount: d(6_000),
	}

	w := doPost(t, router, "/api/v1/settlements", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp settle.RecordResponse
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.Settlement.PartnerOffice != "Anatolia Estates" {
		t.Errorf("expected partner office name stored, got %q", resp.Settlement.PartnerOffice)
	}
	if !resp.Settlement.PartnerShareRate.Equal(d(20)) {
		t.Errorf("expected partner rate 20, got %s", resp.Settlement.PartnerShareRate)
	}
	// Deducted before the internal split: net = 30000 - 2000 - 6000.
	if !resp.Settlement.NetProfit.Equal(d(22_000)) {
		t.Errorf("expected net 22000, got %s", resp.Settlement.NetProfit)
	}
}

// --- Query tests ---

func TestGetSettlement_NotFound(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doGet(t, router, "/api/v1/settlements/no-such-id")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestListSettlements_FilterByListing(t *testing.T) {
	_, _, router := newTestEnv(t)

	doPost(t, router, "/api/v1/settlements", saleRequest())

	other := saleRequest()
	other.ListingCode = "EMLK-MODA-SALE-555-20250601"
	doPost(t, router, "/api/v1/settlements", other)

	w := doGet(t, router, "/api/v1/settlements?listing_code=EMLK-MODA-SALE-555-20250601")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var recs []model.SettlementRecord
	json.Unmarshal(w.Body.Bytes(), &recs)

	if len(recs) != 1 {
		t.Fatalf("expected 1 filtered record, got %d", len(recs))
	}
	if recs[0].ListingCode != "EMLK-MODA-SALE-555-20250601" {
		t.Errorf("unexpected listing code %s", recs[0].ListingCode)
	}
}

func TestListConsultantSettlements_IncludesOwnerSide(t *testing.T) {
	_, _, router := newTestEnv(t)

	// c-owner appears only as listing owner on this settlement.
	req := settle.SettlementRequest{
		ListingCode:        "EMLK-BESIKTAS-RENT-77-20250101",
		ConsultantID:       "c-closer",
		BasePrice:          d(20_000),
		RentalRatePercent:  d(100),
		OfficeSharePercent: d(50),
		CrossConsultant: &settlement.CrossConsultantSplit{
			ListingOwnerID:    "c-owner",
			OwnerSharePercent: d(30),
		},
	}
	doPost(t, router, "/api/v1/settlements", req)

	w := doGet(t, router, "/api/v1/consultants/c-owner/settlements")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var recs []model.SettlementRecord
	json.Unmarshal(w.Body.Bytes(), &recs)

	if len(recs) != 1 {
		t.Fatalf("expected 1 record for listing owner, got %d", len(recs))
	}
}

func TestGetConsultantSummary_BothSides(t *testing.T) {
	_, _, router := newTestEnv(t)

	// c-100 closes a sale (transacting share 14000)...
	doPost(t, router, "/api/v1/settlements", saleRequest())

	// ...and owns the listing on a rental closed by someone else
	// (owner share 3000).
	rental := settle.SettlementRequest{
		ListingCode:        "EMLK-BESIKTAS-RENT-77-20250101",
		ConsultantID:       "c-closer",
		BasePrice:          d(20_000),
		RentalRatePercent:  d(100),
		OfficeSharePercent: d(50),
		CrossConsultant: &settlement.CrossConsultantSplit{
			ListingOwnerID:    "c-100",
			OwnerSharePercent: d(30),
		},
	}
	doPost(t, router, "/api/v1/settlements", rental)

	w := doGet(t, router, "/api/v1/consultants/c-100/summary")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var earnings model.ConsultantEarnings
	json.Unmarshal(w.Body.Bytes(), &earnings)

	if earnings.SettlementCount != 2 {
		t.Errorf("expected 2 settlements, got %d", earnings.SettlementCount)
	}
	if !earnings.TransactingTotal.Equal(d(14_000)) {
		t.Errorf("expected transacting total 14000, got %s", earnings.TransactingTotal)
	}
	if !earnings.ListingOwnerTotal.Equal(d(3_000)) {
		t.Errorf("expected owner total 3000, got %s", earnings.ListingOwnerTotal)
	}
	if !earnings.TotalEarnings.Equal(d(17_000)) {
		t.Errorf("expected total 17000, got %s", earnings.TotalEarnings)
	}
	if !earnings.EarningsByDistrict["KADIKOY"].Equal(d(14_000)) {
		t.Errorf("expected 14000 in KADIKOY, got %s", earnings.EarningsByDistrict["KADIKOY"])
	}
	if !earnings.EarningsByDistrict["BESIKTAS"].Equal(d(3_000)) {
		t.Errorf("expected 3000 in BESIKTAS, got %s", earnings.EarningsByDistrict["BESIKTAS"])
	}
}

func TestGetConsultantSummary_Empty(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doGet(t, router, "/api/v1/consultants/nobody/summary")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var earnings model.ConsultantEarnings
	json.Unmarshal(w.Body.Bytes(), &earnings)

	if earnings.SettlementCount != 0 {
		t.Errorf("expected 0 settlements, got %d", earnings.SettlementCount)
	}
	if !earnings.TotalEarnings.IsZero() {
		t.Errorf("expected zero earnings, got %s", earnings.TotalEarnings)
	}
}

// --- Rate suggestion ---

func TestSuggestRate_Valid(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/listings/suggest-rate", settle.SuggestRateRequest{
		ListingCode: "EMLK-KADIKOY-SALE-10482-20250812",
		Comparables: listing.ComparableRates{
			Percentile25: d(2), Percentile50: d(3), Percentile75: d(4),
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		District      string          `json:"district"`
		SuggestedRate decimal.Decimal `json:"suggested_rate"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)

	if resp.District != "KADIKOY" {
		t.Errorf("expected district KADIKOY, got %s", resp.District)
	}
	if resp.SuggestedRate.LessThan(d(3)) {
		t.Errorf("suggestion should not drop below the median, got %s", resp.SuggestedRate)
	}
}

func TestSuggestRate_InvalidCode(t *testing.T) {
	_, _, router := newTestEnv(t)

	w := doPost(t, router, "/api/v1/listings/suggest-rate", settle.SuggestRateRequest{
		ListingCode: "BAD",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}
