package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TsveMotion/statsmaths/internal/domain/enums"
	"github.com/TsveMotion/statsmaths/internal/domain/model"
	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
	authsvc "github.com/TsveMotion/statsmaths/internal/services/auth"
	entsvc "github.com/TsveMotion/statsmaths/internal/services/entitlements"
	"github.com/TsveMotion/statsmaths/internal/transport/http/dto"
)

type downloadResourceStore struct {
	records map[string]postgres.ResourceRecord
}

func (s *downloadResourceStore) FindByID(_ context.Context, resourceID string) (postgres.ResourceRecord, error) {
	record, ok := s.records[resourceID]
	if !ok {
		return postgres.ResourceRecord{}, postgres.ErrResourceNotFound
	}
	return record, nil
}

type downloadPurchaseStore struct {
	records []postgres.PurchaseRecord
}

func (s *downloadPurchaseStore) FindCompleted(_ context.Context, identity model.BuyerIdentity, resourceID string) (postgres.PurchaseRecord, error) {
	for _, record := range s.records {
		if record.ResourceID != resourceID || record.Status != enums.PaymentStatusCompleted {
			continue
		}
		if identity.IsAccount() && record.UserID != nil && *record.UserID == identity.UserID {
			return record, nil
		}
		if identity.IsGuest() && record.GuestEmail != nil && *record.GuestEmail == identity.Email {
			return record, nil
		}
	}
	return postgres.PurchaseRecord{}, postgres.ErrPurchaseNotFound
}

func (s *downloadPurchaseStore) FindBySessionID(_ context.Context, sessionID string) (postgres.PurchaseRecord, error) {
	for _, record := range s.records {
		if record.ProviderSessionID != nil && *record.ProviderSessionID == sessionID {
			return record, nil
		}
	}
	return postgres.PurchaseRecord{}, postgres.ErrPurchaseNotFound
}

func (s *downloadPurchaseStore) ListByIdentity(_ context.Context, _ model.BuyerIdentity) ([]postgres.PurchaseRecord, error) {
	return s.records, nil
}

type downloadStorage struct{}

func (downloadStorage) EnsureBucket(_ context.Context) error { return nil }

func (downloadStorage) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://s3.test/signed/" + key, nil
}

func newDownloadHandlerForTest(purchases []postgres.PurchaseRecord) *DownloadHandler {
	fileKey := "resources/res-1.pdf"
	resources := &downloadResourceStore{records: map[string]postgres.ResourceRecord{
		"res-1": {ID: "res-1", Title: "GCSE Statistics Pack", FileKey: &fileKey},
	}}
	service := entsvc.NewService(resources, &downloadPurchaseStore{records: purchases}, downloadStorage{}, 15*time.Minute)
	return NewDownloadHandler(service, 15*time.Minute)
}

func downloadRequest(t *testing.T, handler *DownloadHandler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	router := chi.NewRouter()
	router.Get("/download/{resourceID}", handler.Get)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestDownloadForAccountBuyer(t *testing.T) {
	userID := int64(7)
	handler := newDownloadHandlerForTest([]postgres.PurchaseRecord{
		{ID: "p-1", UserID: &userID, ResourceID: "res-1", Status: enums.PaymentStatusCompleted},
	})

	req := httptest.NewRequest(http.MethodGet, "/download/res-1", nil)
	req = req.WithContext(authsvc.WithIdentity(req.Context(), authsvc.Identity{UserID: 7, SID: "sid", Role: "STUDENT"}))

	rr := downloadRequest(t, handler, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d, body=%s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var res dto.DownloadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.URL == "" || res.ExpiresInSec <= 0 {
		t.Fatalf("unexpected download response: %+v", res)
	}
}

func TestDownloadForGuestBuyerWithSession(t *testing.T) {
	email := "buyer@example.com"
	sessionID := "cs_test_guest"
	handler := newDownloadHandlerForTest([]postgres.PurchaseRecord{
		{ID: "p-1", GuestEmail: &email, ResourceID: "res-1", ProviderSessionID: &sessionID, Status: enums.PaymentStatusCompleted},
	})

	req := httptest.NewRequest(http.MethodGet, "/download/res-1?session=cs_test_guest", nil)
	rr := downloadRequest(t, handler, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d, body=%s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestDownloadWithoutPurchaseIsUniform404(t *testing.T) {
	email := "buyer@example.com"
	pendingSession := "cs_test_pending"
	handler := newDownloadHandlerForTest([]postgres.PurchaseRecord{
		{ID: "p-1", GuestEmail: &email, ResourceID: "res-1", ProviderSessionID: &pendingSession, Status: enums.PaymentStatusPending},
	})

	unowned := httptest.NewRequest(http.MethodGet, "/download/res-1", nil)
	unowned = unowned.WithContext(authsvc.WithIdentity(unowned.Context(), authsvc.Identity{UserID: 7}))
	unknown := httptest.NewRequest(http.MethodGet, "/download/res-ghost", nil)
	unknown = unknown.WithContext(authsvc.WithIdentity(unknown.Context(), authsvc.Identity{UserID: 7}))
	anonymous := httptest.NewRequest(http.MethodGet, "/download/res-1", nil)
	guessedEmail := httptest.NewRequest(http.MethodGet, "/download/res-1?guest_email=buyer@example.com", nil)
	unknownSession := httptest.NewRequest(http.MethodGet, "/download/res-1?session=cs_never_created", nil)
	unconfirmedSession := httptest.NewRequest(http.MethodGet, "/download/res-1?session=cs_test_pending", nil)

	for name, req := range map[string]*http.Request{
		"unowned resource":    unowned,
		"unknown resource":    unknown,
		"anonymous request":   anonymous,
		"guessed buyer email": guessedEmail,
		"unknown session":     unknownSession,
		"unconfirmed session": unconfirmedSession,
	} {
		rr := downloadRequest(t, handler, req)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: got %d want %d", name, rr.Code, http.StatusNotFound)
		}
	}
}
