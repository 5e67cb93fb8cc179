package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TsveMotion/statsmaths/internal/domain/enums"
	"github.com/TsveMotion/statsmaths/internal/domain/model"
	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
	checkoutsvc "github.com/TsveMotion/statsmaths/internal/services/checkout"
)

type webhookPurchaseStore struct {
	records map[string]*postgres.PurchaseRecord
}

func (s *webhookPurchaseStore) CreateIntent(_ context.Context, _ model.BuyerIdentity, _ string, _ int64, _ string) (postgres.PurchaseRecord, error) {
	return postgres.PurchaseRecord{}, fmt.Errorf("not used in webhook tests")
}

func (s *webhookPurchaseStore) BindProviderSession(_ context.Context, _, _ string) error {
	return fmt.Errorf("not used in webhook tests")
}

func (s *webhookPurchaseStore) FindBySessionID(_ context.Context, sessionID string) (postgres.PurchaseRecord, error) {
	for _, record := range s.records {
		if record.ProviderSessionID != nil && *record.ProviderSessionID == sessionID {
			return *record, nil
		}
	}
	return postgres.PurchaseRecord{}, postgres.ErrPurchaseNotFound
}

func (s *webhookPurchaseStore) FindCompleted(_ context.Context, _ model.BuyerIdentity, _ string) (postgres.PurchaseRecord, error) {
	return postgres.PurchaseRecord{}, postgres.ErrPurchaseNotFound
}

func (s *webhookPurchaseStore) MarkCompleted(_ context.Context, purchaseID, paymentID string) (postgres.PurchaseRecord, bool, error) {
	record, ok := s.records[purchaseID]
	if !ok {
		return postgres.PurchaseRecord{}, false, postgres.ErrPurchaseNotFound
	}
	if record.Status.Terminal() {
		return *record, false, nil
	}
	record.Status = enums.PaymentStatusCompleted
	record.ProviderPaymentID = &paymentID
	return *record, true, nil
}

func (s *webhookPurchaseStore) MarkFailed(_ context.Context, purchaseID string) (postgres.PurchaseRecord, bool, error) {
	record, ok := s.records[purchaseID]
	if !ok {
		return postgres.PurchaseRecord{}, false, postgres.ErrPurchaseNotFound
	}
	if record.Status.Terminal() {
		return *record, false, nil
	}
	record.Status = enums.PaymentStatusFailed
	return *record, true, nil
}

func (s *webhookPurchaseStore) MarkRefundedByPayment(_ context.Context, _ string) (postgres.PurchaseRecord, bool, error) {
	return postgres.PurchaseRecord{}, false, postgres.ErrPurchaseNotFound
}

type webhookEventStore struct {
	seen      map[string]bool
	processed map[string]bool
}

func (s *webhookEventStore) InsertIfAbsent(_ context.Context, provider, eventID, _ string, _ []byte) (bool, error) {
	key := provider + ":" + eventID
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *webhookEventStore) IsProcessed(_ context.Context, provider, eventID string) (bool, error) {
	return s.processed[provider+":"+eventID], nil
}

func (s *webhookEventStore) MarkProcessed(_ context.Context, provider, eventID, _ string) error {
	if s.processed == nil {
		s.processed = map[string]bool{}
	}
	s.processed[provider+":"+eventID] = true
	return nil
}

type stubVerifier struct {
	event checkoutsvc.ConfirmationEvent
	err   error
}

func (s *stubVerifier) VerifyAndParseEvent(_ []byte, _ string) (checkoutsvc.ConfirmationEvent, error) {
	return s.event, s.err
}

func newWebhookFixture(verifier *stubVerifier) (*WebhookHandler, *webhookPurchaseStore) {
	sessionID := "cs_test_1"
	userID := int64(7)
	purchases := &webhookPurchaseStore{records: map[string]*postgres.PurchaseRecord{
		"purchase-1": {
			ID:                "purchase-1",
			UserID:            &userID,
			ResourceID:        "res-1",
			AmountMinor:       1299,
			Currency:          "GBP",
			Status:            enums.PaymentStatusPending,
			ProviderSessionID: &sessionID,
		},
	}}
	service := checkoutsvc.NewService(nil, purchases, nil, &webhookEventStore{seen: map[string]bool{}}, nil, nil, nil)
	return NewWebhookHandler(verifier, service, nil), purchases
}

func postWebhook(handler *WebhookHandler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader("{}"))
	req.Header.Set("Stripe-Signature", "t=1,v1=sig")
	rr := httptest.NewRecorder()
	handler.Stripe(rr, req)
	return rr
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	handler, _ := newWebhookFixture(&stubVerifier{err: checkoutsvc.ErrInvalidSignature})

	rr := postWebhook(handler)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestWebhookCompletesPurchase(t *testing.T) {
	handler, purchases := newWebhookFixture(&stubVerifier{event: checkoutsvc.ConfirmationEvent{
		EventID:     "evt-1",
		Type:        checkoutsvc.EventCompleted,
		SessionID:   "cs_test_1",
		PaymentID:   "pi_1",
		AmountMinor: 1299,
		Currency:    "GBP",
	}})

	rr := postWebhook(handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d want %d, body=%s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if purchases.records["purchase-1"].Status != enums.PaymentStatusCompleted {
		t.Fatalf("expected purchase completed, got %s", purchases.records["purchase-1"].Status)
	}
}

func TestWebhookUnknownSessionIs400(t *testing.T) {
	handler, _ := newWebhookFixture(&stubVerifier{event: checkoutsvc.ConfirmationEvent{
		EventID:     "evt-2",
		Type:        checkoutsvc.EventCompleted,
		SessionID:   "cs_never_created",
		AmountMinor: 1299,
		Currency:    "GBP",
	}})

	rr := postWebhook(handler)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestWebhookAmountMismatchIsAcked(t *testing.T) {
	handler, purchases := newWebhookFixture(&stubVerifier{event: checkoutsvc.ConfirmationEvent{
		EventID:     "evt-3",
		Type:        checkoutsvc.EventCompleted,
		SessionID:   "cs_test_1",
		PaymentID:   "pi_3",
		AmountMinor: 1,
		Currency:    "GBP",
	}})

	rr := postWebhook(handler)
	if rr.Code != http.StatusOK {
		t.Fatalf("mismatch must be acked with 2xx, got %d", rr.Code)
	}
	if purchases.records["purchase-1"].Status == enums.PaymentStatusCompleted {
		t.Fatalf("mismatched event must not complete the purchase")
	}
}
