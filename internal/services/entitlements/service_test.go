package entitlements_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/TsveMotion/statsmaths/internal/domain/enums"
	"github.com/TsveMotion/statsmaths/internal/domain/model"
	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
	entsvc "github.com/TsveMotion/statsmaths/internal/services/entitlements"
)

type stubResourceStore struct {
	resources map[string]postgres.ResourceRecord
}

func (s *stubResourceStore) FindByID(_ context.Context, resourceID string) (postgres.ResourceRecord, error) {
	resource, ok := s.resources[resourceID]
	if !ok {
		return postgres.ResourceRecord{}, postgres.ErrResourceNotFound
	}
	return resource, nil
}

type stubPurchaseStore struct {
	records []postgres.PurchaseRecord
}

func (s *stubPurchaseStore) FindCompleted(_ context.Context, identity model.BuyerIdentity, resourceID string) (postgres.PurchaseRecord, error) {
	for _, record := range s.records {
		if record.ResourceID != resourceID || record.Status != enums.PaymentStatusCompleted {
			continue
		}
		if matchesIdentity(record, identity) {
			return record, nil
		}
	}
	return postgres.PurchaseRecord{}, postgres.ErrPurchaseNotFound
}

func (s *stubPurchaseStore) FindBySessionID(_ context.Context, sessionID string) (postgres.PurchaseRecord, error) {
	for _, record := range s.records {
		if record.ProviderSessionID != nil && *record.ProviderSessionID == sessionID {
			return record, nil
		}
	}
	return postgres.PurchaseRecord{}, postgres.ErrPurchaseNotFound
}

func (s *stubPurchaseStore) ListByIdentity(_ context.Context, identity model.BuyerIdentity) ([]postgres.PurchaseRecord, error) {
	var out []postgres.PurchaseRecord
	for _, record := range s.records {
		if matchesIdentity(record, identity) && record.Status.Terminal() {
			out = append(out, record)
		}
	}
	return out, nil
}

func matchesIdentity(record postgres.PurchaseRecord, identity model.BuyerIdentity) bool {
	if identity.IsAccount() {
		return record.UserID != nil && *record.UserID == identity.UserID
	}
	return record.GuestEmail != nil && *record.GuestEmail == identity.Email
}

type fakeStorage struct {
	presigned int
}

func (f *fakeStorage) EnsureBucket(_ context.Context) error { return nil }

func (f *fakeStorage) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	f.presigned++
	return "https://s3.test/signed/" + key, nil
}

func fixture() (*entsvc.Service, *stubPurchaseStore, *fakeStorage) {
	fileKey := "resources/res-1.pdf"
	resources := &stubResourceStore{resources: map[string]postgres.ResourceRecord{
		"res-1":   {ID: "res-1", Title: "GCSE Statistics Pack", FileKey: &fileKey},
		"res-bad": {ID: "res-bad", Title: "No file yet"},
	}}
	purchases := &stubPurchaseStore{}
	storage := &fakeStorage{}
	svc := entsvc.NewService(resources, purchases, storage, 15*time.Minute)
	return svc, purchases, storage
}

func completedRecord(identity model.BuyerIdentity, resourceID string) postgres.PurchaseRecord {
	record := postgres.PurchaseRecord{
		ID:          "p-" + resourceID,
		ResourceID:  resourceID,
		AmountMinor: 1299,
		Currency:    "GBP",
		Status:      enums.PaymentStatusCompleted,
		CreatedAt:   time.Now().UTC(),
	}
	if identity.IsAccount() {
		uid := identity.UserID
		record.UserID = &uid
	} else {
		email := identity.Email
		record.GuestEmail = &email
	}
	return record
}

func TestDownloadURLForOwner(t *testing.T) {
	svc, purchases, storage := fixture()
	identity := model.AccountIdentity(7)
	purchases.records = append(purchases.records, completedRecord(identity, "res-1"))

	url, err := svc.DownloadURL(context.Background(), identity, "res-1")
	if err != nil {
		t.Fatalf("download url: %v", err)
	}
	if url == "" || storage.presigned != 1 {
		t.Fatalf("expected one presigned url, got %q (presigned=%d)", url, storage.presigned)
	}
}

func TestDownloadURLForGuestBuyer(t *testing.T) {
	svc, purchases, _ := fixture()
	identity := model.GuestIdentity("buyer@example.com", "Buyer")
	purchases.records = append(purchases.records, completedRecord(identity, "res-1"))

	if _, err := svc.DownloadURL(context.Background(), identity, "res-1"); err != nil {
		t.Fatalf("guest download url: %v", err)
	}
}

func TestDownloadURLForSession(t *testing.T) {
	svc, purchases, storage := fixture()
	identity := model.GuestIdentity("buyer@example.com", "Buyer")
	record := completedRecord(identity, "res-1")
	sessionID := "cs_test_guest"
	record.ProviderSessionID = &sessionID
	purchases.records = append(purchases.records, record)

	url, err := svc.DownloadURLForSession(context.Background(), sessionID, "res-1")
	if err != nil {
		t.Fatalf("session download url: %v", err)
	}
	if url == "" || storage.presigned != 1 {
		t.Fatalf("expected one presigned url, got %q (presigned=%d)", url, storage.presigned)
	}
}

func TestDownloadURLForSessionGateFailures(t *testing.T) {
	svc, purchases, storage := fixture()
	identity := model.GuestIdentity("buyer@example.com", "Buyer")

	pending := completedRecord(identity, "res-1")
	pending.Status = enums.PaymentStatusPending
	pendingSession := "cs_test_pending"
	pending.ProviderSessionID = &pendingSession

	owned := completedRecord(identity, "res-bad")
	ownedSession := "cs_test_other"
	owned.ProviderSessionID = &ownedSession

	purchases.records = append(purchases.records, pending, owned)

	cases := map[string][2]string{
		"unknown session":      {"cs_never_created", "res-1"},
		"unconfirmed purchase": {pendingSession, "res-1"},
		"session for another":  {ownedSession, "res-1"},
		"empty session":        {"", "res-1"},
	}
	for name, c := range cases {
		if _, err := svc.DownloadURLForSession(context.Background(), c[0], c[1]); !errors.Is(err, entsvc.ErrForbidden) {
			t.Fatalf("%s: expected ErrForbidden, got %v", name, err)
		}
	}
	if storage.presigned != 0 {
		t.Fatalf("gate failures must never touch storage")
	}
}

func TestDownloadURLWithoutPurchase(t *testing.T) {
	svc, _, storage := fixture()

	_, err := svc.DownloadURL(context.Background(), model.AccountIdentity(7), "res-1")
	if !errors.Is(err, entsvc.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if storage.presigned != 0 {
		t.Fatalf("unowned download must never touch storage")
	}
}

func TestDownloadURLUnknownResourceLooksLikeForbidden(t *testing.T) {
	svc, _, _ := fixture()

	_, err := svc.DownloadURL(context.Background(), model.AccountIdentity(7), "res-missing")
	if !errors.Is(err, entsvc.ErrForbidden) {
		t.Fatalf("unknown resource must be indistinguishable from unowned, got %v", err)
	}
}

func TestDownloadURLRefundedPurchase(t *testing.T) {
	svc, purchases, _ := fixture()
	identity := model.AccountIdentity(7)
	record := completedRecord(identity, "res-1")
	record.Status = enums.PaymentStatusRefunded
	purchases.records = append(purchases.records, record)

	if _, err := svc.DownloadURL(context.Background(), identity, "res-1"); !errors.Is(err, entsvc.ErrForbidden) {
		t.Fatalf("refunded purchase must not grant downloads, got %v", err)
	}
}

func TestDownloadURLMissingFile(t *testing.T) {
	svc, purchases, _ := fixture()
	identity := model.AccountIdentity(7)
	purchases.records = append(purchases.records, completedRecord(identity, "res-bad"))

	if _, err := svc.DownloadURL(context.Background(), identity, "res-bad"); !errors.Is(err, entsvc.ErrFileMissing) {
		t.Fatalf("expected ErrFileMissing, got %v", err)
	}
}

func TestListPurchasesResolvesTitles(t *testing.T) {
	svc, purchases, _ := fixture()
	identity := model.AccountIdentity(7)
	purchases.records = append(purchases.records, completedRecord(identity, "res-1"))

	list, err := svc.ListPurchases(context.Background(), identity)
	if err != nil {
		t.Fatalf("list purchases: %v", err)
	}
	if len(list) != 1 || list[0].Title != "GCSE Statistics Pack" {
		t.Fatalf("unexpected purchase list: %+v", list)
	}
}

func TestOwnedResourceIDsSkipsRefunds(t *testing.T) {
	svc, purchases, _ := fixture()
	identity := model.AccountIdentity(7)
	owned := completedRecord(identity, "res-1")
	refunded := completedRecord(identity, "res-bad")
	refunded.Status = enums.PaymentStatusRefunded
	purchases.records = append(purchases.records, owned, refunded)

	ids, err := svc.OwnedResourceIDs(context.Background(), identity)
	if err != nil {
		t.Fatalf("owned resource ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != "res-1" {
		t.Fatalf("expected only completed purchases, got %v", ids)
	}
}
