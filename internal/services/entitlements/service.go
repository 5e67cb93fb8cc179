package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TsveMotion/statsmaths/internal/domain/enums"
	"github.com/TsveMotion/statsmaths/internal/domain/model"
	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
)

var (
	ErrValidation = errors.New("validation error")
	// ErrForbidden covers every download gate failure: no such resource,
	// no completed purchase, refunded purchase. Callers must not
	// distinguish them to the outside.
	ErrForbidden   = errors.New("download not available")
	ErrFileMissing = errors.New("resource has no file")
)

type ResourceStore interface {
	FindByID(ctx context.Context, resourceID string) (postgres.ResourceRecord, error)
}

type PurchaseStore interface {
	FindCompleted(ctx context.Context, identity model.BuyerIdentity, resourceID string) (postgres.PurchaseRecord, error)
	FindBySessionID(ctx context.Context, sessionID string) (postgres.PurchaseRecord, error)
	ListByIdentity(ctx context.Context, identity model.BuyerIdentity) ([]postgres.PurchaseRecord, error)
}

type FileStorage interface {
	EnsureBucket(ctx context.Context) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Service struct {
	resources   ResourceStore
	purchases   PurchaseStore
	storage     FileStorage
	downloadTTL time.Duration
}

func NewService(resources ResourceStore, purchases PurchaseStore, storage FileStorage, downloadTTL time.Duration) *Service {
	if downloadTTL <= 0 {
		downloadTTL = defaultSignedURLTTL
	}
	return &Service{
		resources:   resources,
		purchases:   purchases,
		storage:     storage,
		downloadTTL: downloadTTL,
	}
}

// Owns reports whether the identity holds a completed purchase for the
// resource. Refunded purchases do not count.
func (s *Service) Owns(ctx context.Context, identity model.BuyerIdentity, resourceID string) (bool, error) {
	if !identity.Valid() || resourceID == "" {
		return false, ErrValidation
	}

	_, err := s.purchases.FindCompleted(ctx, identity, resourceID)
	if err != nil {
		if errors.Is(err, postgres.ErrPurchaseNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("find completed purchase: %w", err)
	}
	return true, nil
}

// DownloadURL gates a file download behind ownership and returns a
// short-lived presigned URL. All failure shapes collapse to ErrForbidden
// so the endpoint cannot be used to probe the catalog.
func (s *Service) DownloadURL(ctx context.Context, identity model.BuyerIdentity, resourceID string) (string, error) {
	if !identity.Valid() || resourceID == "" {
		return "", ErrForbidden
	}

	owns, err := s.Owns(ctx, identity, resourceID)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return "", ErrForbidden
		}
		return "", err
	}
	if !owns {
		return "", ErrForbidden
	}

	return s.presignResource(ctx, resourceID)
}

// DownloadURLForSession is the guest download path: possession of the
// unguessable provider checkout session id is the proof of purchase. The
// session must belong to a completed purchase of the requested resource;
// every other shape is ErrForbidden, same as DownloadURL.
func (s *Service) DownloadURLForSession(ctx context.Context, sessionID, resourceID string) (string, error) {
	if sessionID == "" || resourceID == "" {
		return "", ErrForbidden
	}

	purchase, err := s.purchases.FindBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, postgres.ErrPurchaseNotFound) {
			return "", ErrForbidden
		}
		return "", fmt.Errorf("find purchase by session: %w", err)
	}
	if purchase.ResourceID != resourceID || purchase.Status != enums.PaymentStatusCompleted {
		return "", ErrForbidden
	}

	return s.presignResource(ctx, resourceID)
}

func (s *Service) presignResource(ctx context.Context, resourceID string) (string, error) {
	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, postgres.ErrResourceNotFound) {
			return "", ErrForbidden
		}
		return "", fmt.Errorf("find resource: %w", err)
	}
	if resource.FileKey == nil || *resource.FileKey == "" {
		return "", ErrFileMissing
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return "", err
	}
	url, err := s.storage.PresignGet(ctx, *resource.FileKey, s.downloadTTL)
	if err != nil {
		return "", fmt.Errorf("presign download: %w", err)
	}
	return url, nil
}

type Purchase struct {
	ID          string
	ResourceID  string
	Title       string
	AmountMinor int64
	Currency    string
	Status      string
	CreatedAt   time.Time
}

// ListPurchases returns the identity's purchase history, completed and
// refunded rows both, newest first.
func (s *Service) ListPurchases(ctx context.Context, identity model.BuyerIdentity) ([]Purchase, error) {
	if !identity.Valid() {
		return nil, ErrValidation
	}

	records, err := s.purchases.ListByIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}

	out := make([]Purchase, 0, len(records))
	for _, record := range records {
		title := ""
		if resource, err := s.resources.FindByID(ctx, record.ResourceID); err == nil {
			title = resource.Title
		}
		out = append(out, Purchase{
			ID:          record.ID,
			ResourceID:  record.ResourceID,
			Title:       title,
			AmountMinor: record.AmountMinor,
			Currency:    record.Currency,
			Status:      string(record.Status),
			CreatedAt:   record.CreatedAt,
		})
	}
	return out, nil
}

// OwnedResourceIDs lists resource ids the identity can download already,
// used to keep recommendations from reselling owned packs.
func (s *Service) OwnedResourceIDs(ctx context.Context, identity model.BuyerIdentity) ([]string, error) {
	if !identity.Valid() {
		return nil, nil
	}

	records, err := s.purchases.ListByIdentity(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}

	ids := make([]string, 0, len(records))
	for _, record := range records {
		if record.Status == enums.PaymentStatusCompleted {
			ids = append(ids, record.ResourceID)
		}
	}
	return ids, nil
}
