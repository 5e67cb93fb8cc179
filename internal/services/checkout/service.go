package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TsveMotion/statsmaths/internal/domain/enums"
	"github.com/TsveMotion/statsmaths/internal/domain/model"
	"github.com/TsveMotion/statsmaths/internal/pkg/validate"
	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
)

const Provider = "stripe"

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrResourceNotFound = errors.New("resource not found")
	ErrAlreadyOwned     = errors.New("resource already owned")
	ErrRateLimited      = errors.New("too many checkout attempts")
	ErrPaymentProvider  = errors.New("payment provider error")
	// ErrUnknownReference means a verified webhook event references a
	// checkout session or payment this backend never created.
	ErrUnknownReference = errors.New("unknown provider reference")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

type EventType string

const (
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventRefunded  EventType = "refunded"
	EventIgnored   EventType = "ignored"
)

// ConfirmationEvent is a provider webhook delivery reduced to the fields
// the confirmation flow acts on. Payload keeps the raw body for audit.
type ConfirmationEvent struct {
	EventID     string
	Type        EventType
	SessionID   string
	PaymentID   string
	AmountMinor int64
	Currency    string
	Payload     []byte
}

type SessionRequest struct {
	PurchaseID    string
	ResourceID    string
	Title         string
	Description   string
	AmountMinor   int64
	Currency      string
	CustomerEmail string
}

type ProviderSession struct {
	ID  string
	URL string
}

type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (ProviderSession, error)
}

type ResourceStore interface {
	FindByID(ctx context.Context, resourceID string) (postgres.ResourceRecord, error)
}

type PurchaseStore interface {
	CreateIntent(ctx context.Context, identity model.BuyerIdentity, resourceID string, amountMinor int64, currency string) (postgres.PurchaseRecord, error)
	BindProviderSession(ctx context.Context, purchaseID, sessionID string) error
	FindBySessionID(ctx context.Context, sessionID string) (postgres.PurchaseRecord, error)
	FindCompleted(ctx context.Context, identity model.BuyerIdentity, resourceID string) (postgres.PurchaseRecord, error)
	MarkCompleted(ctx context.Context, purchaseID, paymentID string) (postgres.PurchaseRecord, bool, error)
	MarkFailed(ctx context.Context, purchaseID string) (postgres.PurchaseRecord, bool, error)
	MarkRefundedByPayment(ctx context.Context, paymentID string) (postgres.PurchaseRecord, bool, error)
}

type UserStore interface {
	FindByID(ctx context.Context, userID int64) (postgres.UserRecord, error)
}

type EventStore interface {
	InsertIfAbsent(ctx context.Context, provider, eventID, eventType string, payload []byte) (bool, error)
	IsProcessed(ctx context.Context, provider, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, provider, eventID, processingError string) error
}

type RateLimiter interface {
	AllowCheckout(ctx context.Context, identityKey string) (bool, error)
}

type Service struct {
	resources ResourceStore
	purchases PurchaseStore
	users     UserStore
	events    EventStore
	provider  PaymentProvider
	limiter   RateLimiter
	logger    *zap.Logger
}

func NewService(
	resources ResourceStore,
	purchases PurchaseStore,
	users UserStore,
	events EventStore,
	provider PaymentProvider,
	limiter RateLimiter,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		resources: resources,
		purchases: purchases,
		users:     users,
		events:    events,
		provider:  provider,
		limiter:   limiter,
		logger:    logger,
	}
}

type InitiateResult struct {
	PurchaseID  string
	SessionID   string
	RedirectURL string
}

// Initiate records a purchase intent and opens a hosted checkout session
// for it. The intent row is written before the provider call so that a
// crash between the two leaves an inert pending_submission row rather
// than an untracked provider session.
func (s *Service) Initiate(ctx context.Context, identity model.BuyerIdentity, resourceID string) (InitiateResult, error) {
	if !identity.Valid() || strings.TrimSpace(resourceID) == "" {
		return InitiateResult{}, ErrInvalidInput
	}
	if identity.IsGuest() {
		if !validate.Email(identity.Email) {
			return InitiateResult{}, fmt.Errorf("%w: invalid guest email", ErrInvalidInput)
		}
		if !validate.Required(identity.Name) {
			return InitiateResult{}, fmt.Errorf("%w: guest name is required", ErrInvalidInput)
		}
	}
	if s.provider == nil {
		return InitiateResult{}, fmt.Errorf("%w: provider is not configured", ErrPaymentProvider)
	}

	if s.limiter != nil {
		allowed, err := s.limiter.AllowCheckout(ctx, identity.Key())
		if err != nil {
			return InitiateResult{}, fmt.Errorf("checkout rate limit: %w", err)
		}
		if !allowed {
			return InitiateResult{}, ErrRateLimited
		}
	}

	resource, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, postgres.ErrResourceNotFound) {
			return InitiateResult{}, ErrResourceNotFound
		}
		return InitiateResult{}, fmt.Errorf("find resource: %w", err)
	}

	if _, err := s.purchases.FindCompleted(ctx, identity, resourceID); err == nil {
		return InitiateResult{}, ErrAlreadyOwned
	} else if !errors.Is(err, postgres.ErrPurchaseNotFound) {
		return InitiateResult{}, fmt.Errorf("check existing ownership: %w", err)
	}

	email, err := s.buyerEmail(ctx, identity)
	if err != nil {
		return InitiateResult{}, err
	}

	intent, err := s.purchases.CreateIntent(ctx, identity, resource.ID, resource.AmountMinor, resource.Currency)
	if err != nil {
		if errors.Is(err, postgres.ErrOwnershipConflict) {
			return InitiateResult{}, ErrAlreadyOwned
		}
		return InitiateResult{}, fmt.Errorf("create purchase intent: %w", err)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, SessionRequest{
		PurchaseID:    intent.ID,
		ResourceID:    resource.ID,
		Title:         resource.Title,
		Description:   resource.Description,
		AmountMinor:   resource.AmountMinor,
		Currency:      resource.Currency,
		CustomerEmail: email,
	})
	if err != nil {
		if _, _, failErr := s.purchases.MarkFailed(ctx, intent.ID); failErr != nil {
			s.logger.Warn("mark intent failed after provider error",
				zap.String("purchase_id", intent.ID), zap.Error(failErr))
		}
		return InitiateResult{}, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	if err := s.purchases.BindProviderSession(ctx, intent.ID, session.ID); err != nil {
		return InitiateResult{}, fmt.Errorf("bind provider session: %w", err)
	}

	return InitiateResult{
		PurchaseID:  intent.ID,
		SessionID:   session.ID,
		RedirectURL: session.URL,
	}, nil
}

// Confirm applies a verified provider event to the purchase it references.
// Duplicate deliveries are absorbed by the event ledger; integrity faults
// (amount or currency mismatch) are recorded against the event and acked
// without completing the purchase.
func (s *Service) Confirm(ctx context.Context, event ConfirmationEvent) error {
	if strings.TrimSpace(event.EventID) == "" {
		return ErrInvalidInput
	}

	first, err := s.events.InsertIfAbsent(ctx, Provider, event.EventID, string(event.Type), event.Payload)
	if err != nil {
		return fmt.Errorf("record webhook event: %w", err)
	}
	if !first {
		// A ledger row without a processed stamp means an earlier delivery
		// was recorded but died before its transition landed. Redelivery is
		// the recovery path, so only stamped events are dropped here; the
		// transitions themselves are idempotent.
		processed, err := s.events.IsProcessed(ctx, Provider, event.EventID)
		if err != nil {
			return fmt.Errorf("check webhook event state: %w", err)
		}
		if processed {
			s.logger.Info("duplicate webhook delivery ignored", zap.String("event_id", event.EventID))
			return nil
		}
		s.logger.Warn("retrying webhook delivery that never finished", zap.String("event_id", event.EventID))
	}

	switch event.Type {
	case EventCompleted:
		return s.confirmCompleted(ctx, event)
	case EventFailed:
		return s.confirmFailed(ctx, event)
	case EventRefunded:
		return s.confirmRefunded(ctx, event)
	default:
		return s.finishEvent(ctx, event.EventID, "")
	}
}

func (s *Service) confirmCompleted(ctx context.Context, event ConfirmationEvent) error {
	purchase, err := s.purchases.FindBySessionID(ctx, event.SessionID)
	if err != nil {
		if errors.Is(err, postgres.ErrPurchaseNotFound) {
			if markErr := s.finishEvent(ctx, event.EventID, "unknown checkout session"); markErr != nil {
				return markErr
			}
			return ErrUnknownReference
		}
		return fmt.Errorf("find purchase by session: %w", err)
	}

	if event.AmountMinor != purchase.AmountMinor || !strings.EqualFold(event.Currency, purchase.Currency) {
		s.logger.Error("webhook amount mismatch, purchase left unconfirmed",
			zap.String("event_id", event.EventID),
			zap.String("purchase_id", purchase.ID),
			zap.Int64("expected_minor", purchase.AmountMinor),
			zap.Int64("reported_minor", event.AmountMinor),
			zap.String("expected_currency", purchase.Currency),
			zap.String("reported_currency", event.Currency))
		msg := fmt.Sprintf("amount mismatch: expected %d %s, event reported %d %s",
			purchase.AmountMinor, purchase.Currency, event.AmountMinor, event.Currency)
		return s.finishEvent(ctx, event.EventID, msg)
	}

	updated, changed, err := s.purchases.MarkCompleted(ctx, purchase.ID, event.PaymentID)
	if err != nil {
		if errors.Is(err, postgres.ErrOwnershipConflict) {
			// The buyer already owns the resource through another
			// completed purchase. The money is the provider's problem
			// to refund; the ledger keeps both rows.
			s.logger.Warn("completion skipped, identity already owns resource",
				zap.String("purchase_id", purchase.ID))
			return s.finishEvent(ctx, event.EventID, "identity already owns resource")
		}
		return fmt.Errorf("mark purchase completed: %w", err)
	}
	if !changed && updated.Status != enums.PaymentStatusCompleted {
		return s.finishEvent(ctx, event.EventID,
			fmt.Sprintf("completion ignored, purchase in terminal state %s", updated.Status))
	}

	return s.finishEvent(ctx, event.EventID, "")
}

func (s *Service) confirmFailed(ctx context.Context, event ConfirmationEvent) error {
	purchase, err := s.purchases.FindBySessionID(ctx, event.SessionID)
	if err != nil {
		if errors.Is(err, postgres.ErrPurchaseNotFound) {
			if markErr := s.finishEvent(ctx, event.EventID, "unknown checkout session"); markErr != nil {
				return markErr
			}
			return ErrUnknownReference
		}
		return fmt.Errorf("find purchase by session: %w", err)
	}

	updated, changed, err := s.purchases.MarkFailed(ctx, purchase.ID)
	if err != nil {
		return fmt.Errorf("mark purchase failed: %w", err)
	}
	if !changed && updated.Status == enums.PaymentStatusCompleted {
		// Out of order with a completion that already landed. Completion
		// wins; the expiry is a no-op.
		return s.finishEvent(ctx, event.EventID, "failure ignored, purchase already completed")
	}

	return s.finishEvent(ctx, event.EventID, "")
}

func (s *Service) confirmRefunded(ctx context.Context, event ConfirmationEvent) error {
	if strings.TrimSpace(event.PaymentID) == "" {
		if markErr := s.finishEvent(ctx, event.EventID, "refund event without payment reference"); markErr != nil {
			return markErr
		}
		return ErrUnknownReference
	}

	_, _, err := s.purchases.MarkRefundedByPayment(ctx, event.PaymentID)
	if err != nil {
		if errors.Is(err, postgres.ErrPurchaseNotFound) {
			if markErr := s.finishEvent(ctx, event.EventID, "unknown payment reference"); markErr != nil {
				return markErr
			}
			return ErrUnknownReference
		}
		return fmt.Errorf("mark purchase refunded: %w", err)
	}

	return s.finishEvent(ctx, event.EventID, "")
}

func (s *Service) finishEvent(ctx context.Context, eventID, processingError string) error {
	if err := s.events.MarkProcessed(ctx, Provider, eventID, processingError); err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return nil
}

func (s *Service) buyerEmail(ctx context.Context, identity model.BuyerIdentity) (string, error) {
	if identity.IsGuest() {
		return identity.Email, nil
	}

	user, err := s.users.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return "", ErrInvalidInput
		}
		return "", fmt.Errorf("find buyer account: %w", err)
	}
	return user.Email, nil
}
