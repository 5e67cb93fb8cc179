package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TsveMotion/statsmaths/internal/domain/enums"
	"github.com/TsveMotion/statsmaths/internal/domain/model"
)

var (
	ErrPurchaseNotFound = errors.New("purchase not found")
	// ErrOwnershipConflict means another purchase for the same (identity,
	// resource) pair already reached completed; the schema's partial unique
	// indexes raise it, not application locks.
	ErrOwnershipConflict = errors.New("identity already owns resource")
)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

// PurchaseRecord is both the ephemeral intent (pending_submission/pending) and
// the durable entitlement of record (completed and beyond); the status column
// walks the state machine.
type PurchaseRecord struct {
	ID                string
	UserID            *int64
	GuestEmail        *string
	GuestName         *string
	ResourceID        string
	AmountMinor       int64
	Currency          string
	Status            enums.PaymentStatus
	ProviderSessionID *string
	ProviderPaymentID *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// AdminPurchaseRow joins a purchase with buyer and resource display fields for
// the back-office list.
type AdminPurchaseRow struct {
	PurchaseRecord
	BuyerEmail    string
	BuyerName     string
	ResourceTitle string
}

const purchaseColumns = `id, user_id, guest_email, guest_name, resource_id, amount_minor, currency, status, provider_session_id, provider_payment_id, created_at, updated_at`

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

// CreateIntent persists a pending_submission row before any call to the
// payment provider, so a crash mid-checkout leaves a recoverable orphan.
// The ownership re-check and the insert run in one transaction; the partial
// unique indexes on completed pairs stay as the backstop for completions
// that land between checkout attempts.
func (r *PurchaseRepo) CreateIntent(ctx context.Context, identity model.BuyerIdentity, resourceID string, amountMinor int64, currency string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if !identity.Valid() || strings.TrimSpace(resourceID) == "" || amountMinor <= 0 {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase intent payload")
	}

	var userID *int64
	var guestEmail, guestName *string
	ownerColumn, ownerValue := "user_id", any(nil)
	if identity.IsAccount() {
		uid := identity.UserID
		userID = &uid
		ownerValue = uid
	} else {
		email := identity.Email
		name := identity.Name
		guestEmail = &email
		guestName = &name
		ownerColumn, ownerValue = "guest_email", email
	}

	var record PurchaseRecord
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var owned bool
		if err := tx.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM purchases
	WHERE `+ownerColumn+` = $1
	  AND resource_id = $2
	  AND status = 'completed'
)
`, ownerValue, resourceID).Scan(&owned); err != nil {
			return fmt.Errorf("check existing ownership: %w", err)
		}
		if owned {
			return ErrOwnershipConflict
		}

		var err error
		record, err = scanPurchase(tx.QueryRow(ctx, `
INSERT INTO purchases (
	id,
	user_id,
	guest_email,
	guest_name,
	resource_id,
	amount_minor,
	currency,
	status,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending_submission', NOW(), NOW())
RETURNING `+purchaseColumns+`
`, uuid.NewString(), userID, guestEmail, guestName, resourceID, amountMinor,
			strings.ToUpper(strings.TrimSpace(currency))))
		if err != nil {
			return fmt.Errorf("create purchase intent: %w", err)
		}
		return nil
	})
	if err != nil {
		return PurchaseRecord{}, err
	}

	return record, nil
}

// BindProviderSession attaches the provider's checkout session id and moves
// the intent to pending. Only a pending_submission row can be bound.
func (r *PurchaseRepo) BindProviderSession(ctx context.Context, purchaseID, sessionID string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(purchaseID) == "" || strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("invalid bind session payload")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE purchases
SET
	provider_session_id = $2,
	status = 'pending',
	updated_at = NOW()
WHERE id = $1
  AND status = 'pending_submission'
`, purchaseID, strings.TrimSpace(sessionID))
	if err != nil {
		return fmt.Errorf("bind provider session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPurchaseNotFound
	}

	return nil
}

func (r *PurchaseRepo) FindByID(ctx context.Context, purchaseID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(purchaseID) == "" {
		return PurchaseRecord{}, ErrPurchaseNotFound
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE id = $1
LIMIT 1
`, purchaseID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by id: %w", err)
	}

	return record, nil
}

func (r *PurchaseRepo) FindBySessionID(ctx context.Context, sessionID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return PurchaseRecord{}, ErrPurchaseNotFound
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE provider_session_id = $1
LIMIT 1
`, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by session id: %w", err)
	}

	return record, nil
}

// FindCompleted answers the entitlement question for an (identity, resource)
// pair. Only a completed row matches.
func (r *PurchaseRepo) FindCompleted(ctx context.Context, identity model.BuyerIdentity, resourceID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if !identity.Valid() || strings.TrimSpace(resourceID) == "" {
		return PurchaseRecord{}, ErrPurchaseNotFound
	}

	var row pgx.Row
	if identity.IsAccount() {
		row = r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE user_id = $1
  AND resource_id = $2
  AND status = 'completed'
LIMIT 1
`, identity.UserID, resourceID)
	} else {
		row = r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE guest_email = $1
  AND resource_id = $2
  AND status = 'completed'
LIMIT 1
`, identity.Email, resourceID)
	}

	record, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find completed purchase: %w", err)
	}

	return record, nil
}

// MarkCompleted transitions a non-terminal intent to completed and records the
// provider payment id used later as the refund key. Returns changed=false when
// the row was already terminal, which callers treat as an idempotent replay.
// The partial unique indexes on completed (identity, resource) pairs surface
// as ErrOwnershipConflict when a second intent for an already-owned pair tries
// to complete.
func (r *PurchaseRepo) MarkCompleted(ctx context.Context, purchaseID, paymentID string) (PurchaseRecord, bool, error) {
	if r.pool == nil {
		return PurchaseRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(purchaseID) == "" {
		return PurchaseRecord{}, false, fmt.Errorf("invalid purchase id")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
UPDATE purchases
SET
	status = 'completed',
	provider_payment_id = $2,
	updated_at = NOW()
WHERE id = $1
  AND status IN ('pending_submission', 'pending')
RETURNING `+purchaseColumns+`
`, purchaseID, nullable(paymentID)))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return PurchaseRecord{}, false, ErrOwnershipConflict
		}
		return PurchaseRecord{}, false, fmt.Errorf("mark purchase completed: %w", err)
	}

	existing, err := r.FindByID(ctx, purchaseID)
	if err != nil {
		return PurchaseRecord{}, false, err
	}
	return existing, false, nil
}

// MarkFailed is terminal for the intent. A failed event arriving after a
// terminal status is ignored, not applied.
func (r *PurchaseRepo) MarkFailed(ctx context.Context, purchaseID string) (PurchaseRecord, bool, error) {
	if r.pool == nil {
		return PurchaseRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(purchaseID) == "" {
		return PurchaseRecord{}, false, fmt.Errorf("invalid purchase id")
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
UPDATE purchases
SET
	status = 'failed',
	updated_at = NOW()
WHERE id = $1
  AND status IN ('pending_submission', 'pending')
RETURNING `+purchaseColumns+`
`, purchaseID))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRecord{}, false, fmt.Errorf("mark purchase failed: %w", err)
	}

	existing, err := r.FindByID(ctx, purchaseID)
	if err != nil {
		return PurchaseRecord{}, false, err
	}
	return existing, false, nil
}

// MarkRefundedByPayment transitions completed -> refunded, keyed by the
// provider payment id captured at completion time.
func (r *PurchaseRepo) MarkRefundedByPayment(ctx context.Context, paymentID string) (PurchaseRecord, bool, error) {
	if r.pool == nil {
		return PurchaseRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return PurchaseRecord{}, false, ErrPurchaseNotFound
	}

	record, err := scanPurchase(r.pool.QueryRow(ctx, `
UPDATE purchases
SET
	status = 'refunded',
	updated_at = NOW()
WHERE provider_payment_id = $1
  AND status = 'completed'
RETURNING `+purchaseColumns+`
`, paymentID))
	if err == nil {
		return record, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRecord{}, false, fmt.Errorf("mark purchase refunded: %w", err)
	}

	existing, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE provider_payment_id = $1
LIMIT 1
`, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, false, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, false, fmt.Errorf("find purchase by payment id: %w", err)
	}
	return existing, false, nil
}

func (r *PurchaseRepo) ListByIdentity(ctx context.Context, identity model.BuyerIdentity) ([]PurchaseRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if !identity.Valid() {
		return nil, fmt.Errorf("invalid buyer identity")
	}

	var rows pgx.Rows
	var err error
	if identity.IsAccount() {
		rows, err = r.pool.Query(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE user_id = $1
  AND status IN ('completed', 'refunded')
ORDER BY created_at DESC
`, identity.UserID)
	} else {
		rows, err = r.pool.Query(ctx, `
SELECT `+purchaseColumns+`
FROM purchases
WHERE guest_email = $1
  AND status IN ('completed', 'refunded')
ORDER BY created_at DESC
`, identity.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("list purchases by identity: %w", err)
	}
	defer rows.Close()

	records := make([]PurchaseRecord, 0)
	for rows.Next() {
		record, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase rows: %w", err)
	}

	return records, nil
}

func (r *PurchaseRepo) ListAll(ctx context.Context, limit, offset int) ([]AdminPurchaseRow, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	p.id, p.user_id, p.guest_email, p.guest_name, p.resource_id, p.amount_minor,
	p.currency, p.status, p.provider_session_id, p.provider_payment_id,
	p.created_at, p.updated_at,
	COALESCE(u.email, p.guest_email, '') AS buyer_email,
	COALESCE(u.name, p.guest_name, '') AS buyer_name,
	COALESCE(res.title, '') AS resource_title
FROM purchases p
LEFT JOIN users u ON u.id = p.user_id
LEFT JOIN resources res ON res.id = p.resource_id
ORDER BY p.created_at DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list all purchases: %w", err)
	}
	defer rows.Close()

	out := make([]AdminPurchaseRow, 0)
	for rows.Next() {
		var row AdminPurchaseRow
		if err := rows.Scan(
			&row.ID,
			&row.UserID,
			&row.GuestEmail,
			&row.GuestName,
			&row.ResourceID,
			&row.AmountMinor,
			&row.Currency,
			&row.Status,
			&row.ProviderSessionID,
			&row.ProviderPaymentID,
			&row.CreatedAt,
			&row.UpdatedAt,
			&row.BuyerEmail,
			&row.BuyerName,
			&row.ResourceTitle,
		); err != nil {
			return nil, fmt.Errorf("scan admin purchase row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin purchase rows: %w", err)
	}

	return out, nil
}

func scanPurchase(row pgx.Row) (PurchaseRecord, error) {
	var record PurchaseRecord
	if err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.GuestEmail,
		&record.GuestName,
		&record.ResourceID,
		&record.AmountMinor,
		&record.Currency,
		&record.Status,
		&record.ProviderSessionID,
		&record.ProviderPaymentID,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return PurchaseRecord{}, err
	}
	return record, nil
}

func nullable(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
