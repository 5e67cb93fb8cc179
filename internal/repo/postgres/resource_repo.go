package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrResourceNotFound = errors.New("resource not found")

type ResourceRepo struct {
	pool *pgxpool.Pool
}

type ResourceRecord struct {
	ID          string
	Title       string
	Description string
	Category    string
	AmountMinor int64
	Currency    string
	Featured    bool
	FileKey     *string
	PreviewURL  *string
	ImageURL    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ResourceInput struct {
	Title       string
	Description string
	Category    string
	AmountMinor int64
	Currency    string
	Featured    bool
	FileKey     *string
	PreviewURL  *string
	ImageURL    *string
}

const resourceColumns = `id, title, description, category, amount_minor, currency, featured, file_key, preview_url, image_url, created_at, updated_at`

func NewResourceRepo(pool *pgxpool.Pool) *ResourceRepo {
	return &ResourceRepo{pool: pool}
}

func (r *ResourceRepo) Create(ctx context.Context, in ResourceInput) (ResourceRecord, error) {
	if r.pool == nil {
		return ResourceRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(in.Title) == "" || in.AmountMinor <= 0 {
		return ResourceRecord{}, fmt.Errorf("invalid resource payload")
	}

	record, err := scanResource(r.pool.QueryRow(ctx, `
INSERT INTO resources (
	id,
	title,
	description,
	category,
	amount_minor,
	currency,
	featured,
	file_key,
	preview_url,
	image_url,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
RETURNING `+resourceColumns+`
`, uuid.NewString(), strings.TrimSpace(in.Title), in.Description, in.Category,
		in.AmountMinor, strings.ToUpper(strings.TrimSpace(in.Currency)), in.Featured,
		in.FileKey, in.PreviewURL, in.ImageURL))
	if err != nil {
		return ResourceRecord{}, fmt.Errorf("create resource: %w", err)
	}

	return record, nil
}

func (r *ResourceRepo) Update(ctx context.Context, resourceID string, in ResourceInput) (ResourceRecord, error) {
	if r.pool == nil {
		return ResourceRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(resourceID) == "" {
		return ResourceRecord{}, fmt.Errorf("invalid resource id")
	}

	record, err := scanResource(r.pool.QueryRow(ctx, `
UPDATE resources
SET
	title = $2,
	description = $3,
	category = $4,
	amount_minor = $5,
	currency = $6,
	featured = $7,
	file_key = $8,
	preview_url = $9,
	image_url = $10,
	updated_at = NOW()
WHERE id = $1
RETURNING `+resourceColumns+`
`, resourceID, strings.TrimSpace(in.Title), in.Description, in.Category,
		in.AmountMinor, strings.ToUpper(strings.TrimSpace(in.Currency)), in.Featured,
		in.FileKey, in.PreviewURL, in.ImageURL))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResourceRecord{}, ErrResourceNotFound
		}
		return ResourceRecord{}, fmt.Errorf("update resource: %w", err)
	}

	return record, nil
}

// SetFileKey points the resource at its stored object after an upload.
func (r *ResourceRepo) SetFileKey(ctx context.Context, resourceID, fileKey string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(resourceID) == "" || strings.TrimSpace(fileKey) == "" {
		return fmt.Errorf("invalid file key payload")
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE resources
SET
	file_key = $2,
	updated_at = NOW()
WHERE id = $1
`, resourceID, strings.TrimSpace(fileKey))
	if err != nil {
		return fmt.Errorf("set resource file key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrResourceNotFound
	}

	return nil
}

func (r *ResourceRepo) Delete(ctx context.Context, resourceID string) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(resourceID) == "" {
		return fmt.Errorf("invalid resource id")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM resources WHERE id = $1`, resourceID)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrResourceNotFound
	}

	return nil
}

func (r *ResourceRepo) FindByID(ctx context.Context, resourceID string) (ResourceRecord, error) {
	if r.pool == nil {
		return ResourceRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(resourceID) == "" {
		return ResourceRecord{}, ErrResourceNotFound
	}

	record, err := scanResource(r.pool.QueryRow(ctx, `
SELECT `+resourceColumns+`
FROM resources
WHERE id = $1
LIMIT 1
`, resourceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResourceRecord{}, ErrResourceNotFound
		}
		return ResourceRecord{}, fmt.Errorf("find resource by id: %w", err)
	}

	return record, nil
}

func (r *ResourceRepo) List(ctx context.Context) ([]ResourceRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+resourceColumns+`
FROM resources
ORDER BY created_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	return collectResources(rows)
}

func (r *ResourceRepo) ListFeatured(ctx context.Context, limit int) ([]ResourceRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 3
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+resourceColumns+`
FROM resources
WHERE featured = TRUE
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list featured resources: %w", err)
	}
	defer rows.Close()

	return collectResources(rows)
}

// ListRecommended returns featured resources first, padded with non-featured
// ones, excluding the ids the buyer already owns.
func (r *ResourceRepo) ListRecommended(ctx context.Context, excludeIDs []string, limit int) ([]ResourceRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 6
	}
	if excludeIDs == nil {
		excludeIDs = []string{}
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+resourceColumns+`
FROM resources
WHERE NOT (id = ANY($1::text[]))
ORDER BY featured DESC, created_at DESC
LIMIT $2
`, excludeIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("list recommended resources: %w", err)
	}
	defer rows.Close()

	return collectResources(rows)
}

func (r *ResourceRepo) Count(ctx context.Context) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM resources`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count resources: %w", err)
	}
	return total, nil
}

func scanResource(row pgx.Row) (ResourceRecord, error) {
	var record ResourceRecord
	if err := row.Scan(
		&record.ID,
		&record.Title,
		&record.Description,
		&record.Category,
		&record.AmountMinor,
		&record.Currency,
		&record.Featured,
		&record.FileKey,
		&record.PreviewURL,
		&record.ImageURL,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		return ResourceRecord{}, err
	}
	return record, nil
}

func collectResources(rows pgx.Rows) ([]ResourceRecord, error) {
	records := make([]ResourceRecord, 0)
	for rows.Next() {
		record, err := scanResource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan resource row: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resource rows: %w", err)
	}
	return records, nil
}
