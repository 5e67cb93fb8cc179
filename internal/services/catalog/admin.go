package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/TsveMotion/statsmaths/internal/domain/enums"
	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
)

var ErrValidation = errors.New("validation error")

type WriteStore interface {
	Create(ctx context.Context, in postgres.ResourceInput) (postgres.ResourceRecord, error)
	Update(ctx context.Context, resourceID string, in postgres.ResourceInput) (postgres.ResourceRecord, error)
	Delete(ctx context.Context, resourceID string) error
	FindByID(ctx context.Context, resourceID string) (postgres.ResourceRecord, error)
	List(ctx context.Context) ([]postgres.ResourceRecord, error)
	Count(ctx context.Context) (int64, error)
	SetFileKey(ctx context.Context, resourceID, fileKey string) error
}

type FileStore interface {
	EnsureBucket(ctx context.Context) error
	PutFile(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
}

// AdminService is the back-office side of the catalog: create, reprice
// and retire resources. Deleting a resource also drops its stored file;
// completed purchases keep their rows regardless.
type AdminService struct {
	store  WriteStore
	files  FileStore
	logger *zap.Logger
}

func NewAdminService(store WriteStore, files FileStore, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{store: store, files: files, logger: logger}
}

func (s *AdminService) Create(ctx context.Context, in postgres.ResourceInput) (postgres.ResourceRecord, error) {
	if err := validateInput(&in); err != nil {
		return postgres.ResourceRecord{}, err
	}

	record, err := s.store.Create(ctx, in)
	if err != nil {
		return postgres.ResourceRecord{}, fmt.Errorf("create resource: %w", err)
	}
	return record, nil
}

type Page struct {
	Resources []postgres.ResourceRecord
	Total     int64
}

func (s *AdminService) List(ctx context.Context) (Page, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("list resources: %w", err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("count resources: %w", err)
	}
	return Page{Resources: records, Total: total}, nil
}

func (s *AdminService) Get(ctx context.Context, resourceID string) (postgres.ResourceRecord, error) {
	if strings.TrimSpace(resourceID) == "" {
		return postgres.ResourceRecord{}, ErrResourceNotFound
	}

	record, err := s.store.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, postgres.ErrResourceNotFound) {
			return postgres.ResourceRecord{}, ErrResourceNotFound
		}
		return postgres.ResourceRecord{}, fmt.Errorf("find resource: %w", err)
	}
	return record, nil
}

func (s *AdminService) Update(ctx context.Context, resourceID string, in postgres.ResourceInput) (postgres.ResourceRecord, error) {
	if strings.TrimSpace(resourceID) == "" {
		return postgres.ResourceRecord{}, ErrResourceNotFound
	}
	if err := validateInput(&in); err != nil {
		return postgres.ResourceRecord{}, err
	}

	record, err := s.store.Update(ctx, resourceID, in)
	if err != nil {
		if errors.Is(err, postgres.ErrResourceNotFound) {
			return postgres.ResourceRecord{}, ErrResourceNotFound
		}
		return postgres.ResourceRecord{}, fmt.Errorf("update resource: %w", err)
	}
	return record, nil
}

// UploadFile stores the resource's PDF and binds its object key. A re-upload
// overwrites the object under the same key, so stale presigned URLs keep
// serving the latest file.
func (s *AdminService) UploadFile(ctx context.Context, resourceID string, body io.Reader, size int64, contentType string) (postgres.ResourceRecord, error) {
	if strings.TrimSpace(resourceID) == "" {
		return postgres.ResourceRecord{}, ErrResourceNotFound
	}
	if body == nil || size <= 0 {
		return postgres.ResourceRecord{}, ErrValidation
	}
	if s.files == nil {
		return postgres.ResourceRecord{}, fmt.Errorf("file storage is not configured")
	}
	if contentType == "" {
		contentType = "application/pdf"
	}

	record, err := s.store.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, postgres.ErrResourceNotFound) {
			return postgres.ResourceRecord{}, ErrResourceNotFound
		}
		return postgres.ResourceRecord{}, fmt.Errorf("find resource: %w", err)
	}

	key := "resources/" + record.ID + ".pdf"
	if err := s.files.EnsureBucket(ctx); err != nil {
		return postgres.ResourceRecord{}, err
	}
	if err := s.files.PutFile(ctx, key, body, size, contentType); err != nil {
		return postgres.ResourceRecord{}, fmt.Errorf("store resource file: %w", err)
	}

	if err := s.store.SetFileKey(ctx, resourceID, key); err != nil {
		return postgres.ResourceRecord{}, fmt.Errorf("bind resource file key: %w", err)
	}
	record.FileKey = &key
	return record, nil
}

func (s *AdminService) Delete(ctx context.Context, resourceID string) error {
	if strings.TrimSpace(resourceID) == "" {
		return ErrResourceNotFound
	}

	record, err := s.store.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, postgres.ErrResourceNotFound) {
			return ErrResourceNotFound
		}
		return fmt.Errorf("find resource: %w", err)
	}

	if err := s.store.Delete(ctx, resourceID); err != nil {
		if errors.Is(err, postgres.ErrResourceNotFound) {
			return ErrResourceNotFound
		}
		return fmt.Errorf("delete resource: %w", err)
	}

	if s.files != nil && record.FileKey != nil && *record.FileKey != "" {
		if err := s.files.Delete(ctx, *record.FileKey); err != nil {
			s.logger.Warn("delete resource file",
				zap.String("resource_id", resourceID), zap.Error(err))
		}
	}
	return nil
}

func validateInput(in *postgres.ResourceInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if in.Title == "" {
		return ErrValidation
	}
	if in.AmountMinor <= 0 {
		return ErrValidation
	}
	switch enums.Category(in.Category) {
	case enums.CategoryMathematics, enums.CategoryStatistics, enums.CategoryBoth:
	default:
		return ErrValidation
	}
	if in.Currency == "" {
		in.Currency = "GBP"
	}
	in.Currency = strings.ToUpper(in.Currency)
	return nil
}
