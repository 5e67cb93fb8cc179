package catalog_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
	catalogsvc "github.com/TsveMotion/statsmaths/internal/services/catalog"
)

type adminResourceStore struct {
	records map[string]*postgres.ResourceRecord
}

func newAdminResourceStore(records ...postgres.ResourceRecord) *adminResourceStore {
	s := &adminResourceStore{records: make(map[string]*postgres.ResourceRecord)}
	for _, record := range records {
		r := record
		s.records[r.ID] = &r
	}
	return s
}

func (s *adminResourceStore) Create(_ context.Context, in postgres.ResourceInput) (postgres.ResourceRecord, error) {
	record := postgres.ResourceRecord{
		ID:          "res-new",
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		AmountMinor: in.AmountMinor,
		Currency:    in.Currency,
		Featured:    in.Featured,
	}
	s.records[record.ID] = &record
	return record, nil
}

func (s *adminResourceStore) Update(_ context.Context, resourceID string, in postgres.ResourceInput) (postgres.ResourceRecord, error) {
	record, ok := s.records[resourceID]
	if !ok {
		return postgres.ResourceRecord{}, postgres.ErrResourceNotFound
	}
	record.Title = in.Title
	record.AmountMinor = in.AmountMinor
	return *record, nil
}

func (s *adminResourceStore) Delete(_ context.Context, resourceID string) error {
	if _, ok := s.records[resourceID]; !ok {
		return postgres.ErrResourceNotFound
	}
	delete(s.records, resourceID)
	return nil
}

func (s *adminResourceStore) FindByID(_ context.Context, resourceID string) (postgres.ResourceRecord, error) {
	record, ok := s.records[resourceID]
	if !ok {
		return postgres.ResourceRecord{}, postgres.ErrResourceNotFound
	}
	return *record, nil
}

func (s *adminResourceStore) List(_ context.Context) ([]postgres.ResourceRecord, error) {
	out := make([]postgres.ResourceRecord, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, *record)
	}
	return out, nil
}

func (s *adminResourceStore) Count(_ context.Context) (int64, error) {
	return int64(len(s.records)), nil
}

func (s *adminResourceStore) SetFileKey(_ context.Context, resourceID, fileKey string) error {
	record, ok := s.records[resourceID]
	if !ok {
		return postgres.ErrResourceNotFound
	}
	record.FileKey = &fileKey
	return nil
}

type adminFileStore struct {
	stored  map[string]int64
	deleted []string
}

func newAdminFileStore() *adminFileStore {
	return &adminFileStore{stored: make(map[string]int64)}
}

func (f *adminFileStore) EnsureBucket(_ context.Context) error { return nil }

func (f *adminFileStore) PutFile(_ context.Context, key string, _ io.Reader, size int64, _ string) error {
	f.stored[key] = size
	return nil
}

func (f *adminFileStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

func adminFixture(records ...postgres.ResourceRecord) (*catalogsvc.AdminService, *adminResourceStore, *adminFileStore) {
	store := newAdminResourceStore(records...)
	files := newAdminFileStore()
	return catalogsvc.NewAdminService(store, files, nil), store, files
}

func TestAdminUploadFileBindsKey(t *testing.T) {
	svc, store, files := adminFixture(postgres.ResourceRecord{ID: "res-1", Title: "Statistics Pack"})

	body := strings.NewReader("%PDF-1.7")
	record, err := svc.UploadFile(context.Background(), "res-1", body, int64(body.Len()), "application/pdf")
	if err != nil {
		t.Fatalf("upload file: %v", err)
	}
	if record.FileKey == nil || *record.FileKey != "resources/res-1.pdf" {
		t.Fatalf("expected bound file key, got %+v", record.FileKey)
	}
	if _, ok := files.stored["resources/res-1.pdf"]; !ok {
		t.Fatalf("expected object stored, got %v", files.stored)
	}

	stored, err := store.FindByID(context.Background(), "res-1")
	if err != nil {
		t.Fatalf("find resource: %v", err)
	}
	if stored.FileKey == nil || *stored.FileKey != "resources/res-1.pdf" {
		t.Fatalf("expected file key persisted, got %+v", stored.FileKey)
	}
}

func TestAdminUploadFileUnknownResource(t *testing.T) {
	svc, _, files := adminFixture()

	body := strings.NewReader("%PDF-1.7")
	_, err := svc.UploadFile(context.Background(), "res-ghost", body, int64(body.Len()), "application/pdf")
	if !errors.Is(err, catalogsvc.ErrResourceNotFound) {
		t.Fatalf("expected ErrResourceNotFound, got %v", err)
	}
	if len(files.stored) != 0 {
		t.Fatalf("unknown resource must not store anything, got %v", files.stored)
	}
}

func TestAdminListIncludesTotal(t *testing.T) {
	svc, _, _ := adminFixture(
		postgres.ResourceRecord{ID: "res-1", Title: "Statistics Pack"},
		postgres.ResourceRecord{ID: "res-2", Title: "Mechanics Pack"},
	)

	page, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list resources: %v", err)
	}
	if len(page.Resources) != 2 || page.Total != 2 {
		t.Fatalf("unexpected page: %d resources, total %d", len(page.Resources), page.Total)
	}
}

func TestAdminDeleteDropsStoredFile(t *testing.T) {
	fileKey := "resources/res-1.pdf"
	svc, store, files := adminFixture(postgres.ResourceRecord{ID: "res-1", Title: "Statistics Pack", FileKey: &fileKey})

	if err := svc.Delete(context.Background(), "res-1"); err != nil {
		t.Fatalf("delete resource: %v", err)
	}
	if _, err := store.FindByID(context.Background(), "res-1"); !errors.Is(err, postgres.ErrResourceNotFound) {
		t.Fatalf("expected resource gone, got %v", err)
	}
	if len(files.deleted) != 1 || files.deleted[0] != fileKey {
		t.Fatalf("expected stored file dropped, got %v", files.deleted)
	}
}
