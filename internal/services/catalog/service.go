package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/TsveMotion/statsmaths/internal/domain/model"
	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
)

var ErrResourceNotFound = errors.New("resource not found")

type ResourceStore interface {
	FindByID(ctx context.Context, resourceID string) (postgres.ResourceRecord, error)
	List(ctx context.Context) ([]postgres.ResourceRecord, error)
	ListFeatured(ctx context.Context, limit int) ([]postgres.ResourceRecord, error)
	ListRecommended(ctx context.Context, excludeIDs []string, limit int) ([]postgres.ResourceRecord, error)
}

type OwnershipLister interface {
	OwnedResourceIDs(ctx context.Context, identity model.BuyerIdentity) ([]string, error)
}

type Config struct {
	FeaturedLimit    int
	RecommendedLimit int
}

// Service serves the public storefront catalog. Everything here is
// readable without authentication; ownership only shapes recommendations.
type Service struct {
	resources ResourceStore
	owned     OwnershipLister
	cfg       Config
}

func NewService(resources ResourceStore, owned OwnershipLister, cfg Config) *Service {
	if cfg.FeaturedLimit <= 0 {
		cfg.FeaturedLimit = 3
	}
	if cfg.RecommendedLimit <= 0 {
		cfg.RecommendedLimit = 6
	}
	return &Service{resources: resources, owned: owned, cfg: cfg}
}

func (s *Service) List(ctx context.Context) ([]postgres.ResourceRecord, error) {
	records, err := s.resources.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return records, nil
}

func (s *Service) Featured(ctx context.Context) ([]postgres.ResourceRecord, error) {
	records, err := s.resources.ListFeatured(ctx, s.cfg.FeaturedLimit)
	if err != nil {
		return nil, fmt.Errorf("list featured resources: %w", err)
	}
	return records, nil
}

// Recommended returns resources the caller does not own yet. Anonymous
// visitors get the same list with no exclusions.
func (s *Service) Recommended(ctx context.Context, identity model.BuyerIdentity) ([]postgres.ResourceRecord, error) {
	var excludeIDs []string
	if identity.Valid() && s.owned != nil {
		ids, err := s.owned.OwnedResourceIDs(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("resolve owned resources: %w", err)
		}
		excludeIDs = ids
	}

	records, err := s.resources.ListRecommended(ctx, excludeIDs, s.cfg.RecommendedLimit)
	if err != nil {
		return nil, fmt.Errorf("list recommended resources: %w", err)
	}
	return records, nil
}

func (s *Service) Get(ctx context.Context, resourceID string) (postgres.ResourceRecord, error) {
	if resourceID == "" {
		return postgres.ResourceRecord{}, ErrResourceNotFound
	}

	record, err := s.resources.FindByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, postgres.ErrResourceNotFound) {
			return postgres.ResourceRecord{}, ErrResourceNotFound
		}
		return postgres.ResourceRecord{}, fmt.Errorf("find resource: %w", err)
	}
	return record, nil
}
