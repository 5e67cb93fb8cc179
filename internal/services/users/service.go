package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TsveMotion/statsmaths/internal/repo/postgres"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("user not found")
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

type Store interface {
	FindByID(ctx context.Context, userID int64) (postgres.UserRecord, error)
	ListWithActivity(ctx context.Context, limit, offset int) ([]postgres.AdminUserRow, error)
	Count(ctx context.Context) (int64, error)
}

// Service backs the admin users table: accounts joined with how much
// they have bought.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

type AdminUser struct {
	ID            int64
	Email         string
	Name          string
	Role          string
	CreatedAt     time.Time
	PurchaseCount int64
	SpentMinor    int64
}

type Page struct {
	Users []AdminUser
	Total int64
}

func (s *Service) List(ctx context.Context, limit, offset int) (Page, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.store.ListWithActivity(ctx, limit, offset)
	if err != nil {
		return Page{}, fmt.Errorf("list users: %w", err)
	}
	total, err := s.store.Count(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("count users: %w", err)
	}

	users := make([]AdminUser, 0, len(rows))
	for _, row := range rows {
		users = append(users, AdminUser{
			ID:            row.ID,
			Email:         row.Email,
			Name:          row.Name,
			Role:          row.Role,
			CreatedAt:     row.CreatedAt,
			PurchaseCount: row.PurchaseCount,
			SpentMinor:    row.SpentMinor,
		})
	}
	return Page{Users: users, Total: total}, nil
}

func (s *Service) Get(ctx context.Context, userID int64) (postgres.UserRecord, error) {
	if userID <= 0 {
		return postgres.UserRecord{}, ErrValidation
	}

	record, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			return postgres.UserRecord{}, ErrNotFound
		}
		return postgres.UserRecord{}, fmt.Errorf("find user: %w", err)
	}
	return record, nil
}
