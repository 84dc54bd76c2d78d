package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mr1hm/school-finance/internal/models"
)

func (s *DB) CreateUser(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = models.RoleViewer
	}
	u.IsActive = true
	if _, err := s.bun.NewInsert().Model(u).Exec(ctx); err != nil {
		return fmt.Errorf("error creating user %s: %w", u.Username, mapDBError(err))
	}
	return nil
}

func (s *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u := new(models.User)
	if err := s.bun.NewSelect().Model(u).Where("u.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u := new(models.User)
	if err := s.bun.NewSelect().Model(u).Where("u.username = ?", username).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (s *DB) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := s.bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error updating password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DB) CountUsers(ctx context.Context) (int, error) {
	return s.bun.NewSelect().Model((*models.User)(nil)).Count(ctx)
}

func (s *DB) SetUserActive(ctx context.Context, id int64, active bool) error {
	res, err := s.bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("is_active = ?", active).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error updating user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
