package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/mr1hm/school-finance/internal/models"
)

func (s *DB) CreateFee(ctx context.Context, f *models.FeeStructure) error {
	f.IsActive = true
	if _, err := s.bun.NewInsert().Model(f).Exec(ctx); err != nil {
		return fmt.Errorf("error creating fee structure: %w", mapDBError(err))
	}
	return nil
}

func (s *DB) GetFee(ctx context.Context, id int64) (*models.FeeStructure, error) {
	f := new(models.FeeStructure)
	if err := s.bun.NewSelect().Model(f).Where("f.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return f, nil
}

func (s *DB) UpdateFee(ctx context.Context, f *models.FeeStructure) error {
	f.UpdatedAt = time.Now().UTC()
	res, err := s.bun.NewUpdate().
		Model(f).
		Column("grade", "term", "fee_type", "amount", "description", "academic_year", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error updating fee structure %d: %w", f.ID, mapDBError(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DB) DeactivateFee(ctx context.Context, id int64) (*models.FeeStructure, error) {
	f, err := s.GetFee(ctx, id)
	if err != nil {
		return nil, err
	}
	f.IsActive = false
	f.UpdatedAt = time.Now().UTC()
	if _, err := s.bun.NewUpdate().Model(f).Column("is_active", "updated_at").WherePK().Exec(ctx); err != nil {
		return nil, fmt.Errorf("error deactivating fee structure %d: %w", id, err)
	}
	return f, nil
}

func (s *DB) ListFees(ctx context.Context, filter FeeFilter) ([]models.FeeStructure, error) {
	var fees []models.FeeStructure
	q := s.bun.NewSelect().Model(&fees).Where("f.is_active = ?", true)
	if filter.Grade != "" {
		q = q.Where("f.grade = ?", filter.Grade)
	}
	if filter.Term != "" {
		q = q.Where("f.term = ?", filter.Term)
	}
	if err := q.OrderExpr("f.grade ASC, f.term ASC, f.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("error listing fee structures: %w", err)
	}
	return fees, nil
}

// TotalFeesForGrade sums active fees for grade. Empty term or academicYear match any.
func (s *DB) TotalFeesForGrade(ctx context.Context, grade string, term models.Term, academicYear string) (models.Money, error) {
	return totalFees(ctx, s.bun, grade, term, academicYear)
}

func totalFees(ctx context.Context, db bun.IDB, grade string, term models.Term, academicYear string) (models.Money, error) {
	var total models.Money
	q := db.NewSelect().
		Model((*models.FeeStructure)(nil)).
		ColumnExpr("COALESCE(SUM(f.amount), 0)").
		Where("f.grade = ?", grade).
		Where("f.is_active = ?", true)
	if term != "" {
		q = q.Where("f.term = ?", term)
	}
	if academicYear != "" {
		q = q.Where("f.academic_year = ?", academicYear)
	}
	if err := q.Scan(ctx, &total); err != nil {
		return 0, fmt.Errorf("error summing fees for grade %s: %w", grade, err)
	}
	return total, nil
}
