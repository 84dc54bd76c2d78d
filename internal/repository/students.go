package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/mr1hm/school-finance/internal/models"
)

// CreateStudent assigns the next student number and inserts s in one transaction.
func (s *DB) CreateStudent(ctx context.Context, st *models.Student) error {
	st.IsActive = true
	return s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var last string
		err := tx.NewSelect().
			Model((*models.Student)(nil)).
			Column("student_number").
			OrderExpr("id DESC").
			Limit(1).
			Scan(ctx, &last)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("error reading last student number: %w", err)
		}
		st.StudentNumber = models.NextStudentNumber(last)

		if _, err := tx.NewInsert().Model(st).Exec(ctx); err != nil {
			return fmt.Errorf("error creating student: %w", mapDBError(err))
		}
		return nil
	})
}

func (s *DB) GetStudent(ctx context.Context, id int64) (*models.Student, error) {
	st := new(models.Student)
	if err := s.bun.NewSelect().Model(st).Where("s.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return st, nil
}

// UpdateStudent writes the editable profile fields. Balance only moves through
// balance-changing operations.
func (s *DB) UpdateStudent(ctx context.Context, st *models.Student) error {
	st.UpdatedAt = time.Now().UTC()
	res, err := s.bun.NewUpdate().
		Model(st).
		Column("full_name", "grade", "guardian_name", "guardian_contact", "guardian_email", "address", "enrollment_date", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error updating student %d: %w", st.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DB) DeactivateStudent(ctx context.Context, id int64) (*models.Student, error) {
	st, err := s.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	st.IsActive = false
	st.UpdatedAt = time.Now().UTC()
	if _, err := s.bun.NewUpdate().Model(st).Column("is_active", "updated_at").WherePK().Exec(ctx); err != nil {
		return nil, fmt.Errorf("error deactivating student %d: %w", id, err)
	}
	return st, nil
}

func (s *DB) ListStudents(ctx context.Context, f StudentFilter) (Page[models.Student], error) {
	pg := f.Pagination.normalize()
	var students []models.Student

	q := s.bun.NewSelect().Model(&students).Where("s.is_active = ?", true)
	if f.Search != "" {
		pattern := likePattern(f.Search)
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(s.full_name) LIKE ?", pattern).
				WhereOr("LOWER(s.student_number) LIKE ?", pattern).
				WhereOr("LOWER(s.guardian_contact) LIKE ?", pattern)
		})
	}
	if f.Grade != "" {
		q = q.Where("s.grade = ?", f.Grade)
	}

	total, err := q.OrderExpr("s.full_name ASC").
		Limit(pg.PerPage).
		Offset((pg.Page - 1) * pg.PerPage).
		ScanAndCount(ctx)
	if err != nil {
		return Page[models.Student]{}, fmt.Errorf("error listing students: %w", err)
	}
	return Page[models.Student]{Items: students, Page: pg.Page, PerPage: pg.PerPage, Total: total}, nil
}

func (s *DB) ListActiveStudents(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	err := s.bun.NewSelect().
		Model(&students).
		Where("s.is_active = ?", true).
		OrderExpr("s.full_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing active students: %w", err)
	}
	return students, nil
}

// ApplyFees charges the student the total of all active fees for their grade.
func (s *DB) ApplyFees(ctx context.Context, studentID int64, createdBy *int64) (models.Money, models.Money, error) {
	var applied, balance models.Money
	err := s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		st := new(models.Student)
		if err := tx.NewSelect().Model(st).Where("s.id = ?", studentID).Limit(1).Scan(ctx); err != nil {
			return notFound(err)
		}
		total, err := totalFees(ctx, tx, st.Grade, "", "")
		if err != nil {
			return err
		}
		if total == 0 {
			return fmt.Errorf("%w %s", ErrNoFeeStructure, st.Grade)
		}
		err = applyBalance(ctx, tx, st, BalanceChange{
			Amount:      total,
			Type:        models.ChangeFeeApplied,
			Description: fmt.Sprintf("Fee structure applied for Grade %s", st.Grade),
			CreatedBy:   createdBy,
		})
		if err != nil {
			return err
		}
		applied, balance = total, st.Balance
		return nil
	})
	return applied, balance, err
}

func (s *DB) BalanceHistory(ctx context.Context, studentID int64) ([]models.BalanceHistory, error) {
	var history []models.BalanceHistory
	err := s.bun.NewSelect().
		Model(&history).
		Where("bh.student_id = ?", studentID).
		OrderExpr("bh.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("error reading balance history: %w", err)
	}
	return history, nil
}

// applyBalance moves st's balance by c.Amount and records the movement.
// The increment happens in SQL so concurrent transactions cannot lose updates.
func applyBalance(ctx context.Context, tx bun.Tx, st *models.Student, c BalanceChange) error {
	_, err := tx.NewUpdate().
		Model((*models.Student)(nil)).
		Set("balance = balance + ?", int64(c.Amount)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", st.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error updating balance for student %d: %w", st.ID, err)
	}

	var current models.Money
	err = tx.NewSelect().
		Model((*models.Student)(nil)).
		Column("balance").
		Where("id = ?", st.ID).
		Scan(ctx, &current)
	if err != nil {
		return fmt.Errorf("error reading balance for student %d: %w", st.ID, err)
	}

	h := &models.BalanceHistory{
		StudentID:       st.ID,
		PreviousBalance: current - c.Amount,
		NewBalance:      current,
		ChangeAmount:    c.Amount,
		ChangeType:      c.Type,
		ReferenceID:     c.ReferenceID,
		Description:     c.Description,
		CreatedBy:       c.CreatedBy,
	}
	if _, err := tx.NewInsert().Model(h).Exec(ctx); err != nil {
		return fmt.Errorf("error recording balance history: %w", err)
	}
	st.Balance = current
	return nil
}
