package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/mr1hm/school-finance/internal/models"
)

// RecordPayment inserts p, decrements the student's balance and records the
// movement against the payment id, all in one transaction. It returns the
// student with the updated balance.
func (s *DB) RecordPayment(ctx context.Context, p *models.Payment) (*models.Student, error) {
	if p.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be greater than 0", ErrInvalidArgument)
	}
	if p.ReceiptNumber == "" {
		rn, err := models.NewReceiptNumber(time.Now())
		if err != nil {
			return nil, err
		}
		p.ReceiptNumber = rn
	}

	st := new(models.Student)
	err := s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model(st).Where("s.id = ?", p.StudentID).Limit(1).Scan(ctx); err != nil {
			return notFound(err)
		}
		if _, err := tx.NewInsert().Model(p).Exec(ctx); err != nil {
			return fmt.Errorf("error recording payment: %w", mapDBError(err))
		}
		return applyBalance(ctx, tx, st, BalanceChange{
			Amount:      -p.Amount,
			Type:        models.ChangePayment,
			Description: fmt.Sprintf("Payment received: %s", p.FeeType),
			CreatedBy:   p.CreatedBy,
			ReferenceID: &p.ID,
		})
	})
	if err != nil {
		return nil, err
	}
	p.Student = st
	return st, nil
}

// DeletePayment restores the payment amount to the student's balance and
// removes the payment.
func (s *DB) DeletePayment(ctx context.Context, id int64, deletedBy *int64) (*models.Payment, error) {
	p := new(models.Payment)
	err := s.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		err := tx.NewSelect().Model(p).Relation("Student").Where("p.id = ?", id).Limit(1).Scan(ctx)
		if err != nil {
			return notFound(err)
		}
		err = applyBalance(ctx, tx, p.Student, BalanceChange{
			Amount:      p.Amount,
			Type:        models.ChangeAdjustment,
			Description: fmt.Sprintf("Payment %s deleted", p.ReceiptNumber),
			CreatedBy:   deletedBy,
		})
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model(p).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("error deleting payment %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *DB) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	p := new(models.Payment)
	if err := s.bun.NewSelect().Model(p).Relation("Student").Where("p.id = ?", id).Limit(1).Scan(ctx); err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (s *DB) ListPayments(ctx context.Context, f PaymentFilter) (Page[models.Payment], error) {
	pg := f.Pagination.normalize()
	var payments []models.Payment

	q := s.bun.NewSelect().Model(&payments).Relation("Student")
	if f.Search != "" {
		pattern := likePattern(f.Search)
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(student.full_name) LIKE ?", pattern).
				WhereOr("LOWER(p.receipt_number) LIKE ?", pattern).
				WhereOr("LOWER(p.transaction_reference) LIKE ?", pattern)
		})
	}
	if f.Method != "" {
		q = q.Where("p.payment_method = ?", f.Method)
	}
	q = whereDateRange(q, DateRange{From: f.DateFrom, To: f.DateTo})

	total, err := q.OrderExpr("p.payment_date DESC, p.id DESC").
		Limit(pg.PerPage).
		Offset((pg.Page - 1) * pg.PerPage).
		ScanAndCount(ctx)
	if err != nil {
		return Page[models.Payment]{}, fmt.Errorf("error listing payments: %w", err)
	}
	return Page[models.Payment]{Items: payments, Page: pg.Page, PerPage: pg.PerPage, Total: total}, nil
}

func (s *DB) RecentPayments(ctx context.Context, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.bun.NewSelect().
		Model(&payments).
		Relation("Student").
		OrderExpr("p.payment_date DESC, p.id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing recent payments: %w", err)
	}
	return payments, nil
}

func whereDateRange(q *bun.SelectQuery, r DateRange) *bun.SelectQuery {
	if r.From != nil {
		q = q.Where("p.payment_date >= ?", *r.From)
	}
	if r.To != nil {
		q = q.Where("p.payment_date <= ?", *r.To)
	}
	return q
}
