package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mr1hm/school-finance/internal/models"
)

type GradeTotal struct {
	Grade string       `bun:"grade" json:"grade"`
	Total models.Money `bun:"total" json:"total"`
}

type MethodTotal struct {
	Method models.PaymentMethod `bun:"payment_method" json:"payment_method"`
	Count  int                  `bun:"count" json:"count"`
	Total  models.Money         `bun:"total" json:"total"`
}

type Summary struct {
	TotalCollected   models.Money `json:"total_collected"`
	TotalOutstanding models.Money `json:"total_outstanding"`
	CollectionRate   float64      `json:"collection_rate"`
	PaymentCount     int          `json:"payment_count"`
}

type DashboardStats struct {
	TotalStudents      int          `json:"total_students"`
	FeesCollected      models.Money `json:"fees_collected"`
	OutstandingBalance models.Money `json:"outstanding_balance"`
	MonthlyPayments    int          `json:"monthly_payments"`
}

// MonthWindow is an inclusive range of payment dates labelled like "Jan 2026".
type MonthWindow struct {
	Label string
	From  models.Date
	To    models.Date
}

type MonthTotal struct {
	Month  string       `json:"month"`
	Amount models.Money `json:"amount"`
}

type DayTotal struct {
	Count int          `json:"count"`
	Total models.Money `json:"total"`
}

// LastMonths returns n calendar months ending with the month containing now,
// oldest first. The current month ends at now.
func LastMonths(now time.Time, n int) []MonthWindow {
	out := make([]MonthWindow, 0, n)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := n - 1; i >= 0; i-- {
		start := first.AddDate(0, -i, 0)
		end := start.AddDate(0, 1, -1)
		if i == 0 {
			end = now
		}
		out = append(out, MonthWindow{
			Label: start.Format("Jan 2006"),
			From:  models.NewDate(start),
			To:    models.NewDate(end),
		})
	}
	return out
}

func (s *DB) PaymentsByGrade(ctx context.Context, r DateRange) ([]GradeTotal, error) {
	var rows []GradeTotal
	q := s.bun.NewSelect().
		Model((*models.Payment)(nil)).
		Join("JOIN students AS s ON s.id = p.student_id").
		ColumnExpr("s.grade AS grade").
		ColumnExpr("SUM(p.amount) AS total")
	q = whereDateRange(q, r)
	if err := q.GroupExpr("s.grade").OrderExpr("s.grade ASC").Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("error totalling payments by grade: %w", err)
	}
	return rows, nil
}

func (s *DB) PaymentsByMethod(ctx context.Context, r DateRange) ([]MethodTotal, error) {
	var rows []MethodTotal
	q := s.bun.NewSelect().
		Model((*models.Payment)(nil)).
		ColumnExpr("p.payment_method AS payment_method").
		ColumnExpr("COUNT(p.id) AS count").
		ColumnExpr("SUM(p.amount) AS total")
	q = whereDateRange(q, r)
	if err := q.GroupExpr("p.payment_method").OrderExpr("p.payment_method ASC").Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("error totalling payments by method: %w", err)
	}
	return rows, nil
}

// Summary totals payments in r against the outstanding balance of active students.
func (s *DB) Summary(ctx context.Context, r DateRange) (Summary, error) {
	var out Summary

	q := s.bun.NewSelect().
		Model((*models.Payment)(nil)).
		ColumnExpr("COALESCE(SUM(p.amount), 0)").
		ColumnExpr("COUNT(p.id)")
	q = whereDateRange(q, r)
	if err := q.Scan(ctx, &out.TotalCollected, &out.PaymentCount); err != nil {
		return Summary{}, fmt.Errorf("error totalling payments: %w", err)
	}

	err := s.bun.NewSelect().
		Model((*models.Student)(nil)).
		ColumnExpr("COALESCE(SUM(s.balance), 0)").
		Where("s.is_active = ?", true).
		Scan(ctx, &out.TotalOutstanding)
	if err != nil {
		return Summary{}, fmt.Errorf("error totalling outstanding balances: %w", err)
	}

	out.CollectionRate = CollectionRate(out.TotalCollected, out.TotalOutstanding)
	return out, nil
}

// CollectionRate is collected/(collected+outstanding) as a percentage with one decimal.
func CollectionRate(collected, outstanding models.Money) float64 {
	expected := collected + outstanding
	if expected <= 0 {
		return 0
	}
	rate := float64(collected) / float64(expected) * 100
	return math.Round(rate*10) / 10
}

func (s *DB) Defaulters(ctx context.Context, threshold models.Money) ([]models.Student, error) {
	var students []models.Student
	err := s.bun.NewSelect().
		Model(&students).
		Where("s.is_active = ?", true).
		Where("s.balance > ?", int64(threshold)).
		OrderExpr("s.balance DESC, s.full_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing defaulters: %w", err)
	}
	return students, nil
}

func (s *DB) DashboardStats(ctx context.Context, monthStart models.Date) (DashboardStats, error) {
	var out DashboardStats
	var err error

	out.TotalStudents, err = s.bun.NewSelect().
		Model((*models.Student)(nil)).
		Where("s.is_active = ?", true).
		Count(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("error counting students: %w", err)
	}

	err = s.bun.NewSelect().
		Model((*models.Payment)(nil)).
		ColumnExpr("COALESCE(SUM(p.amount), 0)").
		Scan(ctx, &out.FeesCollected)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("error totalling payments: %w", err)
	}

	err = s.bun.NewSelect().
		Model((*models.Student)(nil)).
		ColumnExpr("COALESCE(SUM(s.balance), 0)").
		Scan(ctx, &out.OutstandingBalance)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("error totalling balances: %w", err)
	}

	out.MonthlyPayments, err = s.bun.NewSelect().
		Model((*models.Payment)(nil)).
		Where("p.payment_date >= ?", monthStart).
		Count(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("error counting monthly payments: %w", err)
	}
	return out, nil
}

func (s *DB) MonthlyTotals(ctx context.Context, months []MonthWindow) ([]MonthTotal, error) {
	out := make([]MonthTotal, 0, len(months))
	for _, m := range months {
		var total models.Money
		err := s.bun.NewSelect().
			Model((*models.Payment)(nil)).
			ColumnExpr("COALESCE(SUM(p.amount), 0)").
			Where("p.payment_date >= ?", m.From).
			Where("p.payment_date <= ?", m.To).
			Scan(ctx, &total)
		if err != nil {
			return nil, fmt.Errorf("error totalling payments for %s: %w", m.Label, err)
		}
		out = append(out, MonthTotal{Month: m.Label, Amount: total})
	}
	return out, nil
}

// PaymentCalendar groups the payments of one month by day, keyed "YYYY-MM-DD".
func (s *DB) PaymentCalendar(ctx context.Context, year, month int) (map[string]DayTotal, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month %d", ErrInvalidArgument, month)
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var rows []struct {
		Day   string       `bun:"day"`
		Count int          `bun:"count"`
		Total models.Money `bun:"total"`
	}
	err := s.bun.NewSelect().
		Model((*models.Payment)(nil)).
		ColumnExpr("p.payment_date AS day").
		ColumnExpr("COUNT(p.id) AS count").
		ColumnExpr("SUM(p.amount) AS total").
		Where("p.payment_date >= ?", models.NewDate(start)).
		Where("p.payment_date < ?", models.NewDate(end)).
		GroupExpr("p.payment_date").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("error building payment calendar: %w", err)
	}

	out := make(map[string]DayTotal, len(rows))
	for _, r := range rows {
		out[r.Day] = DayTotal{Count: r.Count, Total: r.Total}
	}
	return out, nil
}
