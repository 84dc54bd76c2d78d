package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun/dialect"

	"github.com/mr1hm/school-finance/internal/models"
)

type tableDef struct {
	model       any
	foreignKeys []string
}

// parents before children so foreign keys resolve on MySQL and Postgres
var tables = []tableDef{
	{model: (*models.User)(nil)},
	{model: (*models.Student)(nil)},
	{model: (*models.FeeStructure)(nil)},
	{model: (*models.Payment)(nil), foreignKeys: []string{`("student_id") REFERENCES "students" ("id") ON DELETE CASCADE`}},
	{model: (*models.BalanceHistory)(nil), foreignKeys: []string{`("student_id") REFERENCES "students" ("id") ON DELETE CASCADE`}},
	{model: (*models.SystemLog)(nil)},
}

type indexDef struct {
	model   any
	name    string
	columns []string
}

var indexes = []indexDef{
	{(*models.Student)(nil), "idx_students_full_name", []string{"full_name"}},
	{(*models.Student)(nil), "idx_students_grade", []string{"grade"}},
	{(*models.Student)(nil), "idx_students_balance", []string{"balance"}},
	{(*models.FeeStructure)(nil), "idx_fee_structures_grade_term", []string{"grade", "term"}},
	{(*models.Payment)(nil), "idx_payments_student_id", []string{"student_id"}},
	{(*models.Payment)(nil), "idx_payments_payment_date", []string{"payment_date"}},
	{(*models.Payment)(nil), "idx_payments_method", []string{"payment_method"}},
	{(*models.BalanceHistory)(nil), "idx_balance_history_student_id", []string{"student_id"}},
	{(*models.SystemLog)(nil), "idx_system_logs_created_at", []string{"created_at"}},
}

// Migrate creates missing tables and indexes. It is safe to run on every start.
func (s *DB) Migrate(ctx context.Context) error {
	for _, t := range tables {
		q := s.bun.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(s.quoteFK(fk))
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("error creating table for %T: %w", t.model, err)
		}
	}

	// MySQL has no CREATE INDEX IF NOT EXISTS
	if s.bun.Dialect().Name() == dialect.MySQL {
		return nil
	}
	for _, ix := range indexes {
		_, err := s.bun.NewCreateIndex().
			Model(ix.model).
			Index(ix.name).
			Column(ix.columns...).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("error creating index %s: %w", ix.name, err)
		}
	}
	return nil
}

// quoteFK rewrites the ANSI identifier quotes for MySQL.
func (s *DB) quoteFK(fk string) string {
	if s.bun.Dialect().Name() != dialect.MySQL {
		return fk
	}
	out := []byte(fk)
	for i, c := range out {
		if c == '"' {
			out[i] = '`'
		}
	}
	return string(out)
}
