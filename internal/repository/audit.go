package repository

import (
	"context"
	"fmt"

	"github.com/mr1hm/school-finance/internal/models"
)

func (s *DB) AddLog(ctx context.Context, l *models.SystemLog) error {
	if _, err := s.bun.NewInsert().Model(l).Exec(ctx); err != nil {
		return fmt.Errorf("error writing system log %s: %w", l.Action, err)
	}
	return nil
}

func (s *DB) ListLogs(ctx context.Context, limit int) ([]models.SystemLog, error) {
	var logs []models.SystemLog
	err := s.bun.NewSelect().Model(&logs).OrderExpr("l.id DESC").Limit(limit).Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing system logs: %w", err)
	}
	return logs, nil
}
