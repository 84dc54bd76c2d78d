package audit

import (
	"context"
	"log/slog"

	"github.com/mr1hm/school-finance/internal/metrics"
	"github.com/mr1hm/school-finance/internal/models"
	"github.com/mr1hm/school-finance/internal/worker"
)

type Store interface {
	AddLog(ctx context.Context, l *models.SystemLog) error
}

// Recorder writes system log entries off the request path. When the queue
// is full the entry is written inline so no audit record is lost.
type Recorder struct {
	store   Store
	pool    *worker.Pool[*models.SystemLog]
	metrics *metrics.Finance
}

func NewRecorder(store Store, workers, buffer int, m *metrics.Finance) *Recorder {
	r := &Recorder{store: store, metrics: m}
	r.pool = worker.NewPool("audit", workers, buffer, r.write)
	return r
}

func (r *Recorder) Start(ctx context.Context) {
	r.pool.Start(ctx)
}

// Stop waits for queued entries to be written.
func (r *Recorder) Stop() {
	r.pool.Stop()
}

func (r *Recorder) Record(ctx context.Context, entry *models.SystemLog) {
	if r.pool.TrySubmit(entry) {
		return
	}
	slog.WarnContext(ctx, "audit queue full, writing inline", "action", entry.Action)
	r.observe("inline")
	if err := r.write(context.WithoutCancel(ctx), entry); err != nil {
		slog.ErrorContext(ctx, "audit write failed", "action", entry.Action, "error", err)
	}
}

func (r *Recorder) write(ctx context.Context, entry *models.SystemLog) error {
	if err := r.store.AddLog(ctx, entry); err != nil {
		r.observe("failed")
		return err
	}
	r.observe("written")
	return nil
}

func (r *Recorder) observe(outcome string) {
	if r.metrics == nil {
		return
	}
	r.metrics.AuditEntries.WithLabelValues(outcome).Inc()
}
