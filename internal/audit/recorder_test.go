package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/mr1hm/school-finance/internal/metrics"
	"github.com/mr1hm/school-finance/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type memoryStore struct {
	mu      sync.Mutex
	logs    []models.SystemLog
	fail    bool
	block   chan struct{}
	entered chan struct{}
}

func (s *memoryStore) AddLog(ctx context.Context, l *models.SystemLog) error {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("database is locked")
	}
	s.logs = append(s.logs, *l)
	return nil
}

func (s *memoryStore) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, l := range s.logs {
		out = append(out, l.Action)
	}
	return out
}

func TestRecorder_WritesQueuedEntries(t *testing.T) {
	store := &memoryStore{}
	reg := prometheus.NewRegistry()
	m := metrics.NewFinance(reg)

	r := NewRecorder(store, 2, 10, m)
	r.Start(context.Background())

	for _, action := range []string{"login", "create_student", "create_payment"} {
		r.Record(context.Background(), &models.SystemLog{Action: action})
	}
	r.Stop()

	assert.ElementsMatch(t, []string{"login", "create_student", "create_payment"}, store.actions())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AuditEntries.WithLabelValues("written")))
}

func TestRecorder_FullQueueWritesInline(t *testing.T) {
	store := &memoryStore{block: make(chan struct{}), entered: make(chan struct{}, 10)}
	r := NewRecorder(store, 1, 1, nil)
	r.Start(context.Background())

	// the only worker takes the first entry and blocks in the store
	r.Record(context.Background(), &models.SystemLog{Action: "first"})
	<-store.entered
	// fills the queue
	r.Record(context.Background(), &models.SystemLog{Action: "second"})

	done := make(chan struct{})
	go func() {
		r.Record(context.Background(), &models.SystemLog{Action: "third"})
		close(done)
	}()
	<-store.entered // inline write reached the store
	close(store.block)
	<-done
	r.Stop()

	assert.ElementsMatch(t, []string{"first", "second", "third"}, store.actions())
}

func TestRecorder_StoreFailureCounted(t *testing.T) {
	store := &memoryStore{fail: true}
	reg := prometheus.NewRegistry()
	m := metrics.NewFinance(reg)

	r := NewRecorder(store, 1, 5, m)
	r.Start(context.Background())
	r.Record(context.Background(), &models.SystemLog{Action: "login"})
	r.Stop()

	assert.Empty(t, store.actions())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuditEntries.WithLabelValues("failed")))
}

func TestRecorder_AfterStopWritesInline(t *testing.T) {
	store := &memoryStore{}
	r := NewRecorder(store, 1, 5, nil)
	r.Start(context.Background())
	r.Stop()

	r.Record(context.Background(), &models.SystemLog{Action: "logout"})
	assert.Equal(t, []string{"logout"}, store.actions())
}
