package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "school_finance"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Finance holds the application level counters.
type Finance struct {
	PaymentsRecorded *prometheus.CounterVec
	AmountCollected  prometheus.Counter
	PaymentsDeleted  prometheus.Counter
	FeesApplied      prometheus.Counter
	LoginAttempts    *prometheus.CounterVec
	AuditEntries     *prometheus.CounterVec
	StreamClients    prometheus.Gauge
}

func NewFinance(reg prometheus.Registerer) *Finance {
	m := &Finance{
		PaymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "recorded_total",
			Help:      "Payments recorded, by payment method.",
		}, []string{"method"}),
		AmountCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "amount_collected_total",
			Help:      "Sum of recorded payment amounts in major currency units.",
		}),
		PaymentsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "deleted_total",
			Help:      "Payments deleted with their balance restored.",
		}),
		FeesApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "students",
			Name:      "fees_applied_total",
			Help:      "Fee structures applied to student balances.",
		}),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		AuditEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "entries_total",
			Help:      "System log entries by outcome.",
		}, []string{"outcome"}),
		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "stream_clients",
			Help:      "Connected dashboard event stream clients.",
		}),
	}

	reg.MustRegister(m.PaymentsRecorded, m.AmountCollected, m.PaymentsDeleted, m.FeesApplied,
		m.LoginAttempts, m.AuditEntries, m.StreamClients)
	return m
}
