// Package metrics exposes Prometheus collectors for the HTTP and
// domain layers, plus a small in-memory ring buffer for the
// /metrics/recent debug endpoint in the teacher's style (internal/api/handlers/metrics.go
// called this `metrics.List()` against a package the retrieval pack did
// not carry; rebuilt here against prometheus/client_golang, which is
// already a teacher dependency).
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_http_requests_total",
		Help: "Total HTTP requests processed, by method, endpoint and status code.",
	}, []string{"method", "endpoint", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds, by method, endpoint and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wallet_http_requests_in_flight",
		Help: "Number of HTTP requests currently being processed.",
	})

	WalletOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_operations_total",
		Help: "Total wallet commands processed, by operation and outcome.",
	}, []string{"operation", "outcome"})

	WalletBalance = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallet_balance_snapshot",
		Help:    "Observed wallet balance after a completed command.",
		Buckets: []float64{0, 10, 100, 1000, 10000, 100000},
	})

	TransferAmount = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "wallet_transfer_amount",
		Help:    "Transfer amounts processed by the saga orchestrator.",
		Buckets: []float64{0, 10, 100, 1000, 10000, 100000},
	})

	SagaRecoveryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_saga_recovery_total",
		Help: "Total sagas re-driven by the recovery scanner, by resulting outcome.",
	}, []string{"outcome"})

	FraudAlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_fraud_alerts_total",
		Help: "Total fraud alerts raised, by rule and severity.",
	}, []string{"rule", "severity"})
)

func RecordWalletOperation(operation, outcome string) {
	WalletOperationsTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordWalletBalance(balance float64) {
	WalletBalance.Observe(balance)
}

func RecordTransferAmount(amount float64) {
	TransferAmount.Observe(amount)
}

func RecordSagaRecovery(outcome string) {
	SagaRecoveryTotal.WithLabelValues(outcome).Inc()
}

func RecordFraudAlert(rule, severity string) {
	FraudAlertsTotal.WithLabelValues(rule, severity).Inc()
}

// Entry is one recent request, kept for the debug /metrics/recent
// endpoint — a small window for humans, not a Prometheus replacement.
type Entry struct {
	Label     string    `json:"label"`
	Status    int       `json:"status"`
	Duration  string    `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

const recentCapacity = 200

var (
	recentMu  sync.Mutex
	recent    []Entry
	recentPos int
)

// Record appends to the recent-requests ring buffer surfaced by the
// debug endpoint, independent of the Prometheus collectors above.
func Record(label string, status int, duration time.Duration) {
	recentMu.Lock()
	defer recentMu.Unlock()

	entry := Entry{Label: label, Status: status, Duration: duration.String(), Timestamp: time.Now().UTC()}
	if len(recent) < recentCapacity {
		recent = append(recent, entry)
		return
	}
	recent[recentPos] = entry
	recentPos = (recentPos + 1) % recentCapacity
}

// List returns a snapshot of the recent-requests buffer, oldest first.
func List() []Entry {
	recentMu.Lock()
	defer recentMu.Unlock()

	if len(recent) < recentCapacity {
		out := make([]Entry, len(recent))
		copy(out, recent)
		return out
	}

	out := make([]Entry, 0, recentCapacity)
	out = append(out, recent[recentPos:]...)
	out = append(out, recent[:recentPos]...)
	return out
}
