package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "paywall"

// Metrics exposes Prometheus collectors for membership activity.
type Metrics struct {
	accessDecisions   *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	checkouts         *prometheus.CounterVec
	redemptions       *prometheus.CounterVec
	expiredBySweep    prometheus.Counter
	requestDuration   *prometheus.HistogramVec
	levelCacheLookups *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the process-wide metrics registered with the default
// Prometheus registry. Collectors are created once so repeated service
// construction does not panic on duplicate registration.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = MustNew(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// MustNew constructs and registers collectors with reg. Registration errors
// panic, mirroring promauto.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		accessDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "decisions_total",
			Help:      "Content access decisions by outcome and reason code.",
		}, []string{"allowed", "reason"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "member",
			Name:      "transitions_total",
			Help:      "Membership status transitions.",
		}, []string{"from", "to"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "checkout",
			Name:      "started_total",
			Help:      "Checkouts started by outcome (free, pending, activated).",
		}, []string{"outcome"}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discount",
			Name:      "redemptions_total",
			Help:      "Discount code redemptions by discount unit.",
		}, []string{"unit"}),
		expiredBySweep: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "members_expired_total",
			Help:      "Members expired by the expiration sweep.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		levelCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "level_cache",
			Name:      "lookups_total",
			Help:      "Subscription level cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.accessDecisions,
		m.transitions,
		m.checkouts,
		m.redemptions,
		m.expiredBySweep,
		m.requestDuration,
		m.levelCacheLookups,
	)
	return m
}

// ObserveAccessDecision counts one access decision.
func (m *Metrics) ObserveAccessDecision(allowed bool, reason string) {
	if m == nil {
		return
	}
	m.accessDecisions.WithLabelValues(strconv.FormatBool(allowed), reason).Inc()
}

// ObserveTransition counts one membership status change.
func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// ObserveCheckout counts one started checkout.
func (m *Metrics) ObserveCheckout(outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(outcome).Inc()
}

// ObserveRedemption counts one discount redemption.
func (m *Metrics) ObserveRedemption(unit string) {
	if m == nil {
		return
	}
	m.redemptions.WithLabelValues(unit).Inc()
}

// AddExpired adds members expired by one sweep batch.
func (m *Metrics) AddExpired(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.expiredBySweep.Add(float64(count))
}

// ObserveRequest records one HTTP request duration.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// ObserveLevelCache counts one level cache lookup.
func (m *Metrics) ObserveLevelCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.levelCacheLookups.WithLabelValues(result).Inc()
}
