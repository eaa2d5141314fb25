package matcher

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics はマッチング処理のPrometheusメトリクス。
// nilのMetricsは何も記録しない。
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      prometheus.Histogram
	pushes        *prometheus.CounterVec
	compensations *prometheus.CounterVec
	claimRetries  prometheus.Counter
	calls         *prometheus.CounterVec
}

// NewMetrics はregにメトリクスを登録する。regがnilの場合は既定のレジストラを使う。
// 既に登録済みのコレクタがあればそれを再利用する。
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seeforme_match_requests_total",
		Help: "Total number of match requests by outcome",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "seeforme_match_duration_seconds",
		Help:    "Time spent handling a match request",
		Buckets: prometheus.DefBuckets,
	})
	pushes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seeforme_push_sends_total",
		Help: "Total number of incoming call notifications by result",
	}, []string{"result"})
	compensations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seeforme_reservation_releases_total",
		Help: "Total number of compensating releases after a failed notification",
	}, []string{"result"})
	claimRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "seeforme_claim_conflicts_total",
		Help: "Total number of lost atomic claims that caused a reselection",
	})
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "seeforme_call_requests_total",
		Help: "Total number of broadcast and direct call requests by outcome",
	}, []string{"kind", "outcome"})

	var err error
	if requests, err = register(reg, requests); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if pushes, err = register(reg, pushes); err != nil {
		return nil, err
	}
	if compensations, err = register(reg, compensations); err != nil {
		return nil, err
	}
	if claimRetries, err = register(reg, claimRetries); err != nil {
		return nil, err
	}
	if calls, err = register(reg, calls); err != nil {
		return nil, err
	}

	return &Metrics{
		requests:      requests,
		duration:      duration,
		pushes:        pushes,
		compensations: compensations,
		claimRetries:  claimRetries,
		calls:         calls,
	}, nil
}

// register はcをregに登録する。登録済みの場合は既存のコレクタを返す。
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observeRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) observePush(ok bool) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) observeCompensation(ok bool) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(resultLabel(ok)).Inc()
}

func (m *Metrics) observeClaimConflict() {
	if m == nil {
		return
	}
	m.claimRetries.Inc()
}

func (m *Metrics) observeCall(kind, outcome string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(kind, outcome).Inc()
}

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
