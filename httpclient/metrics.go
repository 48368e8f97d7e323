package httpclient

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the client's Prometheus counters. A nil *metrics records nothing.
type metrics struct {
	requests     *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
	replays      prometheus.Counter
	unauthorized *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, namespace string) (*metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Requests completed by the client, by final outcome.",
		}, []string{"outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "refreshes_total",
			Help:      "Credential refresh calls issued, by result.",
		}, []string{"result"}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "replays_total",
			Help:      "Requests replayed after a successful refresh.",
		}),
		unauthorized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "unauthorized_total",
			Help:      "Unauthorized handler invocations, by failure kind.",
		}, []string{"kind"}),
	}

	var err error
	if m.requests, err = register(reg, m.requests); err != nil {
		return nil, err
	}
	if m.refreshes, err = register(reg, m.refreshes); err != nil {
		return nil, err
	}
	if m.replays, err = register(reg, m.replays); err != nil {
		return nil, err
	}
	if m.unauthorized, err = register(reg, m.unauthorized); err != nil {
		return nil, err
	}

	return m, nil
}

// register registers c, reusing an identical collector that is already registered.
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

func (m *metrics) observeRequest(k Kind) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(k.String()).Inc()
}

func (m *metrics) observeRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *metrics) observeReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

func (m *metrics) observeUnauthorized(k Kind) {
	if m == nil {
		return
	}
	m.unauthorized.WithLabelValues(k.String()).Inc()
}
