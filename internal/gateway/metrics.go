package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver counts reconnect attempts by result and exports the
// heartbeat age of a HealthState.
type PrometheusObserver struct {
	reconnects *prometheus.CounterVec
}

func NewPrometheusObserver(namespace string, reg prometheus.Registerer, health *HealthState) *PrometheusObserver {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &PrometheusObserver{
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_reconnects_total",
			Help:      "Gateway reconnect attempts by result",
		}, []string{"result"}),
	}
	reg.MustRegister(m.reconnects)

	if health != nil {
		reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gateway_heartbeat_age_seconds",
				Help:      "Seconds since the last gateway heartbeat",
			}, func() float64 { return health.HeartbeatAge().Seconds() }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gateway_connected",
				Help:      "1 when the gateway connection is up",
			}, func() float64 {
				if health.State() == StateConnected {
					return 1
				}
				return 0
			}),
		)
	}
	return m
}

func (m *PrometheusObserver) ReconnectSucceeded(int, string) {
	m.reconnects.WithLabelValues("succeeded").Inc()
}

func (m *PrometheusObserver) ReconnectFailed(int, string, error) {
	m.reconnects.WithLabelValues("failed").Inc()
}

// ReconnectObservers fans reconnect events out to every member.
type ReconnectObservers []ReconnectObserver

func (o ReconnectObservers) ReconnectSucceeded(attempt int, reason string) {
	for _, obs := range o {
		obs.ReconnectSucceeded(attempt, reason)
	}
}

func (o ReconnectObservers) ReconnectFailed(attempt int, reason string, err error) {
	for _, obs := range o {
		obs.ReconnectFailed(attempt, reason, err)
	}
}
