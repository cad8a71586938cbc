package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service collectors. One instance is registered at
// startup and shared by the HTTP layer.
type Metrics struct {
	Scans            *prometheus.CounterVec
	DoorOpens        *prometheus.CounterVec
	NonceReplays     prometheus.Counter
	AssistantsInside prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acceso_scans_total",
			Help: "Processed scans by result.",
		}, []string{"result"}),
		DoorOpens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "acceso_door_open_attempts_total",
			Help: "Door open attempts by outcome.",
		}, []string{"outcome"}),
		NonceReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "acceso_nonce_replays_total",
			Help: "Signed tokens seen more than once inside their window.",
		}),
		AssistantsInside: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "acceso_assistants_inside",
			Help: "Assistant occupancy at the last policy evaluation.",
		}),
	}
	reg.MustRegister(m.Scans, m.DoorOpens, m.NonceReplays, m.AssistantsInside)
	return m
}
