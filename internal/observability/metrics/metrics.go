package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for sweep and booking-attempt flows.
type BookingMetrics struct {
	sweepsTotal    prometheus.Counter
	centersScanned prometheus.Counter
	attemptsTotal  *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		sweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dosehunt",
			Subsystem: "sweep",
			Name:      "sweeps_total",
			Help:      "Total full passes over the discovered centers",
		}),
		centersScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dosehunt",
			Subsystem: "sweep",
			Name:      "centers_scanned_total",
			Help:      "Total centers a booking attempt was made against",
		}),
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dosehunt",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sweepsTotal, m.centersScanned, m.attemptsTotal)
	return m
}

func (m *BookingMetrics) ObserveSweep() {
	if m == nil {
		return
	}
	m.sweepsTotal.Inc()
}

func (m *BookingMetrics) ObserveCenter() {
	if m == nil {
		return
	}
	m.centersScanned.Inc()
}

func (m *BookingMetrics) ObserveAttempt(outcome string) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(outcome).Inc()
}
