package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters for the scan and diploma pipelines.
type Metrics struct {
	ScansTotal           *prometheus.CounterVec
	DiplomasSentTotal    prometheus.Counter
	DiplomaFailuresTotal *prometheus.CounterVec
	MailChannelUp        prometheus.Gauge
}

// New registers the collectors on reg; pass nil to use the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_scans_total",
			Help: "Total badge scans by result",
		}, []string{"result"}),
		DiplomasSentTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "checkin_diplomas_sent_total",
			Help: "Total diplomas delivered and marked",
		}),
		DiplomaFailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_diploma_failures_total",
			Help: "Total failed diploma issuance attempts by reason",
		}, []string{"reason"}),
		MailChannelUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "checkin_mail_channel_up",
			Help: "1 when the mail channel has an active transport",
		}),
	}
}

// ObserveScan records one scan outcome.
func (m *Metrics) ObserveScan(result string) {
	m.ScansTotal.WithLabelValues(result).Inc()
}

// ObserveDiplomaSent records one delivered diploma.
func (m *Metrics) ObserveDiplomaSent() {
	m.DiplomasSentTotal.Inc()
}

// ObserveDiplomaFailure records one failed issuance attempt.
func (m *Metrics) ObserveDiplomaFailure(reason string) {
	m.DiplomaFailuresTotal.WithLabelValues(reason).Inc()
}

// SetMailChannelUp flags whether an active transport exists.
func (m *Metrics) SetMailChannelUp(up bool) {
	if up {
		m.MailChannelUp.Set(1)
		return
	}
	m.MailChannelUp.Set(0)
}
