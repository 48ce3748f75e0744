// Package metrics exposes gateway state and admission outcomes to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skatehub/gateway/internal/app"
	"github.com/skatehub/gateway/internal/domain"
)

const namespace = "skate_gateway"

type StatsSource interface {
	Stats() app.Stats
}

type ConnCounter interface {
	Count() (sessions, subjects int)
}

// Metrics implements auth.Observer and app.BroadcastObserver.
type Metrics struct {
	reg        prometheus.Registerer
	admissions *prometheus.CounterVec
	latency    prometheus.Histogram
	frames     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Connection attempts by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_seconds",
			Help:      "Time spent admitting a connection attempt.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_frames_total",
			Help:      "Frames fanned out to room members by result.",
		}, []string{"room_type", "result"}),
	}
	m.reg = reg
	reg.MustRegister(m.admissions, m.latency, m.frames)
	return m
}

// WatchRooms exports room and connection gauges, read at scrape time.
func (m *Metrics) WatchRooms(stats StatsSource, conns ConnCounter) {
	m.reg.MustRegister(&roomCollector{stats: stats, conns: conns})
}

func (m *Metrics) ObserveAdmission(code domain.Code, elapsed time.Duration) {
	outcome := "admitted"
	if code != "" {
		outcome = string(code)
	}
	m.admissions.WithLabelValues(outcome).Inc()
	m.latency.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveBroadcast(t domain.RoomType, sent, dropped int) {
	m.frames.WithLabelValues(string(t), "sent").Add(float64(sent))
	if dropped > 0 {
		m.frames.WithLabelValues(string(t), "dropped").Add(float64(dropped))
	}
}

// Handler serves the given registry at /metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

var (
	roomsDesc    = prometheus.NewDesc(namespace+"_rooms", "Live rooms by type.", []string{"room_type"}, nil)
	membersDesc  = prometheus.NewDesc(namespace+"_room_members", "Room members by room type.", []string{"room_type"}, nil)
	sessionsDesc = prometheus.NewDesc(namespace+"_sessions", "Open connections.", nil, nil)
	subjectsDesc = prometheus.NewDesc(namespace+"_subjects", "Distinct connected users.", nil, nil)
)

// roomCollector reads registry stats at scrape time.
type roomCollector struct {
	stats StatsSource
	conns ConnCounter
}

func (c *roomCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- roomsDesc
	ch <- membersDesc
	ch <- sessionsDesc
	ch <- subjectsDesc
}

func (c *roomCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.stats.Stats()
	for t, ts := range st.ByType {
		ch <- prometheus.MustNewConstMetric(roomsDesc, prometheus.GaugeValue, float64(ts.Rooms), string(t))
		ch <- prometheus.MustNewConstMetric(membersDesc, prometheus.GaugeValue, float64(ts.Members), string(t))
	}
	sessions, subjects := c.conns.Count()
	ch <- prometheus.MustNewConstMetric(sessionsDesc, prometheus.GaugeValue, float64(sessions))
	ch <- prometheus.MustNewConstMetric(subjectsDesc, prometheus.GaugeValue, float64(subjects))
}
