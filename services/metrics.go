package services

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// 계획 결과 레이블
const (
	PlanResultOK          = "ok"
	PlanResultUnreachable = "unreachable"
	PlanResultTrivial     = "trivial"
)

// Metrics bundles the Prometheus collectors for planning and driving. All methods are safe on a
// nil receiver so components can run without metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	Plans         *prometheus.CounterVec
	PlanDurations prometheus.Histogram
	Drives        prometheus.Counter
	Cancellations prometheus.Counter
	Arrivals      prometheus.Counter
	Ticks         prometheus.Counter
	Clients       prometheus.Gauge
	FlushedLogs   prometheus.Counter
}

// NewMetrics registers the collectors against reg (default registry when nil).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &Metrics{
		gatherer: gatherer,
		Plans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_nav_plans_total",
			Help: "Path planning requests, labeled by result.",
		}, []string{"result"}),
		PlanDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arena_nav_plan_duration_seconds",
			Help:    "Planning latency (snap + A* + smoothing) in seconds.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
		Drives: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_nav_drives_total",
			Help: "Background drives started.",
		}),
		Cancellations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_nav_drive_cancellations_total",
			Help: "Drives cancelled before reaching the end of their path.",
		}),
		Arrivals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_nav_arrivals_total",
			Help: "Paths followed to the end.",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_nav_ticks_total",
			Help: "Simulated control ticks executed.",
		}),
		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_nav_websocket_clients",
			Help: "Connected telemetry websocket clients.",
		}),
		FlushedLogs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "arena_nav_logs_flushed_total",
			Help: "Drive log rows written to the database.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.Plans, m.PlanDurations, m.Drives, m.Cancellations, m.Arrivals, m.Ticks, m.Clients, m.FlushedLogs,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register metrics")
		}
	}
	return m, nil
}

// Gatherer - /metrics 핸들러용
func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil || m.gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return m.gatherer
}

// ObservePlan - 계획 결과와 소요 시간 기록
func (m *Metrics) ObservePlan(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.Plans.WithLabelValues(result).Inc()
	m.PlanDurations.Observe(took.Seconds())
}

// DriveStarted - 주행 시작 카운트
func (m *Metrics) DriveStarted() {
	if m == nil {
		return
	}
	m.Drives.Inc()
}

// DriveCancelled - 주행 취소 카운트
func (m *Metrics) DriveCancelled() {
	if m == nil {
		return
	}
	m.Cancellations.Inc()
}

// Arrived - 도착 카운트
func (m *Metrics) Arrived() {
	if m == nil {
		return
	}
	m.Arrivals.Inc()
}

// Tick - 시뮬레이션 틱 카운트
func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.Ticks.Inc()
}

// SetClients - 연결된 클라이언트 수
func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.Clients.Set(float64(n))
}

// LogsFlushed - 저장된 로그 수 누적
func (m *Metrics) LogsFlushed(n int) {
	if m == nil {
		return
	}
	m.FlushedLogs.Add(float64(n))
}
