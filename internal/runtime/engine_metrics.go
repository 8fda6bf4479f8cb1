package runtime

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics counts listener notifications. Prometheus collectors are kept
// next to an in-process snapshot served by the admin endpoint.
type EngineMetrics struct {
	mu        sync.RWMutex
	listeners map[string]*ListenerStats

	notificationsTotal *prometheus.CounterVec
	panicsTotal        *prometheus.CounterVec
	notifyDuration     *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// ListenerStats is the per-listener view.
type ListenerStats struct {
	Received       uint64    `json:"received"`
	Sent           uint64    `json:"sent"`
	Panics         uint64    `json:"panics"`
	LastNotifiedAt time.Time `json:"last_notified_at,omitempty"`
}

// EngineMetricsSnapshot is a point-in-time copy of the counters.
type EngineMetricsSnapshot struct {
	Listeners   map[string]ListenerStats `json:"listeners"`
	CollectedAt time.Time                `json:"collected_at"`
}

// NewEngineMetrics creates unregistered collectors; a nil registerer selects
// the default Prometheus registerer.
func NewEngineMetrics(registerer prometheus.Registerer) *EngineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &EngineMetrics{
		listeners:  make(map[string]*ListenerStats),
		registerer: registerer,
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixflow",
			Subsystem: "engine",
			Name:      "notifications_total",
			Help:      "Listener callbacks completed, by listener and direction.",
		}, []string{"listener", "direction"}),
		panicsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fixflow",
			Subsystem: "engine",
			Name:      "listener_panics_total",
			Help:      "Listener callbacks that panicked, by listener and direction.",
		}, []string{"listener", "direction"}),
		notifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fixflow",
			Subsystem: "engine",
			Name:      "notify_duration_seconds",
			Help:      "Time to deliver one message to every listener.",
			Buckets:   []float64{.00001, .0001, .001, .01, .1, 1},
		}, []string{"direction"}),
	}
}

// Register registers the collectors. Safe to call multiple times, also while
// notifications are recorded; collectors already registered by another engine
// are reused.
func (m *EngineMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.registered {
		return nil
	}

	var err error
	if m.notificationsTotal, err = registerOrReuse(m.registerer, m.notificationsTotal); err != nil {
		return err
	}
	if m.panicsTotal, err = registerOrReuse(m.registerer, m.panicsTotal); err != nil {
		return err
	}
	if m.notifyDuration, err = registerOrReuse(m.registerer, m.notifyDuration); err != nil {
		return err
	}
	m.registered = true
	return nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, err
		}
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
		return c, err
	}
	return c, nil
}

func (m *EngineMetrics) recordDelivery(listener string, dir Direction) {
	m.mu.Lock()
	s := m.statsLocked(listener)
	if dir == Received {
		s.Received++
	} else {
		s.Sent++
	}
	s.LastNotifiedAt = time.Now()
	counter := m.notificationsTotal
	m.mu.Unlock()

	counter.WithLabelValues(listener, string(dir)).Inc()
}

func (m *EngineMetrics) recordPanic(listener string, dir Direction) {
	m.mu.Lock()
	s := m.statsLocked(listener)
	s.Panics++
	s.LastNotifiedAt = time.Now()
	counter := m.panicsTotal
	m.mu.Unlock()

	counter.WithLabelValues(listener, string(dir)).Inc()
}

func (m *EngineMetrics) observe(dir Direction, d time.Duration) {
	m.mu.RLock()
	hist := m.notifyDuration
	m.mu.RUnlock()
	hist.WithLabelValues(string(dir)).Observe(d.Seconds())
}

func (m *EngineMetrics) statsLocked(listener string) *ListenerStats {
	s, ok := m.listeners[listener]
	if !ok {
		s = &ListenerStats{}
		m.listeners[listener] = s
	}
	return s
}

// Listener returns the stats for one listener, or nil if it was never notified.
func (m *EngineMetrics) Listener(id string) *ListenerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.listeners[id]
	if !ok {
		return nil
	}
	c := *s
	return &c
}

// Snapshot copies the per-listener counters.
func (m *EngineMetrics) Snapshot() EngineMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]ListenerStats, len(m.listeners))
	for id, s := range m.listeners {
		out[id] = *s
	}
	return EngineMetricsSnapshot{Listeners: out, CollectedAt: time.Now()}
}

// Reset clears the in-process counters; Prometheus counters are left alone.
func (m *EngineMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.listeners)
}
