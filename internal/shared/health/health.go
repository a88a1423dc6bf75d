package health

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"taxi-realtime/internal/shared/util"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// Check tests one dependency; nil means it is up.
type Check func(ctx context.Context) error

// Gauge reports a live count, such as open websocket sessions.
type Gauge func() int

type Report struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Gauges    map[string]int    `json:"gauges,omitempty"`
}

// Monitor runs the registered checks on every request. It is not safe to
// register checks once it serves traffic.
type Monitor struct {
	service string
	timeout time.Duration
	checks  map[string]Check
	gauges  map[string]Gauge
}

// NewMonitor builds a monitor whose checks each get timeout to answer.
func NewMonitor(service string, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Monitor{
		service: service,
		timeout: timeout,
		checks:  make(map[string]Check),
		gauges:  make(map[string]Gauge),
	}
}

func (m *Monitor) AddCheck(name string, c Check) *Monitor {
	m.checks[name] = c
	return m
}

func (m *Monitor) AddGauge(name string, g Gauge) *Monitor {
	m.gauges[name] = g
	return m
}

// Names lists the registered checks in order.
func (m *Monitor) Names() []string {
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Report runs every check concurrently and reads every gauge.
func (m *Monitor) Report(ctx context.Context) Report {
	report := Report{
		Status:    StatusHealthy,
		Service:   m.service,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]string, len(m.checks)),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range m.checks {
		wg.Add(1)
		go func(name string, check Check) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			err := check(checkCtx)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Status = StatusUnhealthy
				report.Checks[name] = "down"
				return
			}
			report.Checks[name] = "up"
		}(name, check)
	}
	wg.Wait()

	if len(m.gauges) > 0 {
		report.Gauges = make(map[string]int, len(m.gauges))
		for name, g := range m.gauges {
			report.Gauges[name] = g()
		}
	}
	return report
}

// ServeHTTP answers 200 when every check is up and 503 otherwise.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := m.Report(r.Context())
	code := http.StatusOK
	if report.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	util.ResponseInJson(w, code, report)
}

var ErrConnectionClosed = errors.New("connection closed")

// Pinger checks anything that can be pinged, such as a pgx pool.
func Pinger(p interface{ Ping(context.Context) error }) Check {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}

// Connection checks a long-lived connection, such as an AMQP connection.
func Connection(c interface{ IsClosed() bool }) Check {
	return func(context.Context) error {
		if c.IsClosed() {
			return ErrConnectionClosed
		}
		return nil
	}
}
