package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"

	"github.com/MikeSquared-Agency/Prism/internal/analyst"
	"github.com/MikeSquared-Agency/Prism/internal/hermes"
)

const probeTimeout = 10 * time.Second

var (
	backendUp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prism_backend_up",
		Help: "1 when the last probe reached the analysis backend.",
	})
	llmConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prism_backend_llm_connected",
		Help: "1 when the backend reported a working language model.",
	})
)

// Prober is the subset of the analyst client the monitor needs.
type Prober interface {
	Ping(ctx context.Context) error
	TestLLM(ctx context.Context) (*analyst.LLMStatus, error)
}

type Status struct {
	Reachable    bool      `json:"reachable"`
	LLMConnected bool      `json:"llm_connected"`
	Model        string    `json:"model,omitempty"`
	Message      string    `json:"message,omitempty"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

func (s Status) changed(prev *Status) bool {
	return prev == nil || prev.Reachable != s.Reachable || prev.LLMConnected != s.LLMConnected || prev.Model != s.Model
}

// Monitor probes the backend on a cron schedule and keeps the latest result.
type Monitor struct {
	prober Prober
	hermes hermes.Client
	logger *slog.Logger
	cron   *cron.Cron

	mu     sync.RWMutex
	status *Status

	stopOnce sync.Once
}

func New(p Prober, h hermes.Client, logger *slog.Logger) *Monitor {
	return &Monitor{
		prober: p,
		hermes: h,
		logger: logger,
		cron:   cron.New(),
	}
}

// Start probes once and then on schedule, which accepts standard five-field
// cron expressions and descriptors such as "@every 1m".
func (m *Monitor) Start(ctx context.Context, schedule string) error {
	if _, err := m.cron.AddFunc(schedule, func() { m.Probe(ctx) }); err != nil {
		return fmt.Errorf("probe schedule %q: %w", schedule, err)
	}
	go m.Probe(ctx)
	m.cron.Start()
	m.logger.Info("backend monitor started", "schedule", schedule)
	return nil
}

// Stop waits for a running probe to finish.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		<-m.cron.Stop().Done()
	})
}

// Probe checks reachability and, when reachable, the language model.
func (m *Monitor) Probe(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	s := Status{CheckedAt: time.Now().UTC()}
	if err := m.prober.Ping(ctx); err != nil {
		s.Error = err.Error()
	} else {
		s.Reachable = true
		llm, err := m.prober.TestLLM(ctx)
		if err != nil {
			s.Error = err.Error()
		} else {
			s.LLMConnected = llm.Connected
			s.Model = llm.Model
			s.Message = llm.Message
		}
	}

	m.mu.Lock()
	prev := m.status
	m.status = &s
	m.mu.Unlock()

	backendUp.Set(boolGauge(s.Reachable))
	llmConnected.Set(boolGauge(s.LLMConnected))

	if s.changed(prev) {
		m.logger.Info("backend status changed", "reachable", s.Reachable, "llm_connected", s.LLMConnected, "model", s.Model, "error", s.Error)
		m.publish(hermes.BackendStatusEvent{
			Reachable:    s.Reachable,
			LLMConnected: s.LLMConnected,
			Model:        s.Model,
			Error:        s.Error,
			CheckedAt:    s.CheckedAt,
		})
	}
	return s
}

// Status returns the last probe result; false before the first probe.
func (m *Monitor) Status() (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.status == nil {
		return Status{}, false
	}
	return *m.status, true
}

func (m *Monitor) publish(ev hermes.BackendStatusEvent) {
	if m.hermes == nil {
		return
	}
	if err := m.hermes.Publish(hermes.SubjectBackendStatus, ev); err != nil {
		m.logger.Warn("failed to publish event", "subject", hermes.SubjectBackendStatus, "error", err)
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
