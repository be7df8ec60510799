package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config carries the constant labels stamped on every metric.
type Config struct {
	ServiceName string
	Environment string
}

// AgentMetrics captures collection agent health signals.
type AgentMetrics struct {
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
	jobErrors   *prometheus.CounterVec
	jobTimeouts *prometheus.CounterVec

	dunningQueued  *prometheus.CounterVec
	dunningSkipped *prometheus.CounterVec
	dunningErrors  *prometheus.CounterVec

	dispatchAttempts *prometheus.CounterVec
	deadLetters      *prometheus.CounterVec

	escalations *prometheus.CounterVec
}

var (
	agentMetricsOnce sync.Once
	agentMetrics     *AgentMetrics
)

// Agent returns the singleton agent metrics registry.
func Agent() *AgentMetrics {
	return AgentWithConfig(Config{})
}

// AgentWithConfig returns the singleton agent metrics registry using config labels.
func AgentWithConfig(cfg Config) *AgentMetrics {
	agentMetricsOnce.Do(func() {
		agentMetrics = newAgentMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return agentMetrics
}

// ResetAgentMetricsForTest resets the agent metrics singleton for tests.
func ResetAgentMetricsForTest() {
	agentMetricsOnce = sync.Once{}
	agentMetrics = nil
}

func newAgentMetrics(registerer prometheus.Registerer, cfg Config) *AgentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "cobranca"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &AgentMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobranca_scheduler_job_runs_total",
			Help:        "Scheduler job executions.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "cobranca_scheduler_job_duration_seconds",
			Help:        "Scheduler job durations.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobranca_scheduler_job_errors_total",
			Help:        "Scheduler job errors.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobranca_scheduler_job_timeouts_total",
			Help:        "Scheduler jobs cut short by their deadline.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		dunningQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobranca_dunning_queued_total",
			Help:        "Dunning messages enqueued for delivery.",
			ConstLabels: constLabels,
		}, []string{"channel"}),
		dunningSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobranca_dunning_skipped_total",
			Help:        "Dunning steps skipped (already fired, capped, or decision SKIP).",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		dunningErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobranca_dunning_errors_total",
			Help:        "Per-charge dunning failures that did not abort the batch.",
			ConstLabels: constLabels,
		}, []string{}),
		dispatchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobranca_dispatch_attempts_total",
			Help:        "Outbound delivery attempts by outcome.",
			ConstLabels: constLabels,
		}, []string{"channel", "outcome"}),
		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobranca_dispatch_dead_letters_total",
			Help:        "Queue items moved to dead letter.",
			ConstLabels: constLabels,
		}, []string{"channel"}),
		escalations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "cobranca_escalations_total",
			Help:        "Forced or decided human escalations by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
	}

	collectors := []prometheus.Collector{
		m.jobRuns, m.jobDuration, m.jobErrors, m.jobTimeouts,
		m.dunningQueued, m.dunningSkipped, m.dunningErrors,
		m.dispatchAttempts, m.deadLetters, m.escalations,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				_ = already
				continue
			}
		}
	}

	return m
}

func (m *AgentMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *AgentMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *AgentMetrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *AgentMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

func (m *AgentMetrics) IncDunningQueued(channel string) {
	if m == nil {
		return
	}
	m.dunningQueued.WithLabelValues(channel).Inc()
}

func (m *AgentMetrics) IncDunningSkipped(reason string) {
	if m == nil {
		return
	}
	m.dunningSkipped.WithLabelValues(reason).Inc()
}

func (m *AgentMetrics) IncDunningError() {
	if m == nil {
		return
	}
	m.dunningErrors.WithLabelValues().Inc()
}

func (m *AgentMetrics) IncDispatchAttempt(channel, outcome string) {
	if m == nil {
		return
	}
	m.dispatchAttempts.WithLabelValues(channel, outcome).Inc()
}

func (m *AgentMetrics) IncDeadLetter(channel string) {
	if m == nil {
		return
	}
	m.deadLetters.WithLabelValues(channel).Inc()
}

func (m *AgentMetrics) IncEscalation(reason string) {
	if m == nil {
		return
	}
	m.escalations.WithLabelValues(reason).Inc()
}

// Skip reasons used by the dunning scheduler.
const (
	SkipReasonAlreadyFired = "already_fired"
	SkipReasonDailyCap     = "daily_cap"
	SkipReasonDecisionSkip = "decision_skip"
	SkipReasonEscalated    = "escalated"
	SkipReasonNoContext    = "no_context"
)

// Dispatch outcomes.
const (
	DispatchOutcomeSent       = "sent"
	DispatchOutcomeFailed     = "failed"
	DispatchOutcomeDeadLetter = "dead_letter"
)
