package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func swapPrometheusRegistry(registry *prometheus.Registry) func() {
	oldRegisterer := prometheus.DefaultRegisterer
	oldGatherer := prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = registry
	prometheus.DefaultGatherer = registry
	return func() {
		prometheus.DefaultRegisterer = oldRegisterer
		prometheus.DefaultGatherer = oldGatherer
		ResetAgentMetricsForTest()
	}
}

func getCounterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metricFamilies {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.Metric {
			if !labelsMatch(metric, labels) {
				continue
			}
			if metric.Counter == nil {
				t.Fatalf("metric %s is not a counter", name)
			}
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func labelsMatch(metric *dto.Metric, labels map[string]string) bool {
	if len(metric.Label) != len(labels) {
		return false
	}
	for _, label := range metric.Label {
		if labels[label.GetName()] != label.GetValue() {
			return false
		}
	}
	return true
}

func TestAgentMetrics_CountersIncrement(t *testing.T) {
	registry := prometheus.NewRegistry()
	restore := swapPrometheusRegistry(registry)
	defer restore()
	ResetAgentMetricsForTest()

	m := AgentWithConfig(Config{ServiceName: "cobranca-test", Environment: "test"})
	m.IncJobRun("dunning")
	m.IncJobRun("dunning")
	m.IncDunningQueued("WHATSAPP")
	m.IncDunningSkipped(SkipReasonDailyCap)
	m.IncDispatchAttempt("SMS", DispatchOutcomeFailed)
	m.IncDeadLetter("SMS")
	m.IncEscalation("LEGAL_THREAT")
	m.ObserveJobDuration("dunning", 150*time.Millisecond)

	base := map[string]string{"service": "cobranca-test", "env": "test"}
	withLabels := func(extra map[string]string) map[string]string {
		merged := map[string]string{}
		for k, v := range base {
			merged[k] = v
		}
		for k, v := range extra {
			merged[k] = v
		}
		return merged
	}

	if got := getCounterValue(t, registry, "cobranca_scheduler_job_runs_total", withLabels(map[string]string{"job": "dunning"})); got != 2 {
		t.Fatalf("job runs = %v, want 2", got)
	}
	if got := getCounterValue(t, registry, "cobranca_dunning_queued_total", withLabels(map[string]string{"channel": "WHATSAPP"})); got != 1 {
		t.Fatalf("dunning queued = %v, want 1", got)
	}
	if got := getCounterValue(t, registry, "cobranca_dunning_skipped_total", withLabels(map[string]string{"reason": SkipReasonDailyCap})); got != 1 {
		t.Fatalf("dunning skipped = %v, want 1", got)
	}
	if got := getCounterValue(t, registry, "cobranca_dispatch_attempts_total", withLabels(map[string]string{"channel": "SMS", "outcome": DispatchOutcomeFailed})); got != 1 {
		t.Fatalf("dispatch attempts = %v, want 1", got)
	}
	if got := getCounterValue(t, registry, "cobranca_dispatch_dead_letters_total", withLabels(map[string]string{"channel": "SMS"})); got != 1 {
		t.Fatalf("dead letters = %v, want 1", got)
	}
	if got := getCounterValue(t, registry, "cobranca_escalations_total", withLabels(map[string]string{"reason": "LEGAL_THREAT"})); got != 1 {
		t.Fatalf("escalations = %v, want 1", got)
	}
}

func TestAgentMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *AgentMetrics
	m.IncJobRun("dunning")
	m.IncJobError("dunning")
	m.IncJobTimeout("dunning")
	m.IncDunningQueued("EMAIL")
	m.IncDunningSkipped(SkipReasonAlreadyFired)
	m.IncDunningError()
	m.IncDispatchAttempt("EMAIL", DispatchOutcomeSent)
	m.IncDeadLetter("EMAIL")
	m.IncEscalation("AI_UNCERTAINTY")
	m.ObserveJobDuration("dunning", time.Second)
}
