// Package telemetry records agent executions and completion model calls as
// prometheus metrics. A nil *Telemetry records nothing.
package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohammad-safakhou/aide/internal/llm"
)

// Outcomes of an agent execution.
const (
	OutcomeOK            = "ok"
	OutcomeNotUnderstood = "not_understood"
	OutcomeInvalid       = "invalid"
	OutcomeNotFound      = "not_found"
	OutcomeUnavailable   = "unavailable"
	OutcomeError         = "error"
)

type Telemetry struct {
	agentExecutions *prometheus.CounterVec
	agentDuration   *prometheus.HistogramVec
	llmRequests     *prometheus.CounterVec
	llmLatency      prometheus.Histogram
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		agentExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aide",
			Subsystem: "agent",
			Name:      "executions_total",
			Help:      "Agent executions by domain, operation and outcome.",
		}, []string{"domain", "operation", "outcome"}),
		agentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aide",
			Subsystem: "agent",
			Name:      "execution_seconds",
			Help:      "Time to interpret and run one instruction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"domain"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aide",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Completion requests by outcome.",
		}, []string{"outcome"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "aide",
			Subsystem: "llm",
			Name:      "request_seconds",
			Help:      "Completion request latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}),
	}
	reg.MustRegister(t.agentExecutions, t.agentDuration, t.llmRequests, t.llmLatency)
	return t
}

// RecordAgent records one agent execution. operation may be empty when the
// instruction could not be interpreted.
func (t *Telemetry) RecordAgent(domain, operation, outcome string, d time.Duration) {
	if t == nil {
		return
	}
	if operation == "" {
		operation = "unknown"
	}
	t.agentExecutions.WithLabelValues(domain, operation, outcome).Inc()
	t.agentDuration.WithLabelValues(domain).Observe(d.Seconds())
}

// Instrument wraps c so every completion is counted and timed.
func (t *Telemetry) Instrument(c llm.Completer) llm.Completer {
	if t == nil || c == nil {
		return c
	}
	return llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		start := time.Now()
		out, err := c.Complete(ctx, prompt)
		t.llmLatency.Observe(time.Since(start).Seconds())
		outcome := OutcomeOK
		if err != nil {
			outcome = OutcomeError
		}
		t.llmRequests.WithLabelValues(outcome).Inc()
		return out, err
	})
}
