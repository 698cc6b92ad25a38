package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/aide/internal/llm"
)

func TestRecordAgent(t *testing.T) {
	tel := New(prometheus.NewRegistry())
	tel.RecordAgent("notes", "create", OutcomeOK, time.Millisecond)
	tel.RecordAgent("notes", "create", OutcomeOK, time.Millisecond)
	tel.RecordAgent("notes", "", OutcomeNotUnderstood, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(tel.agentExecutions.WithLabelValues("notes", "create", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.agentExecutions.WithLabelValues("notes", "unknown", OutcomeNotUnderstood)))
}

func TestInstrumentCountsOutcomes(t *testing.T) {
	tel := New(prometheus.NewRegistry())
	fail := false
	c := tel.Instrument(llm.CompleterFunc(func(ctx context.Context, prompt string) (string, error) {
		if fail {
			return "", errors.New("down")
		}
		return "ok", nil
	}))

	out, err := c.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	fail = true
	_, err = c.Complete(context.Background(), "p")
	assert.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(tel.llmRequests.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(tel.llmRequests.WithLabelValues(OutcomeError)))
}

func TestNilTelemetryIsNoop(t *testing.T) {
	var tel *Telemetry
	tel.RecordAgent("notes", "list", OutcomeOK, time.Second)
	assert.Nil(t, tel.Instrument(nil))
}
