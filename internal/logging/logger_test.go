package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONLevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New(&buf, "warn", "json"), "router")

	l.Info().Msg("hidden")
	l.Warn().Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"component":"router"`)
	assert.Contains(t, out, `"message":"shown"`)
}

func TestNewUnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "loud", "json")
	l.Debug().Msg("debug")
	l.Info().Msg("info")
	assert.False(t, strings.Contains(buf.String(), `"debug"`))
	assert.Contains(t, buf.String(), `"info"`)
}

func TestDetachWithTimeoutSurvivesParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, done := DetachWithTimeout(parent, 50*time.Millisecond)
	defer done()

	cancel()
	require.NoError(t, ctx.Err())

	<-ctx.Done()
	assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}
