package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/aide/config"
)

func TestInMemoryKeepsLastTurnsPerUser(t *testing.T) {
	m := NewInMemory(3, 0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Append(ctx, "alice", Turn{Query: fmt.Sprintf("q%d", i)}))
	}
	require.NoError(t, m.Append(ctx, "bob", Turn{Query: "bob only"}))

	turns, err := m.Recent(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	assert.Equal(t, "q2", turns[0].Query)
	assert.Equal(t, "q4", turns[2].Query)

	turns, err = m.Recent(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"q3", "q4"}, []string{turns[0].Query, turns[1].Query})

	turns, err = m.Recent(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "bob only", turns[0].Query)

	turns, err = m.Recent(ctx, "carol", 10)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestInMemoryExpires(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	m := NewInMemory(5, time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "alice", Turn{Query: "first"}))
	now = now.Add(2 * time.Minute)
	turns, err := m.Recent(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, turns)

	require.NoError(t, m.Append(ctx, "alice", Turn{Query: "second"}))
	turns, err = m.Recent(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "second", turns[0].Query)
}

func TestRecentReturnsCopy(t *testing.T) {
	m := NewInMemory(5, 0)
	ctx := context.Background()
	require.NoError(t, m.Append(ctx, "alice", Turn{Query: "keep"}))
	turns, _ := m.Recent(ctx, "alice", 0)
	turns[0].Query = "changed"
	again, _ := m.Recent(ctx, "alice", 0)
	assert.Equal(t, "keep", again[0].Query)
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()
	m, err := New(ctx, config.SessionConfig{Backend: BackendMemory, MaxTurns: 4})
	require.NoError(t, err)
	assert.IsType(t, &InMemory{}, m)

	m, err = New(ctx, config.SessionConfig{Backend: BackendNone})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, m)

	_, err = New(ctx, config.SessionConfig{Backend: "etcd"})
	assert.Error(t, err)

	_, err = New(ctx, config.SessionConfig{Backend: BackendRedis, Redis: config.RedisConfig{Host: "127.0.0.1", Port: "1", Timeout: 50 * time.Millisecond}})
	assert.Error(t, err)
}
