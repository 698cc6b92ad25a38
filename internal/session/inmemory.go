package session

import (
	"context"
	"sync"
	"time"
)

type conversation struct {
	turns   []Turn
	expires time.Time
}

// InMemory keeps conversations in process.
type InMemory struct {
	mu       sync.RWMutex
	convs    map[string]*conversation
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

// NewInMemory keeps at most maxTurns per user. A zero ttl never expires.
func NewInMemory(maxTurns int, ttl time.Duration) *InMemory {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &InMemory{convs: make(map[string]*conversation), maxTurns: maxTurns, ttl: ttl, now: time.Now}
}

func (m *InMemory) Append(_ context.Context, userID string, t Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[userID]
	if !ok || m.expired(c) {
		c = &conversation{}
		m.convs[userID] = c
	}
	c.turns = append(c.turns, t)
	if len(c.turns) > m.maxTurns {
		c.turns = append([]Turn(nil), c.turns[len(c.turns)-m.maxTurns:]...)
	}
	if m.ttl > 0 {
		c.expires = m.now().Add(m.ttl)
	}
	return nil
}

func (m *InMemory) Recent(_ context.Context, userID string, n int) ([]Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.convs[userID]
	if !ok || m.expired(c) {
		return nil, nil
	}
	turns := c.turns
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]Turn(nil), turns...), nil
}

func (m *InMemory) expired(c *conversation) bool {
	return !c.expires.IsZero() && m.now().After(c.expires)
}
