// Package session keeps a short per-user conversation memory used as
// context when classifying follow-up queries.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/aide/config"
)

// Turn is one exchange in a conversation.
type Turn struct {
	Query  string    `json:"query"`
	Domain string    `json:"domain,omitempty"`
	Reply  string    `json:"reply"`
	At     time.Time `json:"at"`
}

// Memory stores the last turns of each user. Implementations never return
// one user's turns for another.
type Memory interface {
	Append(ctx context.Context, userID string, t Turn) error
	// Recent returns up to the last n turns, oldest first.
	Recent(ctx context.Context, userID string, n int) ([]Turn, error)
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// New builds the memory selected by cfg.
func New(ctx context.Context, cfg config.SessionConfig) (Memory, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewInMemory(cfg.MaxTurns, cfg.TTL), nil
	case BackendRedis:
		client, err := Conn(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Timeout)
		if err != nil {
			return nil, fmt.Errorf("session redis: %w", err)
		}
		return NewRedis(client, cfg.MaxTurns, cfg.TTL), nil
	case BackendNone:
		return Nop{}, nil
	}
	return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
}

// Nop remembers nothing.
type Nop struct{}

func (Nop) Append(context.Context, string, Turn) error { return nil }

func (Nop) Recent(context.Context, string, int) ([]Turn, error) { return nil, nil }
