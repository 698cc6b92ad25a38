package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "aide:session:"

// Conn opens a client and checks it answers PING.
func Conn(ctx context.Context, host, port, pass string, db int, timeout time.Duration) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%s", host, port),
		DialTimeout: timeout,
		Password:    pass,
		DB:          db,
	})

	pong, err := client.Ping(ctx).Result()
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if pong != "PONG" {
		_ = client.Close()
		return nil, fmt.Errorf("expected PONG, got %s", pong)
	}
	return client, nil
}

// Redis keeps each user's turns in a capped list so several processes can
// share conversation memory.
type Redis struct {
	client   *redis.Client
	maxTurns int
	ttl      time.Duration
}

func NewRedis(client *redis.Client, maxTurns int, ttl time.Duration) *Redis {
	if maxTurns <= 0 {
		maxTurns = 10
	}
	return &Redis{client: client, maxTurns: maxTurns, ttl: ttl}
}

// Client is the underlying connection, shared with other redis users.
func (r *Redis) Client() *redis.Client { return r.client }

func (r *Redis) Close() error { return r.client.Close() }

func key(userID string) string { return keyPrefix + userID }

func (r *Redis) Append(ctx context.Context, userID string, t Turn) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	k := key(userID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, k, data)
	pipe.LTrim(ctx, k, int64(-r.maxTurns), -1)
	if r.ttl > 0 {
		pipe.Expire(ctx, k, r.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) Recent(ctx context.Context, userID string, n int) ([]Turn, error) {
	start := int64(0)
	if n > 0 {
		start = int64(-n)
	}
	vals, err := r.client.LRange(ctx, key(userID), start, -1).Result()
	if err != nil {
		return nil, err
	}
	turns := make([]Turn, 0, len(vals))
	for _, v := range vals {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, nil
}
