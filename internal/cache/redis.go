// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/keremzytn/NumberFightAI/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list that carries match summaries to the historian.
const DefaultQueueName = "duel_summaries"

const codeKeyPrefix = "room_code:"

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// SummaryQueue pushes finished matches onto a Redis list. The server writes to
// it and cmd/historian drains it into Postgres.
type SummaryQueue struct {
	rdb  *redis.Client
	name string
}

func NewSummaryQueue(rdb *redis.Client, name string) *SummaryQueue {
	if name == "" {
		name = DefaultQueueName
	}
	return &SummaryQueue{rdb: rdb, name: name}
}

// SaveMatchSummary serializes the summary to JSON and RPushes it.
func (q *SummaryQueue) SaveMatchSummary(ctx context.Context, sum models.MatchSummary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to marshal MatchSummary: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.name, err)
	}
	return nil
}

// Pop blocks up to timeout for the next summary. ok is false when the queue
// stayed empty.
func (q *SummaryQueue) Pop(ctx context.Context, timeout time.Duration) (sum models.MatchSummary, ok bool, err error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.name).Result()
	if errors.Is(err, redis.Nil) {
		return models.MatchSummary{}, false, nil
	}
	if err != nil {
		return models.MatchSummary{}, false, fmt.Errorf("BLPop %s: %w", q.name, err)
	}
	// res[0] is the list name, res[1] the payload.
	if len(res) < 2 {
		return models.MatchSummary{}, false, nil
	}
	if err := json.Unmarshal([]byte(res[1]), &sum); err != nil {
		return models.MatchSummary{}, false, fmt.Errorf("invalid match summary: %w", err)
	}
	return sum, true, nil
}

// Len reports how many summaries are waiting.
func (q *SummaryQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.name).Result()
}

// CodeReserver keeps room codes unique across server instances with SETNX.
type CodeReserver struct {
	rdb *redis.Client
}

func NewCodeReserver(rdb *redis.Client) *CodeReserver {
	return &CodeReserver{rdb: rdb}
}

func (c *CodeReserver) Reserve(ctx context.Context, code string, ttl time.Duration) (bool, error) {
	ok, err := c.rdb.SetNX(ctx, codeKeyPrefix+code, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve code %s: %w", code, err)
	}
	return ok, nil
}

func (c *CodeReserver) Release(ctx context.Context, code string) error {
	return c.rdb.Del(ctx, codeKeyPrefix+code).Err()
}
