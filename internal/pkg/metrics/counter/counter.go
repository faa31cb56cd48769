// Package counter keeps webhook outcome counters in a Redis hash.
package counter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const webhookEventsKey = "billing:webhook:events"

type Counter struct {
	rdb *redis.Client
	key string
}

func New(rdb *redis.Client) *Counter {
	return &Counter{rdb: rdb, key: webhookEventsKey}
}

// Field is the hash field for an event type and outcome.
func Field(eventType, outcome string) string {
	return eventType + ":" + outcome
}

// Incr increments the counter for eventType/outcome.
func (c *Counter) Incr(ctx context.Context, eventType, outcome string) error {
	return c.rdb.HIncrBy(ctx, c.key, Field(eventType, outcome), 1).Err()
}

// Snapshot returns every counter without resetting them.
func (c *Counter) Snapshot(ctx context.Context) (map[string]int64, error) {
	data, err := c.rdb.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, err
	}
	return parseCounts(data), nil
}

// Drain returns every counter and resets them. The hash is renamed to a
// temporary key first so increments arriving meanwhile are not lost.
func (c *Counter) Drain(ctx context.Context) (map[string]int64, error) {
	tmpKey := fmt.Sprintf("%s:tmp:%d", c.key, time.Now().UnixNano())
	if err := c.rdb.Rename(ctx, c.key, tmpKey).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return map[string]int64{}, nil
		}
		return nil, err
	}
	defer c.rdb.Del(ctx, tmpKey)

	data, err := c.rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return nil, err
	}
	return parseCounts(data), nil
}

func parseCounts(data map[string]string) map[string]int64 {
	out := make(map[string]int64, len(data))
	for k, v := range data {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out
}
