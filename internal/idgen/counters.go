package idgen

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// MemoryCounter keeps sequences in process memory.
type MemoryCounter struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{values: make(map[string]int64)}
}

func (c *MemoryCounter) Increment(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name]++
	return c.values[name], nil
}

// Seed sets a sequence's current value so the next Increment returns value+1.
func (c *MemoryCounter) Seed(name string, value int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[name] = value
}

// RedisCounter uses INCR on "counter:<name>".
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Increment(ctx context.Context, name string) (int64, error) {
	return c.client.Incr(ctx, "counter:"+name).Result()
}

// CounterSchema is the DDL for the Postgres counter table.
const CounterSchema = `
CREATE TABLE IF NOT EXISTS counters (
	name TEXT PRIMARY KEY,
	value BIGINT NOT NULL
);`

// PostgresCounter keeps one row per sequence and increments it in a single
// upsert statement.
type PostgresCounter struct {
	pool *pgxpool.Pool
}

func NewPostgresCounter(pool *pgxpool.Pool) *PostgresCounter {
	return &PostgresCounter{pool: pool}
}

func (c *PostgresCounter) Increment(ctx context.Context, name string) (int64, error) {
	var value int64
	err := c.pool.QueryRow(ctx, `
		INSERT INTO counters (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
		RETURNING value
	`, name).Scan(&value)
	return value, err
}
