// Package queue carries background work (report archiving) from the API to
// the worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TypeArchiveReport asks the worker to render and archive a verification report.
const TypeArchiveReport = "report:archive"

// Message represents work to be processed.
type Message struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

// ArchivePayload is the body of a TypeArchiveReport message.
type ArchivePayload struct {
	CertificateID string    `json:"certificateId"`
	RequestedAt   time.Time `json:"requestedAt"`
}

// NewArchiveMessage builds a report archive request.
func NewArchiveMessage(certificateID string, requestedAt time.Time) (Message, error) {
	body, err := json.Marshal(ArchivePayload{CertificateID: certificateID, RequestedAt: requestedAt})
	if err != nil {
		return Message{}, err
	}
	return Message{Type: TypeArchiveReport, Body: body}, nil
}

// Publisher enqueues messages.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Consumer streams messages until ctx is done.
type Consumer interface {
	Consume(ctx context.Context) (<-chan Message, error)
}

// Queue is a backend that can do both.
type Queue interface {
	Publisher
	Consumer
}

// Handler processes one message.
type Handler func(ctx context.Context, msg Message) error

// ErrUnknownType is returned by a Mux for unregistered message types.
var ErrUnknownType = errors.New("unknown message type")

// Mux routes messages by type.
type Mux map[string]Handler

func (m Mux) Handle(ctx context.Context, msg Message) error {
	h, ok := m[msg.Type]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}
	return h(ctx, msg)
}

// Drain consumes messages and hands each to h until the stream closes.
// Failures are logged and the message dropped.
func Drain(ctx context.Context, c Consumer, h Handler, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	messages, err := c.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}
	for msg := range messages {
		if err := h(ctx, msg); err != nil {
			log.Warn("message failed", zap.String("type", msg.Type), zap.Error(err))
		}
	}
	return nil
}

// InMemory is a channel-backed queue for dev and tests.
type InMemory struct {
	ch chan Message
}

// NewInMemory creates a bounded in-memory queue.
func NewInMemory(size int) *InMemory {
	return &InMemory{ch: make(chan Message, size)}
}

// Publish enqueues a message, blocking while the buffer is full.
func (q *InMemory) Publish(ctx context.Context, msg Message) error {
	select {
	case q.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume returns a channel for workers.
func (q *InMemory) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case msg := <-q.ch:
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// RedisQueue is a Redis list-backed queue using LPUSH/BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue builds a queue on key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "printshop:reports"
	}
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, raw).Err()
}

// Consume streams messages using BRPOP. Malformed entries are skipped.
func (q *RedisQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			res, err := q.client.BRPop(ctx, 5*time.Second, q.key).Result()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, redis.Nil) {
					time.Sleep(time.Second)
				}
				continue
			}
			if len(res) != 2 {
				continue
			}
			var msg Message
			if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
				continue
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
