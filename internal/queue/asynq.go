package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// AsynqPublisher enqueues messages as asynq tasks.
type AsynqPublisher struct {
	client *asynq.Client
}

// NewAsynqPublisher connects an asynq client to redis.
func NewAsynqPublisher(opt asynq.RedisClientOpt) *AsynqPublisher {
	return &AsynqPublisher{client: asynq.NewClient(opt)}
}

func (p *AsynqPublisher) Publish(ctx context.Context, msg Message) error {
	task := asynq.NewTask(msg.Type, msg.Body, asynq.MaxRetry(5), asynq.Timeout(2*time.Minute))
	if _, err := p.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue %s: %w", msg.Type, err)
	}
	return nil
}

func (p *AsynqPublisher) Close() error {
	return p.client.Close()
}

// AsynqHandler adapts a Handler to asynq's task interface.
func AsynqHandler(h Handler) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, Message{Type: t.Type(), Body: t.Payload()})
	}
}

// NewServeMux registers every route of m on an asynq mux.
func NewServeMux(m Mux) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	for typ, h := range m {
		mux.Handle(typ, AsynqHandler(h))
	}
	return mux
}
