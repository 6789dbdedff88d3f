package docstore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Notifier fans out "collection changed" signals between processes.
type Notifier interface {
	Notify(ctx context.Context, collection string) error
	// Watch returns a channel that receives a value after every change to the
	// collection. It is closed when ctx is cancelled.
	Watch(ctx context.Context, collection string) (<-chan struct{}, error)
}

// RedisNotifier publishes change signals over Redis pub/sub.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func channelFor(collection string) string {
	return "docstore:" + collection
}

func (n *RedisNotifier) Notify(ctx context.Context, collection string) error {
	return n.client.Publish(ctx, channelFor(collection), "changed").Err()
}

func (n *RedisNotifier) Watch(ctx context.Context, collection string) (<-chan struct{}, error) {
	pubsub := n.client.Subscribe(ctx, channelFor(collection))
	// Wait for the subscription to be confirmed before reporting success.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}
