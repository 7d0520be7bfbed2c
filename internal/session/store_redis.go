package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"sports-analytics/internal/logger"
)

// RedisStore keeps tokens in a Redis hash so sessions survive restarts and
// can be shared across hosts. Writers publish on <prefix>:changed.
type RedisStore struct {
	client  *redis.Client
	key     string
	channel string
	w       watchers

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

// NewRedisStore uses client with keys under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "session"
	}
	return &RedisStore{
		client:  client,
		key:     prefix + ":tokens",
		channel: prefix + ":changed",
	}
}

func (s *RedisStore) Load(ctx context.Context) (Tokens, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Tokens{}, fmt.Errorf("reading tokens: %w", err)
	}
	return Tokens{
		Access:       fields[keyAccess],
		Refresh:      fields[keyRefresh],
		Subscription: Subscription(fields[keySubscription]),
		Writer:       fields[keyWriter],
	}, nil
}

func (s *RedisStore) Save(ctx context.Context, t Tokens) error {
	values := map[string]interface{}{}
	var drop []string
	for key, value := range map[string]string{
		keyAccess:       t.Access,
		keyRefresh:      t.Refresh,
		keySubscription: string(t.Subscription),
		keyWriter:       t.Writer,
	} {
		if value == "" {
			drop = append(drop, key)
			continue
		}
		values[key] = value
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(drop) > 0 {
			pipe.HDel(ctx, s.key, drop...)
		}
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		pipe.Publish(ctx, s.channel, t.Writer)
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing tokens: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		pipe.Publish(ctx, s.channel, "")
		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing tokens: %w", err)
	}
	return nil
}

// Watch subscribes to the change channel. Every store write, this process's
// included, is delivered through Pub/Sub.
func (s *RedisStore) Watch(fn func(Tokens)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pubsub == nil {
		ctx := context.Background()
		pubsub := s.client.Subscribe(ctx, s.channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			return nil, fmt.Errorf("subscribing to %s: %w", s.channel, err)
		}
		s.pubsub = pubsub
		s.done = make(chan struct{})
		go s.listen(pubsub, s.done)
	}
	return s.w.add(fn), nil
}

func (s *RedisStore) listen(pubsub *redis.PubSub, done chan struct{}) {
	defer close(done)
	for range pubsub.Channel() {
		t, err := s.Load(context.Background())
		if err != nil {
			logger.Warn("session: reloading tokens after change: %v", err)
			continue
		}
		s.w.notify(t)
	}
}

// Close stops the subscription. The client is owned by the caller.
func (s *RedisStore) Close() error {
	s.mu.Lock()
	pubsub, done := s.pubsub, s.done
	s.pubsub, s.done = nil, nil
	s.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
