package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

// Redis шина поверх Redis pub/sub для нескольких инстансов сервиса.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "roomgate:"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (b *Redis) Publish(ctx context.Context, ev Event, topics ...string) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	for _, t := range topics {
		if err := b.rdb.Publish(ctx, b.prefix+t, payload).Err(); err != nil {
			return fmt.Errorf("publish %s: %w", t, err)
		}
	}
	return nil
}

func (b *Redis) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	var (
		channels []string
		wildcard bool
	)
	for _, t := range topics {
		if t == AllTopics {
			wildcard = true
			continue
		}
		channels = append(channels, b.prefix+t)
	}

	var ps *redis.PubSub
	switch {
	case wildcard:
		ps = b.rdb.PSubscribe(ctx, b.prefix+"*")
	default:
		ps = b.rdb.Subscribe(ctx, channels...)
	}

	// Ждём подтверждения подписки, иначе ранние события теряются
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	s := &redisSub{ps: ps, ch: make(chan Delivery, subscriptionBuffer)}
	go s.pump(ctx, b.prefix)
	return s, nil
}

type redisSub struct {
	ps   *redis.PubSub
	ch   chan Delivery
	once sync.Once
}

func (s *redisSub) C() <-chan Delivery { return s.ch }

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() { err = s.ps.Close() })
	return err
}

func (s *redisSub) pump(ctx context.Context, prefix string) {
	defer close(s.ch)
	defer s.Close()

	msgs := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn().Str("module", "events.redis").Err(err).Str("channel", msg.Channel).Msg("bad event payload")
				continue
			}
			d := Delivery{Topic: strings.TrimPrefix(msg.Channel, prefix), Event: ev}
			select {
			case s.ch <- d:
			default:
				log.Warn().Str("module", "events.redis").Str("topic", d.Topic).Msg("subscriber buffer full, event dropped")
			}
		}
	}
}
