package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

const subscriptionBuffer = 64

// Local шина внутри одного процесса.
type Local struct {
	mu     sync.RWMutex
	topics map[string]map[*localSub]struct{}
}

func NewLocal() *Local {
	return &Local{topics: make(map[string]map[*localSub]struct{})}
}

type localSub struct {
	bus    *Local
	ch     chan Delivery
	topics []string
	done   chan struct{}
	once   sync.Once
}

func (s *localSub) C() <-chan Delivery { return s.ch }

func (s *localSub) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		for _, t := range s.topics {
			if subs, ok := s.bus.topics[t]; ok {
				delete(subs, s)
				if len(subs) == 0 {
					delete(s.bus.topics, t)
				}
			}
		}
		close(s.ch)
		close(s.done)
	})
	return nil
}

func (b *Local) Subscribe(ctx context.Context, topics ...string) (Subscription, error) {
	s := &localSub{
		bus:    b,
		ch:     make(chan Delivery, subscriptionBuffer),
		topics: topics,
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	for _, t := range topics {
		if _, ok := b.topics[t]; !ok {
			b.topics[t] = make(map[*localSub]struct{})
		}
		b.topics[t][s] = struct{}{}
	}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

func (b *Local) Publish(_ context.Context, ev Event, topics ...string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, t := range topics {
		d := Delivery{Topic: t, Event: ev}
		for s := range b.topics[t] {
			b.deliver(s, d)
		}
		for s := range b.topics[AllTopics] {
			b.deliver(s, d)
		}
	}
	return nil
}

func (b *Local) deliver(s *localSub, d Delivery) {
	select {
	case s.ch <- d:
	default:
		log.Warn().Str("module", "events.local").Str("topic", d.Topic).Str("type", string(d.Event.Type)).Msg("subscriber buffer full, event dropped")
	}
}
