// Package ratelimit ограничивает частоту запросов по произвольному ключу
// методом фиксированного окна.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	count       int
	windowStart time.Time
}

// Limiter пропускает не больше max запросов на ключ за window.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     int
	window  time.Duration
	now     func() time.Time
}

func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		max:     maxRequests,
		window:  window,
		now:     time.Now,
	}
}

// Allow учитывает запрос и сообщает, укладывается ли он в лимит.
// Нулевой max отключает ограничение.
func (l *Limiter) Allow(key string) bool {
	if l.max <= 0 {
		return true
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || now.Sub(b.windowStart) > l.window {
		l.buckets[key] = &bucket{count: 1, windowStart: now}
		return true
	}
	b.count++
	return b.count <= l.max
}

// RetryAfter сколько ждать до открытия следующего окна.
func (l *Limiter) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		return 0
	}
	remaining := l.window - l.now().Sub(b.windowStart)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Run периодически удаляет истёкшие окна, пока не закрыт done.
func (l *Limiter) Run(done <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-done:
			return
		}
	}
}

func (l *Limiter) cleanup() {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.windowStart) > l.window {
			delete(l.buckets, key)
		}
	}
}
