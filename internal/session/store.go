package session

import (
	"context"
	"sync"
)

// Tokens is what a TokenStore persists.
type Tokens struct {
	Access       string
	Refresh      string
	Subscription Subscription // Cached flag, used when the token has no claim
	Writer       string       // Instance ID of the last writer
}

// Empty reports whether neither token is present.
func (t Tokens) Empty() bool {
	return t.Access == "" && t.Refresh == ""
}

func (t Tokens) sameTokens(o Tokens) bool {
	return t.Access == o.Access && t.Refresh == o.Refresh && t.Subscription == o.Subscription
}

// TokenStore persists session tokens and reports changes made by any writer.
type TokenStore interface {
	Load(ctx context.Context) (Tokens, error)
	Save(ctx context.Context, t Tokens) error
	Clear(ctx context.Context) error
	Watch(fn func(Tokens)) (stop func(), err error)
}

type watchers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Tokens)
}

func (w *watchers) add(fn func(Tokens)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fns == nil {
		w.fns = map[int]func(Tokens){}
	}
	id := w.next
	w.next++
	w.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.fns, id)
			w.mu.Unlock()
		})
	}
}

func (w *watchers) notify(t Tokens) {
	w.mu.Lock()
	fns := make([]func(Tokens), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(t)
	}
}

// MemoryStore keeps tokens in process. Watchers run synchronously on the
// writing goroutine.
type MemoryStore struct {
	mu     sync.Mutex
	tokens Tokens
	w      watchers
}

// NewMemoryStore returns a store seeded with t.
func NewMemoryStore(t Tokens) *MemoryStore {
	return &MemoryStore{tokens: t}
}

func (s *MemoryStore) Load(ctx context.Context) (Tokens, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens, nil
}

func (s *MemoryStore) Save(ctx context.Context, t Tokens) error {
	s.mu.Lock()
	s.tokens = t
	s.mu.Unlock()
	s.w.notify(t)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	return s.Save(ctx, Tokens{})
}

func (s *MemoryStore) Watch(fn func(Tokens)) (func(), error) {
	return s.w.add(fn), nil
}
