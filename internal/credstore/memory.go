// Package credstore provides credential cache backends for assumed-role
// credentials: in-process, SQLite and Postgres.
package credstore

import (
	"context"
	"hash"
	"hash/fnv"
	"sync"
	"time"

	"github.com/nghyane/llm-adapter/internal/auth"
)

const numShards = 16

type memoryShard struct {
	mu      sync.RWMutex
	entries map[string]auth.CachedCredential
}

// Memory is a sharded in-process cache. Expired entries are dropped lazily.
type Memory struct {
	shards [numShards]*memoryShard
	now    func() time.Time
}

var hasherPool = sync.Pool{
	New: func() any { return fnv.New64a() },
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	m := &Memory{now: time.Now}
	for i := range m.shards {
		m.shards[i] = &memoryShard{entries: make(map[string]auth.CachedCredential)}
	}
	return m
}

func (m *Memory) shard(key string) *memoryShard {
	h := hasherPool.Get().(hash.Hash64)
	h.Reset()
	_, _ = h.Write([]byte(key))
	sum := h.Sum64()
	hasherPool.Put(h)
	return m.shards[sum%numShards]
}

func (m *Memory) Get(_ context.Context, key string) (auth.CachedCredential, bool) {
	s := m.shard(key)
	s.mu.RLock()
	cred, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return auth.CachedCredential{}, false
	}
	if !cred.Expiry.IsZero() && !cred.Expiry.After(m.now()) {
		s.mu.Lock()
		if cur, still := s.entries[key]; still && cur.Expiry.Equal(cred.Expiry) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return auth.CachedCredential{}, false
	}
	return cred, true
}

func (m *Memory) Put(_ context.Context, key string, cred auth.CachedCredential) {
	s := m.shard(key)
	s.mu.Lock()
	s.entries[key] = cred
	s.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
