package handoff

import (
	"context"
	"sync"
	"time"
)

// ReplayGuard records consumed token nonces so a token can be redeemed once.
type ReplayGuard interface {
	// Consume marks nonce as used until expiresAt. firstUse is false if it was already marked.
	Consume(ctx context.Context, nonce string, expiresAt time.Time) (firstUse bool, err error)
}

// MemoryReplayGuard is a process-local ReplayGuard. It only protects a single instance.
type MemoryReplayGuard struct {
	consumed map[string]time.Time
	nowFunc  func() time.Time
	mu       sync.Mutex
}

var _ ReplayGuard = (*MemoryReplayGuard)(nil)

func NewMemoryReplayGuard(nowFunc func() time.Time) *MemoryReplayGuard {
	if nowFunc == nil {
		nowFunc = time.Now
	}
	return &MemoryReplayGuard{
		consumed: make(map[string]time.Time),
		nowFunc:  nowFunc,
	}
}

func (g *MemoryReplayGuard) Consume(_ context.Context, nonce string, expiresAt time.Time) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if exp, ok := g.consumed[nonce]; ok && !g.nowFunc().After(exp) {
		return false, nil
	}
	g.consumed[nonce] = expiresAt
	return true, nil
}

// Cleanup removes nonces whose tokens have expired.
func (g *MemoryReplayGuard) Cleanup() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.nowFunc()
	n := 0
	for nonce, exp := range g.consumed {
		if now.After(exp) {
			delete(g.consumed, nonce)
			n++
		}
	}
	return n
}

func (g *MemoryReplayGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.consumed)
}
