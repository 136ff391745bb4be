package llm

import (
	"context"
	"sync"
)

// UsageTracker decorates a Provider and accumulates token usage across
// every Chat call. Safe for concurrent use.
type UsageTracker struct {
	inner Provider

	mu    sync.Mutex
	total Usage
}

// TrackUsage wraps a provider with usage accounting.
func TrackUsage(p Provider) *UsageTracker {
	return &UsageTracker{inner: p}
}

func (t *UsageTracker) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, err := t.inner.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.total = t.total.Add(resp.Usage)
	t.mu.Unlock()
	return resp, nil
}

// Total returns the usage accumulated so far.
func (t *UsageTracker) Total() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
