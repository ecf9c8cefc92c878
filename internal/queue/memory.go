package queue

import (
	"context"
	"fmt"
	"sync"
)

// NoopPublisher discards every event. Used when events are disabled.
type NoopPublisher struct{}

// Publish implements harvest.Publisher and does nothing.
func (NoopPublisher) Publish(_ context.Context, _ string, _ any) (string, error) {
	return "noop", nil
}

// MemoryPublisher records published payloads for test assertions.
type MemoryPublisher struct {
	mu       sync.Mutex
	payloads []any
}

// NewMemoryPublisher creates an empty MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish implements harvest.Publisher.
func (p *MemoryPublisher) Publish(_ context.Context, _ string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payloads = append(p.payloads, payload)
	return fmt.Sprintf("mem-%d", len(p.payloads)), nil
}

// Published returns a copy of the recorded payloads.
func (p *MemoryPublisher) Published() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]any(nil), p.payloads...)
}
