package session

import (
	"context"
	"sync"

	"github.com/quorumworks/council/pkg/council"
)

// Publisher is the collaborator-facing progress stream. The session emits
// one ordered sequence of stage events per deliberation, terminating in
// exactly one complete or error event. pkg/council.Client satisfies this
// interface, carrying events over Redis Pub/Sub to WebSocket or CLI
// consumers; tests use MemoryPublisher.
type Publisher interface {
	PublishProgress(ctx context.Context, ev *council.ProgressEvent) error
}

// NopPublisher discards all events. Used when a caller wants a decision but
// no progress stream.
type NopPublisher struct{}

// PublishProgress implements Publisher.
func (NopPublisher) PublishProgress(context.Context, *council.ProgressEvent) error {
	return nil
}

// MemoryPublisher records events in memory, in emission order. Safe for
// concurrent use.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []*council.ProgressEvent
}

// PublishProgress implements Publisher.
func (p *MemoryPublisher) PublishProgress(_ context.Context, ev *council.ProgressEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

// Events returns a copy of all recorded events in emission order.
func (p *MemoryPublisher) Events() []*council.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := make([]*council.ProgressEvent, len(p.events))
	copy(events, p.events)
	return events
}
