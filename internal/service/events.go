package service

import (
	"context"

	"licitacao/internal/event"
)

// EventPublisher receives notifications after a workflow mutation commits.
// Implementations must not block the caller.
type EventPublisher interface {
	Publish(ctx context.Context, evt event.Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, event.Event) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
