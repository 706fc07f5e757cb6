package simplepublish

import "context"

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) OperationFinished(ctx context.Context, op string, category Category, err error) {}

func (n *NoopEventSink) CompensationFinished(ctx context.Context, op string, action string, err error) {}

func (n *NoopEventSink) ObjectOrphaned(ctx context.Context, op string, key string, err error) {}
