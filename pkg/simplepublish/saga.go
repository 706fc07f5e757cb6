package simplepublish

import (
	"context"
	"log/slog"
)

// Saga action kinds recorded on the committed-actions stack.
const (
	sagaActionDeleteCover = "delete_cover"
	sagaActionDeletePDF   = "delete_pdf"
)

type sagaAction struct {
	kind string
	key  string
	undo func(ctx context.Context) error
}

// saga is the committed-actions stack of a single request. Every external
// write pushes its reversal; unwind pops them in reverse order.
type saga struct {
	op      string
	logger  *slog.Logger
	events  EventSink
	actions []sagaAction
}

func newSaga(op string, logger *slog.Logger, events EventSink) *saga {
	return &saga{op: op, logger: logger, events: events}
}

// record pushes a compensation for a write that has just committed.
func (s *saga) record(kind, key string, undo func(ctx context.Context) error) {
	s.actions = append(s.actions, sagaAction{kind: kind, key: key, undo: undo})
}

// unwind runs every recorded compensation newest first. It runs detached from
// request cancellation and never returns an error: failures are logged and
// reported to the event sink only.
func (s *saga) unwind(ctx context.Context, cause error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(s.actions) - 1; i >= 0; i-- {
		a := s.actions[i]
		err := a.undo(ctx)
		s.events.CompensationFinished(ctx, s.op, a.kind, err)
		if err != nil {
			s.logger.ErrorContext(ctx, "compensation failed",
				"op", s.op, "action", a.kind, "key", a.key, "cause", cause, "err", err)
			continue
		}
		s.logger.InfoContext(ctx, "compensated", "op", s.op, "action", a.kind, "key", a.key)
	}
	s.actions = nil
}
