package app

import (
	"context"
	"log"

	"github.com/luminastudio/booking/internal/services/booking/domain/session"
)

// Dispatcher delivers notification intents produced by committed transitions.
// Implementations must treat delivery as best-effort: the transition is
// already persisted by the time Dispatch runs.
type Dispatcher interface {
	Dispatch(ctx context.Context, intents []session.Intent) error
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, intents []session.Intent) error

// Dispatch satisfies Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, intents []session.Intent) error {
	return f(ctx, intents)
}

// LogDispatcher writes intents to the process log. It stands in for a real
// delivery channel in local and development setups.
type LogDispatcher struct{}

// Dispatch satisfies Dispatcher.
func (LogDispatcher) Dispatch(_ context.Context, intents []session.Intent) error {
	for _, intent := range intents {
		log.Printf("notify %s: session=%s recipient=%s", intent.Type, intent.SessionID, intent.RecipientID)
	}
	return nil
}
