package ingest

import (
	"context"

	"github.com/coldwatch/coldwatch/internal/evaluator"
	"github.com/coldwatch/coldwatch/internal/types"
)

// ReadingStore is the persistence the pipeline writes every reading to.
// Both calls are best effort; failures are logged by the caller.
type ReadingStore interface {
	AppendRecord(ctx context.Context, r types.Reading) error
	PersistLast(ctx context.Context, r types.Reading) error
}

// AlertProcessor evaluates a reading against the alert threshold.
type AlertProcessor interface {
	Process(ctx context.Context, r types.Reading) evaluator.Decision
}

// Message is one payload taken off a link.
type Message struct {
	Payload []byte
	// Ack confirms the message to the broker. The session calls it once the
	// message has been processed. Nil when the transport needs no ack.
	Ack func() error
}

// Link is one live, subscribed broker connection.
type Link interface {
	// Messages yields payloads in arrival order. A message is only
	// acknowledged through its Ack, never on receipt.
	Messages() <-chan Message
	// Errors yields at most one transport failure; the link is dead after it.
	Errors() <-chan error
	// Close disconnects from the broker. Safe to call more than once.
	Close() error
}

// Dialer connects and subscribes in one step. The same client identifier
// is passed on every reconnect of a session.
type Dialer interface {
	Dial(ctx context.Context, clientID string) (Link, error)
}
