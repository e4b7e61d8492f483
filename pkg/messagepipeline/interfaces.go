package messagepipeline

import (
	"context"
)

// ====================================================================================
// This file defines the contracts between the batch publisher and the broker
// transports. A Connector opens one Session per batch; the Session is owned by
// that batch alone and is closed before the publish call returns.
// ====================================================================================

// --- Transport: Session ---

// Session is one live connection to a broker.
type Session interface {
	// Publish sends a single payload to the given topic with the requested
	// delivery-quality level and blocks until the broker transport has accepted it.
	Publish(ctx context.Context, topic string, payload []byte, qos byte) error
	// Close tears the connection down. It must be safe to call after a failed Publish.
	Close() error
}

// --- Transport: Connector ---

// Connector opens sessions. Implementations must not pool or reuse connections:
// every call to Connect yields a fresh Session.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
	// Broker describes the target for logs and errors, e.g. "tcp://127.0.0.1:1883".
	Broker() string
}

// SessionBody is the work performed while a session is open.
type SessionBody func(ctx context.Context, session Session) error
