package messagepipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// WithSession opens exactly one session on the connector, runs body with it and
// closes the session on every exit path, including a panic inside body, before
// returning. A connect failure is returned as a *ConnectionError and body is not run.
// A close failure is logged and never replaces the error returned by body.
func WithSession(ctx context.Context, connector Connector, logger zerolog.Logger, body SessionBody) error {
	if connector == nil {
		return &ConnectionError{Broker: "<none>", Err: errors.New("no connector configured")}
	}
	broker := connector.Broker()

	session, err := connector.Connect(ctx)
	if err != nil {
		var connErr *ConnectionError
		if errors.As(err, &connErr) {
			return err
		}
		return &ConnectionError{Broker: broker, Err: err}
	}
	if session == nil {
		return &ConnectionError{Broker: broker, Err: fmt.Errorf("connector returned no session")}
	}
	logger.Debug().Str("broker", broker).Msg("Broker session opened.")

	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Str("broker", broker).Msg("Failed to close broker session cleanly.")
			return
		}
		logger.Debug().Str("broker", broker).Msg("Broker session closed.")
	}()

	return body(ctx, session)
}
