package messagepipeline

import (
	"errors"
	"fmt"
)

// ErrEmptyBatch is reported when a send is attempted with nothing to send.
var ErrEmptyBatch = errors.New("batch contains no readings")

// ConnectionError reports that the broker could not be reached or refused the handshake.
type ConnectionError struct {
	Broker string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to broker %s: %v", e.Broker, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// PublishError reports a failure while handling one reading of a batch, either
// while encoding it or while handing it to the transport.
type PublishError struct {
	ReadingID int64
	Index     int
	Topic     string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish reading %d (index %d) to topic %q: %v", e.ReadingID, e.Index, e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
