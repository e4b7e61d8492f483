package messagepipeline

import (
	"github.com/illmade-knight/go-mqttnorth/pkg/types"
)

// OutcomeKind classifies how a batch publish ended.
type OutcomeKind int

const (
	// OutcomeSuccess means every reading of the batch was accepted by the transport.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailure means the batch was not delivered; Err holds the cause.
	OutcomeFailure
	// OutcomeCancelled means the caller abandoned the batch before it completed.
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// PublishOutcome is the internal result of a batch publish. Failures stay
// inspectable through Err while the host only ever sees a SendResult.
type PublishOutcome struct {
	Kind   OutcomeKind
	Result types.SendResult
	Err    error
}

// SendResult normalises the outcome to the triple reported to the host. Anything
// other than a success is reported as not delivered.
func (o PublishOutcome) SendResult() types.SendResult {
	if o.Kind != OutcomeSuccess {
		return types.NotDelivered()
	}
	return o.Result
}

func successOutcome(batch types.Batch) PublishOutcome {
	return PublishOutcome{Kind: OutcomeSuccess, Result: types.Delivered(batch)}
}

func failureOutcome(err error) PublishOutcome {
	return PublishOutcome{Kind: OutcomeFailure, Result: types.NotDelivered(), Err: err}
}

func cancelledOutcome(err error) PublishOutcome {
	return PublishOutcome{Kind: OutcomeCancelled, Result: types.NotDelivered(), Err: err}
}
