package ledger

import (
	"errors"
	"fmt"

	"github.com/umbracle/ethgo/jsonrpc/codec"
)

// TransportError is a failure to reach the ledger. It is retryable.
type TransportError struct {
	Method string
	Err    error
}

func (t *TransportError) Error() string {
	return fmt.Sprintf("transport error on '%s': %v", t.Method, t.Err)
}

func (t *TransportError) Unwrap() error {
	return t.Err
}

// RejectedError is returned when the ledger refuses the call or
// reverts the transaction (i.e. wrong oracle index). It is not retryable.
type RejectedError struct {
	Method string
	Code   int
	Reason string
}

func (r *RejectedError) Error() string {
	return fmt.Sprintf("rejected '%s' (%d): %s", r.Method, r.Code, r.Reason)
}

// Outcome is the result of a submission to the ledger
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeTransportError Outcome = "transportError"
	OutcomeRejected       Outcome = "rejected"
)

// OutcomeOf classifies the error returned by an Api call
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return OutcomeRejected
	}
	return OutcomeTransportError
}

// classify wraps an error from the jsonrpc client. Error objects in the
// response come from the node, anything else failed on the way.
func classify(method string, err error) error {
	if err == nil {
		return nil
	}
	var rpcErr *codec.ErrorObject
	if errors.As(err, &rpcErr) {
		return &RejectedError{
			Method: method,
			Code:   rpcErr.Code,
			Reason: rpcErr.Message,
		}
	}
	return &TransportError{
		Method: method,
		Err:    err,
	}
}
