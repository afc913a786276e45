package pipeline

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
)

// Error taxonomy for pipeline outcomes. Stage code never lets these escape:
// per-unit errors end up inside an Outcome, aggregation errors trigger the
// fallback, and the total deadline degrades the final result.
var (
	// ErrRemote marks a collaborator call that failed or raised.
	ErrRemote = eris.New("remote call failed")

	// ErrTimeout marks a per-task, stage, or total deadline that elapsed.
	ErrTimeout = eris.New("deadline exceeded")

	// ErrMalformed marks a response that could not be parsed into the
	// expected shape.
	ErrMalformed = eris.New("malformed result")
)

// Remote wraps err as a remote-call failure.
func Remote(err error, msg string) error {
	return eris.Wrap(errors.Join(ErrRemote, err), msg)
}

// Timeout wraps err as a deadline failure.
func Timeout(err error, msg string) error {
	return eris.Wrap(errors.Join(ErrTimeout, err), msg)
}

// Malformed wraps err as a parse failure.
func Malformed(err error, msg string) error {
	return eris.Wrap(errors.Join(ErrMalformed, err), msg)
}

// IsTimeout reports whether err is a deadline failure, including raw
// context errors from computations that return ctx.Err() directly.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// Classify maps an arbitrary computation error onto the taxonomy: deadline
// and cancellation errors become ErrTimeout, everything else ErrRemote.
// Errors already carrying a taxonomy sentinel pass through unchanged.
func Classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRemote) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrMalformed) {
		return err
	}
	if IsTimeout(err) {
		return Timeout(err, msg)
	}
	return Remote(err, msg)
}
