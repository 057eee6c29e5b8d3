package rewards

import (
	"github.com/pkg/errors"
)

// Fatal precondition violations. Any of these aborts the replay: they mean
// the event history itself is inconsistent, not that a retry could help.
var (
	// ErrUnknownAccount is returned when a withdrawal references an account
	// that has never deposited.
	ErrUnknownAccount = errors.New("withdrawal references unknown account")

	// ErrShareUnderflow is returned when a withdrawal would drive a share
	// balance below zero.
	ErrShareUnderflow = errors.New("share balance underflow")

	// ErrOutOfOrderEvent is returned when an event arrives for a block below
	// the last accounted block, violating the sequencer's ordering contract.
	ErrOutOfOrderEvent = errors.New("event block precedes last accounted block")

	// ErrUnknownEventType is returned for an event the engine has no handler
	// for.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrEvaluationBlockTooLow is returned by previews asked to evaluate a
	// block the accumulator has already moved past.
	ErrEvaluationBlockTooLow = errors.New("evaluation block precedes last accounted block")
)
