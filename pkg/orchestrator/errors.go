package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrUserCancelled is returned when the user rejects a transaction in the wallet
	ErrUserCancelled = errors.New("transaction cancelled by user")

	// ErrActionNotPermitted is returned when the identity may not perform a withdrawal step
	ErrActionNotPermitted = errors.New("action not permitted for this identity")
)

// SubmissionError is returned when every attempt of a submission failed
type SubmissionError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// SecondaryTransferError reports a failed tip after the primary payment committed.
// It is a warning: the primary payment is not affected.
type SecondaryTransferError struct {
	PrimaryDigest string
	Err           error
}

func (e *SecondaryTransferError) Error() string {
	return fmt.Sprintf("payment %s succeeded, tip failed: %v", e.PrimaryDigest, e.Err)
}

func (e *SecondaryTransferError) Unwrap() error {
	return e.Err
}

// buildError marks a failure raised while building a transaction, before the
// wallet was involved. The user cannot have declined anything at this point.
type buildError struct {
	err error
}

func (e *buildError) Error() string {
	return "build: " + e.err.Error()
}

func (e *buildError) Unwrap() error {
	return e.err
}
