package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means the user has no row of the requested kind.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument covers malformed input: negative amounts, unknown
	// streak or metric types, empty user ids.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrTransactionFailure wraps storage failures that rolled a grant back.
	ErrTransactionFailure = errors.New("transaction failed")
)

// PartialGrantFailure is returned by CheckMilestones when some thresholds
// were committed before a later one failed. The failed remainder has been
// queued for reconciliation.
type PartialGrantFailure struct {
	MetricType string
	Awarded    []int64
	Failed     int64
	Err        error
}

func (e *PartialGrantFailure) Error() string {
	awarded := make([]string, len(e.Awarded))
	for i, t := range e.Awarded {
		awarded[i] = fmt.Sprint(t)
	}
	return fmt.Sprintf("milestone %s: threshold %d failed after awarding [%s]: %v",
		e.MetricType, e.Failed, strings.Join(awarded, ","), e.Err)
}

func (e *PartialGrantFailure) Unwrap() error { return e.Err }

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func txFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidArgument) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrTransactionFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrTransactionFailure, op, err)
}
