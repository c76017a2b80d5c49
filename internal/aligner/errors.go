package aligner

import (
	"errors"
	"fmt"
)

// DateAlignmentError reports that no common date window exists between the
// fundamentals and the price history, even after the shifted-start retry.
type DateAlignmentError struct {
	Symbol string
	Reason string
}

func (e *DateAlignmentError) Error() string {
	return fmt.Sprintf("date alignment failed for %s: %s", e.Symbol, e.Reason)
}

// ValidationError reports that the trimmed tables disagree on row count.
type ValidationError struct {
	Symbol       string
	Fundamentals int
	Prices       int
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("could not add the price data for %s: %d != %d", e.Symbol, e.Fundamentals, e.Prices)
}

// IsSkippable reports whether err means the symbol should be skipped while the
// batch carries on.
func IsSkippable(err error) bool {
	var alignErr *DateAlignmentError
	var validationErr *ValidationError
	return errors.As(err, &alignErr) || errors.As(err, &validationErr)
}
