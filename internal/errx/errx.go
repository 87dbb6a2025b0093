// Package errx wraps sentinel errors with context while keeping them
// matchable through errors.Is.
package errx

import "fmt"

// Wrap joins a sentinel with the underlying cause. Both remain visible to
// errors.Is and errors.As.
func Wrap(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// With appends formatted detail to a sentinel. The format is written
// directly after the sentinel text, so callers usually start it with ": "
// or a space. A %w verb in format wraps an additional error.
func With(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w"+format, append([]any{sentinel}, args...)...)
}
