package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures that the next run will retry from
	// filesystem state alone (busy or size-unstable files).
	ErrTransient = errors.New("transient failure")
	// ErrSkipped marks files deliberately left in place (no timestamp token).
	ErrSkipped = errors.New("permanently skipped")
	// ErrUnresponsive marks services that outlived their grace period.
	ErrUnresponsive = errors.New("service unresponsive")
	// ErrConfiguration marks unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation marks invalid inputs.
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error message that includes step context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, step, operation, message string, err error) error {
	detail := buildDetail(step, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the error class is expected to clear on a later
// run without operator intervention.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func buildDetail(step, operation, message string) string {
	parts := make([]string, 0, 3)
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "step failure"
	}
	return strings.Join(parts, ": ")
}
