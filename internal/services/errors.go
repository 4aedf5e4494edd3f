package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks lookups for settings, jobs, or photos that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrReadOnly marks privileged-only settings writes attempted without privilege.
	ErrReadOnly = errors.New("readonly violation")
	// ErrValidation marks malformed storage configs or setting values.
	ErrValidation = errors.New("validation error")
	// ErrDeserialization marks corrupt persisted values that fail to decode.
	ErrDeserialization = errors.New("deserialization error")
	// ErrProviderUnavailable marks storage backend I/O failures.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrStageFailure marks domain-level processing errors inside a pipeline stage.
	ErrStageFailure = errors.New("stage failure")
	// ErrNotReady marks queries issued before required initialization completed.
	ErrNotReady = errors.New("not ready")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrStageFailure
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
