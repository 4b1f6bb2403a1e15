package compile

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors classifying every way a compile run can fail. Callers use
// errors.Is against these; the wrapped detail names the entity and rule so the
// spec author can fix the input.
var (
	ErrValidation       = errors.New("validation error")
	ErrAssetUnavailable = errors.New("asset unavailable")
	ErrTimelineGap      = errors.New("timeline gap")
	ErrTimelineOverlap  = errors.New("timeline overlap")
	ErrUnfeasibleTiming = errors.New("unfeasible timing")
	// ErrInternal marks a defensive invariant failure in the emitter. It
	// indicates a compiler bug, never a spec problem, and is always fatal.
	ErrInternal = errors.New("internal consistency error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "compile failure"
	}
	return strings.Join(parts, ": ")
}
