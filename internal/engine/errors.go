package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while invoking a subevent.
//
// Runtime errors include:
//   - Pass limit: propagation did not settle within the pass ceiling
//   - Depth limit: nested invocations exceeded the depth ceiling
//   - Malformed content: an effect, behavior or condition document is
//     missing required structure
//
// Contract violations (rules.TypeMismatchError) and unknown handlers
// (rules.UnknownHandlerError) are returned unchanged, wrapped with context.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// SubeventID identifies the affected subevent, when known.
	SubeventID string

	// Effect identifies the effect being evaluated, when known.
	Effect string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodePassLimit indicates propagation exceeded the pass ceiling.
	ErrCodePassLimit RuntimeErrorCode = "PASS_LIMIT"

	// ErrCodeDepthLimit indicates nested invocation exceeded the depth ceiling.
	ErrCodeDepthLimit RuntimeErrorCode = "DEPTH_LIMIT"

	// ErrCodeMalformedContent indicates a rules document is structurally invalid.
	ErrCodeMalformedContent RuntimeErrorCode = "MALFORMED_CONTENT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.SubeventID != "" && e.Effect != "" {
		return fmt.Sprintf("%s: %s (subevent=%s, effect=%s)", e.Code, e.Message, e.SubeventID, e.Effect)
	}
	if e.SubeventID != "" {
		return fmt.Sprintf("%s: %s (subevent=%s)", e.Code, e.Message, e.SubeventID)
	}
	if e.Effect != "" {
		return fmt.Sprintf("%s: %s (effect=%s)", e.Code, e.Message, e.Effect)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsPassLimitError reports whether err is a pass ceiling error.
// Uses errors.As to handle wrapped errors.
func IsPassLimitError(err error) bool {
	return hasCode(err, ErrCodePassLimit)
}

// IsDepthLimitError reports whether err is a depth ceiling error.
func IsDepthLimitError(err error) bool {
	return hasCode(err, ErrCodeDepthLimit)
}

// IsMalformedError reports whether err is a malformed content error.
func IsMalformedError(err error) bool {
	return hasCode(err, ErrCodeMalformedContent)
}

// NewPassLimitError creates a RuntimeError for an unsettled propagation.
func NewPassLimitError(subeventID string, passes, maxPasses int) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodePassLimit,
		Message:    fmt.Sprintf("propagation did not settle (%d passes > %d)", passes, maxPasses),
		SubeventID: subeventID,
		Details: map[string]string{
			"passes":     fmt.Sprintf("%d", passes),
			"max_passes": fmt.Sprintf("%d", maxPasses),
		},
	}
}

// NewDepthLimitError creates a RuntimeError for runaway nested invocation.
func NewDepthLimitError(kind string, depth, maxDepth int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDepthLimit,
		Message: fmt.Sprintf("nested %q invocation too deep (%d > %d)", kind, depth, maxDepth),
		Details: map[string]string{
			"subevent":  kind,
			"depth":     fmt.Sprintf("%d", depth),
			"max_depth": fmt.Sprintf("%d", maxDepth),
		},
	}
}

// NewMalformedError creates a RuntimeError for structurally invalid content.
func NewMalformedError(subeventID, effect, message string) *RuntimeError {
	return &RuntimeError{
		Code:       ErrCodeMalformedContent,
		Message:    message,
		SubeventID: subeventID,
		Effect:     effect,
	}
}
