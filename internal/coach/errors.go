package coach

import (
	"errors"
	"fmt"

	"github.com/fitstack/coach/pkg/models"
)

// Sentinel errors for the routing layer. Callers branch with errors.Is.
var (
	// ErrProfileNotFound indicates the user has no profile row at all.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidKind indicates an agent kind outside the closed set.
	ErrInvalidKind = errors.New("invalid agent kind")

	// ErrAccessDenied indicates an access rule rejected the requested kind.
	ErrAccessDenied = errors.New("agent access denied")

	// ErrClassification indicates intent classification failed upstream.
	ErrClassification = errors.New("classification failed")
)

// ProfileNotFoundError carries the user whose profile is missing.
type ProfileNotFoundError struct {
	UserID string
}

func (e *ProfileNotFoundError) Error() string {
	return fmt.Sprintf("profile not found for user %s", e.UserID)
}

func (e *ProfileNotFoundError) Is(target error) bool {
	return target == ErrProfileNotFound
}

// InvalidKindError carries the rejected kind string.
type InvalidKindError struct {
	Kind string
}

func (e *InvalidKindError) Error() string {
	return fmt.Sprintf("invalid agent kind %q", e.Kind)
}

func (e *InvalidKindError) Is(target error) bool {
	return target == ErrInvalidKind
}

// AccessError is returned when an access rule blocks the resolved kind.
// During onboarding, Step and TotalSteps locate the user in the flow.
type AccessError struct {
	UserID     string
	Kind       models.AgentKind
	Reason     string
	Step       int
	TotalSteps int
}

func (e *AccessError) Error() string {
	if e.TotalSteps > 0 {
		return fmt.Sprintf("agent %s denied for user %s: %s (onboarding step %d of %d)",
			e.Kind, e.UserID, e.Reason, e.Step, e.TotalSteps)
	}
	return fmt.Sprintf("agent %s denied for user %s: %s", e.Kind, e.UserID, e.Reason)
}

func (e *AccessError) Is(target error) bool {
	return target == ErrAccessDenied
}

// ClassificationError wraps a classifier failure with the message prefix
// that triggered it, truncated for logs.
type ClassificationError struct {
	Message string
	Err     error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %q: %v", truncate(e.Message, 40), e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}

func (e *ClassificationError) Is(target error) bool {
	return target == ErrClassification
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
