package assistant

import "fmt"

// ValidationError marks a plan with a missing or invalid required field:
// empty title, unresolved assignee, ambiguous rename target.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) ValidationError {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError marks a referenced task id absent from the project.
type NotFoundError struct {
	Msg string
}

func (e NotFoundError) Error() string { return e.Msg }

// AuthorizationError marks an actor attempting a mutation they do not own,
// e.g. a non-creator updating project fields.
type AuthorizationError struct {
	Msg string
}

func (e AuthorizationError) Error() string { return e.Msg }

// UpstreamError wraps a failed completion call or a malformed payload from
// it. It is handled internally by falling back to the local heuristics and is
// never surfaced to the end user.
type UpstreamError struct {
	Err error
}

func (e UpstreamError) Error() string { return "completion backend: " + e.Err.Error() }
func (e UpstreamError) Unwrap() error { return e.Err }

func upstreamf(format string, args ...any) UpstreamError {
	return UpstreamError{Err: fmt.Errorf(format, args...)}
}
