package domain

import "errors"

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindServer Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInvalidInput
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "server_error"
	}
}

// Error is an expected, user-actionable failure.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

var (
	// ErrUnauthorized is returned when no valid identity accompanies a request.
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Code: "unauthorized", Msg: "authentication required"}
	// ErrForbidden is returned when the caller does not own the attempt.
	ErrForbidden = &Error{Kind: KindForbidden, Code: "forbidden", Msg: "attempt belongs to another user"}
	// ErrAttemptNotFound indicates the attempt id is unknown.
	ErrAttemptNotFound = &Error{Kind: KindNotFound, Code: "attempt_not_found", Msg: "attempt not found"}
	// ErrCategoryNotFound indicates the category id is unknown.
	ErrCategoryNotFound = &Error{Kind: KindNotFound, Code: "category_not_found", Msg: "category not found"}
	// ErrEntryNotFound indicates the user has no leaderboard entry in a group.
	ErrEntryNotFound = &Error{Kind: KindNotFound, Code: "entry_not_found", Msg: "leaderboard entry not found"}
	// ErrAlreadyCompleted is returned for a second grading of the same attempt.
	ErrAlreadyCompleted = &Error{Kind: KindConflict, Code: "already_completed", Msg: "attempt already completed"}
	// ErrRetakeNotAllowed is returned when a retake is requested on a perfect score.
	ErrRetakeNotAllowed = &Error{Kind: KindConflict, Code: "retake_not_allowed", Msg: "cannot retake, already perfect score"}
	// ErrAttemptExpired is returned when expiry enforcement rejects a late submit.
	ErrAttemptExpired = &Error{Kind: KindConflict, Code: "attempt_expired", Msg: "attempt expired"}
	// ErrDuplicateQuestion is returned when a question text already exists in its category.
	ErrDuplicateQuestion = &Error{Kind: KindConflict, Code: "duplicate_question", Msg: "question with the same text already exists"}
	// ErrNoQuestions is the soft "nothing matches these options" condition.
	ErrNoQuestions = &Error{Kind: KindUnavailable, Code: "no_questions_available", Msg: "no questions available for these options"}
)

// Invalid builds an InvalidInput error with a specific message.
func Invalid(msg string) error {
	return &Error{Kind: KindInvalidInput, Code: "invalid_input", Msg: msg}
}

// KindOf reports the taxonomy kind of err. Anything that is not a *Error is a server error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindServer
}

// IsInvalid reports whether err is an InvalidInput error.
func IsInvalid(err error) bool {
	return err != nil && KindOf(err) == KindInvalidInput
}
