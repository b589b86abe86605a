package errcodes

import "net/http"

// PolicyViolation is returned when a loan or reservation request is refused
// by borrower policy.
func PolicyViolation(reason, msg string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  msg,
		Code:     "policy_violation",
		Reason:   reason,
	}
}

// DuplicateActive is returned when the borrower already holds an active
// record of the same kind for the book.
func DuplicateActive(reason, msg string) error {
	return &Error{
		HTTPCode: http.StatusConflict,
		Message:  msg,
		Code:     "duplicate_active",
		Reason:   reason,
	}
}

func AlreadyReturned() error {
	return &Error{
		HTTPCode: http.StatusConflict,
		Message:  "Loan has already been returned.",
		Code:     "already_returned",
	}
}

func InvalidState(msg string) error {
	return &Error{
		HTTPCode: http.StatusConflict,
		Message:  msg,
		Code:     "invalid_state",
	}
}

func RenewalNotAllowed(reason, msg string) error {
	return &Error{
		HTTPCode: http.StatusUnprocessableEntity,
		Message:  msg,
		Code:     "renewal_not_allowed",
		Reason:   reason,
	}
}
