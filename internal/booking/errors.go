package booking

import (
	"errors"
	"fmt"

	"github.com/renthive/renthive-backend/internal/repository"
)

// Kind classifies a failure so callers can map it onto a response code.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindConflict
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrDatesRequired       = &Error{KindInvalidInput, "start date and end date are required"}
	ErrInvalidDateRange    = &Error{KindInvalidInput, "end date must be after start date"}
	ErrAmountRequired      = &Error{KindInvalidInput, "total amount is required and must be greater than zero"}
	ErrListingNotFound     = &Error{KindNotFound, "listing not found"}
	ErrApplicationNotFound = &Error{KindNotFound, "application not found"}
	ErrRentalNotFound      = &Error{KindNotFound, "rental not found"}
	ErrNotPending          = &Error{KindConflict, "application is no longer pending"}
	ErrNotApproved         = &Error{KindConflict, "only approved applications can be paid"}
	ErrRentalNotActive     = &Error{KindConflict, "rental is not active"}
	ErrDateTaken           = &Error{KindConflict, "the selected dates were just taken by another request"}
	ErrNotOwner            = &Error{KindUnauthorized, "only the listing owner can decide on this application"}
	ErrNotApplicant        = &Error{KindUnauthorized, "only the applicant can change this application"}
	ErrNotRentalParty      = &Error{KindUnauthorized, "only the tenant or the owner can cancel this rental"}
	ErrNoAccess            = &Error{KindUnauthorized, "you do not have access to this application"}
	ErrNotListingOwner     = &Error{KindUnauthorized, "only the owner can change this listing"}
)

// KindOf reports the Kind of err, KindInternal for anything unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, repository.ErrConflict) {
		return KindConflict
	}
	return KindInternal
}

// normalize keeps classified errors as they are and turns storage
// conflicts into ErrDateTaken.
func normalize(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, repository.ErrConflict) {
		return ErrDateTaken
	}
	return fmt.Errorf("booking: %w", err)
}
