package shifterrors

import (
	"net/http"

	"go-timetrack/internal/shared/apperror"
)

var (
	ErrInvalidShiftTime = apperror.New(
		apperror.CodeInvalidInput,
		"invalid shift_time format, expected 2024-01-25T08:30:45.123Z",
		http.StatusBadRequest,
	)
	ErrRecordNotFound = apperror.New(
		apperror.CodeNotFound,
		"time record not found",
		http.StatusNotFound,
	)
	ErrNotRecordOwner = apperror.New(
		apperror.CodeForbidden,
		"you are not authorized to update this record",
		http.StatusForbidden,
	)
	ErrAlreadyClockedIn = apperror.New(
		apperror.CodeConflict,
		"you have already clocked in today",
		http.StatusConflict,
	)
	ErrAlreadyComplete = apperror.New(
		apperror.CodeConflict,
		"this time record is already completed",
		http.StatusConflict,
	)
	ErrCannotEditMissingStart = apperror.New(
		apperror.CodeInvalidState,
		"cannot edit start time: no start time record exists",
		http.StatusBadRequest,
	)
	ErrCannotEditMissingEnd = apperror.New(
		apperror.CodeInvalidState,
		"cannot edit end time: no end time record exists",
		http.StatusBadRequest,
	)
	ErrCannotEditMissingReason = apperror.New(
		apperror.CodeInvalidState,
		"cannot edit shift reason: no reason record exists",
		http.StatusBadRequest,
	)
)

// InvalidTimeOrder reports a non-chronological start/end pair; both
// instants are included so the caller can render a precise message.
func InvalidTimeOrder(start, end string) *apperror.AppError {
	return apperror.Newf(
		apperror.CodeConflict,
		http.StatusBadRequest,
		"end time (%s) must be after start time (%s)", end, start,
	)
}

// InvalidTimeField reports a malformed datetime naming the offending field.
func InvalidTimeField(field string) *apperror.AppError {
	return apperror.Newf(
		apperror.CodeInvalidInput,
		http.StatusBadRequest,
		"invalid %s format, expected 2024-01-25T08:30:45.123Z", field,
	)
}
