package workinghourserrors

import (
	"net/http"

	"go-timetrack/internal/shared/apperror"
)

var ErrInvalidQuery = apperror.New(
	apperror.CodeInvalidInput,
	"at least one of user_id or org_id is required",
	http.StatusBadRequest,
)

// InvalidDateField reports a malformed date bound naming the offending field.
func InvalidDateField(field string) *apperror.AppError {
	return apperror.Newf(
		apperror.CodeInvalidInput,
		http.StatusBadRequest,
		"invalid %s format, expected YYYY-MM-DD", field,
	)
}
