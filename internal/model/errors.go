package model

import "errors"

// Error kinds. Operations wrap one of these with context, so callers test
// with errors.Is and both access surfaces react the same way.
var (
	ErrValidation        = errors.New("validation error")
	ErrOwnershipConflict = errors.New("ownership conflict")
	ErrInvalidState      = errors.New("invalid state")
	ErrAuthorization     = errors.New("not authorized")
	ErrNotFound          = errors.New("not found")
)

// Error codes returned by Kind.
const (
	CodeValidation        = "validation"
	CodeOwnershipConflict = "ownership_conflict"
	CodeInvalidState      = "invalid_state"
	CodeAuthorization     = "authorization"
	CodeNotFound          = "not_found"
	CodeInternal          = "internal"
)

// Kind returns the stable code for the error kind wrapped by err, or
// CodeInternal if err carries none of them. Kind(nil) is "".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrOwnershipConflict):
		return CodeOwnershipConflict
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrAuthorization):
		return CodeAuthorization
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// IsDomain reports whether err is one of the user-facing kinds rather than
// an infrastructure failure.
func IsDomain(err error) bool {
	k := Kind(err)
	return k != "" && k != CodeInternal
}
