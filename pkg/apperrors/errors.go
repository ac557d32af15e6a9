package apperrors

import "errors"

// Callers wrap these with fmt.Errorf("%w: ...") to add detail and test them
// with errors.Is. Handlers map them onto HTTP status codes.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)
