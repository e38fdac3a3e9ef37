// Package common defines shared constants and sentinel errors used across
// the client and server layers of gophchat. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrStorage        = errors.New("storage error")

	// Session credential errors.
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrMalformedToken   = errors.New("malformed token")

	// Validation errors. Several of them may be joined with errors.Join.
	ErrMissingField     = errors.New("missing field")
	ErrInvalidField     = errors.New("invalid field")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrDuplicateEmail   = errors.New("email already in use")
)

// IsValidation reports whether err carries any of the validation sentinels.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidField) ||
		errors.Is(err, ErrPasswordMismatch) ||
		errors.Is(err, ErrDuplicateEmail)
}

// IsAuth reports whether err is one of the session credential errors.
func IsAuth(err error) bool {
	return errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrMalformedToken)
}

// Details flattens an error tree built with errors.Join into the messages of
// its leaves. A plain error yields a single element.
func Details(err error) []string {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range j.Unwrap() {
			out = append(out, Details(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
