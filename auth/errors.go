package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrMalformedEmail     = errors.New("auth: malformed email")
	ErrEmailInUse         = errors.New("auth: email already in use")
	ErrWeakPassword       = errors.New("auth: weak password")
	ErrOperationDisabled  = errors.New("auth: account creation is disabled")
	ErrNoSession          = errors.New("auth: no active session")
)

// errorFromCode maps the provider's error codes to sentinel errors.
// Unknown codes pass through so callers can still log the raw cause.
func errorFromCode(code string) error {
	switch {
	case code == "EMAIL_NOT_FOUND" || code == "USER_NOT_FOUND":
		return ErrUserNotFound
	case code == "INVALID_PASSWORD" || code == "INVALID_LOGIN_CREDENTIALS":
		return ErrInvalidCredentials
	case code == "INVALID_EMAIL":
		return ErrMalformedEmail
	case code == "EMAIL_EXISTS":
		return ErrEmailInUse
	case strings.HasPrefix(code, "WEAK_PASSWORD"):
		return ErrWeakPassword
	case code == "OPERATION_NOT_ALLOWED":
		return ErrOperationDisabled
	}
	return fmt.Errorf("auth: unexpected provider error %q", code)
}

// MessageForError translates an authentication failure into the string
// shown next to the form that triggered it.
func MessageForError(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "Incorrect password."
	case errors.Is(err, ErrUserNotFound):
		return "No account found with this email."
	case errors.Is(err, ErrMalformedEmail):
		return "Invalid email format."
	case errors.Is(err, ErrEmailInUse):
		return "This email is already in use. Please choose another one."
	case errors.Is(err, ErrWeakPassword):
		return "The password is too weak. It must contain at least 6 characters."
	case errors.Is(err, ErrOperationDisabled):
		return "Account creation is temporarily disabled."
	}
	return "An unexpected error occurred. Please check your credentials."
}
