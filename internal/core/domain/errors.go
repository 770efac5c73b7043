package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrRequestNotFound = fmt.Errorf("filing request %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrKeyNotFound     = fmt.Errorf("key %w", ErrNotFound)

	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("access forbidden")
	ErrSessionExpired     = errors.New("session expired, sign in again")
	ErrNetwork            = errors.New("backend unreachable")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")

	ErrAccountExistsWithDifferentCredential = errors.New("account exists with a different sign-in method")

	ErrInvalidStatus        = errors.New("invalid status")
	ErrCommentRequired      = errors.New("a comment is required")
	ErrPaymentDateRequired  = errors.New("a payment date is required")
	ErrNoteRequired         = errors.New("note cannot be empty")
	ErrConfirmationMismatch = errors.New("confirmation number does not match")
	ErrTooManyDocuments     = errors.New("too many documents")
	ErrInvalidPlan          = errors.New("invalid plan")
)

// NetworkMessage is shown when the backend cannot be reached.
const NetworkMessage = "Could not reach the server. Check your connection and try again."

// APIError is a non-2xx (or failed) backend call in normalized form.
// Status is 0 when no response was received.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// Is lets callers branch on the taxonomy with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrNetwork:
		return e.Status == 0
	}
	return false
}

// CredentialConflictError reports a federated sign-in for an email that is
// already registered with another method.
type CredentialConflictError struct {
	Email   string
	Methods []string
}

func (e *CredentialConflictError) Error() string {
	return fmt.Sprintf("%s is already registered with %s", e.Email, strings.Join(e.Methods, ", "))
}

func (e *CredentialConflictError) Unwrap() error { return ErrAccountExistsWithDifferentCredential }

// UserMessage renders err for display. A message sent by the backend is
// shown as is, except for auth and network failures.
func UserMessage(err error) string {
	var conflict *CredentialConflictError
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &conflict):
		if len(conflict.Methods) == 0 {
			return "This email is already registered with another sign-in method."
		}
		return fmt.Sprintf("This email is already registered. Sign in with %s instead.", strings.Join(conflict.Methods, " or "))
	case errors.Is(err, ErrAccountExistsWithDifferentCredential):
		return "This email is already registered with another sign-in method."
	case errors.Is(err, ErrSessionExpired), errors.Is(err, ErrUnauthorized):
		return "Your session is no longer valid. Please sign in again."
	case errors.Is(err, ErrInvalidCredentials):
		return "Incorrect email or password."
	case errors.Is(err, ErrNetwork):
		return NetworkMessage
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, ErrNotFound):
		return "Not found."
	default:
		return err.Error()
	}
}
