package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// Validation
	ErrEmptyContent     = fmt.Errorf("content cannot be empty")
	ErrContentTooLong   = fmt.Errorf("content is too long")
	ErrMissingAuthor    = fmt.Errorf("author is required")
	ErrMissingTarget    = fmt.Errorf("group or recipient is required")
	ErrAmbiguousTarget  = fmt.Errorf("message cannot target both a group and a recipient")
	ErrMalformedEvent   = fmt.Errorf("malformed event")
	ErrUnknownEvent     = fmt.Errorf("unknown event type")
	ErrInvalidUsername  = fmt.Errorf("invalid username")
	ErrInvalidPassword  = fmt.Errorf("invalid password")
	ErrInvalidArgument  = fmt.Errorf("invalid argument")
	ErrRateLimited      = fmt.Errorf("rate limit exceeded")
	ErrUnknownEnvelope  = fmt.Errorf("unknown envelope")
	ErrInvalidCursor    = fmt.Errorf("invalid cursor")
	ErrEmptySearchQuery = fmt.Errorf("search query cannot be empty")

	// Authorization
	ErrNotMember          = fmt.Errorf("not a member")
	ErrNotAuthorized      = fmt.Errorf("not authorized")
	ErrInvalidCredentials = fmt.Errorf("incorrect username or password")
	ErrInvalidToken       = fmt.Errorf("could not validate credentials")

	// Lookup
	ErrNotFound        = fmt.Errorf("not found")
	ErrMessageNotFound = fmt.Errorf("message %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrGroupNotFound   = fmt.Errorf("group %w", ErrNotFound)

	// Conflict
	ErrUserAlreadyExists = fmt.Errorf("username already registered")
	ErrAlreadyMember     = fmt.Errorf("user already in group")

	// Infrastructure
	ErrStoreUnavailable = fmt.Errorf("service unavailable")
	ErrTokenGeneration  = fmt.Errorf("token generation failed")
	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrGatewayClosed    = fmt.Errorf("gateway closed")
)

var validationErrors = []error{
	ErrEmptyContent, ErrContentTooLong, ErrMissingAuthor, ErrMissingTarget,
	ErrAmbiguousTarget, ErrMalformedEvent, ErrUnknownEvent, ErrInvalidUsername,
	ErrInvalidPassword, ErrInvalidArgument, ErrRateLimited, ErrInvalidCursor,
	ErrEmptySearchQuery, ErrUserAlreadyExists, ErrAlreadyMember,
}

// MapToHTTPStatus translates a domain error into the status code returned by the REST API.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrInvalidCredentials), stderrors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrNotAuthorized), stderrors.Is(err, ErrNotMember):
		return http.StatusForbidden
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case isValidation(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to a client.
// Anything that is not a known domain error is reported as unavailable.
func PublicMessage(err error) string {
	switch {
	case stderrors.Is(err, ErrMessageNotFound):
		return ErrMessageNotFound.Error()
	case stderrors.Is(err, ErrUserNotFound):
		return ErrUserNotFound.Error()
	case stderrors.Is(err, ErrGroupNotFound):
		return ErrGroupNotFound.Error()
	}
	for _, known := range append(validationErrors,
		ErrNotMember, ErrNotAuthorized, ErrInvalidCredentials, ErrInvalidToken, ErrNotFound) {
		if stderrors.Is(err, known) {
			return known.Error()
		}
	}
	return ErrStoreUnavailable.Error()
}

func isValidation(err error) bool {
	for _, v := range validationErrors {
		if stderrors.Is(err, v) {
			return true
		}
	}
	return false
}
