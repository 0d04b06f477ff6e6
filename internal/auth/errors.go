package auth

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/DevDonal19/imparablesmujeres/pkg/util/errorutil"
)

// Kind tags the internal cause of an authentication or authorization failure.
type Kind int

const (
	KindInvalidCredentials Kind = iota + 1
	KindMissingToken
	KindMalformedHeader
	KindTokenInvalid
	KindTokenExpired
	KindPrincipalUnavailable
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindMissingToken:
		return "missing_token"
	case KindMalformedHeader:
		return "malformed_header"
	case KindTokenInvalid:
		return "token_invalid"
	case KindTokenExpired:
		return "token_expired"
	case KindPrincipalUnavailable:
		return "principal_unavailable"
	case KindForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Error is a tagged auth failure. Its Error() text names the internal cause
// and is meant for logs; Present decides what callers see.
type Error struct {
	Kind Kind
	Err  error
}

// NewError tags err with kind.
func NewError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidCredentials   = &Error{Kind: KindInvalidCredentials}
	ErrMissingToken         = &Error{Kind: KindMissingToken}
	ErrMalformedHeader      = &Error{Kind: KindMalformedHeader}
	ErrTokenInvalid         = &Error{Kind: KindTokenInvalid}
	ErrTokenExpired         = &Error{Kind: KindTokenExpired}
	ErrPrincipalUnavailable = &Error{Kind: KindPrincipalUnavailable}
	ErrForbidden            = &Error{Kind: KindForbidden}
)

// KindOf returns the auth kind of err, or zero when err is not an auth error.
func KindOf(err error) Kind {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return 0
}

// External messages. Several kinds deliberately share one message so callers
// cannot tell which check failed.
const (
	MessageInvalidCredentials = "invalid credentials"
	MessageUnauthenticated    = "invalid or expired token"
	MessageForbidden          = "insufficient permissions"
)

// Present maps auth errors to the HTTP-facing DomainError. Non-auth errors
// are returned unchanged.
func Present(err error) error {
	switch KindOf(err) {
	case KindInvalidCredentials:
		return apperrors.Wrap(err, "INVALID_CREDENTIALS", MessageInvalidCredentials, http.StatusUnauthorized)
	case KindMissingToken, KindMalformedHeader, KindTokenInvalid, KindTokenExpired, KindPrincipalUnavailable:
		return apperrors.Wrap(err, "UNAUTHORIZED", MessageUnauthenticated, http.StatusUnauthorized)
	case KindForbidden:
		return apperrors.Wrap(err, "FORBIDDEN", MessageForbidden, http.StatusForbidden)
	default:
		return err
	}
}
