package errorutil_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/DevDonal19/imparablesmujeres/pkg/util/errorutil"
)

func TestToDomainError(t *testing.T) {
	require.Nil(t, apperrors.ToDomainError(nil))

	cause := errors.New("connection refused")
	internal := apperrors.ToDomainError(cause)
	require.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
	require.Equal(t, "internal server error", internal.Message)
	require.ErrorIs(t, internal, cause)

	wrapped := fmt.Errorf("handler: %w", apperrors.Wrap(cause, "FORBIDDEN", "insufficient permissions", http.StatusForbidden))
	domainErr := apperrors.ToDomainError(wrapped)
	require.Equal(t, "FORBIDDEN", domainErr.Code)
	require.Equal(t, "insufficient permissions: connection refused", domainErr.Error())
}

func TestFromStatus(t *testing.T) {
	notFound := apperrors.FromStatus(http.StatusNotFound, "")
	require.Equal(t, "NOT_FOUND", notFound.Code)
	require.Equal(t, "Not Found", notFound.Message)

	require.Equal(t, "REQUEST_FAILED", apperrors.FromStatus(http.StatusTeapot, "nope").Code)
	require.Equal(t, "INTERNAL_ERROR", apperrors.StatusCode(http.StatusBadGateway))
}
