package auth_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DevDonal19/imparablesmujeres/internal/auth"
	apperrors "github.com/DevDonal19/imparablesmujeres/pkg/util/errorutil"
)

func TestPresent(t *testing.T) {
	cases := []struct {
		kind    auth.Kind
		status  int
		message string
	}{
		{auth.KindInvalidCredentials, http.StatusUnauthorized, auth.MessageInvalidCredentials},
		{auth.KindMissingToken, http.StatusUnauthorized, auth.MessageUnauthenticated},
		{auth.KindMalformedHeader, http.StatusUnauthorized, auth.MessageUnauthenticated},
		{auth.KindTokenInvalid, http.StatusUnauthorized, auth.MessageUnauthenticated},
		{auth.KindTokenExpired, http.StatusUnauthorized, auth.MessageUnauthenticated},
		{auth.KindPrincipalUnavailable, http.StatusUnauthorized, auth.MessageUnauthenticated},
		{auth.KindForbidden, http.StatusForbidden, auth.MessageForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			err := auth.Present(auth.NewError(tc.kind, errors.New("internal detail")))

			var domainErr *apperrors.DomainError
			require.ErrorAs(t, err, &domainErr)
			require.Equal(t, tc.status, domainErr.HTTPStatus)
			require.Equal(t, tc.message, domainErr.Message)
			require.NotContains(t, domainErr.Message, "internal detail")
			require.Equal(t, tc.kind, auth.KindOf(err))
		})
	}
}

func TestPresent_PassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("database down")
	require.Same(t, plain, auth.Present(plain))
}

func TestErrorIs_MatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("verify: %w", auth.NewError(auth.KindTokenExpired, errors.New("exp passed")))

	require.ErrorIs(t, err, auth.ErrTokenExpired)
	require.False(t, errors.Is(err, auth.ErrTokenInvalid))
	require.Equal(t, auth.KindTokenExpired, auth.KindOf(err))
	require.Zero(t, auth.KindOf(errors.New("other")))
}
