package response

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stemsi/hiring-backend/internal/proctor"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   ErrCode
	}{
		{proctor.ErrNotFound, http.StatusNotFound, ErrNotFound},
		{fmt.Errorf("load: %w", proctor.ErrPermissionDenied), http.StatusForbidden, ErrPermissionDenied},
		{proctor.ErrTestNotEnabled, http.StatusForbidden, ErrTestNotEnabled},
		{proctor.ErrAlreadyFinalized, http.StatusConflict, ErrAlreadySubmitted},
		{proctor.ErrInvalidOption, http.StatusBadRequest, ErrInvalidAnswer},
		{fmt.Errorf("%w: dial tcp", proctor.ErrTransport), http.StatusServiceUnavailable, ErrUnavailable},
		{errors.New("boom"), http.StatusInternalServerError, ErrInternal},
	}
	for _, tc := range cases {
		status, code := FromError(tc.err)
		require.Equal(t, tc.status, status, tc.err.Error())
		require.Equal(t, tc.code, code, tc.err.Error())
		require.NotEqual(t, "An unknown error occurred.", GetMessage(code))
	}
}
