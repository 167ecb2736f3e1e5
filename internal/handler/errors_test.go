package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"guesswho-server/internal/models"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleServiceError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unauthenticated", models.ErrUnauthenticated, http.StatusUnauthorized},
		{"not a participant", models.ErrUnauthorized, http.StatusForbidden},
		{"not your turn", models.ErrNotYourTurn, http.StatusForbidden},
		{"game not found", models.ErrGameNotFound, http.StatusNotFound},
		{"profile not found", models.ErrProfileNotFound, http.StatusNotFound},
		{"member not found", models.ErrNotFound, http.StatusNotFound},
		{"unknown question", models.ErrQuestionNotFound, http.StatusBadRequest},
		{"invalid seed", fmt.Errorf("%w: players must be distinct", models.ErrInvalidSeed), http.StatusBadRequest},
		{"bad request", fmt.Errorf("%w: guessed member is not on the board", models.ErrBadRequest), http.StatusBadRequest},
		{"game not active", models.ErrGameNotActive, http.StatusConflict},
		{"store conflict", models.ErrStoreConflict, http.StatusConflict},
		{"target missing", models.ErrTargetNotFound, http.StatusInternalServerError},
		{"unexpected", errors.New("database exploded"), http.StatusInternalServerError},
	}

	e := echo.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, handleServiceError(c, tc.err))
			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), "message")
		})
	}
}

func TestHandleServiceError_WrappedSentinelKeepsDetail(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := fmt.Errorf("%w: board must have 16..20 members, got 3", models.ErrInvalidSeed)
	require.NoError(t, handleServiceError(c, err))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	// Validation failures surface their detail to the caller.
	assert.Contains(t, rec.Body.String(), "16..20")
}

func TestHandleServiceError_InternalHidesDetail(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, handleServiceError(c, errors.New("pq: connection refused")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
