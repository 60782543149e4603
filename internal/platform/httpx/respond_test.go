package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"slot-swapper/internal/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}

func TestWriteError_MapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   apperr.Kind
	}{
		{apperr.Validation("bad"), http.StatusBadRequest, apperr.KindValidation},
		{apperr.InvalidOperation("nope"), http.StatusBadRequest, apperr.KindInvalidOperation},
		{apperr.Authorization("no"), http.StatusForbidden, apperr.KindAuthorization},
		{apperr.NotFound("missing"), http.StatusNotFound, apperr.KindNotFound},
		{apperr.Conflict("clash", "e1"), http.StatusConflict, apperr.KindConflict},
		{apperr.InvalidState("done"), http.StatusConflict, apperr.KindInvalidState},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, apperr.KindTimeout},
		{fmt.Errorf("wrapped: %w", apperr.NotFound("x")), http.StatusNotFound, apperr.KindNotFound},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		WriteError(rr, tc.err)
		assert.Equal(t, tc.status, rr.Code, tc.err.Error())
		assert.Equal(t, tc.kind, decodeError(t, rr).Kind)
	}
}

func TestWriteError_ConflictDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, apperr.Conflict("event conflicts with existing event(s): A", "e1", "e2"))

	d := decodeError(t, rr)
	assert.Equal(t, []string{"e1", "e2"}, d.Details)
	assert.Contains(t, d.Message, "A")
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, errors.New("pq: connection refused to 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "internal error", decodeError(t, rr).Message)
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&page=2&bad=x&neg=-1", nil)

	n, err := QueryInt(req, "limit", 20, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	n, err = QueryInt(req, "page", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = QueryInt(req, "missing", 7, 0)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = QueryInt(req, "bad", 1, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = QueryInt(req, "neg", 1, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
