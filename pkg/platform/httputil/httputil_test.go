package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "rollguard/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "internal_error", body["error"])
		_, ok := body["error_description"]
		assert.False(t, ok, "expected error_description to be omitted for internal errors")
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		require.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "bad_request", body["error"])
		assert.Equal(t, "invalid input", body["error_description"])
	})

	t.Run("status mapping", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, StatusFor(dErrors.CodeNotFound))
		assert.Equal(t, http.StatusConflict, StatusFor(dErrors.CodeConflict))
		assert.Equal(t, http.StatusBadRequest, StatusFor(dErrors.CodeValidation))
		assert.Equal(t, http.StatusUnauthorized, StatusFor(dErrors.CodeUnauthorized))
		assert.Equal(t, http.StatusTooManyRequests, StatusFor(dErrors.CodeRateLimited))
	})
}

type pingRequest struct {
	Booth string `json:"booth_id"`
}

func (r *pingRequest) Validate() error {
	r.Booth = strings.TrimSpace(r.Booth)
	if r.Booth == "" {
		return dErrors.New(dErrors.CodeValidation, "booth_id is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	t.Run("decodes and normalizes", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"booth_id":"  B-1 "}`))
		w := httptest.NewRecorder()
		req, ok := DecodeAndPrepare[pingRequest](w, r, nil, r.Context(), "")
		require.True(t, ok)
		assert.Equal(t, "B-1", req.Booth)
	})

	t.Run("validation failure writes 400", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[pingRequest](w, r, nil, r.Context(), "")
		require.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "validation_error")
	})

	t.Run("malformed json writes bad_request", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[pingRequest](w, r, nil, r.Context(), "")
		require.False(t, ok)
		assert.Contains(t, w.Body.String(), "bad_request")
	})
}
