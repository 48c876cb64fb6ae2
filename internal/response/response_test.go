package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radif/mediaservice/internal/apperror"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]string{"key": "images/a.png"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	env := decode(t, rec)
	assert.Equal(t, StatusSuccess, env.Status)
	assert.Equal(t, map[string]interface{}{"key": "images/a.png"}, env.Data)
}

func TestFail_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"validation", apperror.Validation(apperror.ReasonNoFile, "file is required"), http.StatusBadRequest, "file is required"},
		{"auth missing", apperror.Auth(apperror.ReasonMissing, "authorization header required"), http.StatusUnauthorized, "authorization header required"},
		{"auth forbidden", apperror.Auth(apperror.ReasonForbidden, "permission denied"), http.StatusForbidden, "permission denied"},
		{"not found", fmt.Errorf("stat: %w", apperror.NotFound("images/x")), http.StatusNotFound, "media not found"},
		{"storage", apperror.Storage("put object", errors.New("dial tcp 10.0.0.5:9000: refused")), http.StatusInternalServerError, "internal server error"},
		{"unknown", errors.New("nil map write"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/media/list", nil)

			Fail(rec, req, zerolog.New(&logs), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			env := decode(t, rec)
			assert.Equal(t, StatusError, env.Status)
			assert.Equal(t, tt.message, env.Message)
			require.Len(t, env.Errors, 1)
			assert.NotContains(t, rec.Body.String(), "10.0.0.5")

			if tt.status == http.StatusInternalServerError {
				assert.Contains(t, logs.String(), "request failed")
			} else {
				assert.Empty(t, logs.String())
			}
		})
	}
}

func TestFail_StorageDetailOnlyInLogs(t *testing.T) {
	var logs bytes.Buffer
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/media/images/a.png", nil)

	Fail(rec, req, zerolog.New(&logs), apperror.Storage("remove object", errors.New("AccessDenied: bucket policy")))

	assert.NotContains(t, rec.Body.String(), "AccessDenied")
	assert.Contains(t, logs.String(), "AccessDenied")
	assert.Contains(t, logs.String(), "remove object")
	env := decode(t, rec)
	assert.Equal(t, "storage", env.Errors[0].Kind)
}
