package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantStatus int
		wantCode   string
	}{
		{"invalid request", InvalidRequestWithError(errors.New("bad json")), http.StatusBadRequest, "INVALID_REQUEST"},
		{"validation", ErrValidation("layout", "unknown"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"websocket upgrade", WebSocketUpgradeError(http.StatusBadRequest, errors.New("not a websocket handshake")), http.StatusBadRequest, "WEBSOCKET_UPGRADE_FAILED"},
		{"multiple", NewValidationErrors([]ValidationError{{Field: "a", Message: "b"}}), http.StatusBadRequest, "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode)
			assert.Equal(t, tt.wantCode, tt.err.ErrorCode)
			assert.NotNil(t, tt.err.Details)
			assert.Equal(t, tt.err.Message, tt.err.Error())
		})
	}
}

func TestProblemDetailsMarshal(t *testing.T) {
	pd := NewProblemDetails(http.StatusNotFound, TypeNotFound, "Not Found", "", "/x").
		WithExtension("trace_id", "abc")

	data, err := json.Marshal(pd)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "abc", got["trace_id"])
	assert.Equal(t, "/x", got["instance"])
	assert.NotContains(t, got, "detail")

	empty := &ProblemDetails{Status: 500}
	empty.WithExtension("k", 1)
	assert.Equal(t, 1, empty.Extensions["k"])
}
