package apierrors

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devrev/tsdb-client-go/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
		code     ErrorCode
	}{
		{"auth", &errors.AuthFailure{Code: errors.AuthInvalidTokenMetadata}, http.StatusUnauthorized, ErrorCodeUnauthorized},
		{"server", &errors.ServerFailure{Code: 500}, http.StatusBadRequest, ErrorCodeServerRejected},
		{"client state", &errors.ClientStateFailure{Msg: "closed"}, http.StatusBadRequest, ErrorCodeClientClosed},
		{"connect", &errors.ConnectFailure{Addr: "h1"}, http.StatusServiceUnavailable, ErrorCodeServiceDown},
		{"transport unavailable", &errors.TransportFailure{Code: codes.Unavailable}, http.StatusServiceUnavailable, ErrorCodeServiceDown},
		{"transport deadline", &errors.TransportFailure{Code: codes.DeadlineExceeded}, http.StatusGatewayTimeout, ErrorCodeTimeout},
		{"transport exhausted", &errors.TransportFailure{Code: codes.ResourceExhausted}, http.StatusTooManyRequests, ErrorCodeRateLimited},
		{"transport internal", &errors.TransportFailure{Code: codes.Internal}, http.StatusInternalServerError, ErrorCodeInternalError},
		{"cluster", &errors.ClusterPartialFailure{Result: &errors.ClusterResult{}}, http.StatusMultiStatus, ErrorCodePartialWrite},
		{"unknown", &errors.UnknownFailure{Msg: "?"}, http.StatusInternalServerError, ErrorCodeInternalError},
		{"plain", goerrors.New("boom"), http.StatusInternalServerError, ErrorCodeInternalError},
		{"wrapped auth", fmt.Errorf("write: %w", &errors.AuthFailure{}), http.StatusUnauthorized, ErrorCodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StatusFor(tt.err))
			assert.Equal(t, tt.code, ErrorCodeFor(tt.err))
		})
	}

	assert.Equal(t, http.StatusOK, StatusFor(nil))
}

func TestHandleError(t *testing.T) {
	h := NewHandler(zap.NewNop())
	req := httptest.NewRequest(http.MethodPost, "/v1/write", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()

	h.HandleError(w, req, &errors.ConnectFailure{Addr: "h1:9000"})

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrorCodeServiceDown, resp.ErrorCode)
	assert.Equal(t, "connect", resp.Kind)
	assert.Contains(t, resp.Message, "h1:9000")
	assert.Equal(t, "req-1", resp.RequestID)
}

func TestWriteValidationError(t *testing.T) {
	h := NewHandler(nil)
	w := httptest.NewRecorder()

	h.WriteValidationError(w, "points are required", "req-2")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
	assert.Contains(t, w.Body.String(), "points are required")
}
