package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/devrev/tsdb-client-go/internal/apierrors"
	"github.com/devrev/tsdb-client-go/internal/rpc"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestID(t *testing.T) {
	t.Run("generates request ID if not present", func(t *testing.T) {
		var seen, fromCtx string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = r.Header.Get(RequestIDHeader)
			fromCtx = rpc.RequestIDFromContext(r.Context())
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/write", nil))

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
		assert.Equal(t, seen, fromCtx)
	})

	t.Run("preserves existing request ID", func(t *testing.T) {
		var fromCtx string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fromCtx = rpc.RequestIDFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodPost, "/v1/write", nil)
		req.Header.Set(RequestIDHeader, "batch-42:retry.1")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, "batch-42:retry.1", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "batch-42:retry.1", fromCtx)
	})

	t.Run("replaces invalid request ID", func(t *testing.T) {
		for _, id := range []string{"has space", "new\nline", strings.Repeat("a", maxRequestIDLen+1)} {
			req := httptest.NewRequest(http.MethodPost, "/v1/write", nil)
			req.Header.Set(RequestIDHeader, id)
			w := httptest.NewRecorder()

			RequestID(okHandler()).ServeHTTP(w, req)

			got := w.Header().Get(RequestIDHeader)
			assert.NotEqual(t, id, got)
			_, err := uuid.Parse(got)
			assert.NoError(t, err)
		}
	})
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		level  zapcore.Level
	}{
		{"success", "/v1/write", http.StatusOK, zapcore.InfoLevel},
		{"partial write", "/v1/write", http.StatusMultiStatus, zapcore.WarnLevel},
		{"bad request", "/v1/write", http.StatusBadRequest, zapcore.WarnLevel},
		{"server error", "/v1/write", http.StatusServiceUnavailable, zapcore.ErrorLevel},
		{"probe", "/health", http.StatusOK, zapcore.DebugLevel},
		{"failing probe", "/ready", http.StatusServiceUnavailable, zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			handler := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, tt.path, nil))

			entries := logs.FilterMessage("HTTP request").All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			fields := entries[0].ContextMap()
			assert.Equal(t, int64(tt.status), fields["status"])
			assert.Equal(t, int64(4), fields["bytes"])
			assert.Equal(t, tt.path, fields["path"])
		})
	}
}

func TestLogging_ProbesHiddenAtInfo(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Logging(zap.New(core))(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Zero(t, logs.Len())
}

func TestRecovery(t *testing.T) {
	handler := Recovery(apierrors.NewHandler(zap.NewNop()), zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(w, req)
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body apierrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apierrors.ErrorCodeInternalError, body.ErrorCode)
	assert.Equal(t, "req-9", body.RequestID)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 2, apierrors.NewHandler(zap.NewNop()), zap.NewNop())
	handler := rl.Limit(okHandler())

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/v1/write", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "1000", last.Header().Get("Retry-After"))
	assert.Contains(t, last.Body.String(), string(apierrors.ErrorCodeRateLimited))
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, "1", retryAfter(0))
	assert.Equal(t, "1", retryAfter(200*time.Millisecond))
	assert.Equal(t, "3", retryAfter(2100*time.Millisecond))
	assert.Equal(t, "1", retryAfter(rate.InfDuration))
}

func TestChain(t *testing.T) {
	order := make([]string, 0, 2)
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	Chain(mw("first"), mw("second"))(okHandler()).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second"}, order)
}
