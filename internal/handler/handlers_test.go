package handler

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/devrev/tsdb-client-go/internal/apierrors"
	"github.com/devrev/tsdb-client-go/internal/ledger"
	"github.com/devrev/tsdb-client-go/internal/rpc"
	"github.com/devrev/tsdb-client-go/pkg/errors"
	"github.com/devrev/tsdb-client-go/pkg/model"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Write(ctx context.Context, req *model.WriteRequest) (*model.WriteResponse, error) {
	args := m.Called(ctx, req)
	if resp := args.Get(0); resp != nil {
		return resp.(*model.WriteResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type failingLedger struct {
	ledger.Ledger
}

func (failingLedger) Record(ctx context.Context, entries ...ledger.Entry) error {
	return goerrors.New("database down")
}

func (failingLedger) Pending(ctx context.Context, limit int) ([]ledger.Entry, error) {
	return nil, goerrors.New("database down")
}

type countingRecorder struct {
	n int
}

func (c *countingRecorder) RecordLedgerEntries(n int) { c.n += n }

func newTestHandlers(writer Writer, l ledger.Ledger, rec LedgerRecorder) *Handlers {
	return NewHandlers(writer, l, rec, apierrors.NewHandler(zap.NewNop()), zap.NewNop(), Config{Timeout: time.Second})
}

const writeBody = `{"points":[
	{"metric":"m1","fields":{"value":1},"timestamp":1700000000000},
	{"metric":"m2","tags":{"host":"a"},"fields":{"value":2},"timestamp":1700000000000}
]}`

func postWrite(h *Handlers, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/write", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()
	h.Write(w, req)
	return w
}

func TestHandlers_WriteSuccess(t *testing.T) {
	writer := new(mockWriter)
	writer.On("Write", mock.MatchedBy(func(ctx context.Context) bool {
		return rpc.RequestIDFromContext(ctx) == "req-1"
	}), mock.MatchedBy(func(req *model.WriteRequest) bool {
		return len(req.Points) == 2 && req.Points[1].Tags["host"] == "a"
	})).Return(&model.WriteResponse{Success: 2}, nil)

	h := newTestHandlers(writer, ledger.NewMemoryLedger(), nil)
	w := postWrite(h, writeBody)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp WriteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, WriteResponse{Status: "ok", Success: 2}, resp)
	writer.AssertExpectations(t)
}

func TestHandlers_WritePartialFailure(t *testing.T) {
	result := errors.Aggregate([]errors.TargetResult{
		errors.Succeeded([]string{"m1"}, model.NewWriteResponse(1, 0)),
		errors.Failed([]string{"m2"}, &errors.ConnectFailure{Addr: "h1:9000"}),
	})
	writer := new(mockWriter)
	writer.On("Write", mock.Anything, mock.Anything).Return(nil, result.Err())

	l := ledger.NewMemoryLedger()
	rec := &countingRecorder{}
	h := newTestHandlers(writer, l, rec)
	w := postWrite(h, writeBody)

	assert.Equal(t, http.StatusMultiStatus, w.Code)

	var resp PartialWriteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "partial", resp.Status)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Equal(t, []string{"m1"}, resp.OK.Keys)
	assert.Equal(t, uint32(1), resp.OK.Success)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, []string{"m2"}, resp.Errors[0].Keys)
	assert.Equal(t, "connect", resp.Errors[0].Kind)
	assert.True(t, resp.Errors[0].Retryable)
	require.Len(t, resp.LedgerIDs, 1)

	pending, err := l.Pending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, resp.LedgerIDs[0], pending[0].ID.String())
	assert.Equal(t, []string{"m2"}, pending[0].Keys)
	assert.Equal(t, "req-1", pending[0].RequestID)
	assert.Equal(t, 1, rec.n)
}

func TestHandlers_WritePartialFailureLedgerDown(t *testing.T) {
	result := errors.Aggregate([]errors.TargetResult{
		errors.Failed([]string{"m2"}, &errors.ServerFailure{Code: 500}),
	})
	writer := new(mockWriter)
	writer.On("Write", mock.Anything, mock.Anything).Return(nil, result.Err())

	h := newTestHandlers(writer, failingLedger{}, nil)
	w := postWrite(h, writeBody)

	assert.Equal(t, http.StatusMultiStatus, w.Code)
	var resp PartialWriteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.LedgerIDs)
	assert.Empty(t, resp.OK.Keys)
}

func TestHandlers_WriteSingleFailure(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"auth", &errors.AuthFailure{Code: errors.AuthInvalidTenantMetadata}, http.StatusUnauthorized},
		{"closed", &errors.ClientStateFailure{Msg: "client is closed"}, http.StatusBadRequest},
		{"route lookup", &errors.ConnectFailure{Addr: "boot:9000"}, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := new(mockWriter)
			writer.On("Write", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := postWrite(newTestHandlers(writer, ledger.NewMemoryLedger(), nil), writeBody)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestHandlers_WriteValidationError(t *testing.T) {
	writer := new(mockWriter)
	h := newTestHandlers(writer, ledger.NewMemoryLedger(), nil)

	t.Run("invalid JSON", func(t *testing.T) {
		w := postWrite(h, `{invalid}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no points", func(t *testing.T) {
		w := postWrite(h, `{"points":[]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "points are required")
	})

	t.Run("missing metric", func(t *testing.T) {
		w := postWrite(h, `{"points":[{"fields":{"v":1}}]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "metric is required")
	})

	t.Run("missing fields", func(t *testing.T) {
		w := postWrite(h, `{"points":[{"metric":"cpu"}]}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	writer.AssertNotCalled(t, "Write", mock.Anything, mock.Anything)
}

func ledgerRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/ledger", h.ListLedger).Methods(http.MethodGet)
	r.HandleFunc("/v1/ledger/{id}", h.ResolveLedger).Methods(http.MethodDelete)
	return r
}

func TestHandlers_Ledger(t *testing.T) {
	l := ledger.NewMemoryLedger()
	entry := ledger.Entry{ID: uuid.New(), RequestID: "r1", Keys: []string{"cpu"}, Kind: "connect", CreatedAt: time.Now()}
	require.NoError(t, l.Record(context.Background(), entry))
	router := ledgerRouter(newTestHandlers(new(mockWriter), l, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ledger?limit=10", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var list LedgerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, entry.ID, list.Entries[0].ID)
	assert.Equal(t, []string{"cpu"}, list.Entries[0].Keys)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/ledger/"+entry.ID.String(), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/ledger/"+entry.ID.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/v1/ledger/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlers_LedgerErrors(t *testing.T) {
	router := ledgerRouter(newTestHandlers(new(mockWriter), failingLedger{}, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ledger", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ledger?limit=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
