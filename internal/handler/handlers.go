// Package handler provides HTTP request handlers for the write proxy.
package handler

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/devrev/tsdb-client-go/internal/apierrors"
	"github.com/devrev/tsdb-client-go/internal/ledger"
	"github.com/devrev/tsdb-client-go/pkg/client"
	"github.com/devrev/tsdb-client-go/pkg/errors"
	"github.com/devrev/tsdb-client-go/pkg/model"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Writer performs cluster writes
type Writer interface {
	Write(ctx context.Context, req *model.WriteRequest) (*model.WriteResponse, error)
}

// LedgerRecorder counts ledger writes
type LedgerRecorder interface {
	RecordLedgerEntries(n int)
}

// Config holds handler settings
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	ListLimit    int
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	writer       Writer
	ledger       ledger.Ledger
	recorder     LedgerRecorder
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	cfg          Config
}

// NewHandlers creates a new Handlers instance. recorder may be nil.
func NewHandlers(
	writer Writer,
	l ledger.Ledger,
	recorder LedgerRecorder,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
	cfg Config,
) *Handlers {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 32 * 1024 * 1024
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = 100
	}
	return &Handlers{
		writer:       writer,
		ledger:       l,
		recorder:     recorder,
		errorHandler: errorHandler,
		logger:       logger,
		cfg:          cfg,
	}
}

// Write handles POST /v1/write requests.
func (h *Handlers) Write(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	req, err := h.decodeWrite(w, r)
	if err != nil {
		h.errorHandler.WriteValidationError(w, err.Error(), requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Timeout)
	defer cancel()
	if requestID != "" {
		ctx = client.WithRequestID(ctx, requestID)
	}

	resp, err := h.writer.Write(ctx, &model.WriteRequest{Points: req.Points})
	if err == nil {
		h.writeJSONResponse(w, http.StatusOK, WriteResponse{
			Status:  "ok",
			Success: resp.Success,
			Failed:  resp.Failed,
		})
		return
	}

	var partial *errors.ClusterPartialFailure
	if !goerrors.As(err, &partial) || partial.Result == nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	body := NewPartialWriteResponse(requestID, partial.Result)
	body.LedgerIDs = h.recordFailures(r.Context(), requestID, partial.Result)
	h.writeJSONResponse(w, http.StatusMultiStatus, body)
}

func (h *Handlers) decodeWrite(w http.ResponseWriter, r *http.Request) (*WriteRequest, error) {
	var req WriteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	if len(req.Points) == 0 {
		return nil, fmt.Errorf("points are required")
	}
	for i, p := range req.Points {
		if p.Metric == "" {
			return nil, fmt.Errorf("point %d: metric is required", i)
		}
		if len(p.Fields) == 0 {
			return nil, fmt.Errorf("point %d: at least one field is required", i)
		}
	}
	return &req, nil
}

// recordFailures stores the failed key sets of a partial write. A ledger
// error is logged and does not change the response status.
func (h *Handlers) recordFailures(ctx context.Context, requestID string, result *errors.ClusterResult) []string {
	entries := ledger.EntriesFrom(requestID, result)
	if len(entries) == 0 {
		return nil
	}

	if err := h.ledger.Record(ctx, entries...); err != nil {
		h.logger.Error("Failed to record failed key sets",
			zap.String("request_id", requestID),
			zap.Strings("failed_keys", result.FailedKeys()),
			zap.Error(err))
		return nil
	}
	if h.recorder != nil {
		h.recorder.RecordLedgerEntries(len(entries))
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID.String())
	}
	return ids
}

// ListLedger handles GET /v1/ledger requests.
func (h *Handlers) ListLedger(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	limit := h.cfg.ListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.errorHandler.WriteValidationError(w, "limit must be a positive integer", requestID)
			return
		}
		limit = n
	}

	entries, err := h.ledger.Pending(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list ledger", zap.Error(err))
		h.errorHandler.WriteInternalError(w, "failed to list ledger entries", requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, LedgerResponse{Entries: entries, Count: len(entries)})
}

// ResolveLedger handles DELETE /v1/ledger/{id} requests.
func (h *Handlers) ResolveLedger(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.errorHandler.WriteValidationError(w, "invalid ledger entry id", requestID)
		return
	}

	if err := h.ledger.Resolve(r.Context(), id); err != nil {
		if goerrors.Is(err, ledger.ErrEntryNotFound) {
			h.errorHandler.WriteNotFound(w, err.Error(), requestID)
			return
		}
		h.logger.Error("Failed to resolve ledger entry", zap.String("id", id.String()), zap.Error(err))
		h.errorHandler.WriteInternalError(w, "failed to resolve ledger entry", requestID)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "resolved", "id": id.String()})
}

// writeJSONResponse writes a JSON response.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
