// Package apierrors maps client failures to HTTP responses for the write proxy.
package apierrors

import (
	"encoding/json"
	"net/http"

	"github.com/devrev/tsdb-client-go/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// ErrorCode represents application-specific error codes.
type ErrorCode string

const (
	ErrorCodeUnknown        ErrorCode = "UNKNOWN"
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrorCodeServiceDown    ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout        ErrorCode = "TIMEOUT"
	ErrorCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrorCodeNotFound       ErrorCode = "NOT_FOUND"

	ErrorCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrorCodeServerRejected ErrorCode = "SERVER_REJECTED"
	ErrorCodeClientClosed   ErrorCode = "CLIENT_CLOSED"
	ErrorCodePartialWrite   ErrorCode = "PARTIAL_WRITE"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Status    string    `json:"status"`
	ErrorCode ErrorCode `json:"error_code"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id,omitempty"`
}

// Handler provides error handling functionality.
type Handler struct {
	logger *zap.Logger
}

// NewHandler creates a new error handler.
func NewHandler(logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logger: logger}
}

// HandleError writes the HTTP response for a failed write.
func (h *Handler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	f := errors.AsFailure(err)
	resp := ErrorResponse{
		Status:    "error",
		ErrorCode: ErrorCodeFor(f),
		Kind:      f.Kind().String(),
		Message:   f.Error(),
		RequestID: r.Header.Get("X-Request-ID"),
	}
	h.write(w, StatusFor(f), resp)
}

// StatusFor converts a failure to an HTTP status code.
func StatusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch f := errors.AsFailure(err).(type) {
	case *errors.AuthFailure:
		return http.StatusUnauthorized
	case *errors.ServerFailure:
		return http.StatusBadRequest
	case *errors.ClientStateFailure:
		return http.StatusBadRequest
	case *errors.ConnectFailure:
		return http.StatusServiceUnavailable
	case *errors.TransportFailure:
		return grpcToHTTPStatus(f.Code)
	case *errors.ClusterPartialFailure:
		return http.StatusMultiStatus
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCodeFor converts a failure to an application error code.
func ErrorCodeFor(err error) ErrorCode {
	if err == nil {
		return ErrorCodeUnknown
	}

	switch f := errors.AsFailure(err).(type) {
	case *errors.AuthFailure:
		return ErrorCodeUnauthorized
	case *errors.ServerFailure:
		return ErrorCodeServerRejected
	case *errors.ClientStateFailure:
		return ErrorCodeClientClosed
	case *errors.ConnectFailure:
		return ErrorCodeServiceDown
	case *errors.TransportFailure:
		switch f.Code {
		case codes.DeadlineExceeded:
			return ErrorCodeTimeout
		case codes.Unavailable:
			return ErrorCodeServiceDown
		case codes.ResourceExhausted:
			return ErrorCodeRateLimited
		case codes.InvalidArgument, codes.OutOfRange:
			return ErrorCodeInvalidRequest
		case codes.Unauthenticated, codes.PermissionDenied:
			return ErrorCodeUnauthorized
		default:
			return ErrorCodeInternalError
		}
	case *errors.ClusterPartialFailure:
		return ErrorCodePartialWrite
	default:
		return ErrorCodeInternalError
	}
}

func grpcToHTTPStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a formatted error response.
func (h *Handler) WriteErrorResponse(w http.ResponseWriter, statusCode int, errorCode ErrorCode, message string, requestID string) {
	h.write(w, statusCode, ErrorResponse{
		Status:    "error",
		ErrorCode: errorCode,
		Message:   message,
		RequestID: requestID,
	})
}

func (h *Handler) write(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	h.logger.Warn("HTTP error response",
		zap.Int("status_code", statusCode),
		zap.String("error_code", string(resp.ErrorCode)),
		zap.String("kind", resp.Kind),
		zap.String("message", resp.Message),
		zap.String("request_id", resp.RequestID),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode error response", zap.Error(err))
	}
}

// WriteValidationError writes a validation error response.
func (h *Handler) WriteValidationError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusBadRequest, ErrorCodeInvalidRequest, message, requestID)
}

// WriteInternalError writes an internal error response.
func (h *Handler) WriteInternalError(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusInternalServerError, ErrorCodeInternalError, message, requestID)
}

// WriteNotFound writes a not found response.
func (h *Handler) WriteNotFound(w http.ResponseWriter, message string, requestID string) {
	h.WriteErrorResponse(w, http.StatusNotFound, ErrorCodeNotFound, message, requestID)
}
