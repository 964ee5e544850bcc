// Package errors defines every way a write against the cluster can fail and
// folds per-node write results into one cluster-wide outcome.
package errors

import (
	goerrors "errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind identifies the variant of a Failure
type Kind int

const (
	KindUnknown Kind = iota
	KindServer
	KindTransport
	KindConnect
	KindClientState
	KindAuth
	KindClusterPartial
)

// String returns the label used in logs, metrics and HTTP bodies
func (k Kind) String() string {
	switch k {
	case KindServer:
		return "server"
	case KindTransport:
		return "transport"
	case KindConnect:
		return "connect"
	case KindClientState:
		return "client_state"
	case KindAuth:
		return "auth"
	case KindClusterPartial:
		return "cluster_partial"
	default:
		return "unknown"
	}
}

// Failure is the closed set of write failures. The only implementations are
// the pointer types declared in this package.
type Failure interface {
	error
	Kind() Kind
	failure()
}

// ServerFailure is returned when a node accepted the request but rejected it
type ServerFailure struct {
	Code uint32
	Msg  string
}

func (e *ServerFailure) Error() string {
	return fmt.Sprintf("server error (code %d): %s", e.Code, e.Msg)
}

func (e *ServerFailure) Kind() Kind { return KindServer }
func (e *ServerFailure) failure()   {}

// TransportFailure carries a gRPC status reported by the transport itself.
// Errors raised by a running server are never wrapped here.
type TransportFailure struct {
	Code codes.Code
	Msg  string
}

// NewTransportFailure converts a gRPC status into a TransportFailure
func NewTransportFailure(st *status.Status) *TransportFailure {
	return &TransportFailure{Code: st.Code(), Msg: st.Message()}
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("rpc error: code = %s desc = %s", e.Code, e.Msg)
}

// Status rebuilds the gRPC status
func (e *TransportFailure) Status() *status.Status {
	return status.New(e.Code, e.Msg)
}

func (e *TransportFailure) Kind() Kind { return KindTransport }
func (e *TransportFailure) failure()   {}

// ConnectFailure is returned when the connection to a node is broken and
// reconnecting did not succeed before the connect timeout.
type ConnectFailure struct {
	Addr  string
	Cause error
}

func (e *ConnectFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to connect to %s: %v", e.Addr, e.Cause)
	}
	return fmt.Sprintf("failed to connect to %s", e.Addr)
}

// Unwrap returns the underlying cause
func (e *ConnectFailure) Unwrap() error {
	return e.Cause
}

func (e *ConnectFailure) Kind() Kind { return KindConnect }
func (e *ConnectFailure) failure()   {}

// ClientStateFailure reports misuse of the client: the request was issued
// before the client was ready or after it was closed.
type ClientStateFailure struct {
	Msg string
}

func (e *ClientStateFailure) Error() string {
	return "client error: " + e.Msg
}

func (e *ClientStateFailure) Kind() Kind { return KindClientState }
func (e *ClientStateFailure) failure()   {}

// UnknownFailure is the escape hatch for causes without a dedicated variant
type UnknownFailure struct {
	Msg string
}

func (e *UnknownFailure) Error() string {
	return "unknown error: " + e.Msg
}

func (e *UnknownFailure) Kind() Kind { return KindUnknown }
func (e *UnknownFailure) failure()   {}

// AsFailure returns the Failure carried by err. Errors outside the taxonomy
// are reported as UnknownFailure.
func AsFailure(err error) Failure {
	if err == nil {
		return nil
	}
	var f Failure
	if goerrors.As(err, &f) {
		return f
	}
	return &UnknownFailure{Msg: err.Error()}
}

// KindOf returns the kind of the failure carried by err
func KindOf(err error) Kind {
	if f := AsFailure(err); f != nil {
		return f.Kind()
	}
	return KindUnknown
}

// Retryable reports whether repeating the same write may succeed. Transport
// and connect failures are retryable; a request the server or the auth layer
// rejected is not. A cluster failure is retryable only if every failed
// target is.
func Retryable(err error) bool {
	switch f := AsFailure(err).(type) {
	case *TransportFailure, *ConnectFailure:
		return true
	case *ClusterPartialFailure:
		for _, te := range f.Result.Errors {
			if !Retryable(te.Err) {
				return false
			}
		}
		return len(f.Result.Errors) > 0
	default:
		return false
	}
}
