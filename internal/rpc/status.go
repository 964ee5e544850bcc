package rpc

import (
	"context"
	goerrors "errors"

	"github.com/devrev/tsdb-client-go/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// authCodeField is the status detail field carrying an errors.AuthCode
const authCodeField = "auth_code"

// AuthStatus builds the Unauthenticated status a node returns when it
// rejects the tenant or token of a request.
func AuthStatus(code errors.AuthCode, msg string) *status.Status {
	st := status.New(codes.Unauthenticated, msg)
	detail, err := structpb.NewStruct(map[string]any{authCodeField: float64(code)})
	if err != nil {
		return st
	}
	withDetail, err := st.WithDetails(detail)
	if err != nil {
		return st
	}
	return withDetail
}

// FromError classifies an error returned by a storage service call
func FromError(err error) errors.Failure {
	if err == nil {
		return nil
	}

	var f errors.Failure
	if goerrors.As(err, &f) {
		return f
	}

	if st, ok := status.FromError(err); ok {
		if st.Code() == codes.Unauthenticated {
			if code, ok := authCode(st); ok {
				return &errors.AuthFailure{Code: code, Msg: st.Message()}
			}
		}
		return errors.NewTransportFailure(st)
	}

	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return &errors.TransportFailure{Code: codes.DeadlineExceeded, Msg: err.Error()}
	case goerrors.Is(err, context.Canceled):
		return &errors.TransportFailure{Code: codes.Canceled, Msg: err.Error()}
	}

	return &errors.UnknownFailure{Msg: err.Error()}
}

// FromHeader returns the ServerFailure described by a non-success header
func FromHeader(h Header) errors.Failure {
	if h.OK() {
		return nil
	}
	return &errors.ServerFailure{Code: h.Code, Msg: h.Error}
}

func authCode(st *status.Status) (errors.AuthCode, bool) {
	for _, d := range st.Details() {
		s, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		v, ok := s.GetFields()[authCodeField]
		if !ok {
			continue
		}
		code := errors.AuthCode(v.GetNumberValue())
		if !errors.ValidAuthCode(code) {
			return 0, false
		}
		return code, true
	}
	return 0, false
}
