package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Outgoing metadata keys
const (
	MetadataTenant    = "x-tenant"
	MetadataToken     = "x-token"
	MetadataRequestID = "x-request-id"
)

type requestIDKey struct{}

// WithRequestID attaches a request id that is forwarded to every node
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request id set by WithRequestID
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// MetadataInterceptor adds tenant, token and request id metadata to calls
func MetadataInterceptor(tenant, token string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		pairs := make([]string, 0, 6)
		if tenant != "" {
			pairs = append(pairs, MetadataTenant, tenant)
		}
		if token != "" {
			pairs = append(pairs, MetadataToken, token)
		}
		if id := RequestIDFromContext(ctx); id != "" {
			pairs = append(pairs, MetadataRequestID, id)
		}
		if len(pairs) > 0 {
			ctx = metadata.AppendToOutgoingContext(ctx, pairs...)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
