package rpc

import (
	"context"
	"time"

	"github.com/devrev/tsdb-client-go/pkg/errors"
	"github.com/devrev/tsdb-client-go/pkg/model"
	"go.uber.org/zap"
)

// StorageClient sends write and route requests to storage nodes
type StorageClient struct {
	pool    *Pool
	timeout time.Duration
	logger  *zap.Logger
}

// NewStorageClient creates a storage client on top of a connection pool
func NewStorageClient(pool *Pool, timeout time.Duration, logger *zap.Logger) *StorageClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StorageClient{
		pool:    pool,
		timeout: timeout,
		logger:  logger,
	}
}

// Write sends the points routed to the node at addr. Any error is a Failure.
func (c *StorageClient) Write(ctx context.Context, addr string, req *WriteRequest) (*model.WriteResponse, errors.Failure) {
	conn, err := c.pool.Get(ctx, addr)
	if err != nil {
		return nil, FromError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := NewStorageServiceClient(conn).Write(ctx, req)
	if err != nil {
		f := FromError(err)
		c.logger.Warn("Write RPC failed",
			zap.String("endpoint", addr),
			zap.String("request_id", req.RequestID),
			zap.String("failure", f.Kind().String()),
			zap.Error(f))
		return nil, f
	}

	if f := FromHeader(resp.Header); f != nil {
		c.logger.Warn("Write rejected by storage node",
			zap.String("endpoint", addr),
			zap.String("request_id", req.RequestID),
			zap.Uint32("code", resp.Header.Code),
			zap.String("error", resp.Header.Error))
		return nil, f
	}

	out := model.NewWriteResponse(resp.Success, resp.Failed)
	return &out, nil
}

// Route asks the node at addr for the owners of the given metrics
func (c *StorageClient) Route(ctx context.Context, addr string, req *RouteRequest) ([]model.Route, errors.Failure) {
	conn, err := c.pool.Get(ctx, addr)
	if err != nil {
		return nil, FromError(err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := NewStorageServiceClient(conn).Route(ctx, req)
	if err != nil {
		f := FromError(err)
		c.logger.Warn("Route RPC failed",
			zap.String("endpoint", addr),
			zap.Int("metrics", len(req.Metrics)),
			zap.Error(f))
		return nil, f
	}

	if f := FromHeader(resp.Header); f != nil {
		return nil, f
	}

	return resp.Routes, nil
}

// Pool returns the underlying connection pool
func (c *StorageClient) Pool() *Pool {
	return c.pool
}
