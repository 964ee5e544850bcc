package client

import (
	"context"
	"time"

	"github.com/devrev/tsdb-client-go/internal/route"
	"github.com/devrev/tsdb-client-go/internal/rpc"
	"github.com/devrev/tsdb-client-go/pkg/model"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// ErrRouteNotFound must be returned by a RouteCache on a miss
var ErrRouteNotFound = route.ErrNotFound

// Router maps metrics to the endpoints that own them
type Router interface {
	Route(ctx context.Context, metrics []string) (map[string]*model.Route, error)
	Evict(ctx context.Context, metrics ...string)
}

// RouteCache stores routes resolved in server mode
type RouteCache interface {
	Get(ctx context.Context, metric string) (*model.Route, error)
	Set(ctx context.Context, route *model.Route, ttl time.Duration) error
	Delete(ctx context.Context, metric string) error
	Ping(ctx context.Context) error
	Close() error
}

// Recorder receives client measurements
type Recorder interface {
	// ObserveWrite records a cluster write. outcome is ok, partial or failed.
	ObserveWrite(outcome string, d time.Duration)
	// ObserveTarget records one per-node write. kind is empty on success.
	ObserveTarget(endpoint, kind string, d time.Duration)
	ObservePoints(success, failed uint32)
	ObserveRouteCache(hits, misses int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveWrite(string, time.Duration)          {}
func (nopRecorder) ObserveTarget(string, string, time.Duration) {}
func (nopRecorder) ObservePoints(uint32, uint32)                {}
func (nopRecorder) ObserveRouteCache(int, int)                  {}

type options struct {
	logger      *zap.Logger
	recorder    Recorder
	dialOptions []grpc.DialOption
	router      Router
	cache       RouteCache
}

// Option customizes a Client
type Option func(*options)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithDialOptions appends gRPC dial options, such as TLS credentials
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *options) { o.dialOptions = append(o.dialOptions, opts...) }
}

// WithRouter replaces the router built from the route mode
func WithRouter(r Router) Option {
	return func(o *options) { o.router = r }
}

// WithRouteCache sets the cache used in server route mode. The client does not
// close a cache passed this way.
func WithRouteCache(c RouteCache) Option {
	return func(o *options) { o.cache = c }
}

// WithRequestID sets the request id sent to every node for writes made with ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return rpc.WithRequestID(ctx, requestID)
}
