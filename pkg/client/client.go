// Package client writes points to a sharded time-series cluster. A write is
// split by the node owning each metric, sent to every node concurrently, and
// the per-node outcomes are folded into one result.
package client

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/devrev/tsdb-client-go/internal/route"
	"github.com/devrev/tsdb-client-go/internal/rpc"
	"github.com/devrev/tsdb-client-go/pkg/errors"
	"github.com/devrev/tsdb-client-go/pkg/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Write outcomes reported to the Recorder
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Client writes to a cluster of storage nodes
type Client struct {
	cfg       Config
	pool      *rpc.Pool
	storage   *rpc.StorageClient
	router    Router
	cache     RouteCache
	ownsCache bool
	recorder  Recorder
	logger    *zap.Logger
	closed    atomic.Bool
}

// New creates a client. No connection is made until the first write.
func New(cfg Config, opts ...Option) (*Client, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.recorder == nil {
		o.recorder = nopRecorder{}
	}

	cfg = cfg.withDefaults()
	if o.router == nil {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	} else if cfg.Token != "" && cfg.Tenant == "" {
		return nil, &errors.AuthFailure{Code: errors.AuthInvalidTenantMetadata, Msg: "token is set but tenant is empty"}
	}

	pool := rpc.NewPool(rpc.PoolConfig{
		ConnectTimeout:     cfg.ConnectTimeout,
		KeepaliveTime:      cfg.KeepaliveTime,
		KeepaliveTimeout:   cfg.KeepaliveTimeout,
		ReconnectBaseDelay: cfg.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.ReconnectMaxDelay,
		MaxRecvMsgSize:     cfg.MaxRecvMsgSize,
		MaxSendMsgSize:     cfg.MaxSendMsgSize,
		Tenant:             cfg.Tenant,
		Token:              cfg.Token,
	}, o.logger, o.dialOptions...)

	c := &Client{
		cfg:      cfg,
		pool:     pool,
		storage:  rpc.NewStorageClient(pool, cfg.RPCTimeout, o.logger),
		router:   o.router,
		cache:    o.cache,
		recorder: o.recorder,
		logger:   o.logger,
	}

	if c.router == nil {
		if err := c.buildRouter(); err != nil {
			_ = pool.Close()
			return nil, err
		}
	}

	o.logger.Info("Client created",
		zap.String("route_mode", cfg.RouteMode),
		zap.String("database", cfg.Database),
		zap.Int("max_concurrent_targets", cfg.MaxConcurrentTargets))

	return c, nil
}

func (c *Client) buildRouter() error {
	switch c.cfg.RouteMode {
	case RouteModeHash:
		c.router = route.NewHashRouter(c.cfg.Endpoints, c.cfg.VirtualNodes)
	case RouteModeStatic:
		table, err := route.LoadStaticTable(c.cfg.RouteFile)
		if err != nil {
			return err
		}
		c.router = route.NewStaticRouter(table)
	default:
		if c.cache == nil {
			cache, err := c.newRouteCache()
			if err != nil {
				return err
			}
			c.cache = cache
			c.ownsCache = true
		}
		c.router = route.NewServerRouter(
			c.storage,
			c.cfg.Endpoint,
			c.cfg.Database,
			c.cache,
			c.cfg.RouteCacheTTL,
			c.recorder,
			c.logger,
		)
	}
	return nil
}

func (c *Client) newRouteCache() (RouteCache, error) {
	if c.cfg.Redis.Addr == "" {
		return route.NewMemoryCache(c.cfg.RouteCacheSize, c.cfg.RouteCacheCleanupInterval, c.logger), nil
	}
	cache, err := route.NewRedisCache(context.Background(), route.RedisConfig{
		Addr:     c.cfg.Redis.Addr,
		Password: c.cfg.Redis.Password,
		DB:       c.cfg.Redis.DB,
		Prefix:   c.cfg.Redis.Prefix,
	}, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create route cache: %w", err)
	}
	return cache, nil
}

// target is the share of a write owned by one endpoint
type target struct {
	endpoint string
	keys     []string
	points   []model.Point
}

// Write splits req by owning node and writes every share concurrently.
// When all nodes succeed the summed response is returned. Otherwise the
// error is a *errors.ClusterPartialFailure carrying the successful counts
// and every per-node failure with the metrics it covered.
func (c *Client) Write(ctx context.Context, req *model.WriteRequest) (*model.WriteResponse, error) {
	if c.closed.Load() {
		return nil, &errors.ClientStateFailure{Msg: "client is closed"}
	}
	if req == nil || len(req.Points) == 0 {
		return nil, &errors.ClientStateFailure{Msg: "write request has no points"}
	}

	start := time.Now()
	requestID := rpc.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = rpc.WithRequestID(ctx, requestID)
	}

	routes, err := c.router.Route(ctx, req.Metrics())
	if err != nil {
		c.logger.Warn("Failed to resolve routes",
			zap.String("request_id", requestID),
			zap.Error(err))
		c.recorder.ObserveWrite(OutcomeFailed, time.Since(start))
		return nil, errors.AsFailure(err)
	}

	targets, unroutable := groupByEndpoint(req.Points, routes)

	results := make([]errors.TargetResult, len(targets), len(targets)+1)
	var g errgroup.Group
	g.SetLimit(c.cfg.MaxConcurrentTargets)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = c.writeTarget(ctx, requestID, t)
			return nil
		})
	}
	_ = g.Wait()

	if len(unroutable) > 0 {
		results = append(results, errors.Failed(unroutable, &errors.UnknownFailure{
			Msg: fmt.Sprintf("no route for metrics %v", unroutable),
		}))
	}

	result := errors.Aggregate(results)
	c.evictFailed(ctx, result)

	c.recorder.ObservePoints(result.OK.Success, result.OK.Failed)
	outcome := OutcomeOK
	switch {
	case !result.AllOK() && len(result.OKKeys) == 0:
		outcome = OutcomeFailed
	case !result.AllOK():
		outcome = OutcomePartial
	}
	c.recorder.ObserveWrite(outcome, time.Since(start))

	if result.AllOK() {
		c.logger.Debug("Write completed",
			zap.String("request_id", requestID),
			zap.Int("targets", len(targets)),
			zap.Uint32("success", result.OK.Success),
			zap.Uint32("failed", result.OK.Failed))
		return &result.OK, nil
	}

	c.logger.Warn("Write failed on some targets",
		zap.String("request_id", requestID),
		zap.Int("targets", len(results)),
		zap.Int("failed_targets", len(result.Errors)),
		zap.Strings("failed_keys", result.FailedKeys()))

	return nil, result.Err()
}

// groupByEndpoint splits points per owning endpoint in first-seen order.
// Metrics with no route are returned separately.
func groupByEndpoint(points []model.Point, routes map[string]*model.Route) ([]*target, []string) {
	targets := make([]*target, 0)
	byEndpoint := make(map[string]*target)
	seen := make(map[string]bool)
	unroutable := make([]string, 0)

	for _, p := range points {
		rt, ok := routes[p.Metric]
		if !ok || rt == nil || rt.Endpoint == "" {
			if !seen[p.Metric] {
				seen[p.Metric] = true
				unroutable = append(unroutable, p.Metric)
			}
			continue
		}

		t, exists := byEndpoint[rt.Endpoint]
		if !exists {
			t = &target{endpoint: rt.Endpoint}
			byEndpoint[rt.Endpoint] = t
			targets = append(targets, t)
		}
		if !seen[p.Metric] {
			seen[p.Metric] = true
			t.keys = append(t.keys, p.Metric)
		}
		t.points = append(t.points, p)
	}

	return targets, unroutable
}

func (c *Client) writeTarget(ctx context.Context, requestID string, t *target) errors.TargetResult {
	start := time.Now()
	resp, f := c.storage.Write(ctx, t.endpoint, &rpc.WriteRequest{
		Database:  c.cfg.Database,
		RequestID: requestID,
		Points:    t.points,
	})
	if f != nil {
		c.recorder.ObserveTarget(t.endpoint, f.Kind().String(), time.Since(start))
		return errors.Failed(t.keys, f)
	}
	c.recorder.ObserveTarget(t.endpoint, "", time.Since(start))
	return errors.Succeeded(t.keys, *resp)
}

// evictFailed drops cached routes and connections that a retry should
// resolve again
func (c *Client) evictFailed(ctx context.Context, result *errors.ClusterResult) {
	for _, te := range result.Errors {
		if !errors.Retryable(te.Err) {
			continue
		}
		c.router.Evict(ctx, te.Keys...)
		if cf, ok := te.Err.(*errors.ConnectFailure); ok {
			if err := c.pool.Evict(cf.Addr); err != nil {
				c.logger.Debug("Failed to close evicted connection",
					zap.String("endpoint", cf.Addr),
					zap.Error(err))
			}
		}
	}
}

// WriteTo writes req to a single endpoint, bypassing routing. The error is
// always an errors.Failure.
func (c *Client) WriteTo(ctx context.Context, endpoint string, req *model.WriteRequest) (*model.WriteResponse, error) {
	if c.closed.Load() {
		return nil, &errors.ClientStateFailure{Msg: "client is closed"}
	}
	if req == nil || len(req.Points) == 0 {
		return nil, &errors.ClientStateFailure{Msg: "write request has no points"}
	}

	requestID := rpc.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = rpc.WithRequestID(ctx, requestID)
	}

	start := time.Now()
	resp, f := c.storage.Write(ctx, endpoint, &rpc.WriteRequest{
		Database:  c.cfg.Database,
		RequestID: requestID,
		Points:    req.Points,
	})
	if f != nil {
		c.recorder.ObserveTarget(endpoint, f.Kind().String(), time.Since(start))
		return nil, f
	}
	c.recorder.ObserveTarget(endpoint, "", time.Since(start))
	c.recorder.ObservePoints(resp.Success, resp.Failed)
	return resp, nil
}

// Ping checks the route cache, if any
func (c *Client) Ping(ctx context.Context) error {
	if c.closed.Load() {
		return &errors.ClientStateFailure{Msg: "client is closed"}
	}
	if c.cache == nil {
		return nil
	}
	return c.cache.Ping(ctx)
}

// Close releases every connection. Calls made after Close fail with a
// ClientStateFailure.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := c.pool.Close()
	if c.ownsCache && c.cache != nil {
		if cerr := c.cache.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}

	c.logger.Info("Client closed")
	return err
}
