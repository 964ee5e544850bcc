// Package route resolves which storage node owns each metric.
package route

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/devrev/tsdb-client-go/internal/rpc"
	"github.com/devrev/tsdb-client-go/pkg/errors"
	"github.com/devrev/tsdb-client-go/pkg/model"
	"go.uber.org/zap"
)

// Router maps metrics to the endpoints that own them. Metrics without a
// known owner are absent from the returned map.
type Router interface {
	Route(ctx context.Context, metrics []string) (map[string]*model.Route, error)
	Evict(ctx context.Context, metrics ...string)
}

// Observer is notified of route cache lookups
type Observer interface {
	ObserveRouteCache(hits, misses int)
}

type nopObserver struct{}

func (nopObserver) ObserveRouteCache(int, int) {}

// Resolver asks a node for metric owners
type Resolver interface {
	Route(ctx context.Context, addr string, req *rpc.RouteRequest) ([]model.Route, errors.Failure)
}

// ServerRouter resolves routes through the Route RPC of a bootstrap endpoint
// and caches them.
type ServerRouter struct {
	resolver Resolver
	endpoint string
	database string
	cache    Cache
	ttl      time.Duration
	observer Observer
	logger   *zap.Logger
}

// NewServerRouter creates a router that asks endpoint for cache misses
func NewServerRouter(
	resolver Resolver,
	endpoint, database string,
	cache Cache,
	ttl time.Duration,
	observer Observer,
	logger *zap.Logger,
) *ServerRouter {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ServerRouter{
		resolver: resolver,
		endpoint: endpoint,
		database: database,
		cache:    cache,
		ttl:      ttl,
		observer: observer,
		logger:   logger,
	}
}

// Route implements Router
func (r *ServerRouter) Route(ctx context.Context, metrics []string) (map[string]*model.Route, error) {
	routes := make(map[string]*model.Route, len(metrics))
	misses := make([]string, 0)

	for _, metric := range metrics {
		rt, err := r.cache.Get(ctx, metric)
		if err != nil {
			if !goerrors.Is(err, ErrNotFound) {
				r.logger.Warn("Route cache lookup failed",
					zap.String("metric", metric),
					zap.Error(err))
			}
			misses = append(misses, metric)
			continue
		}
		routes[metric] = rt
	}

	r.observer.ObserveRouteCache(len(metrics)-len(misses), len(misses))
	if len(misses) == 0 {
		return routes, nil
	}

	fetched, f := r.resolver.Route(ctx, r.endpoint, &rpc.RouteRequest{
		Database: r.database,
		Metrics:  misses,
	})
	if f != nil {
		return nil, f
	}

	for i := range fetched {
		rt := fetched[i]
		routes[rt.Metric] = &rt
		if err := r.cache.Set(ctx, &rt, r.ttl); err != nil {
			r.logger.Warn("Failed to cache route",
				zap.String("metric", rt.Metric),
				zap.Error(err))
		}
	}

	r.logger.Debug("Resolved routes",
		zap.String("endpoint", r.endpoint),
		zap.Int("requested", len(misses)),
		zap.Int("resolved", len(fetched)))

	return routes, nil
}

// Evict drops cached routes so that the next write asks the server again
func (r *ServerRouter) Evict(ctx context.Context, metrics ...string) {
	for _, metric := range metrics {
		if err := r.cache.Delete(ctx, metric); err != nil {
			r.logger.Warn("Failed to evict route",
				zap.String("metric", metric),
				zap.Error(err))
		}
	}
}

// HashRouter spreads metrics over a fixed set of endpoints by consistent hashing
type HashRouter struct {
	ring *Ring
}

// NewHashRouter places every endpoint on a ring with virtualNodes replicas
func NewHashRouter(endpoints []string, virtualNodes int) *HashRouter {
	if virtualNodes <= 0 {
		virtualNodes = 150
	}
	ring := NewRing()
	for _, ep := range endpoints {
		ring.Add(ep, virtualNodes)
	}
	return &HashRouter{ring: ring}
}

// Route implements Router
func (r *HashRouter) Route(ctx context.Context, metrics []string) (map[string]*model.Route, error) {
	routes := make(map[string]*model.Route, len(metrics))
	for _, metric := range metrics {
		if ep := r.ring.Locate(metric); ep != "" {
			routes[metric] = &model.Route{Metric: metric, Endpoint: ep}
		}
	}
	return routes, nil
}

// Evict is a no-op: ring placement does not change on failures
func (r *HashRouter) Evict(ctx context.Context, metrics ...string) {}
