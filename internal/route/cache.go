package route

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/devrev/tsdb-client-go/pkg/model"
)

// ErrNotFound is returned by a Cache on a miss
var ErrNotFound = goerrors.New("route not found in cache")

// Cache stores metric routes between lookups
type Cache interface {
	Get(ctx context.Context, metric string) (*model.Route, error)
	Set(ctx context.Context, route *model.Route, ttl time.Duration) error
	Delete(ctx context.Context, metric string) error
	Ping(ctx context.Context) error
	Close() error
}
