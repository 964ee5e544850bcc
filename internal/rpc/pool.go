package rpc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devrev/tsdb-client-go/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// PoolConfig controls how connections to storage nodes are established
type PoolConfig struct {
	ConnectTimeout     time.Duration
	KeepaliveTime      time.Duration
	KeepaliveTimeout   time.Duration
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	MaxRecvMsgSize     int
	MaxSendMsgSize     int
	Tenant             string
	Token              string
}

// Pool caches one gRPC connection per storage node address
type Pool struct {
	cfg         PoolConfig
	dialOptions []grpc.DialOption
	connections map[string]*grpc.ClientConn
	mu          sync.RWMutex
	closed      bool
	logger      *zap.Logger
}

// NewPool creates a connection pool. extra dial options are appended to the
// defaults, which lets callers swap the transport (TLS, in-process listeners).
func NewPool(cfg PoolConfig, logger *zap.Logger, extra ...grpc.DialOption) *Pool {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(MetadataInterceptor(cfg.Tenant, cfg.Token)),
	}
	if cfg.MaxRecvMsgSize > 0 || cfg.MaxSendMsgSize > 0 {
		callOpts := make([]grpc.CallOption, 0, 2)
		if cfg.MaxRecvMsgSize > 0 {
			callOpts = append(callOpts, grpc.MaxCallRecvMsgSize(cfg.MaxRecvMsgSize))
		}
		if cfg.MaxSendMsgSize > 0 {
			callOpts = append(callOpts, grpc.MaxCallSendMsgSize(cfg.MaxSendMsgSize))
		}
		opts = append(opts, grpc.WithDefaultCallOptions(callOpts...))
	}
	if cfg.KeepaliveTime > 0 {
		opts = append(opts, grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}))
	}
	if cfg.ReconnectBaseDelay > 0 {
		bc := backoff.DefaultConfig
		bc.BaseDelay = cfg.ReconnectBaseDelay
		if cfg.ReconnectMaxDelay > 0 {
			bc.MaxDelay = cfg.ReconnectMaxDelay
		}
		opts = append(opts, grpc.WithConnectParams(grpc.ConnectParams{
			Backoff:           bc,
			MinConnectTimeout: cfg.ConnectTimeout,
		}))
	}
	opts = append(opts, extra...)

	return &Pool{
		cfg:         cfg,
		dialOptions: opts,
		connections: make(map[string]*grpc.ClientConn),
		logger:      logger,
	}
}

// Get returns a ready connection to addr. gRPC keeps reconnecting in the
// background; if the connection is not ready within the connect timeout the
// node is reported as a ConnectFailure. A cancelled or expired ctx is a
// TransportFailure and leaves the connection in the pool.
func (p *Pool) Get(ctx context.Context, addr string) (*grpc.ClientConn, error) {
	conn, err := p.getConnection(addr)
	if err != nil {
		return nil, err
	}

	if err := p.waitReady(ctx, conn); err != nil {
		// The caller gave up before the connect timeout ran out
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, FromError(ctxErr)
		}
		p.logger.Warn("Connection to storage node not ready",
			zap.String("endpoint", addr),
			zap.Duration("connect_timeout", p.cfg.ConnectTimeout),
			zap.Error(err))
		return nil, &errors.ConnectFailure{Addr: addr, Cause: err}
	}

	return conn, nil
}

// getConnection returns or creates the connection for addr
func (p *Pool) getConnection(addr string) (*grpc.ClientConn, error) {
	p.mu.RLock()
	conn, exists := p.connections[addr]
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return nil, &errors.ClientStateFailure{Msg: "connection pool is closed"}
	}
	if exists {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, &errors.ClientStateFailure{Msg: "connection pool is closed"}
	}
	// Double-check
	if conn, exists := p.connections[addr]; exists {
		return conn, nil
	}

	conn, err := grpc.NewClient("passthrough:///"+addr, p.dialOptions...)
	if err != nil {
		return nil, &errors.ConnectFailure{Addr: addr, Cause: err}
	}

	p.logger.Debug("Created connection to storage node", zap.String("endpoint", addr))
	p.connections[addr] = conn
	return conn, nil
}

func (p *Pool) waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return fmt.Errorf("connection is shut down")
		}

		if !conn.WaitForStateChange(ctx, state) {
			return fmt.Errorf("connection not ready, last state %s: %w", state, ctx.Err())
		}
	}
}

// Evict closes and forgets the connection to addr
func (p *Pool) Evict(addr string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, exists := p.connections[addr]; exists {
		delete(p.connections, addr)
		return conn.Close()
	}
	return nil
}

// Size returns the number of cached connections
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.connections)
}

// Close closes all connections. Get fails after Close.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var firstErr error
	for addr, conn := range p.connections {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close connection to %s: %w", addr, err)
		}
	}
	p.connections = make(map[string]*grpc.ClientConn)
	return firstErr
}
