// Package rpctest runs in-process storage nodes over bufconn for tests.
package rpctest

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/devrev/tsdb-client-go/internal/rpc"
	"github.com/devrev/tsdb-client-go/pkg/model"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

const bufSize = 1024 * 1024

// Network routes dials by address to in-process listeners
type Network struct {
	mu        sync.Mutex
	listeners map[string]*bufconn.Listener
	servers   []*grpc.Server
}

// NewNetwork creates an empty network
func NewNetwork() *Network {
	return &Network{listeners: make(map[string]*bufconn.Listener)}
}

// Serve starts a gRPC server for srv reachable at addr
func (n *Network) Serve(addr string, srv rpc.StorageServiceServer) {
	lis := bufconn.Listen(bufSize)
	server := grpc.NewServer()
	rpc.RegisterStorageServiceServer(server, srv)

	n.mu.Lock()
	n.listeners[addr] = lis
	n.servers = append(n.servers, server)
	n.mu.Unlock()

	go func() {
		_ = server.Serve(lis)
	}()
}

// DialOption makes a client dial through the network
func (n *Network) DialOption() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
		n.mu.Lock()
		lis, ok := n.listeners[addr]
		n.mu.Unlock()
		if !ok {
			return nil, fmt.Errorf("dial %s: connection refused", addr)
		}
		return lis.DialContext(ctx)
	})
}

// Close stops every server
func (n *Network) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.servers {
		s.Stop()
	}
}

// Node is a configurable storage node that records what it receives
type Node struct {
	WriteFunc func(ctx context.Context, req *rpc.WriteRequest) (*rpc.WriteResponse, error)
	Routes    map[string]string

	mu       sync.Mutex
	writes   []*rpc.WriteRequest
	metadata []metadata.MD
}

// AcceptAll returns a node that accepts every point it receives
func AcceptAll() *Node {
	return &Node{}
}

// Write implements rpc.StorageServiceServer
func (n *Node) Write(ctx context.Context, req *rpc.WriteRequest) (*rpc.WriteResponse, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	n.mu.Lock()
	n.writes = append(n.writes, req)
	n.metadata = append(n.metadata, md)
	n.mu.Unlock()

	if n.WriteFunc != nil {
		return n.WriteFunc(ctx, req)
	}
	return &rpc.WriteResponse{
		Header:  rpc.Header{Code: rpc.CodeSuccess},
		Success: uint32(len(req.Points)),
	}, nil
}

// Route implements rpc.StorageServiceServer
func (n *Node) Route(ctx context.Context, req *rpc.RouteRequest) (*rpc.RouteResponse, error) {
	routes := make([]model.Route, 0, len(req.Metrics))
	for _, m := range req.Metrics {
		if ep, ok := n.Routes[m]; ok {
			routes = append(routes, model.Route{Metric: m, Endpoint: ep})
		}
	}
	return &rpc.RouteResponse{Header: rpc.Header{Code: rpc.CodeSuccess}, Routes: routes}, nil
}

// Writes returns the write requests received so far
func (n *Node) Writes() []*rpc.WriteRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*rpc.WriteRequest(nil), n.writes...)
}

// Metadata returns the incoming metadata of every write received so far
func (n *Node) Metadata() []metadata.MD {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]metadata.MD(nil), n.metadata...)
}
