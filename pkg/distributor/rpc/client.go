package rpc

import (
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/eunomia-sh/eunomia/pkg/distributor"
)

// GRPCReceiver implements distributor.PolicyReceiver over real gRPC
// connections, dialing (and caching) one connection per endpoint.
type GRPCReceiver struct {
	mu    sync.Mutex
	conns map[string]*grpc.ClientConn

	dialOpts []grpc.DialOption
}

// NewGRPCReceiver builds a GRPCReceiver. Extra DialOptions (TLS
// credentials, interceptors) can be supplied; when none are given,
// connections are insecure, matching a same-cluster deployment where mTLS
// is handled by a sidecar.
func NewGRPCReceiver(dialOpts ...grpc.DialOption) *GRPCReceiver {
	if len(dialOpts) == 0 {
		dialOpts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &GRPCReceiver{
		conns:    make(map[string]*grpc.ClientConn),
		dialOpts: dialOpts,
	}
}

func (r *GRPCReceiver) clientFor(endpoint string) (PolicyReceiverClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[endpoint]
	if !ok {
		var err error
		conn, err = grpc.NewClient(endpoint, r.dialOpts...)
		if err != nil {
			return nil, err
		}
		r.conns[endpoint] = conn
	}
	return NewPolicyReceiverClient(conn), nil
}

func (r *GRPCReceiver) Apply(ctx context.Context, endpoint string, bundleBytes, signatures []byte) (distributor.ApplyOutcome, error) {
	client, err := r.clientFor(endpoint)
	if err != nil {
		return distributor.ApplyOutcome{}, &distributor.Error{Kind: distributor.ErrInstanceUnreachable, Message: "dial " + endpoint, Cause: err}
	}
	resp, err := client.Apply(ctx, &ApplyRequest{BundleBytes: bundleBytes, Signatures: signatures})
	if err != nil {
		return distributor.ApplyOutcome{}, &distributor.Error{Kind: distributor.ErrInstanceUnreachable, Message: "apply rpc to " + endpoint, Cause: err}
	}
	return distributor.ApplyOutcome{Accepted: resp.Accepted, Version: resp.Version, Reason: resp.Reason}, nil
}

func (r *GRPCReceiver) Status(ctx context.Context, endpoint string) (distributor.InstanceStatus, error) {
	client, err := r.clientFor(endpoint)
	if err != nil {
		return distributor.InstanceStatus{}, &distributor.Error{Kind: distributor.ErrInstanceUnreachable, Message: "dial " + endpoint, Cause: err}
	}
	resp, err := client.Status(ctx, &StatusRequest{})
	if err != nil {
		return distributor.InstanceStatus{}, &distributor.Error{Kind: distributor.ErrInstanceUnreachable, Message: "status rpc to " + endpoint, Cause: err}
	}
	return distributor.InstanceStatus{Version: resp.Version, Healthy: resp.Healthy, LoadedAt: resp.LoadedAt}, nil
}

func (r *GRPCReceiver) Rollback(ctx context.Context, endpoint, toVersion string) error {
	client, err := r.clientFor(endpoint)
	if err != nil {
		return &distributor.Error{Kind: distributor.ErrInstanceUnreachable, Message: "dial " + endpoint, Cause: err}
	}
	resp, err := client.Rollback(ctx, &RollbackRequest{ToVersion: toVersion})
	if err != nil {
		return &distributor.Error{Kind: distributor.ErrInstanceUnreachable, Message: "rollback rpc to " + endpoint, Cause: err}
	}
	if !resp.Ok {
		return &distributor.Error{Kind: distributor.ErrPolicyRejected, Message: resp.Reason}
	}
	return nil
}

// Close tears down every cached connection.
func (r *GRPCReceiver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for endpoint, conn := range r.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.conns, endpoint)
	}
	return firstErr
}

var _ distributor.PolicyReceiver = (*GRPCReceiver)(nil)
