package distributor

import "context"

// ApplyOutcome is the instance-side result of a PolicyReceiver.Apply call.
type ApplyOutcome struct {
	Accepted bool
	Version  string
	Reason   string // set when Accepted is false
}

// InstanceStatus is the instance-side result of a PolicyReceiver.Status call.
type InstanceStatus struct {
	Version  string
	Healthy  bool
	LoadedAt int64 // unix seconds
}

// PolicyReceiver is the distributor's view of a single enforcement
// instance's control-plane RPC surface. The concrete implementation
// (pkg/distributor/rpc) dials the instance over gRPC; tests use an
// in-memory fake.
type PolicyReceiver interface {
	Apply(ctx context.Context, endpoint string, bundleBytes, signatures []byte) (ApplyOutcome, error)
	Status(ctx context.Context, endpoint string) (InstanceStatus, error)
	Rollback(ctx context.Context, endpoint, toVersion string) error
}
