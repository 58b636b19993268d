package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/eunomia-sh/eunomia/pkg/bundle"
	"github.com/eunomia-sh/eunomia/pkg/bundle/sign"
)

// InstanceServer is a reference PolicyReceiverServer: it loads an applied
// bundle into memory and reports it back via Status, without performing
// real Rego evaluation (out of scope, per the parser's textual-only
// contract). It exists to exercise the control-plane RPC path end to end in
// tests and local development, standing in for a real enforcement agent.
type InstanceServer struct {
	UnimplementedPolicyReceiverServer

	verifier *sign.Verifier

	mu         sync.Mutex
	version    string
	loadedAt   time.Time
	subscribed []chan *DeploymentUpdate
}

// NewInstanceServer builds an InstanceServer that verifies every applied
// bundle against verifier before accepting it.
func NewInstanceServer(verifier *sign.Verifier) *InstanceServer {
	return &InstanceServer{verifier: verifier}
}

func (s *InstanceServer) Apply(_ context.Context, req *ApplyRequest) (*ApplyResponse, error) {
	tmp, err := writeTemp(req.BundleBytes)
	if err != nil {
		return &ApplyResponse{Accepted: false, Reason: err.Error()}, nil
	}
	defer removeTemp(tmp)

	b, err := bundle.FromFile(tmp)
	if err != nil {
		return &ApplyResponse{Accepted: false, Reason: "malformed bundle: " + err.Error()}, nil
	}

	sb := &sign.SignedBundle{Bundle: b}
	if len(req.Signatures) > 0 {
		var env sign.Envelope
		if err := unmarshalJSON(req.Signatures, &env); err != nil {
			return &ApplyResponse{Accepted: false, Reason: "malformed signature envelope: " + err.Error()}, nil
		}
		sb.Envelope = env
	}

	if s.verifier != nil {
		if err := s.verifier.Verify(sb); err != nil {
			return &ApplyResponse{Accepted: false, Reason: "verification failed: " + err.Error()}, nil
		}
	}

	s.mu.Lock()
	s.version = b.Version
	s.loadedAt = time.Now()
	s.mu.Unlock()

	return &ApplyResponse{Accepted: true, Version: b.Version}, nil
}

func (s *InstanceServer) Status(context.Context, *StatusRequest) (*StatusResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &StatusResponse{
		Version:  s.version,
		Healthy:  true,
		LoadedAt: s.loadedAt.Unix(),
	}, nil
}

func (s *InstanceServer) Rollback(_ context.Context, req *RollbackRequest) (*RollbackResponse, error) {
	s.mu.Lock()
	s.version = req.ToVersion
	s.loadedAt = time.Now()
	s.mu.Unlock()
	return &RollbackResponse{Ok: true}, nil
}

func (s *InstanceServer) Subscribe(req *SubscribeRequest, stream PolicyReceiver_SubscribeServer) error {
	ch := make(chan *DeploymentUpdate, 8)
	s.mu.Lock()
	s.subscribed = append(s.subscribed, ch)
	s.mu.Unlock()

	for {
		select {
		case update, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(update); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return stream.Context().Err()
		}
	}
}

// CurrentVersion returns the version last applied or rolled back to, for
// tests that need to assert on instance-side state directly.
func (s *InstanceServer) CurrentVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}
