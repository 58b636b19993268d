package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
)

const serviceName = "eunomia.distributor.v1.PolicyReceiver"

// PolicyReceiverServer is implemented by an enforcement instance's
// control-plane endpoint.
type PolicyReceiverServer interface {
	Apply(context.Context, *ApplyRequest) (*ApplyResponse, error)
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	Rollback(context.Context, *RollbackRequest) (*RollbackResponse, error)
	Subscribe(*SubscribeRequest, PolicyReceiver_SubscribeServer) error
}

// UnimplementedPolicyReceiverServer can be embedded in a server
// implementation to satisfy PolicyReceiverServer for methods it doesn't
// override, matching the forward-compatibility convention of generated
// gRPC service stubs.
type UnimplementedPolicyReceiverServer struct{}

func (UnimplementedPolicyReceiverServer) Apply(context.Context, *ApplyRequest) (*ApplyResponse, error) {
	return nil, fmt.Errorf("Apply not implemented")
}
func (UnimplementedPolicyReceiverServer) Status(context.Context, *StatusRequest) (*StatusResponse, error) {
	return nil, fmt.Errorf("Status not implemented")
}
func (UnimplementedPolicyReceiverServer) Rollback(context.Context, *RollbackRequest) (*RollbackResponse, error) {
	return nil, fmt.Errorf("Rollback not implemented")
}
func (UnimplementedPolicyReceiverServer) Subscribe(*SubscribeRequest, PolicyReceiver_SubscribeServer) error {
	return fmt.Errorf("Subscribe not implemented")
}

// PolicyReceiver_SubscribeServer is the server-side handle for the
// server-streaming Subscribe call.
type PolicyReceiver_SubscribeServer interface {
	Send(*DeploymentUpdate) error
	grpc.ServerStream
}

type policyReceiverSubscribeServer struct {
	grpc.ServerStream
}

func (x *policyReceiverSubscribeServer) Send(m *DeploymentUpdate) error {
	return x.ServerStream.SendMsg(m)
}

// RegisterPolicyReceiverServer registers srv with s, matching the signature
// shape of protoc-gen-go-grpc's generated registration function.
func RegisterPolicyReceiverServer(s grpc.ServiceRegistrar, srv PolicyReceiverServer) {
	s.RegisterService(&policyReceiverServiceDesc, srv)
}

func _PolicyReceiver_Apply_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ApplyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PolicyReceiverServer).Apply(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Apply"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PolicyReceiverServer).Apply(ctx, req.(*ApplyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PolicyReceiver_Status_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(StatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PolicyReceiverServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Status"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PolicyReceiverServer).Status(ctx, req.(*StatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PolicyReceiver_Rollback_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RollbackRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PolicyReceiverServer).Rollback(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/Rollback"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PolicyReceiverServer).Rollback(ctx, req.(*RollbackRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PolicyReceiver_Subscribe_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(SubscribeRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(PolicyReceiverServer).Subscribe(m, &policyReceiverSubscribeServer{stream})
}

var policyReceiverServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PolicyReceiverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Apply", Handler: _PolicyReceiver_Apply_Handler},
		{MethodName: "Status", Handler: _PolicyReceiver_Status_Handler},
		{MethodName: "Rollback", Handler: _PolicyReceiver_Rollback_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: _PolicyReceiver_Subscribe_Handler, ServerStreams: true},
	},
	Metadata: "eunomia/distributor/v1/policy_receiver.proto",
}

// PolicyReceiverClient is the distributor-side stub dialing an enforcement
// instance's control-plane endpoint.
type PolicyReceiverClient interface {
	Apply(ctx context.Context, in *ApplyRequest, opts ...grpc.CallOption) (*ApplyResponse, error)
	Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	Rollback(ctx context.Context, in *RollbackRequest, opts ...grpc.CallOption) (*RollbackResponse, error)
	Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (PolicyReceiver_SubscribeClient, error)
}

type policyReceiverClient struct {
	cc grpc.ClientConnInterface
}

// NewPolicyReceiverClient wraps cc, defaulting every call to the package's
// JSON codec via grpc.CallContentSubtype so callers never need to remember
// to request it themselves.
func NewPolicyReceiverClient(cc grpc.ClientConnInterface) PolicyReceiverClient {
	return &policyReceiverClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}

func (c *policyReceiverClient) Apply(ctx context.Context, in *ApplyRequest, opts ...grpc.CallOption) (*ApplyResponse, error) {
	out := new(ApplyResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Apply", in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *policyReceiverClient) Status(ctx context.Context, in *StatusRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Status", in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *policyReceiverClient) Rollback(ctx context.Context, in *RollbackRequest, opts ...grpc.CallOption) (*RollbackResponse, error) {
	out := new(RollbackResponse)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Rollback", in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// PolicyReceiver_SubscribeClient is the client-side handle for the
// server-streaming Subscribe call.
type PolicyReceiver_SubscribeClient interface {
	Recv() (*DeploymentUpdate, error)
	grpc.ClientStream
}

type policyReceiverSubscribeClient struct {
	grpc.ClientStream
}

func (x *policyReceiverSubscribeClient) Recv() (*DeploymentUpdate, error) {
	m := new(DeploymentUpdate)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *policyReceiverClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (PolicyReceiver_SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &policyReceiverServiceDesc.Streams[0], "/"+serviceName+"/Subscribe", withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &policyReceiverSubscribeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
