package channel

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// The decision authority's gRPC surface. Messages are google.protobuf.Struct
// so both sides share the JSON contracts of the HTTP transport.

// #region method-names
const (
	authorityServiceName = "decisiongate.v1.DecisionAuthority"

	methodCheckInvariants      = "/" + authorityServiceName + "/CheckInvariants"
	methodSubmitEvolutionFrame = "/" + authorityServiceName + "/SubmitEvolutionFrame"
	methodGetHostSummary       = "/" + authorityServiceName + "/GetHostSummary"
)

// #endregion method-names

// #region client
// AuthorityClient is the client API for the DecisionAuthority service.
type AuthorityClient interface {
	CheckInvariants(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SubmitEvolutionFrame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetHostSummary(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type authorityClient struct {
	cc grpc.ClientConnInterface
}

// NewAuthorityClient binds the service to a connection.
func NewAuthorityClient(cc grpc.ClientConnInterface) AuthorityClient {
	return &authorityClient{cc: cc}
}

func (c *authorityClient) CheckInvariants(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodCheckInvariants, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authorityClient) SubmitEvolutionFrame(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodSubmitEvolutionFrame, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authorityClient) GetHostSummary(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetHostSummary, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion client

// #region server
// AuthorityServer is the server API for the DecisionAuthority service.
// The gate never serves it; it exists for local authorities and tests.
type AuthorityServer interface {
	CheckInvariants(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitEvolutionFrame(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHostSummary(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterAuthorityServer registers srv on s.
func RegisterAuthorityServer(s grpc.ServiceRegistrar, srv AuthorityServer) {
	s.RegisterService(&AuthorityServiceDesc, srv)
}

func unaryHandler(method string, call func(AuthorityServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AuthorityServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AuthorityServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AuthorityServiceDesc describes the DecisionAuthority service.
var AuthorityServiceDesc = grpc.ServiceDesc{
	ServiceName: authorityServiceName,
	HandlerType: (*AuthorityServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CheckInvariants",
			Handler:    unaryHandler(methodCheckInvariants, AuthorityServer.CheckInvariants),
		},
		{
			MethodName: "SubmitEvolutionFrame",
			Handler:    unaryHandler(methodSubmitEvolutionFrame, AuthorityServer.SubmitEvolutionFrame),
		},
		{
			MethodName: "GetHostSummary",
			Handler:    unaryHandler(methodGetHostSummary, AuthorityServer.GetHostSummary),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "decisiongate/v1/authority.proto",
}

// #endregion server
