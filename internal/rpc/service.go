package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
// ServiceName is the fully qualified gRPC service name.
const ServiceName = "decisionlab.analytics.v1.AnalyticsService"

const (
	recomputeMethod = "/" + ServiceName + "/Recompute"
	reportMethod    = "/" + ServiceName + "/Report"
)

// AnalyticsServer is the server API. Payloads are JSON-shaped structs so the
// reporting layer needs no generated stubs.
type AnalyticsServer interface {
	Recompute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Report(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// AnalyticsServiceClient is the client API for AnalyticsService.
type AnalyticsServiceClient interface {
	Recompute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Report(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// ServiceDesc describes AnalyticsService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnalyticsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Recompute", Handler: recomputeHandler},
		{MethodName: "Report", Handler: reportHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "decisionlab/analytics/v1/analytics.proto",
}

// Register attaches srv to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv AnalyticsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func recomputeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyticsServer).Recompute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: recomputeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalyticsServer).Recompute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func reportHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AnalyticsServer).Report(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: reportMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AnalyticsServer).Report(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// #endregion service-desc

// #region service-client
type analyticsServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAnalyticsServiceClient wraps a connection in the AnalyticsService API.
func NewAnalyticsServiceClient(cc grpc.ClientConnInterface) AnalyticsServiceClient {
	return &analyticsServiceClient{cc: cc}
}

func (c *analyticsServiceClient) Recompute(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, recomputeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *analyticsServiceClient) Report(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, reportMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion service-client
