package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName   = "fasttext.v1.PredictionAPI"
	ProcessMethod = "/" + ServiceName + "/Process"
	StatusMethod  = "/" + ServiceName + "/Status"
)

// PredictionAPIServer is the server API of fasttext.v1.PredictionAPI. Both
// messages are google.protobuf.Struct so no generated code is involved.
type PredictionAPIServer interface {
	Process(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// PredictionAPIServiceDesc describes fasttext.v1.PredictionAPI for
// grpc.Server.RegisterService.
var PredictionAPIServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PredictionAPIServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Process", Handler: processHandler},
		{MethodName: "Status", Handler: statusHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fasttext/v1/prediction.proto",
}

func RegisterPredictionAPIServer(s grpc.ServiceRegistrar, srv PredictionAPIServer) {
	s.RegisterService(&PredictionAPIServiceDesc, srv)
}

func processHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictionAPIServer).Process(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ProcessMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictionAPIServer).Process(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func statusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PredictionAPIServer).Status(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StatusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PredictionAPIServer).Status(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// PredictionAPIClient is the client API of fasttext.v1.PredictionAPI.
type PredictionAPIClient interface {
	Process(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type predictionAPIClient struct {
	cc grpc.ClientConnInterface
}

func NewPredictionAPIClient(cc grpc.ClientConnInterface) PredictionAPIClient {
	return &predictionAPIClient{cc: cc}
}

func (c *predictionAPIClient) Process(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ProcessMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *predictionAPIClient) Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, StatusMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
