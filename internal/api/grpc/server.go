// Package grpcapi serves the hosted services over gRPC as
// fasttext.v1.PredictionAPI and provides a client for it.
package grpcapi

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/kennethnrk/fasttext-services/internal/dataset"
	"github.com/kennethnrk/fasttext-services/internal/host"
	"github.com/kennethnrk/fasttext-services/internal/service"
)

// Host is the part of *host.Host the server needs.
type Host interface {
	Process(ctx context.Context, name string, in service.Inputs) (service.Outputs, error)
	Statuses() []host.Status
	Ready() bool
}

// predictionServer implements PredictionAPIServer on top of a Host.
type predictionServer struct {
	host Host
}

// NewPredictionServer creates a new prediction server.
func NewPredictionServer(h Host) PredictionAPIServer {
	return &predictionServer{host: h}
}

// NewServer returns a gRPC server with the prediction API registered and
// every call logged to log.
func NewServer(h Host, log *zap.Logger, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.ChainUnaryInterceptor(LoggingInterceptor(log))}, opts...)
	s := grpc.NewServer(opts...)
	RegisterPredictionAPIServer(s, NewPredictionServer(h))
	return s
}

// Process runs one service over the request's input datasets.
func (s *predictionServer) Process(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	name, inputs, err := parseProcessRequest(req)
	if err != nil {
		return nil, toStatus(err)
	}

	outputs, err := s.host.Process(ctx, name, inputs)
	if err != nil {
		return nil, toStatus(err)
	}

	reply, err := newProcessReply(outputs)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return reply, nil
}

// Status reports every hosted service.
func (s *predictionServer) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	reply, err := encodeStatus(StatusReport{Ready: s.host.Ready(), Services: s.host.Statuses()})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return reply, nil
}

// toStatus maps host and service errors onto gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, host.ErrUnknownService):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, host.ErrNotReady):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrBadRequest), errors.Is(err, dataset.ErrFormat), service.IsInvalidInput(err):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// LoggingInterceptor logs each unary call with its code and latency.
func LoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("took", time.Since(start)),
		}
		switch code {
		case codes.OK:
			log.Debug("grpc call", fields...)
		case codes.Internal, codes.Unknown:
			log.Error("grpc call failed", append(fields, zap.Error(err))...)
		default:
			log.Info("grpc call rejected", append(fields, zap.Error(err))...)
		}
		return resp, err
	}
}
