package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the name health checks report for the academics engine.
const ServiceName = "edufam.academics"

// NewServer builds the gRPC server with the service-token guard and the standard health service.
// Every service starts NOT_SERVING until the health watcher has seen the store.
func NewServer(serviceToken string, logger *zap.Logger) (*grpc.Server, *health.Server, error) {
	unaryAuth, err := NewServiceAuthUnaryInterceptor(serviceToken)
	if err != nil {
		return nil, nil, err
	}
	streamAuth, err := NewServiceAuthStreamInterceptor(serviceToken)
	if err != nil {
		return nil, nil, err
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unaryAuth, loggingUnaryInterceptor(logger)),
		grpc.StreamInterceptor(streamAuth),
	)
	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	return server, healthServer, nil
}

func loggingUnaryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		started := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("grpc call",
			zap.String("method", info.FullMethod),
			zap.String("code", status.Code(err).String()),
			zap.Duration("duration", time.Since(started)))
		return resp, err
	}
}
