// Package grpcserver runs the gRPC side of the service: the standard health
// protocol, used by Consul and load balancers, and server reflection.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"blogdesk/auth"
	"blogdesk/interceptors"
)

// ServiceName is the health service name reported next to the overall ("")
// status.
const ServiceName = "blogdesk"

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	check  func(ctx context.Context) error
	log    *zap.Logger
}

// New builds a server whose health status follows check. A nil check
// always reports SERVING.
func New(authn *auth.Authenticator, check func(ctx context.Context) error, log *zap.Logger) *Server {
	log = log.Named("grpc")
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.ZapLoggingInterceptor(log),
			interceptors.AuthInterceptor(authn),
		),
		grpc.ChainStreamInterceptor(
			interceptors.ZapStreamLoggingInterceptor(log),
			interceptors.AuthStreamInterceptor(authn),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	s := &Server{grpc: srv, health: hs, check: check, log: log}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return s
}

// Serve blocks until Stop is called or the listener fails.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// WatchHealth runs the check now and then every interval until ctx is done.
func (s *Server) WatchHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.probe(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) probe(ctx context.Context) {
	st := healthpb.HealthCheckResponse_SERVING
	if s.check != nil {
		cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.check(cctx)
		cancel()
		if err != nil {
			s.log.Warn("Health check failed", zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.setStatus(st)
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Stop reports NOT_SERVING to watchers, then drains in-flight calls. If ctx
// ends first the remaining connections are closed.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
		<-done
	}
	s.log.Info("gRPC server stopped")
}
