// Package grpcserver exposes source availability over the standard gRPC
// health protocol. Each source is a health service whose status follows its
// circuit breaker: NOT_SERVING while open, SERVING otherwise. The empty
// service name reports the process itself.
package grpcserver

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"jobmate/ingestion-service/internal/breaker"
	"jobmate/ingestion-service/internal/logging"
	"jobmate/ingestion-service/internal/model"
)

// Server wraps a grpc.Server carrying the health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	log    *logging.Logger
}

// New registers every source as SERVING.
func New(sources []model.Source, log *logging.Logger) *Server {
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		log:    log.Component("grpc"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	reflection.Register(s.grpc)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, src := range sources {
		s.health.SetServingStatus(string(src), healthpb.HealthCheckResponse_SERVING)
	}
	return s
}

// OnBreakerChange matches breaker.Config.OnStateChange.
func (s *Server) OnBreakerChange(name string, from, to breaker.State) {
	st := healthpb.HealthCheckResponse_SERVING
	if to == breaker.Open {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(name, st)
	s.log.Debug("source health changed", "source", name, "from", from.String(), "to", to.String(), "status", st.String())
}

// Serve blocks until the listener fails or Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("gRPC health listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
