package grpcserver_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"jobmate/ingestion-service/internal/breaker"
	"jobmate/ingestion-service/internal/grpcserver"
	"jobmate/ingestion-service/internal/model"
)

func dial(t *testing.T, srv *grpcserver.Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func status(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestHealthFollowsBreaker(t *testing.T) {
	srv := grpcserver.New([]model.Source{model.SourceAdzuna, model.SourceRemoteOK}, nil)
	c := dial(t, srv)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, "adzuna"))

	srv.OnBreakerChange("adzuna", breaker.Closed, breaker.Open)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, status(t, c, "adzuna"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, "remoteok"))

	srv.OnBreakerChange("adzuna", breaker.Open, breaker.HalfOpen)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, status(t, c, "adzuna"))
}

func TestHealthUnknownService(t *testing.T) {
	c := dial(t, grpcserver.New(nil, nil))
	_, err := c.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "indeed"})
	assert.Error(t, err)
}
