// Package grpcserver runs the portal's admin gRPC listener: the standard
// health service driven by a backing-store prober.
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
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "docportal.Portal"

// Pinger reports backing-store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Admin serves grpc.health.v1.Health.
type Admin struct {
	srv    *grpc.Server
	health *health.Server
	pinger Pinger
	log    *zap.Logger
}

// NewAdmin constructs the admin server. Reflection is registered when dev is set.
func NewAdmin(pinger Pinger, log *zap.Logger, dev bool) *Admin {
	if log == nil {
		log = zap.NewNop()
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(
			RecoverStream(log),
			LoggingStream(log),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if dev {
		reflection.Register(s)
	}

	a := &Admin{srv: s, health: hs, pinger: pinger, log: log}
	a.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
	return a
}

func (a *Admin) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	a.health.SetServingStatus("", st)
	a.health.SetServingStatus(ServiceName, st)
}

// Probe pings the store once and updates the health status.
func (a *Admin) Probe(ctx context.Context) bool {
	if a.pinger == nil {
		a.setStatus(healthpb.HealthCheckResponse_SERVING)
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.pinger.Ping(ctx); err != nil {
		a.log.Warn("store probe failed", zap.Error(err))
		a.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	a.setStatus(healthpb.HealthCheckResponse_SERVING)
	return true
}

// RunProber probes immediately and then every interval until ctx is done.
func (a *Admin) RunProber(ctx context.Context, interval time.Duration) {
	a.Probe(ctx)
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.Probe(ctx)
		}
	}
}

// Serve blocks serving on lis.
func (a *Admin) Serve(lis net.Listener) error {
	return a.srv.Serve(lis)
}

// Shutdown marks the server not serving and stops it, forcing after timeout.
func (a *Admin) Shutdown(timeout time.Duration) {
	a.health.Shutdown()
	done := make(chan struct{})
	go func() {
		a.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		a.srv.Stop()
	}
}
