// Package api exposes the daemon's control surface on its unix socket:
// the standard gRPC health service, reporting whether the provider
// session can currently exchange messages.
package api

import (
	"context"
	"sync"

	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
)

// SessionService is the health service name tracking the provider session.
// The empty service name reports daemon liveness.
const SessionService = "wppdesk.Session"

// Response headers carrying the detailed session state.
const (
	StateHeader  = "x-session-state"
	ReasonHeader = "x-session-reason"
)

// HealthReporter mirrors status transitions into a gRPC health server.
type HealthReporter struct {
	hs      *health.Server
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHealthReporter creates a reporter for machine. b delivers transitions.
func NewHealthReporter(machine *status.Machine, b *bus.Bus, logger *zap.Logger) *HealthReporter {
	return &HealthReporter{
		hs:      health.NewServer(),
		machine: machine,
		bus:     b,
		logger:  logger,
	}
}

// ServingStatus maps a session state to a health status.
func ServingStatus(s status.State) healthpb.HealthCheckResponse_ServingStatus {
	switch s {
	case status.Ready, status.Degraded:
		return healthpb.HealthCheckResponse_SERVING
	default:
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
}

// Register installs the health service on srv.
func (r *HealthReporter) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, r.hs)
}

// Start publishes the current state and follows transitions until Stop.
func (r *HealthReporter) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}

	ch, unsub := r.bus.SubscribeRoom(status.Room, status.EventKind, 16)
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	r.hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	r.set(r.machine.Current())

	go func() {
		defer close(r.done)
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-ch:
				change, ok := evt.Payload.(status.Change)
				if !ok {
					continue
				}
				r.set(change.To)
			}
		}
	}()
}

// Stop ends the follower and marks every service NOT_SERVING.
func (r *HealthReporter) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	r.hs.Shutdown()
}

func (r *HealthReporter) set(s status.State) {
	r.logger.Debug("health status updated",
		zap.String("state", string(s)),
		zap.Stringer("serving", ServingStatus(s)),
	)
	r.hs.SetServingStatus(SessionService, ServingStatus(s))
}

// UnaryInterceptor attaches the session state headers to every unary call.
func (r *HealthReporter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if err := grpc.SetHeader(ctx, r.headers()); err != nil {
			r.logger.Debug("set state header failed", zap.Error(err))
		}
		return handler(ctx, req)
	}
}

// StreamInterceptor attaches the session state headers when a stream opens.
func (r *HealthReporter) StreamInterceptor() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := ss.SetHeader(r.headers()); err != nil {
			r.logger.Debug("set state header failed", zap.Error(err))
		}
		return handler(srv, ss)
	}
}

func (r *HealthReporter) headers() metadata.MD {
	snap := r.machine.Snapshot()
	md := metadata.Pairs(StateHeader, string(snap.State))
	if snap.Reason != "" {
		md.Set(ReasonHeader, snap.Reason)
	}
	return md
}
