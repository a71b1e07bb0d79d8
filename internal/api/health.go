package api

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/matheus3301/wamcp/internal/bus"
	"github.com/matheus3301/wamcp/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name whose status follows the connection
// state. The empty name reports the same status.
const HealthService = "wamcp.Session"

// StateService returns the health service name that is SERVING only while
// the daemon is in state st. Clients use it to learn the exact state.
func StateService(st status.State) string {
	return HealthService + "/" + string(st)
}

// AllStates lists every connection state in lifecycle order.
var AllStates = []status.State{
	status.Booting, status.AuthRequired, status.Connecting, status.Syncing,
	status.Ready, status.Reconnecting, status.Degraded, status.Error,
}

// HealthServer is a gRPC health endpoint on the session's Unix socket.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	machine    *status.Machine
	logger     *zap.Logger
}

// NewHealthServer binds socketPath and registers the health service,
// initialised from the machine's current state.
func NewHealthServer(socketPath string, machine *status.Machine, logger *zap.Logger) (*HealthServer, error) {
	// Clean stale socket if it exists.
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	h := &HealthServer{
		grpcServer: srv,
		health:     hs,
		listener:   listener,
		socketPath: socketPath,
		machine:    machine,
		logger:     logger,
	}
	h.Set(machine.Current())
	return h, nil
}

// Set publishes st as the current serving status.
func (h *HealthServer) Set(st status.State) {
	overall := healthpb.HealthCheckResponse_NOT_SERVING
	if st.Serving() {
		overall = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", overall)
	h.health.SetServingStatus(HealthService, overall)
	for _, s := range AllStates {
		v := healthpb.HealthCheckResponse_NOT_SERVING
		if s == st {
			v = healthpb.HealthCheckResponse_SERVING
		}
		h.health.SetServingStatus(StateService(s), v)
	}
}

// Mirror follows session.status_changed events until ctx ends.
func (h *HealthServer) Mirror(ctx context.Context, b *bus.Bus) {
	ch, unsub := b.Subscribe(bus.KindStatusChanged, 16)
	// Catch up with changes made before the subscription.
	h.Set(h.machine.Current())
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				if change, ok := evt.Payload.(status.StatusChange); ok {
					h.Set(change.To)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Start serves health checks. Blocks until stopped.
func (h *HealthServer) Start() error {
	h.logger.Info("health server starting", zap.String("socket", h.socketPath))
	return h.grpcServer.Serve(h.listener)
}

// Stop marks everything NOT_SERVING, shuts down and removes the socket.
func (h *HealthServer) Stop() {
	h.logger.Info("health server stopping")
	h.health.Shutdown()
	h.grpcServer.GracefulStop()
	_ = os.Remove(h.socketPath)
}

// ProbeState asks a health endpoint which connection state it is in by
// checking every per-state service. The overall status comes back too.
func ProbeState(ctx context.Context, client healthpb.HealthClient) (status.State, healthpb.HealthCheckResponse_ServingStatus, error) {
	overall, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: HealthService})
	if err != nil {
		return "", healthpb.HealthCheckResponse_UNKNOWN, err
	}
	for _, st := range AllStates {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: StateService(st)})
		if err != nil {
			return "", overall.Status, err
		}
		if resp.Status == healthpb.HealthCheckResponse_SERVING {
			return st, overall.Status, nil
		}
	}
	return "", overall.Status, fmt.Errorf("no state reported as serving")
}
