// Package api provides the operator HTTP API and WebSocket server for the
// ComfortClick bridge.
//
// The server follows the same lifecycle pattern as the other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/comfortclick-bridge/internal/audit"
	"github.com/nerrad567/comfortclick-bridge/internal/comfortclick"
	"github.com/nerrad567/comfortclick-bridge/internal/coordinator"
	"github.com/nerrad567/comfortclick-bridge/internal/entity"
	"github.com/nerrad567/comfortclick-bridge/internal/infrastructure/config"
	"github.com/nerrad567/comfortclick-bridge/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Entities is the entity registry surface the API uses.
type Entities interface {
	All() []entity.Entity
	Get(id string) (entity.Entity, bool)
	Dispatch(ctx context.Context, id string, cmd entity.Command) error
}

// Values exposes the panel's cached raw values.
type Values interface {
	Snapshot() []comfortclick.Record
	Lookup(name string) (any, bool)
}

// Poller triggers and reports on panel polls.
type Poller interface {
	Refresh(ctx context.Context) error
	Status() coordinator.Status
}

// AuditLister reads the audit trail.
type AuditLister interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// HealthChecker is implemented by the MQTT client and the database.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Entities Entities
	Values   Values
	Poller   Poller
	Audit    AuditLister // optional; /audit returns 503 without it
	Gatherer prometheus.Gatherer
	Metrics  *Metrics // optional

	// Checks are reported by /health under their map key.
	Checks map[string]HealthChecker

	// Hub, when set, is used instead of a server-owned hub so entity sinks can
	// be wired before the server starts.
	Hub     *Hub
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	logger   *logging.Logger
	entities Entities
	values   Values
	poller   Poller
	audit    AuditLister
	gatherer prometheus.Gatherer
	metrics  *Metrics
	checks   map[string]HealthChecker
	version  string

	hub         *Hub
	externalHub bool

	mu     sync.Mutex
	server *http.Server
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Logger, Entities, Values and Poller are required
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Entities == nil {
		return nil, fmt.Errorf("entity registry is required")
	}
	if deps.Values == nil {
		return nil, fmt.Errorf("value cache is required")
	}
	if deps.Poller == nil {
		return nil, fmt.Errorf("poller is required")
	}

	s := &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		logger:   deps.Logger,
		entities: deps.Entities,
		values:   deps.Values,
		poller:   deps.Poller,
		audit:    deps.Audit,
		gatherer: deps.Gatherer,
		metrics:  deps.Metrics,
		checks:   deps.Checks,
		version:  deps.Version,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if deps.Hub != nil {
		s.hub = deps.Hub
		s.externalHub = true
	} else {
		s.hub = NewHub(deps.WS, deps.Logger)
	}
	s.hub.SetMetrics(deps.Metrics)

	return s, nil
}

// Hub returns the WebSocket hub used by the server.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start binds the listener and serves in a background goroutine. Bind
// errors are returned; later serve errors are logged.
//
// Parameters:
//   - ctx: Parent context for the hub lifetime
//
// Returns:
//   - error: If the listener cannot be bound
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}
	s.done = make(chan struct{})

	s.logger.Info("API server listening", "address", ln.Addr().String())
	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	<-s.done
	s.server = nil
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
