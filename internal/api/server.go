package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/eclypse-bridge/internal/audit"
	"github.com/nerrad567/eclypse-bridge/internal/bacnet"
	"github.com/nerrad567/eclypse-bridge/internal/bridges/eclypse"
	"github.com/nerrad567/eclypse-bridge/internal/entity"
	"github.com/nerrad567/eclypse-bridge/internal/entry"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/config"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/database"
	"github.com/nerrad567/eclypse-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/eclypse-bridge/internal/wizard"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ChannelStateChanged is the WebSocket channel carrying poll snapshots.
const ChannelStateChanged = "eclypse.state_changed"

// Bridge is the part of *eclypse.Bridge the API drives.
type Bridge interface {
	Device() string
	Registry() *bacnet.Registry
	Object(ctx context.Context, name string) (map[string]any, error)
	Trend(ctx context.Context, name string, start, end int) (json.RawMessage, error)
	Write(ctx context.Context, object, property string, value any, priority int, source string) (*eclypse.WriteResult, error)
	Refresh(ctx context.Context) (*eclypse.PollResult, error)
	Entities() entity.Set
	GetMetrics() eclypse.BridgeMetrics
	OnPoll(fn func(eclypse.PollSnapshot))
}

// EntryStore lists and removes stored config entries.
type EntryStore interface {
	Get(ctx context.Context, id string) (*entry.Entry, error)
	List(ctx context.Context) ([]entry.Entry, error)
	Delete(ctx context.Context, id string) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	WS      config.WebSocketConfig
	Logger  *logging.Logger
	Bridge  Bridge          // optional: object endpoints answer 503 without it
	Wizard  *wizard.Manager // optional
	Entries EntryStore      // optional
	Audit   audit.Repository
	DB      *database.DB // optional: pool stats in /metrics
	Version string
}

// Server is the HTTP API server for the Eclypse bridge.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	bridge    Bridge
	wizard    *wizard.Manager
	entries   EntryStore
	auditRepo audit.Repository
	auditCh   chan *audit.Log
	db        *database.DB
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. The WebSocket hub is
// created here so poll snapshots can be relayed from the moment the bridge
// is wired.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		bridge:    deps.Bridge,
		wizard:    deps.Wizard,
		entries:   deps.Entries,
		auditRepo: deps.Audit,
		auditCh:   make(chan *audit.Log, auditChanSize),
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.WS, deps.Logger),
	}

	if s.bridge != nil {
		s.bridge.OnPoll(func(snap eclypse.PollSnapshot) {
			s.hub.Broadcast(ChannelStateChanged, snap)
		})
		s.hub.SetSnapshot(ChannelStateChanged, func() any { return s.currentState() })
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub and launches the HTTP listener in a
// background goroutine. The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	if s.auditRepo != nil {
		go s.drainAuditLog(srvCtx)
	}
	if s.wizard != nil {
		go s.wizard.CleanupLoop(srvCtx, time.Minute)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
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

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
