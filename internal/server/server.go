package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"openplay-server/internal/config"
	"openplay-server/internal/database"
	"openplay-server/internal/mq"
	"openplay-server/internal/rotation"
)

const (
	heartbeatInterval = 30 * time.Second
	qrCodeSize        = 300
)

// SnapshotPublisher fans session snapshots out to consumers beyond the
// websocket clients.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, s *rotation.Session) error
	Close() error
}

type Server struct {
	cfg                config.Config
	db                 database.Service
	hub                *SessionHub
	operators          *OperatorRegistry
	connectionManager  *ConnectionManager
	persistenceManager *PersistenceManager
	publisher          SnapshotPublisher
	rateLimiter        *RateLimiter
	connectionHealth   *ConnectionHealth
	tracer             trace.Tracer
	heartbeatInterval  time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

func NewServer(cfg config.Config) (*Server, *http.Server, error) {
	dbService, err := database.New(cfg.DBDriver, cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}

	if err := database.Migrate(dbService.DB(), dbService.Dialect()); err != nil {
		dbService.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := newServer(cfg, dbService)

	if cfg.AMQPURL != "" {
		publisher, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			// Snapshots still reach websocket clients without the broker.
			log.Printf("Warning: snapshot publishing disabled: %v", err)
		} else {
			s.publisher = publisher
			log.Printf("Publishing session snapshots to exchange %s", cfg.AMQPExchange)
		}
	}

	if err := s.loadPersistedState(); err != nil {
		log.Printf("Warning: Failed to load persisted state: %v", err)
	}

	go s.periodicSaveTask()
	go s.cleanupTask()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, httpServer, nil
}

// newServer wires the in-memory managers around an open database.
func newServer(cfg config.Config, dbService database.Service) *Server {
	return &Server{
		cfg:                cfg,
		db:                 dbService,
		hub:                NewSessionHub(),
		operators:          NewOperatorRegistry(),
		connectionManager:  NewConnectionManager(),
		persistenceManager: NewPersistenceManager(dbService.DB(), dbService.Dialect()),
		rateLimiter:        NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		connectionHealth:   NewConnectionHealth(),
		tracer:             otel.Tracer("openplay-server/internal/server"),
		heartbeatInterval:  heartbeatInterval,
		done:               make(chan struct{}),
	}
}

// loadPersistedState restores active sessions, their operator tokens and the
// reserved share codes.
func (s *Server) loadPersistedState() error {
	sessions, err := s.persistenceManager.LoadAllActiveSessions()
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	restored := 0
	for _, rec := range sessions {
		if s.hub.Restore(rec) {
			restored++
			log.Printf("Restored session: %s (%s)", rec.ShareCode, rec.Session.Name)
		}
	}

	usedCodes, err := s.persistenceManager.LoadUsedShareCodes()
	if err != nil {
		return fmt.Errorf("failed to load share codes: %w", err)
	}
	s.hub.SetUsedCodes(usedCodes)

	operators, err := s.persistenceManager.LoadAllOperators()
	if err != nil {
		return fmt.Errorf("failed to load operators: %w", err)
	}
	tokens := 0
	for _, info := range operators {
		if _, err := s.hub.Get(info.ShareCode); err != nil {
			continue
		}
		s.operators.Store(info)
		tokens++
	}

	log.Printf("Loaded %d sessions, %d share codes, %d operator tokens", restored, len(usedCodes), tokens)
	return nil
}

// periodicSaveTask persists every hosted session on each tick. Commands are
// saved as they are applied; this catches anything a failed write missed.
func (s *Server) periodicSaveTask() {
	ticker := time.NewTicker(s.cfg.SaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			saved := s.saveAll()
			log.Printf("Periodic save completed: %d sessions persisted", saved)
		}
	}
}

// saveAll writes every hosted session and re-saves the operator tokens of
// the sessions still hosted.
func (s *Server) saveAll() int {
	saved := 0
	for _, hs := range s.hub.All() {
		if err := s.persistenceManager.SaveSession(hs.Record()); err != nil {
			log.Printf("Save failed for session %s: %v", hs.ShareCode, err)
			continue
		}
		saved++
	}
	for _, info := range s.operators.All() {
		if _, err := s.hub.Get(info.ShareCode); err != nil {
			continue
		}
		if err := s.persistenceManager.SaveOperator(info); err != nil {
			log.Printf("Save failed for operator of %s: %v", info.ShareCode, err)
		}
	}
	return saved
}

// cleanupTask deletes ended sessions past the retention window, frees their
// share codes and closes idle sockets.
func (s *Server) cleanupTask() {
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *Server) cleanup() {
	freed, err := s.persistenceManager.CleanupEndedSessions(s.cfg.EndedRetention)
	if err != nil {
		log.Printf("Cleanup task failed: %v", err)
	}
	for _, code := range freed {
		s.hub.ReleaseCode(code)
	}
	if len(freed) > 0 {
		log.Printf("Cleanup task: deleted %d ended sessions", len(freed))
	}

	s.rateLimiter.Cleanup()

	for _, connID := range s.connectionHealth.GetInactiveConnections(s.cfg.IdleTimeout) {
		if conn := s.connectionManager.GetConnection(connID); conn != nil {
			log.Printf("Closing idle connection %s", connID)
			conn.Close(websocket.StatusPolicyViolation, "Idle timeout")
		}
		s.connectionHealth.RemoveConnection(connID)
	}
}

// Shutdown saves every hosted session, tells connected clients the server is
// going away and releases the broker and database.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.done) })

	saved := s.saveAll()
	log.Printf("Shutdown: saved %d sessions", saved)

	for _, conn := range s.connectionManager.All() {
		if ctx.Err() != nil {
			break
		}
		conn.Close(websocket.StatusGoingAway, "Server shutting down")
	}

	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
