package rotation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Engine owns at most one Session and applies commands to it. Commands are
// synchronous; callers that share an Engine across goroutines must serialise
// access themselves.
type Engine struct {
	session      *Session
	now          func() time.Time
	newID        func() string
	newShareCode func() string
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithShareCode sets the generator used to stamp new sessions with a share code.
func WithShareCode(newCode func() string) Option {
	return func(e *Engine) { e.newShareCode = newCode }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Restore wraps a previously saved session. An inactive session is ignored.
func Restore(s *Session, opts ...Option) *Engine {
	e := NewEngine(opts...)
	if s != nil && s.IsActive {
		e.session = s.Clone()
	}
	return e
}

func (e *Engine) Active() bool {
	return e.session != nil
}

// Snapshot returns a deep copy of the current session, or nil when none is active.
func (e *Engine) Snapshot() *Session {
	return e.session.Clone()
}

func (e *Engine) CreateSession(cfg SessionConfig) (*Session, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" || cfg.CourtCount < 1 || !cfg.RotationMode.Valid() {
		return nil, ErrInvalidConfig
	}

	now := e.now()
	courts := make([]*Court, cfg.CourtCount)
	for i := range courts {
		courts[i] = &Court{
			ID:     e.newID(),
			Name:   fmt.Sprintf("Court %d", i+1),
			Status: CourtAvailable,
		}
	}

	s := &Session{
		ID:              e.newID(),
		Name:            name,
		Location:        cfg.Location,
		Date:            cfg.Date,
		Time:            cfg.Time,
		Courts:          courts,
		Players:         []*Player{},
		Queue:           Queue{},
		RotationMode:    cfg.RotationMode,
		AutoAssignOnEnd: cfg.AutoAssignOnEnd,
		GamesCompleted:  []*Game{},
		CreatedAt:       now,
		IsActive:        true,
	}
	if e.newShareCode != nil {
		s.ShareCode = e.newShareCode()
	}
	e.session = s
	e.record(ActivityPlayerAdded, "Session started", nil)

	return e.Snapshot(), nil
}

// EndSession tears the session down, discarding its log with the rest of its state.
func (e *Engine) EndSession() error {
	if e.session == nil {
		return ErrNoSession
	}
	e.session = nil
	return nil
}

func (e *Engine) record(kind ActivityType, message string, details *ActivityDetails) {
	e.session.ActivityLog.append(ActivityLogEntry{
		ID:        e.newID(),
		Type:      kind,
		Timestamp: e.now(),
		Message:   message,
		Details:   details,
	})
}

func (e *Engine) active() (*Session, error) {
	if e.session == nil {
		return nil, ErrNoSession
	}
	return e.session, nil
}

func (e *Engine) court(id string) (*Session, *Court, error) {
	s, err := e.active()
	if err != nil {
		return nil, nil, err
	}
	c := s.Court(id)
	if c == nil {
		return nil, nil, ErrCourtNotFound
	}
	return s, c, nil
}

func (e *Engine) player(id string) (*Session, *Player, error) {
	s, err := e.active()
	if err != nil {
		return nil, nil, err
	}
	p := s.PlayerByID(id)
	if p == nil {
		return nil, nil, ErrPlayerNotFound
	}
	return s, p, nil
}
