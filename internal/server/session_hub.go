package server

import (
	"errors"
	"sync"
	"time"

	"openplay-server/internal/rotation"
)

var ErrSessionNotFound = errors.New("SESSION_NOT_FOUND: No session is hosted under that share code")

// SessionHub hosts one rotation engine per share code.
type SessionHub struct {
	sessions  map[string]*HostedSession
	usedCodes map[string]bool
	mu        sync.RWMutex
}

// HostedSession serialises every command on its engine.
type HostedSession struct {
	ShareCode string
	CreatedAt time.Time
	UpdatedAt time.Time

	engine *rotation.Engine
	final  *rotation.Session
	mu     sync.Mutex
}

func NewSessionHub() *SessionHub {
	return &SessionHub{
		sessions:  make(map[string]*HostedSession),
		usedCodes: make(map[string]bool),
	}
}

// CreateSession reserves a share code and starts a session under it.
func (h *SessionHub) CreateSession(cfg rotation.SessionConfig) (*HostedSession, *rotation.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	code := GenerateShareCode(h.usedCodes)
	engine := rotation.NewEngine(rotation.WithShareCode(func() string { return code }))
	snapshot, err := engine.CreateSession(cfg)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	hs := &HostedSession{
		ShareCode: code,
		CreatedAt: now,
		UpdatedAt: now,
		engine:    engine,
	}
	h.usedCodes[code] = true
	h.sessions[code] = hs

	return hs, snapshot, nil
}

// Restore hosts a previously saved session. Ended sessions are skipped.
func (h *SessionHub) Restore(rec StoredSession) bool {
	engine := rotation.Restore(rec.Session)
	if !engine.Active() {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[rec.ShareCode] = &HostedSession{
		ShareCode: rec.ShareCode,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
		engine:    engine,
	}
	h.usedCodes[rec.ShareCode] = true
	return true
}

func (h *SessionHub) Get(code string) (*HostedSession, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	hs, ok := h.sessions[NormalizeShareCode(code)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return hs, nil
}

// All returns the hosted sessions in no particular order.
func (h *SessionHub) All() []*HostedSession {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*HostedSession, 0, len(h.sessions))
	for _, hs := range h.sessions {
		out = append(out, hs)
	}
	return out
}

func (h *SessionHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// SetUsedCodes replaces the reserved share codes, typically from storage.
func (h *SessionHub) SetUsedCodes(codes map[string]bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.usedCodes = make(map[string]bool, len(codes))
	for code, inUse := range codes {
		if inUse {
			h.usedCodes[code] = true
		}
	}
	for code := range h.sessions {
		h.usedCodes[code] = true
	}
}

// ReleaseCode makes an ended session's code available again.
func (h *SessionHub) ReleaseCode(code string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, hosted := h.sessions[code]; !hosted {
		delete(h.usedCodes, code)
	}
}

// EndSession stops hosting the session and returns its final snapshot with
// IsActive cleared. The share code stays reserved until ReleaseCode.
func (h *SessionHub) EndSession(code string) (*rotation.Session, error) {
	h.mu.Lock()
	hs, ok := h.sessions[code]
	if ok {
		delete(h.sessions, code)
	}
	h.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	hs.mu.Lock()
	defer hs.mu.Unlock()

	final := hs.engine.Snapshot()
	if err := hs.engine.EndSession(); err != nil {
		return nil, err
	}
	final.IsActive = false
	hs.final = final
	hs.UpdatedAt = time.Now().UTC()
	return final.Clone(), nil
}

// Apply runs fn against the engine under the session lock. The snapshot is
// taken after fn and is nil when fn fails.
func (hs *HostedSession) Apply(fn func(e *rotation.Engine) (any, error)) (any, *rotation.Session, error) {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	result, err := fn(hs.engine)
	if err != nil {
		return nil, nil, err
	}
	hs.UpdatedAt = time.Now().UTC()
	return result, hs.engine.Snapshot(), nil
}

// Snapshot returns the live session, or the final snapshot once the session
// has ended.
func (hs *HostedSession) Snapshot() *rotation.Session {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if hs.final != nil {
		return hs.final.Clone()
	}
	return hs.engine.Snapshot()
}

// Record returns the session as it is written to storage. A session ended
// after it was listed is recorded inactive with its final snapshot.
func (hs *HostedSession) Record() StoredSession {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if hs.final != nil {
		return StoredSession{
			ShareCode: hs.ShareCode,
			Active:    false,
			Session:   hs.final.Clone(),
			CreatedAt: hs.CreatedAt,
			UpdatedAt: hs.UpdatedAt,
		}
	}
	return StoredSession{
		ShareCode: hs.ShareCode,
		Active:    true,
		Session:   hs.engine.Snapshot(),
		CreatedAt: hs.CreatedAt,
		UpdatedAt: hs.UpdatedAt,
	}
}
