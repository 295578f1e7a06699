package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"openplay-server/internal/database"
	"openplay-server/internal/rotation"
)

// setupTestDB opens a migrated in-memory sqlite database.
func setupTestDB(t *testing.T) database.Service {
	t.Helper()

	svc, err := database.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := database.Migrate(svc.DB(), svc.Dialect()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	return svc
}

func setupPersistence(t *testing.T) *PersistenceManager {
	t.Helper()
	svc := setupTestDB(t)
	return NewPersistenceManager(svc.DB(), svc.Dialect())
}

func storedSession(t *testing.T, code string, active bool, updatedAt time.Time) StoredSession {
	t.Helper()
	s := sampleSession(t)
	s.ShareCode = code
	s.IsActive = active
	return StoredSession{
		ShareCode: code,
		Active:    active,
		Session:   s,
		CreatedAt: updatedAt.Add(-time.Hour),
		UpdatedAt: updatedAt,
	}
}

func TestRebind(t *testing.T) {
	query := `SELECT a FROM t WHERE b = ? AND c < ?`

	sqlite := NewPersistenceManager(nil, "sqlite3")
	assert.Equal(t, query, sqlite.rebind(query))

	pg := NewPersistenceManager(nil, "postgres")
	assert.Equal(t, `SELECT a FROM t WHERE b = $1 AND c < $2`, pg.rebind(query))
}

func TestPersistenceManager_SaveAndLoadSession(t *testing.T) {
	assert := assert.New(t)
	pm := setupPersistence(t)

	rec := storedSession(t, "ABC234", true, time.Now())
	assert.NoError(pm.SaveSession(rec))

	loaded, err := pm.LoadSession("ABC234")
	assert.NoError(err)
	assert.Equal("ABC234", loaded.ShareCode)
	assert.True(loaded.Active)
	assert.Equal(rec.Session.Name, loaded.Session.Name)
	assert.Equal(rec.Session.Queue, loaded.Session.Queue)
	assert.Len(loaded.Session.Players, len(rec.Session.Players))
	assert.WithinDuration(rec.UpdatedAt, loaded.UpdatedAt, time.Second)

	courtID := rec.Session.Courts[0].ID
	assert.NotNil(loaded.Session.Court(courtID).CurrentGame)
	assert.Equal(rec.Session.Court(courtID).CurrentGame.Team1, loaded.Session.Court(courtID).CurrentGame.Team1)
}

func TestPersistenceManager_LoadSession_NotFound(t *testing.T) {
	pm := setupPersistence(t)

	_, err := pm.LoadSession("ZZZZZZ")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPersistenceManager_SaveSession_Update(t *testing.T) {
	assert := assert.New(t)
	pm := setupPersistence(t)

	rec := storedSession(t, "ABC234", true, time.Now())
	assert.NoError(pm.SaveSession(rec))

	rec.Session.Name = "Thursday Doubles (late)"
	rec.Active = false
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Minute)
	assert.NoError(pm.SaveSession(rec))

	loaded, err := pm.LoadSession("ABC234")
	assert.NoError(err)
	assert.False(loaded.Active)
	assert.Equal("Thursday Doubles (late)", loaded.Session.Name)

	var n int
	assert.NoError(pm.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n))
	assert.Equal(1, n)
}

func TestPersistenceManager_LoadAllActiveSessions(t *testing.T) {
	assert := assert.New(t)
	pm := setupPersistence(t)
	now := time.Now()

	assert.NoError(pm.SaveSession(storedSession(t, "AAA222", true, now.Add(-time.Minute))))
	assert.NoError(pm.SaveSession(storedSession(t, "BBB333", true, now)))
	assert.NoError(pm.SaveSession(storedSession(t, "CCC444", false, now)))

	sessions, err := pm.LoadAllActiveSessions()
	assert.NoError(err)
	assert.Len(sessions, 2)
	// Most recently updated first.
	assert.Equal("BBB333", sessions[0].ShareCode)
	assert.Equal("AAA222", sessions[1].ShareCode)
}

func TestPersistenceManager_LoadAllActiveSessions_SkipsCorruptRows(t *testing.T) {
	assert := assert.New(t)
	pm := setupPersistence(t)
	now := time.Now().UTC()

	assert.NoError(pm.SaveSession(storedSession(t, "AAA222", true, now)))
	_, err := pm.db.Exec(`INSERT INTO sessions (share_code, active, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		"BAD222", true, "{not json", now, now)
	assert.NoError(err)

	sessions, err := pm.LoadAllActiveSessions()
	assert.NoError(err)
	assert.Len(sessions, 1)
	assert.Equal("AAA222", sessions[0].ShareCode)
}

func TestPersistenceManager_Operators(t *testing.T) {
	assert := assert.New(t)
	pm := setupPersistence(t)
	now := time.Now()

	assert.NoError(pm.SaveOperator(OperatorInfo{Token: "t1", ShareCode: "AAA222", CreatedAt: now}))
	assert.NoError(pm.SaveOperator(OperatorInfo{Token: "t2", ShareCode: "BBB333", CreatedAt: now}))
	// Saving the same token twice keeps one row.
	assert.NoError(pm.SaveOperator(OperatorInfo{Token: "t2", ShareCode: "BBB333", CreatedAt: now}))

	operators, err := pm.LoadAllOperators()
	assert.NoError(err)
	assert.Len(operators, 2)

	assert.NoError(pm.DeleteOperators("AAA222"))
	operators, err = pm.LoadAllOperators()
	assert.NoError(err)
	assert.Len(operators, 1)
	assert.Equal("t2", operators[0].Token)
	assert.Equal("BBB333", operators[0].ShareCode)
}

func TestPersistenceManager_ShareCodes(t *testing.T) {
	assert := assert.New(t)
	pm := setupPersistence(t)

	assert.NoError(pm.SaveShareCode("AAA222", true))
	assert.NoError(pm.SaveShareCode("BBB333", true))
	assert.NoError(pm.SaveShareCode("BBB333", false))

	codes, err := pm.LoadUsedShareCodes()
	assert.NoError(err)
	assert.Equal(map[string]bool{"AAA222": true, "BBB333": false}, codes)
}

func TestPersistenceManager_DeleteSession(t *testing.T) {
	assert := assert.New(t)
	pm := setupPersistence(t)

	assert.NoError(pm.SaveSession(storedSession(t, "ABC234", false, time.Now())))
	assert.NoError(pm.SaveOperator(OperatorInfo{Token: "t1", ShareCode: "ABC234", CreatedAt: time.Now()}))
	assert.NoError(pm.SaveShareCode("ABC234", true))

	assert.NoError(pm.DeleteSession("ABC234"))

	_, err := pm.LoadSession("ABC234")
	assert.ErrorIs(err, ErrSessionNotFound)
	operators, err := pm.LoadAllOperators()
	assert.NoError(err)
	assert.Empty(operators)
	codes, err := pm.LoadUsedShareCodes()
	assert.NoError(err)
	assert.False(codes["ABC234"])

	assert.ErrorIs(pm.DeleteSession("ABC234"), ErrSessionNotFound)
}

func TestPersistenceManager_CleanupEndedSessions(t *testing.T) {
	assert := assert.New(t)
	pm := setupPersistence(t)
	now := time.Now()

	assert.NoError(pm.SaveSession(storedSession(t, "OLD222", false, now.Add(-48*time.Hour))))
	assert.NoError(pm.SaveSession(storedSession(t, "NEW333", false, now.Add(-time.Hour))))
	assert.NoError(pm.SaveSession(storedSession(t, "RUN444", true, now.Add(-48*time.Hour))))
	for _, code := range []string{"OLD222", "NEW333", "RUN444"} {
		assert.NoError(pm.SaveShareCode(code, true))
	}

	freed, err := pm.CleanupEndedSessions(24 * time.Hour)
	assert.NoError(err)
	assert.Equal([]string{"OLD222"}, freed)

	_, err = pm.LoadSession("OLD222")
	assert.ErrorIs(err, ErrSessionNotFound)
	_, err = pm.LoadSession("NEW333")
	assert.NoError(err)
	_, err = pm.LoadSession("RUN444")
	assert.NoError(err)

	codes, err := pm.LoadUsedShareCodes()
	assert.NoError(err)
	assert.Equal(map[string]bool{"OLD222": false, "NEW333": true, "RUN444": true}, codes)
}

// Sessions saved by one server come back with their engine state on the next.
func TestPersistence_ServerRestart(t *testing.T) {
	assert := assert.New(t)
	svc := setupTestDB(t)
	pm := NewPersistenceManager(svc.DB(), svc.Dialect())

	hub := NewSessionHub()
	hs, _, err := hub.CreateSession(rotation.SessionConfig{Name: "Open Play", CourtCount: 2, RotationMode: rotation.FullRotation})
	assert.NoError(err)
	_, _, err = hs.Apply(func(e *rotation.Engine) (any, error) {
		added, _, err := e.AddPlayers("Alice, Bob, Cara, Dee, Eve", nil, false)
		return added, err
	})
	assert.NoError(err)
	assert.NoError(pm.SaveSession(hs.Record()))
	assert.NoError(pm.SaveShareCode(hs.ShareCode, true))

	assert.NoError(pm.SaveOperator(OperatorInfo{Token: "op-token", ShareCode: hs.ShareCode, CreatedAt: time.Now()}))
	assert.NoError(pm.SaveOperator(OperatorInfo{Token: "stale-token", ShareCode: "GONE22", CreatedAt: time.Now()}))

	restarted := newServer(testConfig(), svc)
	assert.NoError(restarted.loadPersistedState())

	assert.Equal(1, restarted.hub.Count())
	restored, err := restarted.hub.Get(hs.ShareCode)
	assert.NoError(err)
	assert.Equal([]string{"Alice", "Bob", "Cara", "Dee", "Eve"}, queuedNames(restored.Snapshot()))

	_, err = restarted.operators.Get("op-token")
	assert.NoError(err)
	_, err = restarted.operators.Get("stale-token")
	assert.ErrorIs(err, ErrTokenNotFound)

	// The restored code is still reserved.
	restarted.hub.mu.RLock()
	assert.True(restarted.hub.usedCodes[hs.ShareCode])
	restarted.hub.mu.RUnlock()
}

func queuedNames(s *rotation.Session) []string {
	names := make([]string, 0, len(s.Queue))
	for _, id := range s.Queue {
		names = append(names, s.PlayerByID(id).Name)
	}
	return names
}

// A save that listed a session before it ended must not bring it back as active.
func TestPersistence_SaveAfterEndKeepsSessionInactive(t *testing.T) {
	assert := assert.New(t)
	svc := setupTestDB(t)
	s := newServer(testConfig(), svc)

	hs, _, err := s.hub.CreateSession(rotation.SessionConfig{Name: "Open Play", CourtCount: 1, RotationMode: rotation.FullRotation})
	assert.NoError(err)
	listed := s.hub.All()

	final, err := s.hub.EndSession(hs.ShareCode)
	assert.NoError(err)
	assert.NoError(s.persistenceManager.SaveSession(StoredSession{
		ShareCode: hs.ShareCode,
		Active:    false,
		Session:   final,
		CreatedAt: hs.CreatedAt,
		UpdatedAt: time.Now().UTC(),
	}))

	for _, h := range listed {
		assert.NoError(s.persistenceManager.SaveSession(h.Record()))
	}

	loaded, err := s.persistenceManager.LoadSession(hs.ShareCode)
	assert.NoError(err)
	assert.False(loaded.Active)
	assert.NotNil(loaded.Session)
	assert.Equal("Open Play", loaded.Session.Name)
	assert.False(loaded.Session.IsActive)

	freed, err := s.persistenceManager.CleanupEndedSessions(-time.Minute)
	assert.NoError(err)
	assert.Equal([]string{hs.ShareCode}, freed)
}

func TestSaveAll_ResavesOperatorsOfHostedSessions(t *testing.T) {
	assert := assert.New(t)
	svc := setupTestDB(t)
	s := newServer(testConfig(), svc)

	hs, _, err := s.hub.CreateSession(rotation.SessionConfig{Name: "Open Play", CourtCount: 1, RotationMode: rotation.FullRotation})
	assert.NoError(err)
	s.operators.Store(OperatorInfo{Token: "live", ShareCode: hs.ShareCode, CreatedAt: time.Now()})
	s.operators.Store(OperatorInfo{Token: "gone", ShareCode: "ZZZ999", CreatedAt: time.Now()})

	assert.Equal(1, s.saveAll())

	operators, err := s.persistenceManager.LoadAllOperators()
	assert.NoError(err)
	assert.Len(operators, 1)
	assert.Equal("live", operators[0].Token)
}
