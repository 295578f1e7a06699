package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"openplay-server/internal/rotation"
)

// StoredSession is one row of the sessions table. The session itself is
// kept as an opaque JSON document.
type StoredSession struct {
	ShareCode string
	Active    bool
	Session   *rotation.Session
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PersistenceManager stores sessions, operator tokens and share codes.
type PersistenceManager struct {
	db      *sql.DB
	dialect string
}

// NewPersistenceManager creates a persistence manager for a goose dialect
// ("sqlite3" or "postgres").
func NewPersistenceManager(db *sql.DB, dialect string) *PersistenceManager {
	return &PersistenceManager{
		db:      db,
		dialect: dialect,
	}
}

// rebind rewrites ? placeholders as $n for postgres.
func (pm *PersistenceManager) rebind(query string) string {
	if pm.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// SaveSession upserts a session document keyed by share code.
func (pm *PersistenceManager) SaveSession(rec StoredSession) error {
	data, err := json.Marshal(rec.Session)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	query := pm.rebind(`
		INSERT INTO sessions (share_code, active, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (share_code) DO UPDATE SET
			active = excluded.active,
			data = excluded.data,
			updated_at = excluded.updated_at
	`)

	_, err = pm.db.Exec(
		query,
		rec.ShareCode,
		rec.Active,
		string(data),
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", rec.ShareCode, err)
	}

	return nil
}

// LoadSession returns a session by share code, active or ended.
func (pm *PersistenceManager) LoadSession(shareCode string) (*StoredSession, error) {
	query := pm.rebind(`
		SELECT share_code, active, data, created_at, updated_at FROM sessions WHERE share_code = ?
	`)

	rec, err := scanSession(pm.db.QueryRow(query, shareCode))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", shareCode, err)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*StoredSession, error) {
	var (
		rec  StoredSession
		data string
	)
	if err := row.Scan(&rec.ShareCode, &rec.Active, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	var s rotation.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to deserialize session %s: %w", rec.ShareCode, err)
	}
	rec.Session = &s
	return &rec, nil
}

// LoadAllActiveSessions returns every session that has not ended, most
// recently updated first.
func (pm *PersistenceManager) LoadAllActiveSessions() ([]StoredSession, error) {
	query := pm.rebind(`
		SELECT share_code, active, data, created_at, updated_at FROM sessions
		WHERE active = ?
		ORDER BY updated_at DESC
	`)

	rows, err := pm.db.Query(query, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sessions: %w", err)
	}
	defer rows.Close()

	var sessions []StoredSession
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			// Skip unreadable documents; the rest of the hub still loads.
			log.Printf("Warning: skipping stored session: %v", err)
			continue
		}
		sessions = append(sessions, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}

	return sessions, nil
}

// DeleteSession removes a session, its operator tokens, and frees its share code.
func (pm *PersistenceManager) DeleteSession(shareCode string) error {
	result, err := pm.db.Exec(pm.rebind(`DELETE FROM sessions WHERE share_code = ?`), shareCode)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", shareCode, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deletion result: %w", err)
	}
	if rowsAffected == 0 {
		return ErrSessionNotFound
	}

	if err := pm.DeleteOperators(shareCode); err != nil {
		log.Printf("Warning: %v", err)
	}
	if err := pm.SaveShareCode(shareCode, false); err != nil {
		log.Printf("Warning: failed to mark share code %s as unused: %v", shareCode, err)
	}

	return nil
}

// SaveOperator upserts an operator token.
func (pm *PersistenceManager) SaveOperator(info OperatorInfo) error {
	query := pm.rebind(`
		INSERT INTO operators (token, share_code, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (token) DO UPDATE SET share_code = excluded.share_code
	`)

	if _, err := pm.db.Exec(query, info.Token, info.ShareCode, info.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save operator for %s: %w", info.ShareCode, err)
	}
	return nil
}

// LoadAllOperators returns every stored operator token.
func (pm *PersistenceManager) LoadAllOperators() ([]OperatorInfo, error) {
	rows, err := pm.db.Query(`SELECT token, share_code, created_at FROM operators`)
	if err != nil {
		return nil, fmt.Errorf("failed to query operators: %w", err)
	}
	defer rows.Close()

	var operators []OperatorInfo
	for rows.Next() {
		var info OperatorInfo
		if err := rows.Scan(&info.Token, &info.ShareCode, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan operator row: %w", err)
		}
		operators = append(operators, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operator rows: %w", err)
	}

	return operators, nil
}

// DeleteOperators removes every token of a session.
func (pm *PersistenceManager) DeleteOperators(shareCode string) error {
	if _, err := pm.db.Exec(pm.rebind(`DELETE FROM operators WHERE share_code = ?`), shareCode); err != nil {
		return fmt.Errorf("failed to delete operators for %s: %w", shareCode, err)
	}
	return nil
}

// SaveShareCode records whether a share code is in use.
func (pm *PersistenceManager) SaveShareCode(code string, inUse bool) error {
	query := pm.rebind(`
		INSERT INTO share_codes (code, in_use, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (code) DO UPDATE SET in_use = excluded.in_use
	`)

	if _, err := pm.db.Exec(query, code, inUse, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save share code %s: %w", code, err)
	}
	return nil
}

// LoadUsedShareCodes returns every known share code with its in-use flag.
func (pm *PersistenceManager) LoadUsedShareCodes() (map[string]bool, error) {
	rows, err := pm.db.Query(`SELECT code, in_use FROM share_codes`)
	if err != nil {
		return nil, fmt.Errorf("failed to query share codes: %w", err)
	}
	defer rows.Close()

	usedCodes := make(map[string]bool)
	for rows.Next() {
		var code string
		var inUse bool
		if err := rows.Scan(&code, &inUse); err != nil {
			return nil, fmt.Errorf("failed to scan share code row: %w", err)
		}
		usedCodes[code] = inUse
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating share code rows: %w", err)
	}

	return usedCodes, nil
}

// CleanupEndedSessions deletes ended sessions last updated before the
// retention window and returns the share codes it freed.
func (pm *PersistenceManager) CleanupEndedSessions(olderThan time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-olderThan)

	rows, err := pm.db.Query(pm.rebind(`SELECT share_code FROM sessions WHERE active = ? AND updated_at < ?`), false, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query ended sessions: %w", err)
	}

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan share code: %w", err)
		}
		codes = append(codes, code)
	}
	rows.Close()

	var freed []string
	for _, code := range codes {
		if err := pm.DeleteSession(code); err != nil {
			log.Printf("Warning: cleanup of session %s failed: %v", code, err)
			continue
		}
		freed = append(freed, code)
	}

	return freed, nil
}
