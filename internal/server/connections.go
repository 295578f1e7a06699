package server

import (
	"sync"

	"github.com/coder/websocket"
)

type Role string

const (
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Attachment is what a connection follows: the session it operates or watches.
type Attachment struct {
	ShareCode string
	Token     string // operators only
	Role      Role
}

type ConnectionManager struct {
	connections map[string]*websocket.Conn // connectionID → socket
	attachments map[string]Attachment      // connectionID → followed session
	tokens      map[string]string          // operator token → connectionID
	mu          sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*websocket.Conn),
		attachments: make(map[string]Attachment),
		tokens:      make(map[string]string),
	}
}

func (cm *ConnectionManager) AddConnection(id string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections[id] = conn
}

func (cm *ConnectionManager) RemoveConnection(id string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.detachLocked(id)
	delete(cm.connections, id)
}

// AttachOperator binds an operator token to a connection. A token follows a
// single device: when it was bound elsewhere, the previous connection is
// detached and its ID returned.
func (cm *ConnectionManager) AttachOperator(connectionID, token, shareCode string) string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	oldConnID := cm.tokens[token]
	if oldConnID == connectionID {
		oldConnID = ""
	}
	if oldConnID != "" {
		delete(cm.attachments, oldConnID)
	}

	cm.detachLocked(connectionID)
	cm.attachments[connectionID] = Attachment{ShareCode: shareCode, Token: token, Role: RoleOperator}
	cm.tokens[token] = connectionID
	return oldConnID
}

// Watch makes the connection a read-only viewer of the session.
func (cm *ConnectionManager) Watch(connectionID, shareCode string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.detachLocked(connectionID)
	cm.attachments[connectionID] = Attachment{ShareCode: shareCode, Role: RoleViewer}
}

func (cm *ConnectionManager) detachLocked(connectionID string) {
	if a, ok := cm.attachments[connectionID]; ok && a.Token != "" && cm.tokens[a.Token] == connectionID {
		delete(cm.tokens, a.Token)
	}
	delete(cm.attachments, connectionID)
}

func (cm *ConnectionManager) GetAttachment(connectionID string) (Attachment, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	a, ok := cm.attachments[connectionID]
	return a, ok
}

// GetTokenByConnection returns the operator token for a connection
func (cm *ConnectionManager) GetTokenByConnection(connectionID string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.attachments[connectionID].Token
}

// GetConnectionByToken returns connectionID for a token
func (cm *ConnectionManager) GetConnectionByToken(token string) string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.tokens[token]
}

// GetConnection returns websocket for connectionID
func (cm *ConnectionManager) GetConnection(connectionID string) *websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connections[connectionID]
}

// Subscribers returns the connection IDs following a session, operators and viewers alike.
func (cm *ConnectionManager) Subscribers(shareCode string) []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var ids []string
	for connID, a := range cm.attachments {
		if a.ShareCode == shareCode {
			ids = append(ids, connID)
		}
	}
	return ids
}

// DetachSession drops every attachment to an ended session and returns the
// affected connection IDs.
func (cm *ConnectionManager) DetachSession(shareCode string) []string {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var ids []string
	for connID, a := range cm.attachments {
		if a.ShareCode == shareCode {
			cm.detachLocked(connID)
			ids = append(ids, connID)
		}
	}
	return ids
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// All returns every open socket.
func (cm *ConnectionManager) All() []*websocket.Conn {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	out := make([]*websocket.Conn, 0, len(cm.connections))
	for _, conn := range cm.connections {
		out = append(out, conn)
	}
	return out
}
