package server

import (
	"errors"
	"sync"
	"time"
)

var ErrTokenNotFound = errors.New("TOKEN_NOT_FOUND: Invalid operator token")

// OperatorInfo ties an operator token to the session it may command.
type OperatorInfo struct {
	Token     string
	ShareCode string
	CreatedAt time.Time
}

type OperatorRegistry struct {
	operators map[string]OperatorInfo // token -> operator
	mu        sync.RWMutex
}

func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{
		operators: make(map[string]OperatorInfo),
	}
}

func (r *OperatorRegistry) Store(info OperatorInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.operators[info.Token] = info
}

func (r *OperatorRegistry) Get(token string) (OperatorInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.operators[token]
	if !exists {
		return OperatorInfo{}, ErrTokenNotFound
	}
	return info, nil
}

func (r *OperatorRegistry) Remove(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.operators, token)
}

// RemoveSession drops every token of an ended session and returns them.
func (r *OperatorRegistry) RemoveSession(shareCode string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for token, info := range r.operators {
		if info.ShareCode == shareCode {
			delete(r.operators, token)
			removed = append(removed, token)
		}
	}
	return removed
}

func (r *OperatorRegistry) All() []OperatorInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]OperatorInfo, 0, len(r.operators))
	for _, info := range r.operators {
		out = append(out, info)
	}
	return out
}
