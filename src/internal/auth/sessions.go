// FILE: logtrace/src/internal/auth/sessions.go
package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const sessionIdleTimeout = 30 * time.Minute

// Session is one authenticated stream client.
type Session struct {
	ID           string
	Username     string
	Method       string // none, basic, token, jwt
	RemoteAddr   string
	CreatedAt    time.Time
	LastActivity time.Time
}

func newSession(username, method, remoteAddr string) *Session {
	now := time.Now()
	return &Session{
		ID:           uuid.NewString(),
		Username:     username,
		Method:       method,
		RemoteAddr:   remoteAddr,
		CreatedAt:    now,
		LastActivity: now,
	}
}

type sessionTable struct {
	mu   sync.Mutex
	byID map[string]*Session
}

func newSessionTable() *sessionTable {
	return &sessionTable{byID: make(map[string]*Session)}
}

func (t *sessionTable) put(s *Session) {
	t.mu.Lock()
	t.byID[s.ID] = s
	t.mu.Unlock()
}

func (t *sessionTable) touch(id string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.byID[id]
	if ok {
		s.LastActivity = now
	}
	return ok
}

func (t *sessionTable) remove(id string) {
	t.mu.Lock()
	delete(t.byID, id)
	t.mu.Unlock()
}

// expire removes sessions idle longer than sessionIdleTimeout and returns their ids.
func (t *sessionTable) expire(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var gone []string
	for id, s := range t.byID {
		if now.Sub(s.LastActivity) > sessionIdleTimeout {
			delete(t.byID, id)
			gone = append(gone, id)
		}
	}
	return gone
}

func (t *sessionTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byID)
}
