// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/roomserver/network"
)

// Session 一个客户端连接；ID 同时也是该连接对应的玩家 ID
type Session struct {
	ID        string
	Conn      network.Connection
	CreatedAt time.Time
}

func NewSession(id string, conn network.Connection) *Session {
	return &Session{
		ID:        id,
		Conn:      conn,
		CreatedAt: time.Now(),
	}
}

func (s *Session) GetID() string {
	return s.ID
}

// IsOpen reports whether frames can currently be written.
func (s *Session) IsOpen() bool {
	return s.Conn != nil && s.Conn.IsOpen()
}

// Send writes a frame if the connection is open. Closed connections are skipped.
func (s *Session) Send(data []byte) error {
	if !s.IsOpen() {
		return network.ErrConnectionClosed
	}
	return s.Conn.Send(data)
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}
