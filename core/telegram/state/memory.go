package state

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/encoderbot/core/logger"
	tghelpers "github.com/m3rciful/encoderbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// MemoryOptions tunes the in-memory manager.
type MemoryOptions struct {
	// TTL expires steps left untouched for longer; 0 keeps them forever.
	TTL time.Duration
	Now func() time.Time
}

type memoryManager struct {
	opts MemoryOptions

	mu       sync.RWMutex
	sessions map[int64]*Session
	handlers map[State]tele.HandlerFunc
}

// NewMemoryManager returns a process-local Manager.
func NewMemoryManager(opts MemoryOptions) Manager {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &memoryManager{
		opts:     opts,
		sessions: make(map[int64]*Session),
		handlers: make(map[State]tele.HandlerFunc),
	}
}

// session returns the live session of userID, dropping it when expired.
// Callers hold m.mu for writing.
func (m *memoryManager) session(userID int64, create bool) *Session {
	s, ok := m.sessions[userID]
	if ok && m.opts.TTL > 0 && m.opts.Now().Sub(s.UpdatedAt) > m.opts.TTL {
		delete(m.sessions, userID)
		ok = false
	}
	if !ok && create {
		s = &Session{State: StateIdle, TempData: make(map[string]interface{})}
		m.sessions[userID] = s
		ok = true
	}
	if !ok {
		return nil
	}
	return s
}

func (m *memoryManager) SetState(userID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(userID, true)
	s.State = st
	s.UpdatedAt = m.opts.Now()
}

func (m *memoryManager) GetState(userID int64) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.session(userID, false); s != nil {
		return s.State
	}
	return StateIdle
}

func (m *memoryManager) ClearState(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.session(userID, false); s != nil {
		s.State = StateIdle
	}
}

func (m *memoryManager) InProgress(userID int64) bool {
	return m.GetState(userID) != StateIdle
}

func (m *memoryManager) SetTemp(userID int64, key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(userID, true)
	s.TempData[key] = value
	s.UpdatedAt = m.opts.Now()
}

func (m *memoryManager) GetTemp(userID int64, key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.session(userID, false)
	if s == nil {
		return nil, false
	}
	v, ok := s.TempData[key]
	return v, ok
}

func (m *memoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *memoryManager) Handle(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[st] = h
}

func (m *memoryManager) ManagerHandler(c tele.Context) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	current := m.GetState(user.ID)
	m.mu.RLock()
	h, ok := m.handlers[current]
	m.mu.RUnlock()

	logger.Debug(tghelpers.BuildContext(c), "tg", "fsm.dispatch",
		slog.String("state", string(current)),
		slog.Bool("handled", ok),
	)
	if !ok {
		return nil
	}
	return h(c)
}
