// state/manager.go
package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/models"
	"github.com/wfunc/roomserver/timer"
)

const (
	DefaultTickRate          = 30
	DefaultDisconnectTimeout = 60 * time.Second
)

type Config struct {
	TickRate          int
	DisconnectTimeout time.Duration
}

// Manager 模拟时钟：按固定频率推进所有房间状态，并清理长时间离线的玩家
//
// The tick is a timing hook only. It stamps room state and reaps players; it does not
// simulate entities, and reaping does not touch room membership.
type Manager struct {
	cfg     Config
	rooms   RoomDirectory
	players PlayerRegistry
	machine *BaseStateMachine
	running *LifecycleState
	stopped *LifecycleState
	task    *timer.Task
	now     func() time.Time

	tickMutex sync.Mutex
	lastTick  time.Time
	ticks     atomic.Uint64

	onTick func(elapsed time.Duration)
	onReap func(p models.Player)
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithTickHook registers a callback receiving the wall time each tick took.
func WithTickHook(fn func(elapsed time.Duration)) Option {
	return func(m *Manager) {
		m.onTick = fn
	}
}

// WithReapHook registers a callback receiving each reaped player's last state.
func WithReapHook(fn func(p models.Player)) Option {
	return func(m *Manager) {
		m.onReap = fn
	}
}

func NewManager(cfg Config, rooms RoomDirectory, players PlayerRegistry, opts ...Option) *Manager {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = DefaultDisconnectTimeout
	}

	m := &Manager{
		cfg:     cfg,
		rooms:   rooms,
		players: players,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.task = timer.NewTask(timer.Interval(cfg.TickRate), m.Tick)
	m.stopped = &LifecycleState{ID: StateStopped}
	m.running = &LifecycleState{
		ID: StateRunning,
		Enter: func() {
			m.tickMutex.Lock()
			m.lastTick = m.now()
			m.tickMutex.Unlock()
			m.task.Start()
			logger.Log.Infof("Game state manager started at %d ticks/sec", m.cfg.TickRate)
		},
		Exit: func() {
			m.task.Stop()
			logger.Log.Info("Game state manager stopped")
		},
	}
	m.machine = NewBaseStateMachine(m.stopped)
	return m
}

// Start begins ticking. Calling Start while running does nothing.
func (m *Manager) Start() {
	m.machine.ChangeState(m.running)
}

// Stop halts ticking. Calling Stop while stopped does nothing.
func (m *Manager) Stop() {
	m.machine.ChangeState(m.stopped)
}

func (m *Manager) IsRunning() bool {
	return m.machine.GetCurrentState().GetID() == StateRunning
}

// Tick runs one simulation step. The periodic task calls it; tests may call it directly.
func (m *Manager) Tick() {
	m.tickMutex.Lock()
	defer m.tickMutex.Unlock()

	start := time.Now()
	now := m.now()
	if m.lastTick.IsZero() {
		m.lastTick = now
	}
	deltaTime := now.Sub(m.lastTick).Seconds()
	m.lastTick = now

	patch := map[string]any{
		"lastUpdate": now.UnixMilli(),
		"deltaTime":  deltaTime,
	}
	for _, id := range m.rooms.RoomIDs() {
		m.rooms.UpdateState(id, patch)
	}

	m.reapDisconnected(now)
	m.ticks.Add(1)

	if m.onTick != nil {
		m.onTick(time.Since(start))
	}
}

// reapDisconnected removes players disconnected for longer than the timeout. The
// snapshot only picks candidates; RemoveIfStale re-checks each one atomically.
func (m *Manager) reapDisconnected(now time.Time) {
	cutoff := now.Add(-m.cfg.DisconnectTimeout)
	for _, candidate := range m.players.AllPlayers() {
		if candidate.Connected || !candidate.LastUpdate.Before(cutoff) {
			continue
		}
		p, ok := m.players.RemoveIfStale(candidate.ID, cutoff)
		if !ok {
			continue
		}
		logger.Log.Infof("Removed player %s after %v disconnected", p.ID, now.Sub(p.LastUpdate))
		if m.onReap != nil {
			m.onReap(p)
		}
	}
}

// Ticks returns how many ticks have run since the manager was created.
func (m *Manager) Ticks() uint64 {
	return m.ticks.Load()
}

// GlobalState summarizes the whole server as a state blob.
func (m *Manager) GlobalState() models.GameState {
	return models.GameState{
		Tick:      m.ticks.Load(),
		Timestamp: m.now().UnixMilli(),
		Data: map[string]any{
			"playerCount":      m.players.PlayerCount(),
			"roomCount":        m.rooms.RoomCount(),
			"connectedPlayers": m.players.ConnectedCount(),
		},
	}
}
