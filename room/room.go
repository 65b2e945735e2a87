// room/room.go
package room

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/wfunc/roomserver/models"
)

// DefaultMaxPlayers is used when a room is created without a positive capacity.
const DefaultMaxPlayers = 10

// ErrRoomLimitReached is returned when lazy creation would exceed the room limit.
var ErrRoomLimitReached = errors.New("room limit reached")

// Room 房间。Members 只保存玩家 ID，玩家数据以玩家注册表为准
type Room struct {
	ID         string
	Name       string
	MaxPlayers int
	Members    map[string]struct{}
	State      models.GameState
	CreatedAt  time.Time
}

func newRoom(id, name string, maxPlayers int, now time.Time) *Room {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	return &Room{
		ID:         id,
		Name:       name,
		MaxPlayers: maxPlayers,
		Members:    make(map[string]struct{}),
		State:      models.NewGameState(now),
		CreatedAt:  now,
	}
}

func (r *Room) clone() Room {
	c := *r
	c.Members = make(map[string]struct{}, len(r.Members))
	for id := range r.Members {
		c.Members[id] = struct{}{}
	}
	c.State = r.State.Clone()
	return c
}

func (r Room) PlayerCount() int {
	return len(r.Members)
}

func (r Room) IsFull() bool {
	return len(r.Members) >= r.MaxPlayers
}

func (r Room) HasMember(playerID string) bool {
	_, ok := r.Members[playerID]
	return ok
}

// MemberIDs returns the member IDs in sorted order.
func (r Room) MemberIDs() []string {
	ids := make([]string, 0, len(r.Members))
	for id := range r.Members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r Room) Summary() models.RoomSummary {
	return models.RoomSummary{ID: r.ID, Name: r.Name, PlayerCount: len(r.Members)}
}

func (r Room) Record() models.RoomRecord {
	return models.RoomRecord{
		ID:         r.ID,
		Name:       r.Name,
		MaxPlayers: r.MaxPlayers,
		Members:    r.MemberIDs(),
		State:      r.State,
		CreatedAt:  r.CreatedAt,
	}
}

// --- 房间管理器 ---

// Manager 房间目录。房间一旦创建不会被删除；读取返回副本
type Manager struct {
	rooms    map[string]*Room
	maxRooms int
	now      func() time.Time
	mutex    sync.RWMutex
}

type Option func(*Manager)

// WithMaxRooms caps how many rooms GetOrCreateRoom may create. n <= 0 means no cap.
func WithMaxRooms(n int) Option {
	return func(m *Manager) {
		m.maxRooms = n
	}
}

// WithClock overrides the time source for creation and state timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewRoomManager 创建一个新的房间管理器
func NewRoomManager(opts ...Option) *Manager {
	m := &Manager{
		rooms: make(map[string]*Room),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRoom 创建房间；同 ID 的旧房间（成员与状态）被整体替换
func (m *Manager) CreateRoom(id, name string, maxPlayers int) Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	r := newRoom(id, name, maxPlayers, m.now())
	m.rooms[id] = r
	return r.clone()
}

// GetOrCreateRoom returns the room with id, creating it when unknown. created reports
// whether this call created it.
func (m *Manager) GetOrCreateRoom(id, name string, maxPlayers int) (room Room, created bool, err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if r, ok := m.rooms[id]; ok {
		return r.clone(), false, nil
	}
	if m.maxRooms > 0 && len(m.rooms) >= m.maxRooms {
		return Room{}, false, ErrRoomLimitReached
	}
	r := newRoom(id, name, maxPlayers, m.now())
	m.rooms[id] = r
	return r.clone(), true, nil
}

// GetRoom 从管理器中获取一个房间
func (m *Manager) GetRoom(id string) (Room, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	r, ok := m.rooms[id]
	if !ok {
		return Room{}, false
	}
	return r.clone(), true
}

// AddMember 加入房间；房间不存在或已满时失败（即使该 ID 已在房间中）。未满时重复加入成功且不增加人数
func (m *Manager) AddMember(roomID, playerID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return false
	}
	if len(r.Members) >= r.MaxPlayers {
		return false
	}
	r.Members[playerID] = struct{}{}
	return true
}

func (m *Manager) RemoveMember(roomID, playerID string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return false
	}
	if _, present := r.Members[playerID]; !present {
		return false
	}
	delete(r.Members, playerID)
	return true
}

// RemoveMemberEverywhere drops playerID from every room and returns how many rooms
// listed it.
func (m *Manager) RemoveMemberEverywhere(playerID string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	n := 0
	for _, r := range m.rooms {
		if _, present := r.Members[playerID]; present {
			delete(r.Members, playerID)
			n++
		}
	}
	return n
}

// Members returns the sorted member IDs of a room, or nil if the room is unknown.
func (m *Manager) Members(roomID string) []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	return r.MemberIDs()
}

// UpdateState 推进房间状态：tick 加一，更新时间戳，浅合并 patch
func (m *Manager) UpdateState(roomID string, patch map[string]any) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	r, ok := m.rooms[roomID]
	if !ok {
		return false
	}
	r.State.Apply(patch, m.now())
	return true
}

// RoomIDs returns the IDs of every room ordered by ID.
func (m *Manager) RoomIDs() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ListRooms returns every room ordered by ID.
func (m *Manager) ListRooms() []Room {
	return m.filter(func(*Room) bool { return true })
}

// AvailableRooms 返回未满的房间
func (m *Manager) AvailableRooms() []Room {
	return m.filter(func(r *Room) bool { return len(r.Members) < r.MaxPlayers })
}

// Records returns archive snapshots of every room.
func (m *Manager) Records() []models.RoomRecord {
	rooms := m.ListRooms()
	records := make([]models.RoomRecord, 0, len(rooms))
	for _, r := range rooms {
		records = append(records, r.Record())
	}
	return records
}

func (m *Manager) RoomCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.rooms)
}

func (m *Manager) Clear() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rooms = make(map[string]*Room)
}

func (m *Manager) filter(keep func(*Room) bool) []Room {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		if keep(r) {
			result = append(result, r.clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
