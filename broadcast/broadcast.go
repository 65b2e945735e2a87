// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/models"
	"github.com/wfunc/roomserver/network"
	"github.com/wfunc/roomserver/room"
	"github.com/wfunc/roomserver/services"
	"github.com/wfunc/roomserver/session"
	"github.com/wfunc/roomserver/timer"
)

const DefaultFrequency = 10

// 广播接口
type Broadcaster interface {
	Start()
	Stop()
	Running() bool
	BroadcastState() int
}

var _ Broadcaster = (*StateBroadcaster)(nil)

// StateBroadcaster 按固定频率向每个房间的在线成员推送状态快照
type StateBroadcaster struct {
	roomManager    *room.Manager
	playerService  *services.PlayerService
	sessionManager *session.Manager
	task           *timer.Task
	onSent         func(frames int)
}

type Option func(*StateBroadcaster)

// WithSentHook registers a callback receiving the frame count of every sync round.
func WithSentHook(fn func(frames int)) Option {
	return func(b *StateBroadcaster) {
		b.onSent = fn
	}
}

func NewStateBroadcaster(roomManager *room.Manager, playerService *services.PlayerService,
	sessionManager *session.Manager, frequency int, opts ...Option) *StateBroadcaster {
	if frequency <= 0 {
		frequency = DefaultFrequency
	}
	b := &StateBroadcaster{
		roomManager:    roomManager,
		playerService:  playerService,
		sessionManager: sessionManager,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.task = timer.NewTask(timer.Interval(frequency), func() { b.BroadcastState() })
	return b
}

// Start begins periodic syncs; it is a no-op when already running.
func (b *StateBroadcaster) Start() {
	b.task.Start()
}

// Stop ends periodic syncs; it is a no-op when already stopped.
func (b *StateBroadcaster) Stop() {
	b.task.Stop()
}

func (b *StateBroadcaster) Running() bool {
	return b.task.Running()
}

// BroadcastState sends one state_sync frame per open member connection of every room
// and returns the number of frames handed to connections.
func (b *StateBroadcaster) BroadcastState() int {
	sent := 0
	for _, r := range b.roomManager.ListRooms() {
		memberIDs := r.MemberIDs()
		if len(memberIDs) == 0 {
			continue
		}

		data, err := b.stateFrame(r, memberIDs)
		if err != nil {
			logger.Log.Errorf("Error building state sync for room %s: %v", r.ID, err)
			continue
		}
		sent += b.sendTo(memberIDs, data)
	}

	if b.onSent != nil {
		b.onSent(sent)
	}
	return sent
}

func (b *StateBroadcaster) stateFrame(r room.Room, memberIDs []string) ([]byte, error) {
	views := make([]models.PlayerView, 0, len(memberIDs))
	for _, id := range memberIDs {
		// 已被清理的玩家 ID 仍可能留在成员列表中，跳过
		if p, ok := b.playerService.GetPlayer(id); ok {
			views = append(views, p.View())
		}
	}

	msg, err := network.NewMessage(network.MsgTypeStateSync, "", r.ID, network.StateSyncData{
		Players: views,
		State:   r.State,
	})
	if err != nil {
		return nil, err
	}
	return network.Encode(msg)
}

func (b *StateBroadcaster) sendTo(memberIDs []string, data []byte) int {
	sent := 0
	for _, id := range memberIDs {
		s, ok := b.sessionManager.Get(id)
		if !ok || !s.IsOpen() {
			continue
		}
		if err := s.Send(data); err != nil {
			logger.Log.Debugf("Dropped frame for session %s: %v", id, err)
			continue
		}
		sent++
	}
	return sent
}
