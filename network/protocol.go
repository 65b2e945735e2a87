package network

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/wfunc/roomserver/models"
)

// MessageType is the "type" field of every frame.
type MessageType string

const (
	MsgTypeJoin         MessageType = "join"
	MsgTypeLeave        MessageType = "leave"
	MsgTypeUpdate       MessageType = "update"
	MsgTypeStateSync    MessageType = "state_sync"
	MsgTypePlayerAction MessageType = "player_action"
	MsgTypeError        MessageType = "error"
)

// Player actions carried in player_action frames.
const (
	ActionMove         = "move"
	ActionUpdateHealth = "updateHealth"
	ActionUpdateScore  = "updateScore"
)

// Message 是一帧 JSON 消息
type Message struct {
	Type      MessageType     `json:"type"`
	PlayerID  string          `json:"playerId,omitempty"`
	RoomID    string          `json:"roomId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// NewMessage builds a frame stamped with the current time. data may be nil.
func NewMessage(msgType MessageType, playerID, roomID string, data any) (*Message, error) {
	msg := &Message{
		Type:      msgType,
		PlayerID:  playerID,
		RoomID:    roomID,
		Timestamp: time.Now().UnixMilli(),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return msg, nil
}

// Encode serializes a frame.
func Encode(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

// ErrMissingType is returned by Decode for a frame without a "type" field.
var ErrMissingType = errors.New("message has no type")

// Decode parses one inbound frame. Frames that are not a JSON object with a type,
// including the literal null, are rejected.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return &msg, nil
}

// --- payloads ---

type WelcomeData struct {
	Message string `json:"message"`
}

type ErrorData struct {
	Error string `json:"error"`
}

// JoinRequest 客户端 join 载荷，字段均可省略
type JoinRequest struct {
	Name     string `json:"name,omitempty"`
	RoomID   string `json:"roomId,omitempty"`
	RoomName string `json:"roomName,omitempty"`
}

type JoinAck struct {
	Player models.Player      `json:"player"`
	Room   models.RoomSummary `json:"room"`
}

type StateSyncData struct {
	Players []models.PlayerView `json:"players"`
	State   models.GameState    `json:"state"`
}

// ActionRequest 客户端 player_action 载荷；Data 按 Action 再解析
type ActionRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type MoveData struct {
	Position *models.Vector2D `json:"position"`
}

type HealthData struct {
	Health *float64 `json:"health"`
}

type ScoreData struct {
	Score *int64 `json:"score"`
}
