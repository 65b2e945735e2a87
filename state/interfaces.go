// state/interfaces.go
package state

import (
	"time"

	"github.com/wfunc/roomserver/models"
)

// RoomDirectory is the part of the room directory the clock drives.
type RoomDirectory interface {
	RoomIDs() []string
	UpdateState(roomID string, patch map[string]any) bool
	RoomCount() int
}

// PlayerRegistry is the part of the player registry the clock reaps from.
type PlayerRegistry interface {
	AllPlayers() []models.Player
	RemoveIfStale(id string, cutoff time.Time) (models.Player, bool)
	PlayerCount() int
	ConnectedCount() int
}
