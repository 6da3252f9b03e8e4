package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoom_RefreshActive(t *testing.T) {
	t.Run("Active only while both seats are connected", func(t *testing.T) {
		// Given: a room with two seated players
		room := NewRoom("1", "test")
		room.Players = []*Player{
			{ID: "a", Color: ColorBlack, Connected: true},
			{ID: "b", Color: ColorWhite, Connected: true},
		}

		// When/Then: both connected
		room.RefreshActive()
		assert.True(t, room.IsActive)

		// When/Then: one drops
		room.Players[1].Connected = false
		room.RefreshActive()
		assert.False(t, room.IsActive)
	})

	t.Run("A single seated player is never active", func(t *testing.T) {
		room := NewRoom("1", "test")
		room.Players = []*Player{{ID: "a", Connected: true}}

		room.RefreshActive()

		assert.False(t, room.IsActive)
	})
}

func TestRoom_Clone(t *testing.T) {
	// Given: a room with a player and a move
	room := NewRoom("1", "test")
	room.Players = []*Player{{ID: "a", Name: "alice", Color: ColorBlack, Connected: true}}
	room.Game.Board[7][7] = ColorBlack

	// When: cloning and mutating the clone
	cloned := room.Clone()
	cloned.Players[0].Connected = false
	cloned.Game.Board[0][0] = ColorWhite

	// Then: the original room is untouched
	assert.True(t, room.Players[0].Connected)
	assert.Equal(t, EmptyCell, room.Game.Board[0][0])
}

func TestRoom_Summary(t *testing.T) {
	room := NewRoom("42", "lobby")
	room.Players = []*Player{{ID: "a"}}

	summary := room.Summary()

	assert.Equal(t, RoomSummary{ID: "42", Name: "lobby", Players: 1, Status: StatusWaiting}, summary)
}
