package entity

// MaxPlayers is the number of seats in a room.
const MaxPlayers = 2

// Room is one game's authoritative state plus its seated players.
// Identity is the ID; the registry owns every live Room exclusively.
type Room struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Players  []*Player  `json:"players"`
	Game     *GameState `json:"gameState"`
	IsActive bool       `json:"isActive"`
}

// RoomSummary is the read-only projection used for room lists.
type RoomSummary struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Players int    `json:"players"`
	Status  string `json:"status"`
}

func NewRoom(id, name string) *Room {
	return &Room{
		ID:   id,
		Name: name,
		Game: NewGameState(),
	}
}

func (that *Room) PlayerByID(id string) *Player {
	for _, player := range that.Players {
		if player.ID == id {
			return player
		}
	}
	return nil
}

func (that *Room) PlayerByColor(color string) *Player {
	for _, player := range that.Players {
		if player.Color == color {
			return player
		}
	}
	return nil
}

func (that *Room) IsFull() bool {
	return len(that.Players) >= MaxPlayers
}

func (that *Room) IsEmpty() bool {
	return len(that.Players) == 0
}

// RefreshActive recomputes IsActive: true only while both seats are
// concurrently connected.
func (that *Room) RefreshActive() {
	connected := 0
	for _, player := range that.Players {
		if player.Connected {
			connected++
		}
	}
	that.IsActive = connected == MaxPlayers
}

func (that *Room) Summary() RoomSummary {
	return RoomSummary{
		ID:      that.ID,
		Name:    that.Name,
		Players: len(that.Players),
		Status:  that.Game.Status,
	}
}

// Clone returns a snapshot safe to read outside the registry lock.
func (that *Room) Clone() *Room {
	cloned := &Room{
		ID:       that.ID,
		Name:     that.Name,
		Players:  make([]*Player, 0, len(that.Players)),
		Game:     that.Game.Clone(),
		IsActive: that.IsActive,
	}

	for _, player := range that.Players {
		copied := *player
		cloned.Players = append(cloned.Players, &copied)
	}

	return cloned
}
