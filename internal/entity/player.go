package entity

// Player is a seated participant. The record survives transport loss while
// the room is non-empty, so a reconnecting client keeps its seat and color.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	Connected bool   `json:"connected"`
}
