package entity

// Player is an identity known to the service. Authentication is an external
// concern; the id is whatever the identity collaborator resolved.
type Player struct {
	ID     string  `json:"id"`
	Name   string  `json:"name,omitempty"`
	Rating float64 `json:"rating,omitempty"`
	GameID string  `json:"game_id,omitempty"`
}

// DefaultRating seeds players who have never finished a rated game.
const DefaultRating float64 = 1500
