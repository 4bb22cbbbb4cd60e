// internal/models/player.go
package models

// Player is one seat in a game. ID is the seat index assigned at join time
// and doubles as the turn-order position. The hand has multiset semantics;
// card order within it carries no meaning.
type Player struct {
	ID   int    `json:"id"`
	Hand []Card `json:"hand"`
}

// HasPlayable reports whether any card in the hand can be played on current.
func (p *Player) HasPlayable(current Card) bool {
	for _, c := range p.Hand {
		if c.Playable(current) {
			return true
		}
	}
	return false
}
