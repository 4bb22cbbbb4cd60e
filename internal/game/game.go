// internal/game/game.go
package game

import (
	"errors"
	"math/rand"
	"time"

	"github.com/unoserve/unoserve/internal/models"
)

// Rejections returned by Play and Draw. None of them leaves the game
// mutated: every request is validated fully before state is touched.
var (
	ErrNotActive          = errors.New("game is not active")
	ErrAlreadyDealt       = errors.New("game has already been dealt")
	ErrNotYourTurn        = errors.New("not your turn")
	ErrInvalidCard        = errors.New("card cannot be played")
	ErrInvalidColorChoice = errors.New("invalid color choice for wild card")
)

// HandSize is the number of cards dealt to each seat.
const HandSize = 7

// Game is the turn state machine for one room. It is not self-synchronizing:
// the owning room serializes all access under its lock.
type Game struct {
	Players            []*models.Player
	CurrentPlayerIndex int
	Direction          int // +1 or -1
	CurrentCard        models.Card
	DrawPile           []models.Card
	DiscardPile        []models.Card
	Active             bool
	Winner             int // seat of the winner, -1 while undecided

	rng *rand.Rand
}

// New builds an undealt game with playerCount empty seats. The deck is
// shuffled and hands dealt later by Deal, once the owning room fills.
func New(playerCount int) *Game {
	return NewWithRand(playerCount, rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewWithRand is New with an injected randomness source, used by tests for
// deterministic shuffles.
func NewWithRand(playerCount int, r *rand.Rand) *Game {
	g := &Game{
		Players:   make([]*models.Player, playerCount),
		Direction: 1,
		Winner:    -1,
		rng:       r,
	}
	for i := range g.Players {
		g.Players[i] = &models.Player{ID: i}
	}
	return g
}

// Deal shuffles a fresh deck, deals HandSize cards to every seat and flips
// the first non-wild card as the starting current card. Seat 0 acts first.
func (g *Game) Deal() error {
	if g.Active || g.Winner >= 0 {
		return ErrAlreadyDealt
	}
	g.DrawPile = newDeck()
	shuffle(g.rng, g.DrawPile)

	for _, p := range g.Players {
		p.Hand = make([]models.Card, 0, HandSize)
		for i := 0; i < HandSize; i++ {
			card, ok := g.drawOne()
			if !ok {
				break // cannot happen with a standard deck and <=10 seats
			}
			p.Hand = append(p.Hand, card)
		}
	}

	// Flip the start card. Wild cards go back under the pile until a
	// colored card comes up.
	for {
		card, ok := g.drawOne()
		if !ok {
			return errors.New("deck exhausted while flipping start card")
		}
		if !card.IsWild() {
			g.CurrentCard = card
			g.DiscardPile = append(g.DiscardPile, card)
			break
		}
		g.DrawPile = append(g.DrawPile, card)
	}

	g.CurrentPlayerIndex = 0
	g.Active = true
	return nil
}

// CurrentPlayer returns the seat whose turn it is.
func (g *Game) CurrentPlayer() *models.Player {
	return g.Players[g.CurrentPlayerIndex]
}

// Hand returns a copy of a seat's hand.
func (g *Game) Hand(playerID int) []models.Card {
	hand := g.Players[playerID].Hand
	out := make([]models.Card, len(hand))
	copy(out, hand)
	return out
}

// Play discards the card at cardIndex from playerID's hand onto the discard
// pile, applying the card's side effects and advancing the turn. A wild card
// requires chosenColor to be one of the four non-black colors; it becomes
// the effective color for subsequent matching. Ends the game when the play
// empties the acting hand.
func (g *Game) Play(playerID, cardIndex int, chosenColor models.Color) error {
	if !g.Active {
		return ErrNotActive
	}
	if playerID != g.CurrentPlayerIndex {
		return ErrNotYourTurn
	}
	player := g.Players[playerID]
	if cardIndex < 0 || cardIndex >= len(player.Hand) {
		return ErrInvalidCard
	}

	card := player.Hand[cardIndex]
	if card.IsWild() {
		if !chosenColor.Valid() {
			return ErrInvalidColorChoice
		}
		card.ChosenColor = chosenColor
	}
	if !card.Playable(g.CurrentCard) {
		return ErrInvalidCard
	}

	// Validation complete; commit.
	player.Hand = append(player.Hand[:cardIndex], player.Hand[cardIndex+1:]...)
	g.DiscardPile = append(g.DiscardPile, card)
	g.CurrentCard = card

	// The win check runs immediately after the hand mutation; a winning
	// card's side effects are never applied.
	if len(player.Hand) == 0 {
		g.Active = false
		g.Winner = playerID
		return nil
	}

	switch card.Kind {
	case models.KindSkip:
		g.advance(2)
	case models.KindReverse:
		g.Direction = -g.Direction
		if len(g.Players) == 2 {
			// Head-to-head a reverse is a skip: the turn comes back.
			g.advance(2)
		} else {
			g.advance(1)
		}
	case models.KindDrawTwo:
		g.dealToNext(2)
		g.advance(2)
	case models.KindWildDrawFour:
		g.dealToNext(4)
		g.advance(2)
	case models.KindWild:
		g.advance(1)
	default:
		g.advance(1)
	}
	return nil
}

// Draw adds one card from the draw pile to playerID's hand and advances the
// turn. The engine accepts a draw from the current player unconditionally;
// offering it only when no play is legal is the caller's concern. When both
// piles are exhausted (every other card is in a hand) nothing is added but
// the turn still passes.
func (g *Game) Draw(playerID int) error {
	if !g.Active {
		return ErrNotActive
	}
	if playerID != g.CurrentPlayerIndex {
		return ErrNotYourTurn
	}

	if card, ok := g.drawOne(); ok {
		player := g.Players[playerID]
		player.Hand = append(player.Hand, card)
	}
	g.advance(1)
	return nil
}

// advance moves the turn pointer steps seats along the current direction.
func (g *Game) advance(steps int) {
	n := len(g.Players)
	g.CurrentPlayerIndex = ((g.CurrentPlayerIndex+steps*g.Direction)%n + n) % n
}

// dealToNext gives n cards to the seat that would act next.
func (g *Game) dealToNext(n int) {
	count := len(g.Players)
	next := ((g.CurrentPlayerIndex+g.Direction)%count + count) % count
	target := g.Players[next]
	for i := 0; i < n; i++ {
		card, ok := g.drawOne()
		if !ok {
			break
		}
		target.Hand = append(target.Hand, card)
	}
}

// drawOne pops the top draw-pile card, reshuffling the discard pile (minus
// its top card) back into the draw pile when it runs dry. The reshuffle
// preserves the card multiset and never changes the current discard top.
func (g *Game) drawOne() (models.Card, bool) {
	if len(g.DrawPile) == 0 {
		if len(g.DiscardPile) <= 1 {
			return models.Card{}, false
		}
		top := g.DiscardPile[len(g.DiscardPile)-1]
		recycled := g.DiscardPile[:len(g.DiscardPile)-1]
		for i := range recycled {
			recycled[i].ChosenColor = "" // wilds become colorless again
		}
		shuffle(g.rng, recycled)
		g.DrawPile = recycled
		g.DiscardPile = []models.Card{top}
	}

	card := g.DrawPile[0]
	g.DrawPile = g.DrawPile[1:]
	return card, true
}

// CardCount is the total number of cards across the draw pile, the discard
// pile and all hands. It stays equal to DeckSize for a dealt game.
func (g *Game) CardCount() int {
	total := len(g.DrawPile) + len(g.DiscardPile)
	for _, p := range g.Players {
		total += len(p.Hand)
	}
	return total
}
