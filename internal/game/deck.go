// internal/game/deck.go
package game

import (
	"math/rand"
	"strconv"

	"github.com/unoserve/unoserve/internal/models"
)

// DeckSize is the fixed card count of a standard Uno deck. The sum of draw
// pile, discard pile and all hands equals this at every point in a game.
const DeckSize = 108

// newDeck builds the standard 108-card deck: per color one 0, two each of
// 1-9, two skips, two reverses, two draw-twos; plus four wilds and four
// wild-draw-fours.
func newDeck() []models.Card {
	deck := make([]models.Card, 0, DeckSize)
	for _, color := range models.Colors {
		deck = append(deck, models.Card{Color: color, Kind: "0"})
		for n := 1; n <= 9; n++ {
			kind := models.Kind(strconv.Itoa(n))
			deck = append(deck, models.Card{Color: color, Kind: kind}, models.Card{Color: color, Kind: kind})
		}
		for _, kind := range []models.Kind{models.KindSkip, models.KindReverse, models.KindDrawTwo} {
			deck = append(deck, models.Card{Color: color, Kind: kind}, models.Card{Color: color, Kind: kind})
		}
	}
	for i := 0; i < 4; i++ {
		deck = append(deck,
			models.Card{Color: models.ColorBlack, Kind: models.KindWild},
			models.Card{Color: models.ColorBlack, Kind: models.KindWildDrawFour},
		)
	}
	return deck
}

func shuffle(r *rand.Rand, cards []models.Card) {
	r.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
}
