// internal/game/deck_test.go
package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unoserve/unoserve/internal/models"
)

func TestNewDeckComposition(t *testing.T) {
	deck := newDeck()
	require.Len(t, deck, DeckSize)

	counts := map[models.Card]int{}
	for _, c := range deck {
		counts[c]++
	}

	for _, color := range models.Colors {
		assert.Equal(t, 1, counts[models.Card{Color: color, Kind: "0"}], "%s 0", color)
		for _, kind := range []models.Kind{"1", "2", "3", "4", "5", "6", "7", "8", "9",
			models.KindSkip, models.KindReverse, models.KindDrawTwo} {
			assert.Equal(t, 2, counts[models.Card{Color: color, Kind: kind}], "%s %s", color, kind)
		}
	}
	assert.Equal(t, 4, counts[models.Card{Color: models.ColorBlack, Kind: models.KindWild}])
	assert.Equal(t, 4, counts[models.Card{Color: models.ColorBlack, Kind: models.KindWildDrawFour}])
}

func TestShufflePreservesMultiset(t *testing.T) {
	deck := newDeck()
	shuffled := newDeck()
	shuffle(rand.New(rand.NewSource(42)), shuffled)

	require.Len(t, shuffled, DeckSize)

	want := map[models.Card]int{}
	got := map[models.Card]int{}
	for i := range deck {
		want[deck[i]]++
		got[shuffled[i]]++
	}
	assert.Equal(t, want, got)
}
