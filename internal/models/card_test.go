// internal/models/card_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorValid(t *testing.T) {
	for _, c := range Colors {
		assert.True(t, c.Valid())
	}
	assert.False(t, ColorBlack.Valid())
	assert.False(t, Color("").Valid())
	assert.False(t, Color("purple").Valid())
}

func TestCardPlayable(t *testing.T) {
	red5 := Card{Color: ColorRed, Kind: "5"}

	cases := []struct {
		name    string
		card    Card
		current Card
		want    bool
	}{
		{"same color", Card{Color: ColorRed, Kind: "9"}, red5, true},
		{"same kind", Card{Color: ColorBlue, Kind: "5"}, red5, true},
		{"no match", Card{Color: ColorBlue, Kind: "9"}, red5, false},
		{"action kind match", Card{Color: ColorGreen, Kind: KindSkip}, Card{Color: ColorYellow, Kind: KindSkip}, true},
		{"wild on anything", Card{Color: ColorBlack, Kind: KindWild}, red5, true},
		{"wild draw four on anything", Card{Color: ColorBlack, Kind: KindWildDrawFour}, red5, true},
		{"anything on colorless wild", Card{Color: ColorBlue, Kind: "9"}, Card{Color: ColorBlack, Kind: KindWild}, true},
		{"chosen color matches", Card{Color: ColorBlue, Kind: "9"}, Card{Color: ColorBlack, Kind: KindWild, ChosenColor: ColorBlue}, true},
		{"chosen color mismatch", Card{Color: ColorGreen, Kind: "9"}, Card{Color: ColorBlack, Kind: KindWild, ChosenColor: ColorBlue}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.card.Playable(tc.current))
		})
	}
}

func TestEffectiveColor(t *testing.T) {
	assert.Equal(t, ColorRed, Card{Color: ColorRed, Kind: "5"}.EffectiveColor())
	assert.Equal(t, ColorBlack, Card{Color: ColorBlack, Kind: KindWild}.EffectiveColor())
	assert.Equal(t, ColorGreen, Card{Color: ColorBlack, Kind: KindWild, ChosenColor: ColorGreen}.EffectiveColor())
}
