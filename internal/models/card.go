// internal/models/card.go
package models

import "fmt"

// Color is one of the four playable colors, or black for wild cards.
type Color string

const (
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorYellow Color = "yellow"
	ColorBlack  Color = "black"
)

// Colors lists the four non-black colors a wild card may choose.
var Colors = []Color{ColorRed, ColorGreen, ColorBlue, ColorYellow}

// Valid reports whether c is one of the four chooseable colors.
func (c Color) Valid() bool {
	for _, v := range Colors {
		if c == v {
			return true
		}
	}
	return false
}

// Kind identifies a card face: "0".."9" for numbered cards, or one of the
// action kinds below.
type Kind string

const (
	KindSkip         Kind = "skip"
	KindReverse      Kind = "reverse"
	KindDrawTwo      Kind = "draw_two"
	KindWild         Kind = "wild"
	KindWildDrawFour Kind = "wild_draw_four"
)

// Card is a single Uno card. ChosenColor is attached when a wild card is
// played and exists for matching/display only; the card identity itself
// never changes.
type Card struct {
	Color       Color `json:"color"`
	Kind        Kind  `json:"kind"`
	ChosenColor Color `json:"chosen_color,omitempty"`
}

// IsWild reports whether the card is black (wild or wild-draw-four).
func (c Card) IsWild() bool { return c.Color == ColorBlack }

// EffectiveColor is the color used for matching: the chosen color for a
// played wild card, otherwise the printed color.
func (c Card) EffectiveColor() Color {
	if c.IsWild() && c.ChosenColor != "" {
		return c.ChosenColor
	}
	return c.Color
}

// Playable reports whether c may be played on top of current: matching
// effective color, matching kind, or either card being wild.
func (c Card) Playable(current Card) bool {
	if c.IsWild() || current.IsWild() && current.ChosenColor == "" {
		return true
	}
	return c.EffectiveColor() == current.EffectiveColor() || c.Kind == current.Kind
}

func (c Card) String() string {
	if c.IsWild() && c.ChosenColor != "" {
		return fmt.Sprintf("%s %s (%s)", c.Color, c.Kind, c.ChosenColor)
	}
	return fmt.Sprintf("%s %s", c.Color, c.Kind)
}
