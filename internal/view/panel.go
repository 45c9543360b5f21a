package view

import "strings"

// CoinGlyph marks one unit of a coin button.
const CoinGlyph = "💰"

// WithdrawKey is the panel button that returns the credit.
const WithdrawKey = "C"

// Coin is one insert-credit button.
type Coin struct {
	Amount int
	Label  string
}

// Coins are the denominations the panel accepts.
var Coins = []Coin{
	{Amount: 1, Label: strings.Repeat(CoinGlyph, 1)},
	{Amount: 2, Label: strings.Repeat(CoinGlyph, 2)},
	{Amount: 5, Label: strings.Repeat(CoinGlyph, 5)},
}

// SelectionRows lays out the product keys 1-9 in rows of three, with the
// withdraw key on its own last row.
func SelectionRows() [][]string {
	rows := make([][]string, 0, 4)
	for r := 0; r < 3; r++ {
		row := make([]string, 0, 3)
		for c := 1; c <= 3; c++ {
			row = append(row, string(rune('0'+r*3+c)))
		}
		rows = append(rows, row)
	}
	return append(rows, []string{WithdrawKey})
}
