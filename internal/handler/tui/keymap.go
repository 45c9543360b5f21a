package tui

import "github.com/vending/vending-gui/internal/view"

// ActionKind is what a key press asks for.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionSelect
	ActionCredit
	ActionWithdraw
	ActionDismiss
	ActionQuit
	ActionRedraw
)

// Action is a resolved key press.
type Action struct {
	Kind   ActionKind
	Code   string
	Amount int
}

// CoinKeys are bound to view.Coins, left to right.
var CoinKeys = []string{"z", "x", "v"}

// Resolve maps a termui event id onto an action.
func Resolve(id string) Action {
	switch id {
	case "q", "<C-c>":
		return Action{Kind: ActionQuit}
	case "<Escape>", "<Enter>":
		return Action{Kind: ActionDismiss}
	case "<Resize>":
		return Action{Kind: ActionRedraw}
	case "c", "C":
		return Action{Kind: ActionWithdraw}
	}

	for i, key := range CoinKeys {
		if id == key && i < len(view.Coins) {
			return Action{Kind: ActionCredit, Amount: view.Coins[i].Amount}
		}
	}

	if len(id) == 1 && id[0] >= '1' && id[0] <= '9' {
		return Action{Kind: ActionSelect, Code: id}
	}

	return Action{Kind: ActionNone}
}
