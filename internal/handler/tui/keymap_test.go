package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	testCases := []struct {
		id   string
		want Action
	}{
		{"1", Action{Kind: ActionSelect, Code: "1"}},
		{"9", Action{Kind: ActionSelect, Code: "9"}},
		{"0", Action{Kind: ActionNone}},
		{"c", Action{Kind: ActionWithdraw}},
		{"C", Action{Kind: ActionWithdraw}},
		{"z", Action{Kind: ActionCredit, Amount: 1}},
		{"x", Action{Kind: ActionCredit, Amount: 2}},
		{"v", Action{Kind: ActionCredit, Amount: 5}},
		{"<Escape>", Action{Kind: ActionDismiss}},
		{"<Enter>", Action{Kind: ActionDismiss}},
		{"q", Action{Kind: ActionQuit}},
		{"<C-c>", Action{Kind: ActionQuit}},
		{"<Resize>", Action{Kind: ActionRedraw}},
		{"<MouseLeft>", Action{Kind: ActionNone}},
		{"12", Action{Kind: ActionNone}},
	}

	for _, tc := range testCases {
		t.Run(tc.id, func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.id))
		})
	}
}
