// Package reducer folds controller events into the state a vending machine
// display renders. Every function here is pure: it takes a state by value
// and returns the next one.
package reducer

import (
	"github.com/vending/vending-gui/internal/domain/event"
	"github.com/vending/vending-gui/internal/domain/model"
)

// Axis is a set of independently updated parts of the UI state.
type Axis uint8

const (
	// AxisDisplay covers credit, income and the inventory lists.
	AxisDisplay Axis = 1 << iota
	// AxisMessage covers the LCD line.
	AxisMessage
	// AxisNotice covers the owner notice.
	AxisNotice
)

const AxisNone Axis = 0

// Has reports whether every axis in o is set in a.
func (a Axis) Has(o Axis) bool { return a&o == o }

// Apply returns the state after ev. Unrecognized events leave the state unchanged.
func Apply(s model.UiState, ev event.Eventer) model.UiState {
	switch e := ev.(type) {
	case *event.DisplayV1:
		return s.WithMachine(e.State)
	case *event.ProductShortageV1:
		s.OwnerNotice = e.Notice()
		return s
	case event.Narrator:
		s.Message = e.Narrate()
		return s
	default:
		// [FORWARD_COMPATIBILITY] newer protocol versions are ignored, not rejected.
		return s
	}
}

// Fold applies events left to right.
func Fold(s model.UiState, evs ...event.Eventer) model.UiState {
	for _, ev := range evs {
		s = Apply(s, ev)
	}
	return s
}

// Touches reports which axes Apply writes for ev.
func Touches(ev event.Eventer) Axis {
	switch ev.(type) {
	case *event.DisplayV1:
		return AxisDisplay
	case *event.ProductShortageV1:
		return AxisNotice
	case event.Narrator:
		return AxisMessage
	default:
		return AxisNone
	}
}

// DismissNotice clears the owner notice and nothing else.
func DismissNotice(s model.UiState) model.UiState {
	s.OwnerNotice = ""
	return s
}

// Seed applies a bootstrap snapshot without overwriting anything events
// have already advanced: the display axis is replaced only if no full-state
// event was applied, and the greeting replaces the LCD line only if no
// narrative event was applied.
func Seed(s model.UiState, ms model.MachineState, touched Axis) model.UiState {
	if !touched.Has(AxisDisplay) {
		s = s.WithMachine(ms)
	}
	if !touched.Has(AxisMessage) {
		s.Message = model.GreetingMessage
	}
	return s
}
