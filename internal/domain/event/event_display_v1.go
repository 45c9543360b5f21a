package event

import "github.com/vending/vending-gui/internal/domain/model"

var _ Eventer = (*DisplayV1)(nil)

// DisplayV1 is a full-state push. It supersedes credit, income and the
// inventory lists as one unit and says nothing about the LCD line.
type DisplayV1 struct {
	State model.MachineState
}

func (e *DisplayV1) GetKind() Kind  { return DisplayV1Kind }
func (e *DisplayV1) GetTag() string { return DisplayV1Kind.String() }
