package event

import (
	"fmt"

	"github.com/vending/vending-gui/internal/domain/model"
)

var (
	_ Narrator = (*CreditInfoV1)(nil)
	_ Narrator = (*GiveProductAndChangeV1)(nil)
	_ Narrator = (*CollectYourMoneyV1)(nil)
	_ Narrator = (*WrongProductV1)(nil)
	_ Narrator = (*NotEnoughOfCreditV1)(nil)
	_ Narrator = (*OutOfStockV1)(nil)
)

// CreditInfoV1 reports the credit currently inserted.
type CreditInfoV1 struct {
	Value float64
}

func (e *CreditInfoV1) GetKind() Kind  { return CreditInfoV1Kind }
func (e *CreditInfoV1) GetTag() string { return CreditInfoV1Kind.String() }
func (e *CreditInfoV1) Narrate() string {
	return "Your credit is " + model.FormatAmount(e.Value)
}

// GiveProductAndChangeV1 reports a completed sale.
type GiveProductAndChangeV1 struct {
	Change float64
}

func (e *GiveProductAndChangeV1) GetKind() Kind  { return GiveProductAndChangeV1Kind }
func (e *GiveProductAndChangeV1) GetTag() string { return GiveProductAndChangeV1Kind.String() }
func (e *GiveProductAndChangeV1) Narrate() string {
	return fmt.Sprintf("Take your product and %s of change", model.FormatAmount(e.Change))
}

// CollectYourMoneyV1 follows a credit withdrawal.
type CollectYourMoneyV1 struct{}

func (e *CollectYourMoneyV1) GetKind() Kind   { return CollectYourMoneyV1Kind }
func (e *CollectYourMoneyV1) GetTag() string  { return CollectYourMoneyV1Kind.String() }
func (e *CollectYourMoneyV1) Narrate() string { return "Collect your money" }

// WrongProductV1 follows a selection of a slot that does not exist.
type WrongProductV1 struct{}

func (e *WrongProductV1) GetKind() Kind   { return WrongProductV1Kind }
func (e *WrongProductV1) GetTag() string  { return WrongProductV1Kind.String() }
func (e *WrongProductV1) Narrate() string { return "Wrong selection" }

// NotEnoughOfCreditV1 reports how much more credit a selection needs.
type NotEnoughOfCreditV1 struct {
	Diff float64
}

func (e *NotEnoughOfCreditV1) GetKind() Kind  { return NotEnoughOfCreditV1Kind }
func (e *NotEnoughOfCreditV1) GetTag() string { return NotEnoughOfCreditV1Kind.String() }
func (e *NotEnoughOfCreditV1) Narrate() string {
	return "Not enough of credit, insert " + model.FormatAmount(e.Diff)
}

// OutOfStockV1 reports a selection of an empty slot.
type OutOfStockV1 struct {
	Code model.Code
}

func (e *OutOfStockV1) GetKind() Kind   { return OutOfStockV1Kind }
func (e *OutOfStockV1) GetTag() string  { return OutOfStockV1Kind.String() }
func (e *OutOfStockV1) Narrate() string { return "Out of stock of " + string(e.Code) }
