// Package event defines the versioned events the controller pushes to a
// vending machine display. Every event carries a messageType tag; the V1
// suffix marks the protocol version, and later versions may coexist.
package event

type Kind int16

const (
	// [ZERO_VALUE_GUARD] Unknown is the zero value so an undecoded event never
	// masquerades as a real one.
	Unknown Kind = iota
	DisplayV1Kind
	CreditInfoV1Kind
	GiveProductAndChangeV1Kind
	CollectYourMoneyV1Kind
	WrongProductV1Kind
	NotEnoughOfCreditV1Kind
	OutOfStockV1Kind
	ProductShortageV1Kind
)

var kindTags = map[Kind]string{
	DisplayV1Kind:              "DisplayV1",
	CreditInfoV1Kind:           "CreditInfoV1",
	GiveProductAndChangeV1Kind: "GiveProductAndChangeV1",
	CollectYourMoneyV1Kind:     "CollectYourMoneyV1",
	WrongProductV1Kind:         "WrongProductV1",
	NotEnoughOfCreditV1Kind:    "NotEnoughOfCreditV1",
	OutOfStockV1Kind:           "OutOfStockV1",
	ProductShortageV1Kind:      "ProductShortageV1",
}

// String returns the wire tag of the kind.
func (k Kind) String() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return "Unknown"
}

// Eventer is implemented by every decoded event.
type Eventer interface {
	GetKind() Kind
	// GetTag returns the messageType exactly as received.
	GetTag() string
}

// Narrator is implemented by events that only replace the LCD line.
type Narrator interface {
	Eventer
	Narrate() string
}

// UnknownEvent carries a messageType this client does not understand.
// It is kept rather than rejected so newer controllers stay compatible.
type UnknownEvent struct {
	Tag string
	Raw []byte
}

func (e *UnknownEvent) GetKind() Kind  { return Unknown }
func (e *UnknownEvent) GetTag() string { return e.Tag }
