package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vending/vending-gui/internal/domain/model"
)

// ErrMalformed wraps every decoding failure: invalid JSON, a missing
// messageType, or a missing field the declared type requires.
var ErrMalformed = errors.New("malformed event")

// envelope is the part every event shares.
type envelope struct {
	MessageType *string `json:"messageType"`
}

type displayV1Wire struct {
	State *model.MachineState `json:"vendingMachineStateV1"`
}

type creditInfoV1Wire struct {
	Value *float64 `json:"value"`
}

type giveProductAndChangeV1Wire struct {
	Change *float64 `json:"change"`
}

type notEnoughOfCreditV1Wire struct {
	Diff *float64 `json:"diff"`
}

type outOfStockV1Wire struct {
	Code *model.Code `json:"code"`
}

type productShortageV1Wire struct {
	Products map[string]any `json:"products"`
}

type decoderFunc func(raw []byte) (Eventer, error)

// decoders is the table of known messageType tags. Add new protocol
// versions here; anything missing decodes to *UnknownEvent.
var decoders = map[string]decoderFunc{
	DisplayV1Kind.String(): func(raw []byte) (Eventer, error) {
		var w displayV1Wire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		if w.State == nil {
			return nil, missing("vendingMachineStateV1")
		}
		return &DisplayV1{State: w.State.Normalize()}, nil
	},
	CreditInfoV1Kind.String(): func(raw []byte) (Eventer, error) {
		var w creditInfoV1Wire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		if w.Value == nil {
			return nil, missing("value")
		}
		return &CreditInfoV1{Value: *w.Value}, nil
	},
	GiveProductAndChangeV1Kind.String(): func(raw []byte) (Eventer, error) {
		var w giveProductAndChangeV1Wire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		if w.Change == nil {
			return nil, missing("change")
		}
		return &GiveProductAndChangeV1{Change: *w.Change}, nil
	},
	CollectYourMoneyV1Kind.String(): func([]byte) (Eventer, error) {
		return &CollectYourMoneyV1{}, nil
	},
	WrongProductV1Kind.String(): func([]byte) (Eventer, error) {
		return &WrongProductV1{}, nil
	},
	NotEnoughOfCreditV1Kind.String(): func(raw []byte) (Eventer, error) {
		var w notEnoughOfCreditV1Wire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		if w.Diff == nil {
			return nil, missing("diff")
		}
		return &NotEnoughOfCreditV1{Diff: *w.Diff}, nil
	},
	OutOfStockV1Kind.String(): func(raw []byte) (Eventer, error) {
		var w outOfStockV1Wire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		if w.Code == nil {
			return nil, missing("code")
		}
		return &OutOfStockV1{Code: *w.Code}, nil
	},
	ProductShortageV1Kind.String(): func(raw []byte) (Eventer, error) {
		var w productShortageV1Wire
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		if w.Products == nil {
			return nil, missing("products")
		}
		symbol, ok := w.Products["symbol"].(string)
		if !ok {
			return nil, missing("products.symbol")
		}
		return &ProductShortageV1{Symbol: symbol, Products: w.Products}, nil
	},
}

func missing(field string) error {
	return fmt.Errorf("missing field %q", field)
}

// Decode turns one raw frame into a typed event. Unknown tags are not an
// error; they come back as *UnknownEvent.
func Decode(raw []byte) (Eventer, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.MessageType == nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, missing("messageType"))
	}

	tag := *env.MessageType
	decode, ok := decoders[tag]
	if !ok {
		return &UnknownEvent{Tag: tag, Raw: raw}, nil
	}

	ev, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, tag, err)
	}
	return ev, nil
}
