package reducer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vending/vending-gui/internal/domain/event"
	"github.com/vending/vending-gui/internal/domain/model"
)

func decode(t *testing.T, raw string) event.Eventer {
	t.Helper()
	ev, err := event.Decode([]byte(raw))
	require.NoError(t, err)
	return ev
}

func stockedState() model.UiState {
	s := model.NewUiState()
	s.Credit = 7
	s.Income = 12
	s.Quantity = []model.ProductSlot{{Code: "2", Price: 3, Quantity: 4, Symbol: "y"}}
	s.ReportedShortage = []any{map[string]any{"code": "2"}}
	return s
}

func TestApply_Scenarios(t *testing.T) {
	t.Run("credit info only changes the message", func(t *testing.T) {
		before := model.NewUiState()
		after := Apply(before, decode(t, `{"messageType":"CreditInfoV1","value":5}`))

		assert.Equal(t, "Your credit is 5", after.Message)
		after.Message = before.Message
		assert.Equal(t, before, after)
	})

	t.Run("not enough of credit", func(t *testing.T) {
		after := Apply(model.NewUiState(), decode(t, `{"messageType":"NotEnoughOfCreditV1","diff":3}`))
		assert.Equal(t, "Not enough of credit, insert 3", after.Message)
	})

	t.Run("display replaces the inventory", func(t *testing.T) {
		after := Apply(stockedState(), decode(t, `{"messageType":"DisplayV1","vendingMachineStateV1":{"credit":10,"income":0,"quantity":[{"code":"1","price":5,"quantity":2,"symbol":"x"}],"reportedExpiryDate":[],"reportedShortage":[]}}`))

		assert.Equal(t, 10.0, after.Credit)
		assert.Equal(t, 0.0, after.Income)
		require.Len(t, after.Quantity, 1)
		assert.Equal(t, model.Code("1"), after.Quantity[0].Code)
		assert.Empty(t, after.ReportedShortage)
	})

	t.Run("shortage raises a notice and dismissal clears it", func(t *testing.T) {
		before := stockedState()
		before.Message = "Wrong selection"

		raised := Apply(before, decode(t, `{"messageType":"ProductShortageV1","products":{"symbol":"x"}}`))
		assert.Equal(t, "Out of stock of x", raised.OwnerNotice)
		assert.Equal(t, "Wrong selection", raised.Message)

		dismissed := DismissNotice(raised)
		assert.Equal(t, "", dismissed.OwnerNotice)
		assert.Equal(t, before, dismissed)
	})
}

func TestApply_DisplayLeavesMessageAndNotice(t *testing.T) {
	before := stockedState()
	before.Message = "Collect your money"
	before.OwnerNotice = "Out of stock of y"

	after := Apply(before, &event.DisplayV1{State: model.MachineState{Credit: 1}})

	assert.Equal(t, before.Message, after.Message)
	assert.Equal(t, before.OwnerNotice, after.OwnerNotice)
	assert.Equal(t, 1.0, after.Credit)
}

func TestApply_NarrativeLeavesDisplay(t *testing.T) {
	narratives := []event.Eventer{
		&event.CreditInfoV1{Value: 1},
		&event.GiveProductAndChangeV1{Change: 2},
		&event.CollectYourMoneyV1{},
		&event.WrongProductV1{},
		&event.NotEnoughOfCreditV1{Diff: 3},
		&event.OutOfStockV1{Code: "4"},
	}

	before := stockedState()
	for _, ev := range narratives {
		t.Run(ev.GetTag(), func(t *testing.T) {
			after := Apply(before, ev)
			assert.Equal(t, before.Machine(), after.Machine())
			assert.Equal(t, before.OwnerNotice, after.OwnerNotice)
			assert.NotEqual(t, before.Message, after.Message)
		})
	}
}

func TestApply_UnknownIsNoOp(t *testing.T) {
	before := stockedState()
	before.OwnerNotice = "n"

	after := Apply(before, decode(t, `{"messageType":"FutureEventV2","value":1}`))
	assert.Equal(t, before, after)

	assert.Equal(t, before, Apply(before, nil))
}

func randomEvent(r *rand.Rand) event.Eventer {
	switch r.Intn(9) {
	case 0:
		n := r.Intn(4)
		slots := make([]model.ProductSlot, 0, n)
		for i := 0; i < n; i++ {
			slots = append(slots, model.ProductSlot{
				Code:     model.Code(string(rune('1' + r.Intn(9)))),
				Price:    float64(r.Intn(20)),
				Quantity: r.Intn(300),
				Symbol:   "x",
			})
		}
		return &event.DisplayV1{State: model.MachineState{Credit: float64(r.Intn(50)), Income: float64(r.Intn(500)), Quantity: slots}.Normalize()}
	case 1:
		return &event.CreditInfoV1{Value: float64(r.Intn(50))}
	case 2:
		return &event.GiveProductAndChangeV1{Change: float64(r.Intn(10))}
	case 3:
		return &event.CollectYourMoneyV1{}
	case 4:
		return &event.WrongProductV1{}
	case 5:
		return &event.NotEnoughOfCreditV1{Diff: float64(r.Intn(10))}
	case 6:
		return &event.OutOfStockV1{Code: model.Code(string(rune('1' + r.Intn(9))))}
	case 7:
		return &event.ProductShortageV1{Symbol: "z"}
	default:
		return &event.UnknownEvent{Tag: "FutureEventV2"}
	}
}

func TestFold_EqualsSequentialApply(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		evs := make([]event.Eventer, r.Intn(20))
		for i := range evs {
			evs[i] = randomEvent(r)
		}

		stepwise := model.NewUiState()
		for _, ev := range evs {
			stepwise = Apply(stepwise, ev)
		}

		batch := Fold(model.NewUiState(), evs...)
		require.Equal(t, stepwise, batch, "round %d", round)

		// splitting the sequence anywhere gives the same result
		cut := 0
		if len(evs) > 0 {
			cut = r.Intn(len(evs) + 1)
		}
		split := Fold(Fold(model.NewUiState(), evs[:cut]...), evs[cut:]...)
		require.Equal(t, batch, split, "round %d", round)
	}
}

func TestTouches(t *testing.T) {
	assert.Equal(t, AxisDisplay, Touches(&event.DisplayV1{}))
	assert.Equal(t, AxisMessage, Touches(&event.WrongProductV1{}))
	assert.Equal(t, AxisNotice, Touches(&event.ProductShortageV1{}))
	assert.Equal(t, AxisNone, Touches(&event.UnknownEvent{}))

	touched := AxisDisplay | AxisNotice
	assert.True(t, touched.Has(AxisDisplay))
	assert.False(t, touched.Has(AxisMessage))
}

func TestSeed(t *testing.T) {
	snapshot := model.MachineState{Credit: 2, Income: 9, Quantity: []model.ProductSlot{{Code: "3", Price: 15, Quantity: 3, Symbol: "p"}}}

	t.Run("untouched state takes the whole snapshot and greets", func(t *testing.T) {
		s := Seed(model.NewUiState(), snapshot, AxisNone)
		assert.Equal(t, model.GreetingMessage, s.Message)
		assert.Equal(t, 2.0, s.Credit)
		assert.Len(t, s.Quantity, 1)
		assert.NotNil(t, s.ReportedExpiryDate)
	})

	t.Run("display already advanced by an event is kept", func(t *testing.T) {
		advanced := Apply(model.NewUiState(), &event.DisplayV1{State: model.MachineState{Credit: 40}})
		s := Seed(advanced, snapshot, AxisDisplay)
		assert.Equal(t, 40.0, s.Credit)
		assert.Empty(t, s.Quantity)
		assert.Equal(t, model.GreetingMessage, s.Message)
	})

	t.Run("narrative already advanced by an event is kept", func(t *testing.T) {
		advanced := Apply(model.NewUiState(), &event.CreditInfoV1{Value: 5})
		s := Seed(advanced, snapshot, AxisMessage)
		assert.Equal(t, "Your credit is 5", s.Message)
		assert.Equal(t, 2.0, s.Credit)
	})

	t.Run("notice is never seeded", func(t *testing.T) {
		noticed := Apply(model.NewUiState(), &event.ProductShortageV1{Symbol: "q"})
		s := Seed(noticed, snapshot, AxisNotice)
		assert.Equal(t, "Out of stock of q", s.OwnerNotice)
	})
}
