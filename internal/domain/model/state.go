package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	// LoadingMessage is shown on the LCD until bootstrap or an event replaces it.
	LoadingMessage = "Loading ..."
	// GreetingMessage is shown once the bootstrap snapshot is applied.
	GreetingMessage = "Hello"
)

// Code is a product slot identifier. The controller may send it as a JSON
// string or a JSON number; it is always held as its decimal text.
type Code string

// UnmarshalJSON accepts both "1" and 1.
func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("product code: empty value")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("product code: %w", err)
		}
		*c = Code(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product code: %w", err)
	}
	*c = Code(n.String())
	return nil
}

// ProductSlot is one inventory row.
type ProductSlot struct {
	Code     Code    `json:"code"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Symbol   string  `json:"symbol"`
}

// MachineState is the full-state payload returned by the status endpoint
// and carried by DisplayV1 events.
type MachineState struct {
	Credit             float64       `json:"credit"`
	Income             float64       `json:"income"`
	Quantity           []ProductSlot `json:"quantity"`
	ReportedExpiryDate []any         `json:"reportedExpiryDate"`
	ReportedShortage   []any         `json:"reportedShortage"`
}

// Normalize replaces nil sequences with empty ones so that a decoded
// snapshot is always fully defined.
func (m MachineState) Normalize() MachineState {
	if m.Quantity == nil {
		m.Quantity = []ProductSlot{}
	}
	if m.ReportedExpiryDate == nil {
		m.ReportedExpiryDate = []any{}
	}
	if m.ReportedShortage == nil {
		m.ReportedShortage = []any{}
	}
	return m
}

// UiState is everything a renderer needs. Slices are shared between
// successive states and must never be mutated in place.
type UiState struct {
	Message            string        `json:"message"`
	Credit             float64       `json:"credit"`
	Income             float64       `json:"income"`
	Quantity           []ProductSlot `json:"quantity"`
	ReportedExpiryDate []any         `json:"reportedExpiryDate"`
	ReportedShortage   []any         `json:"reportedShortage"`
	OwnerNotice        string        `json:"ownerNotice"`
}

// NewUiState returns the placeholder state a session starts with.
func NewUiState() UiState {
	return UiState{
		Message:            LoadingMessage,
		Quantity:           []ProductSlot{},
		ReportedExpiryDate: []any{},
		ReportedShortage:   []any{},
	}
}

// Machine returns the display axis of the state.
func (s UiState) Machine() MachineState {
	return MachineState{
		Credit:             s.Credit,
		Income:             s.Income,
		Quantity:           s.Quantity,
		ReportedExpiryDate: s.ReportedExpiryDate,
		ReportedShortage:   s.ReportedShortage,
	}
}

// WithMachine replaces the whole display axis as one unit.
func (s UiState) WithMachine(m MachineState) UiState {
	m = m.Normalize()
	s.Credit = m.Credit
	s.Income = m.Income
	s.Quantity = m.Quantity
	s.ReportedExpiryDate = m.ReportedExpiryDate
	s.ReportedShortage = m.ReportedShortage
	return s
}

// FormatAmount renders a number with the shortest exact decimal form (5, 2.5).
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
