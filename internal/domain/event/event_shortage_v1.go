package event

var _ Eventer = (*ProductShortageV1)(nil)

// ProductShortageV1 is addressed to the machine owner rather than the
// customer, so it raises a notice instead of touching the LCD line.
type ProductShortageV1 struct {
	Symbol string
	// Products is the raw product record, kept for renderers that want more than the symbol.
	Products map[string]any
}

func (e *ProductShortageV1) GetKind() Kind  { return ProductShortageV1Kind }
func (e *ProductShortageV1) GetTag() string { return ProductShortageV1Kind.String() }

// Notice is the owner-facing text.
func (e *ProductShortageV1) Notice() string {
	return "Out of stock of " + e.Symbol
}
