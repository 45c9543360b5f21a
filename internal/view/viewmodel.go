// Package view turns a UiState into what a screen shows. It never writes
// state back; the owner notice is dismissed through the session.
package view

import (
	"fmt"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/vending/vending-gui/internal/domain/model"
)

const (
	// MaxGlyphs bounds the symbols drawn per product, whatever the stock.
	MaxGlyphs = 10
	// NoticeTitle heads the owner notice overlay.
	NoticeTitle = "Message to owner"

	defaultCacheSize = 256
)

// ProductRow is one line of the product grid.
type ProductRow struct {
	Code     string `json:"code" msgpack:"code"`
	Price    string `json:"price" msgpack:"price"`
	Quantity int    `json:"quantity" msgpack:"quantity"`
	Symbol   string `json:"symbol" msgpack:"symbol"`
	Glyphs   string `json:"glyphs" msgpack:"glyphs"`
}

// ViewModel is the presentation of one UiState.
type ViewModel struct {
	LCD       string       `json:"lcd" msgpack:"lcd"`
	Products  []ProductRow `json:"products" msgpack:"products"`
	Credit    string       `json:"credit" msgpack:"credit"`
	Income    string       `json:"income" msgpack:"income"`
	Notice    string       `json:"notice,omitempty" msgpack:"notice,omitempty"`
	HasNotice bool         `json:"has_notice" msgpack:"has_notice"`
}

type glyphKey struct {
	symbol string
	count  int
}

// Renderer builds view models. It is safe for concurrent use.
type Renderer struct {
	// [HOT_PATH] glyph strings repeat across every snapshot
	glyphs *lru.Cache[glyphKey, string]
}

// NewRenderer creates a renderer whose glyph cache holds cacheSize rows.
func NewRenderer(cacheSize int) (*Renderer, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	cache, err := lru.New[glyphKey, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("glyph cache: %w", err)
	}
	return &Renderer{glyphs: cache}, nil
}

// Build renders st. The state's slices are copied, never sorted in place.
func (r *Renderer) Build(st model.UiState) ViewModel {
	rows := make([]ProductRow, 0, len(st.Quantity))
	for _, slot := range SortedProducts(st.Quantity) {
		rows = append(rows, ProductRow{
			Code:     string(slot.Code),
			Price:    model.FormatAmount(slot.Price) + "PLN",
			Quantity: slot.Quantity,
			Symbol:   slot.Symbol,
			Glyphs:   r.Glyphs(slot.Symbol, slot.Quantity),
		})
	}

	return ViewModel{
		LCD:       st.Message,
		Products:  rows,
		Credit:    model.FormatAmount(st.Credit),
		Income:    model.FormatAmount(st.Income),
		Notice:    st.OwnerNotice,
		HasNotice: st.OwnerNotice != "",
	}
}

// Glyphs repeats symbol once per unit in stock, capped at MaxGlyphs.
func (r *Renderer) Glyphs(symbol string, quantity int) string {
	n := min(MaxGlyphs, max(0, quantity))
	if n == 0 || symbol == "" {
		return ""
	}

	key := glyphKey{symbol: symbol, count: n}
	if g, ok := r.glyphs.Get(key); ok {
		return g
	}

	g := strings.Repeat(symbol, n)
	r.glyphs.Add(key, g)
	return g
}

// SortedProducts returns a copy of slots ordered by code as text. Equal
// codes keep their original order.
func SortedProducts(slots []model.ProductSlot) []model.ProductSlot {
	out := slices.Clone(slots)
	slices.SortStableFunc(out, func(a, b model.ProductSlot) int {
		return strings.Compare(string(a.Code), string(b.Code))
	})
	return out
}
