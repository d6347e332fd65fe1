package entity

import (
	"errors"

	"embervale.ai/internal/sim/catalogs"
)

// ErrInvalidQuantity reports a programmer-contract violation: quantities are
// never negative, and add operations require a positive count.
var ErrInvalidQuantity = errors.New("invalid quantity")

// Item is one inventory entry: immutable catalog attributes plus a mutable
// non-negative quantity. Each inventory owns its own Item instances; they are
// never shared between characters.
type Item struct {
	ID          int
	Name        string
	Type        string
	Description string
	IconPos     []int
	Tradable    bool
	Price       int
	Effect      map[string]float64

	Quantity int
}

// NewItem materializes a fresh instance from a catalog def with quantity 0.
func NewItem(def catalogs.ItemDef) *Item {
	effect := make(map[string]float64, len(def.Effect))
	for k, v := range def.Effect {
		effect[k] = v
	}
	return &Item{
		ID:          def.ID,
		Name:        def.Name,
		Type:        def.Type,
		Description: def.Description,
		IconPos:     append([]int(nil), def.IconPos...),
		Tradable:    def.Tradable,
		Price:       def.Price,
		Effect:      effect,
	}
}

// Clone produces an independent copy, used when the catalog has no def for
// the item's name.
func (it *Item) Clone() *Item {
	cp := *it
	cp.IconPos = append([]int(nil), it.IconPos...)
	cp.Effect = make(map[string]float64, len(it.Effect))
	for k, v := range it.Effect {
		cp.Effect[k] = v
	}
	return &cp
}

func (it *Item) SetQuantity(q int) error {
	if q < 0 {
		return ErrInvalidQuantity
	}
	it.Quantity = q
	return nil
}

// Info returns the detail view consumed by the API layer.
func (it *Item) Info() map[string]any {
	return map[string]any{
		"id":          it.ID,
		"name":        it.Name,
		"type":        it.Type,
		"tradable":    it.Tradable,
		"description": it.Description,
		"price":       it.Price,
		"effect":      it.Effect,
		"quantity":    it.Quantity,
		"icon_pos":    it.IconPos,
	}
}
