// Package domain defines the core types of the ladder trading system:
// instruments, orders, trading state, market snapshots, and the boundary
// interfaces implemented by the exchange, storage, and notification layers.
package domain

import (
	"github.com/shopspring/decimal"
)

// Instrument identifies a tradable pair together with the venue's price and
// quantity precision. Two instruments are equal when the id and both scales
// match.
type Instrument struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	QtyScale   int32  `json:"qty_scale"`
	PriceScale int32  `json:"price_scale"`
}

// NewInstrument creates an Instrument with the given id and scales.
func NewInstrument(id string, qtyScale, priceScale int32) Instrument {
	return Instrument{ID: id, Name: id, QtyScale: qtyScale, PriceScale: priceScale}
}

// Equal reports whether both instruments reference the same pair at the same
// precision. The display name does not participate in equality.
func (i Instrument) Equal(other Instrument) bool {
	return i.ID == other.ID && i.QtyScale == other.QtyScale && i.PriceScale == other.PriceScale
}

// RoundPrice rounds v to the instrument's price scale, half away from zero.
func (i Instrument) RoundPrice(v decimal.Decimal) decimal.Decimal {
	return v.Round(i.PriceScale)
}

// RoundQty rounds v to the instrument's quantity scale, half away from zero.
func (i Instrument) RoundQty(v decimal.Decimal) decimal.Decimal {
	return v.Round(i.QtyScale)
}

func (i Instrument) String() string {
	if i.Name != "" {
		return i.Name
	}
	return i.ID
}
