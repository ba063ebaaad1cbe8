package domain

import "github.com/shopspring/decimal"

// BookLevel is one orderbook price level.
type BookLevel struct {
	Price decimal.Decimal `json:"price"`
	Qty   decimal.Decimal `json:"qty"`
}

// MarketSnapshot is the per-cycle view of one instrument's market.
type MarketSnapshot struct {
	CurrentPrice decimal.Decimal `json:"current_price"`
	Available    bool            `json:"available"`
	Bids         []BookLevel     `json:"bids,omitempty"`
	Asks         []BookLevel     `json:"asks,omitempty"`
}

// BidPrice returns the lowest bid or zero when the book side is empty.
func (s *MarketSnapshot) BidPrice() decimal.Decimal {
	return extremePrice(s.Bids, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
}

// AskPrice returns the highest ask or zero when the book side is empty.
func (s *MarketSnapshot) AskPrice() decimal.Decimal {
	return extremePrice(s.Asks, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
}

// Spread is the bid/ask spread in percent; zero when either side is empty.
func (s *MarketSnapshot) Spread() decimal.Decimal {
	bid, ask := s.BidPrice(), s.AskPrice()
	if bid.IsZero() || ask.IsZero() {
		return decimal.Zero
	}
	return bid.Div(ask).Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100))
}

// Depth is the average number of populated levels across both book sides.
func (s *MarketSnapshot) Depth() int {
	if s.Bids == nil || s.Asks == nil {
		return 0
	}
	return (len(s.Bids) + len(s.Asks)) / 2
}

func extremePrice(levels []BookLevel, better func(a, b decimal.Decimal) bool) decimal.Decimal {
	if len(levels) == 0 {
		return decimal.Zero
	}
	best := levels[0].Price
	for _, lv := range levels[1:] {
		if better(lv.Price, best) {
			best = lv.Price
		}
	}
	return best
}
