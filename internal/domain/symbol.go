package domain

import "github.com/shopspring/decimal"

// SymbolSpec holds the static metadata for one watched currency pair.
// Digits is the quote precision the broker reports for the pair and
// drives the pip scale; JPName is the spoken display name.
type SymbolSpec struct {
	Symbol string `json:"symbol"`
	Digits int    `json:"digits"`
	JPName string `json:"jp_name"`
}

// PipScale returns the price delta that equals one pip for this pair.
// Pairs quoted with 3 or 5 digits (JPY crosses, majors) use 10^-(digits-1),
// everything else uses 10^-(digits-2).
func (s SymbolSpec) PipScale() decimal.Decimal {
	exp := s.Digits - 2
	if s.Digits == 3 || s.Digits == 5 {
		exp = s.Digits - 1
	}
	return decimal.New(1, int32(-exp))
}

// SymbolState tracks the moving reference window for one pair.
// BasePrice is nil only before the first observed tick; afterwards it
// changes only when a movement event fires. LastPrice follows every tick.
type SymbolState struct {
	Spec      SymbolSpec
	BasePrice *decimal.Decimal
	LastPrice *decimal.Decimal
}

// SymbolStatus is the per-pair snapshot embedded in the dashboard init
// payload. Price and BasePrice marshal to null before the first tick.
type SymbolStatus struct {
	Symbol    string           `json:"symbol"`
	JPName    string           `json:"jp_name"`
	Price     *decimal.Decimal `json:"price"`
	BasePrice *decimal.Decimal `json:"base_price"`
}
