package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// PriceSource is the market-data producer consumed by the price monitor.
// Connect must succeed before any polling starts; a Connect failure
// aborts startup. Poll returns (_, false, nil) when the source has no
// fresh tick for the symbol.
type PriceSource interface {
	Connect(ctx context.Context) error
	Symbols() []string
	Poll(ctx context.Context, symbol string) (decimal.Decimal, bool, error)
	Disconnect()
}

// SymbolRepository defines how watched-pair metadata is persisted.
type SymbolRepository interface {
	UpsertSymbol(info *SymbolInfo) error
	GetSymbol(symbol string) (*SymbolInfo, error)
	GetAllSymbols() ([]SymbolInfo, error)
}
