package models

import "github.com/shopspring/decimal"

// SymbolMeta is the per-instrument metadata needed for sizing.
type SymbolMeta struct {
	Symbol            string
	QuantityPrecision int32
	MinNotional       decimal.Decimal
}

// OrderRef identifies one open order in a remote snapshot.
type OrderRef struct {
	Symbol  string
	OrderID int64
}
