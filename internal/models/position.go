package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending OrderStatus = "pending"
	StatusPlaced  OrderStatus = "placed"
	StatusFilled  OrderStatus = "filled"
)

type EntryOrder struct {
	OrderID   int64           `json:"order_id"`
	Status    OrderStatus     `json:"status"`
	Side      Side            `json:"side"`
	OpenPrice decimal.Decimal `json:"open_price"`
}

type TargetOrder struct {
	OrderID     int64           `json:"order_id"`
	Status      OrderStatus     `json:"status"`
	TargetPrice decimal.Decimal `json:"target_price"`
}

type StopOrder struct {
	OrderID int64           `json:"order_id"`
	Status  OrderStatus     `json:"status"`
	Value   decimal.Decimal `json:"value"`
}

// Position is the durable aggregate for one open trade: the entry order,
// the protective stop and the ordered take-profit targets (index 0 nearest
// to entry, it drives stop trailing).
type Position struct {
	Asset     string          `json:"symbol"`
	Entry     EntryOrder      `json:"open_position_order"`
	Targets   []TargetOrder   `json:"targets"`
	Stop      StopOrder       `json:"stop_loss"`
	Precision int32           `json:"precision"`
	Quantity  decimal.Decimal `json:"quantity"`
	CreatedAt time.Time       `json:"timestamp"`
}

// ClosingSide is the side of every exit order (stop and targets).
func (p *Position) ClosingSide() Side {
	return p.Entry.Side.Inverse()
}

func (p *Position) AllTargetsFilled() bool {
	for _, t := range p.Targets {
		if t.Status != StatusFilled {
			return false
		}
	}
	return len(p.Targets) > 0
}

// RoundQuantity rounds a contract quantity for submission: precision 0 means
// whole units, otherwise half-up to precision decimal places.
func RoundQuantity(q decimal.Decimal, precision int32) decimal.Decimal {
	if precision <= 0 {
		return q.Round(0)
	}
	return q.Round(precision)
}
