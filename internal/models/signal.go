package models

import "github.com/shopspring/decimal"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Inverse is the side that closes a position opened on s.
func (s Side) Inverse() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Signal is a normalized trade intent extracted from an alert message.
// Between holds the entry band bounds in the order they were written, use
// BandLow/BandHigh for comparisons.
type Signal struct {
	Asset    string
	Side     Side
	Between  []decimal.Decimal
	Targets  []decimal.Decimal
	StopLoss decimal.Decimal
	Leverage int
}

// Complete reports whether every required field is present. Leverage is
// optional, the parser defaults it.
func (s Signal) Complete() bool {
	return s.Asset != "" &&
		(s.Side == SideBuy || s.Side == SideSell) &&
		len(s.Between) == 2 &&
		len(s.Targets) > 0 &&
		s.StopLoss.IsPositive()
}

func (s Signal) BandLow() decimal.Decimal {
	if s.Between[0].LessThanOrEqual(s.Between[1]) {
		return s.Between[0]
	}
	return s.Between[1]
}

func (s Signal) BandHigh() decimal.Decimal {
	if s.Between[0].LessThanOrEqual(s.Between[1]) {
		return s.Between[1]
	}
	return s.Between[0]
}

// InBand reports whether px lies inside the entry band, bounds inclusive.
func (s Signal) InBand(px decimal.Decimal) bool {
	return px.GreaterThanOrEqual(s.BandLow()) && px.LessThanOrEqual(s.BandHigh())
}

// Matches reports whether an active position was opened from an equivalent
// signal: same asset and side, the position's entry price inside this
// signal's band, and the same stop price. Target prices are deliberately not
// compared.
func (s Signal) Matches(p *Position) bool {
	return s.Asset == p.Asset &&
		s.Side == p.Entry.Side &&
		s.InBand(p.Entry.OpenPrice) &&
		s.StopLoss.Equal(p.Stop.Value)
}
