package exchange

import (
	"context"
	"fmt"
	"net/url"

	"signal_bot/internal/models"

	"github.com/shopspring/decimal"
)

// InstrumentMeta fetches sizing metadata for one trading symbol: quantity
// precision and the minimum order notional.
func (c *Client) InstrumentMeta(ctx context.Context, symbol string) (models.SymbolMeta, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	var payload struct {
		Symbols []struct {
			Symbol            string `json:"symbol"`
			Status            string `json:"status"`
			QuantityPrecision int32  `json:"quantityPrecision"`
			Filters           []struct {
				FilterType string `json:"filterType"`
				Notional   string `json:"notional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := c.publicCall(ctx, "/fapi/v1/exchangeInfo", params, &payload); err != nil {
		return models.SymbolMeta{}, fmt.Errorf("exchange info %s: %w", symbol, err)
	}

	for _, s := range payload.Symbols {
		if s.Symbol != symbol {
			continue
		}
		if s.Status != "" && s.Status != "TRADING" {
			return models.SymbolMeta{}, fmt.Errorf("symbol %s not trading: status=%s", symbol, s.Status)
		}

		meta := models.SymbolMeta{
			Symbol:            s.Symbol,
			QuantityPrecision: s.QuantityPrecision,
		}
		for _, f := range s.Filters {
			if f.FilterType != "MIN_NOTIONAL" {
				continue
			}
			v, err := decimal.NewFromString(f.Notional)
			if err != nil {
				return models.SymbolMeta{}, fmt.Errorf("exchange info %s: min notional parse %q: %w", symbol, f.Notional, err)
			}
			meta.MinNotional = v
		}
		return meta, nil
	}
	return models.SymbolMeta{}, fmt.Errorf("symbol %s not found in exchange information", symbol)
}
