package exchange

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// priceCacheMaxAge bounds how stale a streamed mark price may be before we
// fall back to the REST ticker.
const priceCacheMaxAge = 5 * time.Second

// Price returns the latest price for a trading symbol. A fresh value from
// the mark-price stream is preferred over a round trip to the ticker.
func (c *Client) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	c.priceMu.RLock()
	cached, ok := c.prices[symbol]
	c.priceMu.RUnlock()
	if ok && time.Since(cached.at) < priceCacheMaxAge {
		return cached.px, nil
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	var payload struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := c.publicCall(ctx, "/fapi/v1/ticker/price", params, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("ticker %s: %w", symbol, err)
	}

	px, err := decimal.NewFromString(payload.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ticker %s parse %q: %w", symbol, payload.Price, err)
	}
	if px.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, fmt.Errorf("ticker %s: price <= 0", symbol)
	}
	return px, nil
}
