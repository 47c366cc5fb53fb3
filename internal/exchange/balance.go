package exchange

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// Balance returns the available balance for one asset.
func (c *Client) Balance(ctx context.Context, asset string) (decimal.Decimal, error) {
	var payload []struct {
		Asset            string `json:"asset"`
		AvailableBalance string `json:"availableBalance"`
	}
	if err := c.signedCall(ctx, http.MethodGet, "/fapi/v2/balance", nil, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("balance: %w", err)
	}

	for _, b := range payload {
		if b.Asset != asset {
			continue
		}
		v, err := decimal.NewFromString(b.AvailableBalance)
		if err != nil {
			return decimal.Zero, fmt.Errorf("balance parse %q: %w", b.AvailableBalance, err)
		}
		return v, nil
	}
	return decimal.Zero, fmt.Errorf("balance: no entry for asset %s", asset)
}
