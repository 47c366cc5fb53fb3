package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"signal_bot/pkg/logger"
)

// SetLeverage changes the leverage for a symbol. Safe to repeat.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	if err := c.signedCall(ctx, http.MethodPost, "/fapi/v1/leverage", params, nil); err != nil {
		return fmt.Errorf("set leverage %s %dx: %w", symbol, leverage, err)
	}
	return nil
}

// SetMarginMode switches the margin mode (ISOLATED/CROSSED) for a symbol.
// "No need to change margin type" is swallowed, the mode is already set.
func (c *Client) SetMarginMode(ctx context.Context, symbol, mode string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("marginType", mode)

	err := c.signedCall(ctx, http.MethodPost, "/fapi/v1/marginType", params, nil)
	if err != nil {
		if isMarginTypeNoChange(err) {
			logger.Info("margin type for %s already %s", symbol, mode)
			return nil
		}
		return fmt.Errorf("set margin mode %s %s: %w", symbol, mode, err)
	}
	return nil
}
