package exchange

import (
	"context"
	"time"

	"signal_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

type markPriceEvent struct {
	Symbol string `json:"s"`
	Price  string `json:"p"`
}

// StreamMarkPrices keeps the in-memory price cache warm from the combined
// mark-price stream. Reconnects with a small backoff until ctx is done.
func (c *Client) StreamMarkPrices(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.streamOnce(ctx); err != nil {
			logger.Error("mark price stream: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func (c *Client) streamOnce(ctx context.Context) error {
	conn, _, err := c.wsDialer.DialContext(ctx, c.streamURL+"/!markPrice@arr@1s", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var events []markPriceEvent
		if err := sonic.Unmarshal(raw, &events); err != nil {
			continue
		}

		now := time.Now()
		c.priceMu.Lock()
		if c.prices == nil {
			c.prices = make(map[string]markPrice, len(events))
		}
		for _, e := range events {
			px, err := decimal.NewFromString(e.Price)
			if err != nil || !px.IsPositive() {
				continue
			}
			c.prices[e.Symbol] = markPrice{px: px, at: now}
		}
		c.priceMu.Unlock()
	}
}
