package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"signal_bot/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStopMarket OrderType = "STOP_MARKET"
)

// OrderRequest is one order submission. Price is required for LIMIT,
// TriggerPrice for STOP_MARKET, both ignored otherwise.
type OrderRequest struct {
	Symbol       string
	Side         models.Side
	Type         OrderType
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	TriggerPrice decimal.Decimal
	TimeInForce  string
}

type OrderAck struct {
	OrderID int64  `json:"orderId"`
	Status  string `json:"status"`
}

// SubmitOrder places one order. Price-crossing rejections surface as
// *APIError recognisable through IsImmediateTrigger.
func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", req.Quantity.String())
	params.Set("newClientOrderId", "sb-"+uuid.NewString())

	switch req.Type {
	case OrderTypeLimit:
		params.Set("price", req.Price.String())
		tif := req.TimeInForce
		if tif == "" {
			tif = "GTC"
		}
		params.Set("timeInForce", tif)
	case OrderTypeStopMarket:
		params.Set("stopPrice", req.TriggerPrice.String())
	}

	var ack OrderAck
	if err := c.signedCall(ctx, http.MethodPost, "/fapi/v1/order", params, &ack); err != nil {
		return OrderAck{}, fmt.Errorf("submit %s %s %s: %w", req.Symbol, req.Side, req.Type, err)
	}
	return ack, nil
}

// CancelOrder cancels one order. Cancelling an order the exchange no longer
// knows is not an error, that order is already terminal.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	err := c.signedCall(ctx, http.MethodDelete, "/fapi/v1/order", params, nil)
	if err != nil && !IsUnknownOrder(err) {
		return fmt.Errorf("cancel %s order %d: %w", symbol, orderID, err)
	}
	return nil
}

// OpenOrders snapshots every open order across all symbols. Only identity is
// needed by the reconciliation loop.
func (c *Client) OpenOrders(ctx context.Context) ([]models.OrderRef, error) {
	var payload []struct {
		Symbol  string `json:"symbol"`
		OrderID int64  `json:"orderId"`
	}
	if err := c.signedCall(ctx, http.MethodGet, "/fapi/v1/openOrders", nil, &payload); err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}

	refs := make([]models.OrderRef, 0, len(payload))
	for _, o := range payload {
		refs = append(refs, models.OrderRef{Symbol: o.Symbol, OrderID: o.OrderID})
	}
	return refs, nil
}
