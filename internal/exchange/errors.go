package exchange

import (
	"errors"
	"fmt"
)

// APIError is a structured Binance error payload.
type APIError struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance error code=%d msg=%s", e.Code, e.Msg)
}

const (
	codeOrderWouldTrigger  = -2021 // "Order would immediately trigger."
	codeUnknownOrder       = -2011 // cancel/query of an order that no longer exists
	codeMarginTypeNoChange = -4046 // "No need to change margin type."
)

// IsImmediateTrigger reports the price-crossing rejection: the submitted
// price or trigger would execute instantly against the current market.
func IsImmediateTrigger(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeOrderWouldTrigger
}

// IsUnknownOrder reports a cancel of an order the exchange no longer knows.
func IsUnknownOrder(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeUnknownOrder
}

func isMarginTypeNoChange(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == codeMarginTypeNoChange
}
