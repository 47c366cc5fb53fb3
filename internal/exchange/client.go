package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	restBaseURL   = "https://fapi.binance.com"
	streamBaseURL = "wss://fstream.binance.com/ws"
)

// Client talks to Binance USDT-M futures. All trading symbols are
// <asset><quote>, the quote asset is fixed per deployment.
type Client struct {
	http     *http.Client
	wsDialer *websocket.Dialer

	baseURL   string
	streamURL string
	apiKey    string
	apiSecret string
	quote     string

	priceMu sync.RWMutex
	prices  map[string]markPrice
}

type markPrice struct {
	px decimal.Decimal
	at time.Time
}

func NewClient(apiKey, apiSecret, quoteAsset string) *Client {
	return &Client{
		http:      &http.Client{Timeout: 10 * time.Second},
		wsDialer:  &websocket.Dialer{},
		baseURL:   restBaseURL,
		streamURL: streamBaseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		quote:     quoteAsset,
	}
}

// Symbol builds the full trading symbol for a base asset, e.g. BTC -> BTCUSDT.
func (c *Client) Symbol(asset string) string {
	return asset + c.quote
}

func (c *Client) sign(query string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(query))
	return hex.EncodeToString(h.Sum(nil))
}

// signedCall performs an authenticated request with the query-string HMAC
// Binance expects, decodes a successful body into out (when non-nil) and
// turns error payloads into *APIError.
func (c *Client) signedCall(ctx context.Context, method, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	params.Set("recvWindow", "5000")
	query := params.Encode()
	query += "&signature=" + c.sign(query)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query, nil)
	if err != nil {
		return fmt.Errorf("new request %s: %w", path, err)
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	return c.do(req, out)
}

func (c *Client) publicCall(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("new request %s: %w", path, err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		var apiErr APIError
		if err := sonic.Unmarshal(data, &apiErr); err == nil && apiErr.Code != 0 {
			return &apiErr
		}
		return fmt.Errorf("%s http %d: %s", req.URL.Path, resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w; RAW=%s", req.URL.Path, err, string(data))
	}
	return nil
}
