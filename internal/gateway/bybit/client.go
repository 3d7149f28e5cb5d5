package bybit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"riskpilot/internal/config"
	"riskpilot/internal/logger"
	"riskpilot/internal/pkg/circuit"
	"riskpilot/internal/pkg/text"

	"github.com/tidwall/gjson"
)

// Client talks to the Bybit v5 REST API. Calls are never cancelled on
// latency alone; anything slower than the slow-call threshold is logged
// and left to finish.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	apiKey     string
	apiSecret  string
	recvWindow string
	slowCall   time.Duration
	breaker    *circuit.Breaker
}

var _ API = (*Client)(nil)

// NewClient constructs a Bybit client from configuration.
func NewClient(cfg config.BybitConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("bybit.base_url cannot be empty")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing bybit.base_url failed: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	recvWindow := cfg.RecvWindowMS
	if recvWindow <= 0 {
		recvWindow = 5000
	}
	slowCall := time.Duration(cfg.SlowCallMS) * time.Millisecond
	if slowCall <= 0 {
		slowCall = 500 * time.Millisecond
	}
	return &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     strings.TrimSpace(cfg.APIKey),
		apiSecret:  strings.TrimSpace(cfg.APISecret),
		recvWindow: strconv.Itoa(recvWindow),
		slowCall:   slowCall,
		breaker:    circuit.NewBreaker("bybit", 5, 30*time.Second),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

func (c *Client) GetTicker(ctx context.Context, symbol string) (Ticker, error) {
	q := url.Values{}
	q.Set("category", Category)
	q.Set("symbol", symbol)
	res, err := c.doGet(ctx, "/v5/market/tickers", q)
	if err != nil {
		return Ticker{}, err
	}
	return decodeTicker(res)
}

func (c *Client) GetInstrumentRules(ctx context.Context, symbol string) (InstrumentRules, error) {
	q := url.Values{}
	q.Set("category", Category)
	q.Set("symbol", symbol)
	res, err := c.doGet(ctx, "/v5/market/instruments-info", q)
	if err != nil {
		return InstrumentRules{}, err
	}
	return decodeInstrumentRules(res)
}

func (c *Client) GetWalletAccount(ctx context.Context) (WalletAccount, error) {
	q := url.Values{}
	q.Set("accountType", "UNIFIED")
	q.Set("coin", "USDT")
	res, err := c.doGet(ctx, "/v5/account/wallet-balance", q)
	if err != nil {
		return WalletAccount{}, err
	}
	return decodeWalletAccount(res)
}

func (c *Client) GetPositions(ctx context.Context, symbol string) ([]Position, error) {
	q := url.Values{}
	q.Set("category", Category)
	if symbol != "" {
		q.Set("symbol", symbol)
	} else {
		q.Set("settleCoin", "USDT")
	}
	res, err := c.doGet(ctx, "/v5/position/list", q)
	if err != nil {
		return nil, err
	}
	return decodePositions(res), nil
}

func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	q := url.Values{}
	q.Set("category", Category)
	if symbol != "" {
		q.Set("symbol", symbol)
	} else {
		q.Set("settleCoin", "USDT")
	}
	res, err := c.doGet(ctx, "/v5/order/realtime", q)
	if err != nil {
		return nil, err
	}
	return decodeOpenOrders(res), nil
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, buyLev, sellLev int) error {
	body := map[string]any{
		"category":     Category,
		"symbol":       symbol,
		"buyLeverage":  strconv.Itoa(buyLev),
		"sellLeverage": strconv.Itoa(sellLev),
	}
	_, err := c.doPost(ctx, "/v5/position/set-leverage", body)
	return err
}

func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	body := map[string]any{
		"category":  Category,
		"symbol":    req.Symbol,
		"side":      req.Side,
		"orderType": req.OrderType,
		"qty":       formatFloat(req.Qty),
	}
	if req.Price > 0 {
		body["price"] = formatFloat(req.Price)
	}
	if req.StopLoss > 0 {
		body["stopLoss"] = formatFloat(req.StopLoss)
	}
	if req.ReduceOnly {
		body["reduceOnly"] = true
	}
	if req.TimeInForce != "" {
		body["timeInForce"] = req.TimeInForce
	}
	if req.OrderLinkID != "" {
		body["orderLinkId"] = req.OrderLinkID
	}
	res, err := c.doPost(ctx, "/v5/order/create", body)
	if err != nil {
		return "", err
	}
	return res.Get("orderId").String(), nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) error {
	body := map[string]any{
		"category": Category,
		"symbol":   symbol,
		"orderId":  orderID,
	}
	_, err := c.doPost(ctx, "/v5/order/cancel", body)
	return err
}

func (c *Client) SetTradingStop(ctx context.Context, symbol string, stopLoss float64) error {
	body := map[string]any{
		"category":    Category,
		"symbol":      symbol,
		"stopLoss":    formatFloat(stopLoss),
		"slTriggerBy": "LastPrice",
		"positionIdx": 0,
	}
	_, err := c.doPost(ctx, "/v5/position/trading-stop", body)
	return err
}

func (c *Client) GetClosedPnL(ctx context.Context, startTime time.Time, limit int) ([]ClosedPnL, error) {
	if limit <= 0 {
		limit = 100
	}
	q := url.Values{}
	q.Set("category", Category)
	q.Set("startTime", strconv.FormatInt(startTime.UnixMilli(), 10))
	q.Set("limit", strconv.Itoa(limit))
	res, err := c.doGet(ctx, "/v5/position/closed-pnl", q)
	if err != nil {
		return nil, err
	}
	return decodeClosedPnL(res), nil
}

func (c *Client) GetExecutions(ctx context.Context, symbol string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 1
	}
	q := url.Values{}
	q.Set("category", Category)
	q.Set("symbol", symbol)
	q.Set("limit", strconv.Itoa(limit))
	res, err := c.doGet(ctx, "/v5/execution/list", q)
	if err != nil {
		return nil, err
	}
	return decodeExecutions(res), nil
}

func (c *Client) doGet(ctx context.Context, path string, query url.Values) (gjson.Result, error) {
	return c.doRequest(ctx, http.MethodGet, path, query, nil)
}

func (c *Client) doPost(ctx context.Context, path string, payload map[string]any) (gjson.Result, error) {
	return c.doRequest(ctx, http.MethodPost, path, nil, payload)
}

func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload map[string]any) (gjson.Result, error) {
	if c == nil || c.httpClient == nil {
		return gjson.Result{}, fmt.Errorf("bybit client not initialized")
	}
	if c.breaker != nil && !c.breaker.Allow() {
		return gjson.Result{}, fmt.Errorf("bybit %s %s: circuit open", method, path)
	}
	endpoint := *c.baseURL
	endpoint.Path = strings.TrimRight(endpoint.Path, "/") + path

	queryString := ""
	if len(query) > 0 {
		queryString = query.Encode()
		endpoint.RawQuery = queryString
	}

	var (
		body     io.Reader
		bodyJSON []byte
	)
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("marshaling request failed: %w", err)
		}
		bodyJSON = buf
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("building request failed: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.sign(req, queryString, bodyJSON)

	t0 := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(t0)
	if elapsed > c.slowCall {
		logger.Warnf("slow bybit call: %s %s took %s", method, path, elapsed.Round(time.Millisecond))
	}
	if err != nil {
		c.recordOutcome(false)
		return gjson.Result{}, fmt.Errorf("bybit %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordOutcome(false)
		return gjson.Result{}, fmt.Errorf("reading bybit response failed: %w", err)
	}
	// retCode rejections are healthy transport; only HTTP-level trouble
	// counts toward the breaker.
	c.recordOutcome(resp.StatusCode/100 == 2)
	if resp.StatusCode/100 != 2 {
		return gjson.Result{}, fmt.Errorf("bybit %s %s: status=%d body=%s", method, path, resp.StatusCode, text.Truncate(string(raw), 256))
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("bybit %s %s: malformed JSON response", method, path)
	}
	parsed := gjson.ParseBytes(raw)
	if code := parsed.Get("retCode").Int(); code != 0 {
		return gjson.Result{}, &APIError{Code: int(code), Msg: parsed.Get("retMsg").String()}
	}
	return parsed.Get("result"), nil
}

// sign applies the v5 HMAC scheme: SHA256 over
// timestamp + apiKey + recvWindow + (query string | JSON body).
func (c *Client) sign(req *http.Request, queryString string, body []byte) {
	if c.apiKey == "" || c.apiSecret == "" {
		return
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 10)
	payload := ts + c.apiKey + c.recvWindow + queryString + string(body)
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(payload))
	req.Header.Set("X-BAPI-API-KEY", c.apiKey)
	req.Header.Set("X-BAPI-TIMESTAMP", ts)
	req.Header.Set("X-BAPI-RECV-WINDOW", c.recvWindow)
	req.Header.Set("X-BAPI-SIGN", hex.EncodeToString(mac.Sum(nil)))
}

func (c *Client) recordOutcome(ok bool) {
	if c.breaker == nil {
		return
	}
	if ok {
		c.breaker.Success()
	} else {
		c.breaker.Failure()
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
