package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
	"github.com/asterfi/0xLIQD-Bybit/internal/execution"
	"github.com/asterfi/0xLIQD-Bybit/internal/infra"
)

const (
	MainnetURL = "https://api.bybit.com"

	defaultRecvWindowMs = 5000
)

// Client implements execution.ExchangeGateway against the Bybit V5 REST API.
type Client struct {
	baseURL    string
	category   string
	signer     *Signer
	recvWindow int
	http       *http.Client
	limiter    *infra.RateLimiter
}

// NewClient creates a Bybit REST client.
func NewClient(baseURL, category, accessKey, secretKey string, recvWindowMs int) *Client {
	if baseURL == "" {
		baseURL = MainnetURL
	}
	if category == "" {
		category = "linear"
	}
	if recvWindowMs <= 0 {
		recvWindowMs = defaultRecvWindowMs
	}
	return &Client{
		baseURL:    baseURL,
		category:   category,
		signer:     NewSigner(accessKey, secretKey),
		recvWindow: recvWindowMs,
		http:       &http.Client{Timeout: 10 * time.Second},
		limiter:    infra.GetMarketLimiter(),
	}
}

// SubmitOrder places a limit order.
func (c *Client) SubmitOrder(ctx context.Context, req execution.SubmitRequest) (execution.SubmitResponse, error) {
	body := orderCreateRequest{
		Category:  c.category,
		Symbol:    req.Symbol,
		Side:      req.Side,
		OrderType: "Limit",
		Qty:       req.Qty,
		Price:     req.Price,
	}

	var resp orderCreateResponse
	if err := c.postSigned(ctx, "/v5/order/create", body, &resp); err != nil {
		return execution.SubmitResponse{}, err
	}
	if resp.RetCode == retCodeRateLimit {
		return execution.SubmitResponse{Code: resp.RetCode, Message: resp.RetMsg},
			fmt.Errorf("%w: %s", domain.ErrRateLimited, resp.RetMsg)
	}

	return execution.SubmitResponse{
		Code:    resp.RetCode,
		Message: resp.RetMsg,
		OrderID: resp.Result.OrderID,
	}, nil
}

// CancelOrder cancels a working order.
func (c *Client) CancelOrder(ctx context.Context, symbol, orderID string) (execution.CancelResponse, error) {
	body := orderCancelRequest{
		Category: c.category,
		Symbol:   symbol,
		OrderID:  orderID,
	}

	var resp restResponse
	if err := c.postSigned(ctx, "/v5/order/cancel", body, &resp); err != nil {
		return execution.CancelResponse{}, err
	}
	return execution.CancelResponse{Code: resp.RetCode, Message: resp.RetMsg}, nil
}

// GetCandles returns chronologically ordered OHLC bars.
func (c *Client) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	interval, ok := intervalFor[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe: %s", timeframe)
	}

	query := fmt.Sprintf("category=%s&symbol=%s&interval=%s&limit=%d", c.category, symbol, interval, limit)

	var resp klineResponse
	if err := c.getPublic(ctx, "/v5/market/kline?"+query, &resp); err != nil {
		return nil, err
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("kline query failed: code=%d msg=%s", resp.RetCode, resp.RetMsg)
	}

	// Bybit returns newest-first; the ATR computation wants oldest-first.
	list := resp.Result.List
	candles := make([]domain.Candle, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		row := list[i]
		if len(row) < 5 {
			continue
		}
		ts, _ := strconv.ParseInt(row[0], 10, 64)
		open, _ := strconv.ParseFloat(row[1], 64)
		high, _ := strconv.ParseFloat(row[2], 64)
		low, _ := strconv.ParseFloat(row[3], 64)
		close, _ := strconv.ParseFloat(row[4], 64)
		candles = append(candles, domain.Candle{
			OpenUnix: ts / 1000,
			Open:     open,
			High:     high,
			Low:      low,
			Close:    close,
		})
	}
	return candles, nil
}

// GetInstrumentConstraints returns the tick/step rounding rules for symbol.
func (c *Client) GetInstrumentConstraints(ctx context.Context, symbol string) (domain.InstrumentConstraints, error) {
	query := fmt.Sprintf("category=%s&symbol=%s", c.category, symbol)

	var resp instrumentsResponse
	if err := c.getPublic(ctx, "/v5/market/instruments-info?"+query, &resp); err != nil {
		return domain.InstrumentConstraints{}, err
	}
	if resp.RetCode != 0 || len(resp.Result.List) == 0 {
		return domain.InstrumentConstraints{}, fmt.Errorf("instrument query failed: code=%d msg=%s", resp.RetCode, resp.RetMsg)
	}

	info := resp.Result.List[0]
	minQty, _ := strconv.ParseFloat(info.LotSizeFilter.MinOrderQty, 64)
	step, _ := strconv.ParseFloat(info.LotSizeFilter.QtyStep, 64)
	tick, _ := strconv.ParseFloat(info.PriceFilter.TickSize, 64)

	return domain.InstrumentConstraints{
		Symbol:       info.Symbol,
		MinOrderSize: minQty,
		StepSize:     step,
		TickSize:     tick,
	}, nil
}

func (c *Client) postSigned(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	for k, v := range c.signer.RestHeaders(string(payload), c.recvWindow) {
		req.Header.Set(k, v)
	}

	return c.do(req, out)
}

func (c *Client) getPublic(ctx context.Context, pathWithQuery string, out any) error {
	c.limiter.Wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathWithQuery, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: HTTP 429", domain.ErrRateLimited)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
