// Package execution submits and cancels ladder orders against the exchange
// with retry, rate-limit cool-down and instrument normalization.
package execution

import (
	"context"
	"errors"
	"strings"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
)

// SubmitRequest is the minimal order contract the core needs. Price and Qty
// are pre-normalized decimal strings.
type SubmitRequest struct {
	Symbol string
	Side   string // "Buy" or "Sell"
	Price  string
	Qty    string
}

// SubmitResponse mirrors the exchange acknowledgement.
type SubmitResponse struct {
	Code    int
	Message string
	OrderID string
}

// CancelResponse mirrors the exchange cancel acknowledgement.
type CancelResponse struct {
	Code    int
	Message string
}

// ExchangeGateway is the boundary to the exchange. Implementations: the
// Bybit REST client and the scriptable mock used in tests.
type ExchangeGateway interface {
	SubmitOrder(ctx context.Context, req SubmitRequest) (SubmitResponse, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (CancelResponse, error)
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error)
	GetInstrumentConstraints(ctx context.Context, symbol string) (domain.InstrumentConstraints, error)
}

// IsRateLimit reports whether an exchange error indicates request
// throttling, either via the sentinel or the response message.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many")
}
