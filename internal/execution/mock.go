package execution

import (
	"context"
	"fmt"
	"sync"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
)

// MockGateway is a scriptable in-memory exchange used in tests and paper
// mode. Submissions succeed by default; tests can queue errors per call.
type MockGateway struct {
	mu sync.Mutex

	nextOrderID int
	Submitted   []SubmitRequest
	Cancelled   []string

	// SubmitErrs is consumed front-to-back, one per SubmitOrder call; a nil
	// entry means success.
	SubmitErrs []error

	// CancelErr fails every cancel when set.
	CancelErr error

	Candles        []domain.Candle
	CandlesErr     error
	Constraints    domain.InstrumentConstraints
	ConstraintsErr error
}

// NewMockGateway returns a mock with loose default constraints.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		Constraints: domain.InstrumentConstraints{
			MinOrderSize: 0.001,
			StepSize:     0.001,
			TickSize:     0.01,
		},
	}
}

func (m *MockGateway) SubmitOrder(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.SubmitErrs) > 0 {
		err := m.SubmitErrs[0]
		m.SubmitErrs = m.SubmitErrs[1:]
		if err != nil {
			return SubmitResponse{Code: -1, Message: err.Error()}, err
		}
	}

	m.nextOrderID++
	m.Submitted = append(m.Submitted, req)
	return SubmitResponse{OrderID: fmt.Sprintf("mock-%d", m.nextOrderID)}, nil
}

func (m *MockGateway) CancelOrder(ctx context.Context, symbol, orderID string) (CancelResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CancelErr != nil {
		return CancelResponse{Code: -1, Message: m.CancelErr.Error()}, m.CancelErr
	}
	m.Cancelled = append(m.Cancelled, orderID)
	return CancelResponse{}, nil
}

func (m *MockGateway) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]domain.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CandlesErr != nil {
		return nil, m.CandlesErr
	}
	if len(m.Candles) > limit {
		return m.Candles[len(m.Candles)-limit:], nil
	}
	return m.Candles, nil
}

func (m *MockGateway) GetInstrumentConstraints(ctx context.Context, symbol string) (domain.InstrumentConstraints, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ConstraintsErr != nil {
		return domain.InstrumentConstraints{}, m.ConstraintsErr
	}
	cons := m.Constraints
	cons.Symbol = symbol
	return cons, nil
}

// SubmitCount returns how many orders reached the exchange.
func (m *MockGateway) SubmitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Submitted)
}
