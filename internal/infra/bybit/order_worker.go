package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"

	"github.com/gorilla/websocket"
)

const (
	privateWSURL = "wss://stream.bybit.com/v5/private"

	pingInterval = 20 * time.Second
	readTimeout  = 60 * time.Second
	maxRetries   = 10
)

// OrderWorker maintains the private order-stream WebSocket and converts
// fill/cancel reports into domain.OrderUpdate events for the engine inbox.
type OrderWorker struct {
	wsURL  string
	signer *Signer
	inbox  chan<- domain.OrderUpdate

	conn      *websocket.Conn
	mu        sync.RWMutex
	writeMu   sync.Mutex
	connected bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewOrderWorker creates the order stream worker.
func NewOrderWorker(wsURL, accessKey, secretKey string, inbox chan<- domain.OrderUpdate) *OrderWorker {
	if wsURL == "" {
		wsURL = privateWSURL
	}
	return &OrderWorker{
		wsURL:  wsURL,
		signer: NewSigner(accessKey, secretKey),
		inbox:  inbox,
	}
}

// Connect starts the WebSocket connection with automatic reconnection.
func (w *OrderWorker) Connect(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.connectionLoop(ctx)

	return nil
}

func (w *OrderWorker) connectionLoop(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Order stream panic recovered", slog.Any("panic", r))
		}
	}()

	retryCount := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Order stream connection loop stopped")
			return
		default:
		}

		err := w.connect(ctx)
		if err != nil {
			slog.Warn("Order stream connection failed",
				slog.Any("error", err),
				slog.Int("retry", retryCount))

			delay := time.Duration(1<<min(retryCount, 6)) * time.Second
			retryCount++
			if retryCount > maxRetries {
				retryCount = 0
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retryCount = 0
		w.readLoop(ctx)
	}
}

func (w *OrderWorker) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	w.mu.Lock()
	w.conn = conn
	w.connected = true
	w.mu.Unlock()

	if err := w.authenticate(); err != nil {
		w.closeConnection()
		return fmt.Errorf("auth failed: %w", err)
	}
	if err := w.subscribe(); err != nil {
		w.closeConnection()
		return fmt.Errorf("subscribe failed: %w", err)
	}

	go w.pingLoop(ctx)

	slog.Info("Order stream connected", slog.String("url", w.wsURL))
	return nil
}

func (w *OrderWorker) authenticate() error {
	req := wsRequest{Op: "auth", Args: w.signer.WSAuthArgs()}
	msg, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, msg)
}

func (w *OrderWorker) subscribe() error {
	req := wsRequest{Op: "subscribe", Args: []any{"order"}}
	msg, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return w.threadSafeWrite(websocket.TextMessage, msg)
}

func (w *OrderWorker) threadSafeWrite(messageType int, data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection is nil")
	}
	return conn.WriteMessage(messageType, data)
}

func (w *OrderWorker) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Order stream pingLoop panic recovered", slog.Any("panic", r))
		}
	}()

	ping, _ := json.Marshal(wsRequest{Op: "ping"})
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.threadSafeWrite(websocket.TextMessage, ping); err != nil {
				slog.Warn("Order stream ping failed", slog.Any("error", err))
			}
		}
	}
}

func (w *OrderWorker) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Order stream read error", slog.Any("error", err))
			}
			w.closeConnection()
			return
		}

		w.handleMessage(message)
	}
}

func (w *OrderWorker) handleMessage(message []byte) {
	var msg wsOrderMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Topic != "order" || len(msg.Data) == 0 {
		return
	}

	for _, data := range msg.Data {
		update, ok := toOrderUpdate(data.OrderStatus, data.OrderID, data.Symbol, data.AvgPrice, data.CumExecQty, data.UpdatedTime)
		if !ok {
			continue
		}

		if w.inbox != nil {
			select {
			case w.inbox <- update:
			default:
				slog.Warn("Engine inbox full, dropping order update",
					slog.String("order_id", update.OrderID))
			}
		}
	}
}

// toOrderUpdate maps an exchange order status to a domain event. Statuses
// that do not end a level's life (New, PartiallyFilled) are skipped; the
// ladder advances on complete fills only.
func toOrderUpdate(status, orderID, symbol, avgPrice, cumQty, updatedMs string) (domain.OrderUpdate, bool) {
	ts, _ := strconv.ParseInt(updatedMs, 10, 64)

	switch status {
	case "Filled":
		price, _ := strconv.ParseFloat(avgPrice, 64)
		qty, _ := strconv.ParseFloat(cumQty, 64)
		return domain.OrderUpdate{
			Kind:      domain.OrderUpdateFill,
			OrderID:   orderID,
			Symbol:    symbol,
			FillPrice: price,
			FilledQty: qty,
			TsUnix:    ts / 1000,
		}, true
	case "Cancelled", "Deactivated":
		return domain.OrderUpdate{
			Kind:    domain.OrderUpdateCancel,
			OrderID: orderID,
			Symbol:  symbol,
			TsUnix:  ts / 1000,
		}, true
	default:
		return domain.OrderUpdate{}, false
	}
}

func (w *OrderWorker) closeConnection() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.connected = false
}

// Disconnect closes the connection and stops the reconnect loop.
func (w *OrderWorker) Disconnect() {
	if w.cancel != nil {
		w.cancel()
	}
	w.closeConnection()
	w.wg.Wait()
	slog.Info("Order stream disconnected")
}

// IsConnected returns connection status.
func (w *OrderWorker) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
