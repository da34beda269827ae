package bybit

import (
	"testing"

	"github.com/asterfi/0xLIQD-Bybit/internal/domain"
)

func TestToOrderUpdate(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		wantKind domain.OrderUpdateKind
		wantOK   bool
	}{
		{"Filled", "Filled", domain.OrderUpdateFill, true},
		{"Cancelled", "Cancelled", domain.OrderUpdateCancel, true},
		{"Deactivated", "Deactivated", domain.OrderUpdateCancel, true},
		{"New Skipped", "New", "", false},
		{"Partial Fill Skipped", "PartiallyFilled", "", false},
		{"Rejected Skipped", "Rejected", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			update, ok := toOrderUpdate(tt.status, "ord-1", "BTCUSDT", "99.5", "15", "1700000000123")
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if update.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", update.Kind, tt.wantKind)
			}
			if update.OrderID != "ord-1" || update.Symbol != "BTCUSDT" {
				t.Errorf("identity fields wrong: %+v", update)
			}
			if update.TsUnix != 1700000000 {
				t.Errorf("ts = %d, want seconds", update.TsUnix)
			}
			if tt.wantKind == domain.OrderUpdateFill {
				if update.FillPrice != 99.5 || update.FilledQty != 15 {
					t.Errorf("fill fields wrong: %+v", update)
				}
			}
		})
	}
}

func TestHandleMessageRouting(t *testing.T) {
	inbox := make(chan domain.OrderUpdate, 4)
	w := &OrderWorker{inbox: inbox}

	// Order topic with one fill and one skipped status.
	w.handleMessage([]byte(`{
		"topic": "order",
		"data": [
			{"orderId":"o1","symbol":"BTCUSDT","orderStatus":"Filled","avgPrice":"99","cumExecQty":"15","updatedTime":"1700000000000"},
			{"orderId":"o2","symbol":"BTCUSDT","orderStatus":"New","avgPrice":"","cumExecQty":"","updatedTime":"1700000000000"},
			{"orderId":"o3","symbol":"BTCUSDT","orderStatus":"Cancelled","avgPrice":"","cumExecQty":"","updatedTime":"1700000001000"}
		]
	}`))

	if got := len(inbox); got != 2 {
		t.Fatalf("inbox holds %d updates, want 2", got)
	}

	first := <-inbox
	if first.Kind != domain.OrderUpdateFill || first.OrderID != "o1" {
		t.Errorf("first update = %+v", first)
	}
	second := <-inbox
	if second.Kind != domain.OrderUpdateCancel || second.OrderID != "o3" {
		t.Errorf("second update = %+v", second)
	}
}

func TestHandleMessageIgnoresOtherTopics(t *testing.T) {
	inbox := make(chan domain.OrderUpdate, 1)
	w := &OrderWorker{inbox: inbox}

	w.handleMessage([]byte(`{"topic":"wallet","data":[]}`))
	w.handleMessage([]byte(`{"op":"pong"}`))
	w.handleMessage([]byte(`not json`))

	if len(inbox) != 0 {
		t.Errorf("inbox holds %d updates for non-order messages", len(inbox))
	}
}

func TestHandleMessageDropsWhenFull(t *testing.T) {
	inbox := make(chan domain.OrderUpdate, 1)
	w := &OrderWorker{inbox: inbox}

	msg := []byte(`{
		"topic": "order",
		"data": [
			{"orderId":"o1","symbol":"BTCUSDT","orderStatus":"Filled","avgPrice":"99","cumExecQty":"15","updatedTime":"1700000000000"},
			{"orderId":"o2","symbol":"BTCUSDT","orderStatus":"Filled","avgPrice":"98","cumExecQty":"20","updatedTime":"1700000000000"}
		]
	}`)

	// Must not block even though the inbox only holds one update.
	w.handleMessage(msg)

	if len(inbox) != 1 {
		t.Errorf("inbox holds %d updates, want 1 (overflow dropped)", len(inbox))
	}
}
