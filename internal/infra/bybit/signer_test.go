package bybit

import (
	"testing"
)

func TestComputeHmacSha256(t *testing.T) {
	// Standard HMAC-SHA256 Test Vector
	key := "key"
	data := "The quick brown fox jumps over the lazy dog"

	expected := "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8"

	signer := NewSigner("dummy_access", key)

	result := signer.computeHmacSha256(data)

	if result != expected {
		t.Errorf("HMAC Mismatch. Expected %s, got %s", expected, result)
	}
}

func TestSigner_RestHeaders(t *testing.T) {
	signer := NewSigner("access", "secret")

	headers := signer.RestHeaders(`{"symbol":"BTCUSDT"}`, 5000)

	if headers["X-BAPI-API-KEY"] != "access" {
		t.Errorf("Expected X-BAPI-API-KEY to be 'access', got %s", headers["X-BAPI-API-KEY"])
	}
	if headers["X-BAPI-SIGN"] == "" {
		t.Error("X-BAPI-SIGN should not be empty")
	}
	if headers["X-BAPI-RECV-WINDOW"] != "5000" {
		t.Errorf("Expected recv window 5000, got %s", headers["X-BAPI-RECV-WINDOW"])
	}
	if len(headers["X-BAPI-TIMESTAMP"]) != 13 { // Milliseconds
		t.Errorf("Expected timestamp len 13, got %s", headers["X-BAPI-TIMESTAMP"])
	}
	if headers["Content-Type"] != "application/json" {
		t.Errorf("Unexpected content type %s", headers["Content-Type"])
	}
}

func TestSigner_WSAuthArgs(t *testing.T) {
	signer := NewSigner("access", "secret")

	args := signer.WSAuthArgs()
	if len(args) != 3 {
		t.Fatalf("Expected 3 auth args, got %d", len(args))
	}
	if args[0] != "access" {
		t.Errorf("Expected api key first, got %v", args[0])
	}
	if expires, ok := args[1].(int64); !ok || expires <= 0 {
		t.Errorf("Expected positive expires, got %v", args[1])
	}
	if sig, ok := args[2].(string); !ok || len(sig) != 64 {
		t.Errorf("Expected 64-char hex signature, got %v", args[2])
	}
}

func TestSigner_Wipe(t *testing.T) {
	signer := NewSigner("access", "secret")
	signer.Wipe()

	for _, b := range signer.secretKey {
		if b != 0 {
			t.Fatal("secret key not wiped")
		}
	}

	// Wiping a nil signer must not panic.
	var nilSigner *Signer
	nilSigner.Wipe()
}

func TestIntervalMapping(t *testing.T) {
	tests := []struct {
		timeframe string
		want      string
	}{
		{"1m", "1"},
		{"30m", "30"},
		{"1h", "60"},
		{"4h", "240"},
		{"1d", "D"},
		{"1w", "W"},
	}

	for _, tt := range tests {
		got, ok := intervalFor[tt.timeframe]
		if !ok || got != tt.want {
			t.Errorf("intervalFor[%s] = %s (%v), want %s", tt.timeframe, got, ok, tt.want)
		}
	}

	if _, ok := intervalFor["2h"]; ok {
		t.Error("unsupported timeframe 2h mapped")
	}
}
