package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Signer handles Bybit V5 API authentication.
// Keys are stored as []byte to allow memory wiping.
type Signer struct {
	accessKey []byte
	secretKey []byte
}

// NewSigner creates a new signer.
func NewSigner(accessKey, secretKey string) *Signer {
	return &Signer{
		accessKey: []byte(accessKey),
		secretKey: []byte(secretKey),
	}
}

// Wipe clears the keys from memory.
func (s *Signer) Wipe() {
	if s == nil {
		return
	}
	wipeSlice(s.accessKey)
	wipeSlice(s.secretKey)
}

func wipeSlice(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// RestHeaders creates the signed headers for a V5 REST request.
// Pre-signature string: timestamp + apiKey + recvWindow + payload, where
// payload is the query string for GET and the JSON body for POST.
func (s *Signer) RestHeaders(payload string, recvWindowMs int) map[string]string {
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())
	recvWindow := fmt.Sprintf("%d", recvWindowMs)

	preSign := timestamp + string(s.accessKey) + recvWindow + payload
	signature := s.computeHmacSha256(preSign)

	return map[string]string{
		"X-BAPI-API-KEY":     string(s.accessKey),
		"X-BAPI-SIGN":        signature,
		"X-BAPI-TIMESTAMP":   timestamp,
		"X-BAPI-RECV-WINDOW": recvWindow,
		"Content-Type":       "application/json",
	}
}

// WSAuthArgs returns the args for the private WebSocket auth op:
// [apiKey, expires, hex(HMAC_SHA256("GET/realtime" + expires))].
func (s *Signer) WSAuthArgs() []any {
	expires := time.Now().Add(10 * time.Second).UnixMilli()
	signature := s.computeHmacSha256(fmt.Sprintf("GET/realtime%d", expires))
	return []any{string(s.accessKey), expires, signature}
}

func (s *Signer) computeHmacSha256(payload string) string {
	mac := hmac.New(sha256.New, s.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
