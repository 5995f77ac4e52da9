package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Recognized webhook event types. Anything else is a forward-compatible no-op.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentFailed      = "payment_intent.payment_failed"
	EventChargeSucceeded          = "charge.succeeded"
	EventChargeRefunded           = "charge.refunded"
)

// DefaultTolerance bounds the accepted age of a signed webhook timestamp.
const DefaultTolerance = 5 * time.Minute

// Event is the provider's webhook envelope.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type SessionObject struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
}

type PaymentIntentObject struct {
	ID string `json:"id"`
}

type ChargeObject struct {
	ID            string `json:"id"`
	PaymentIntent string `json:"payment_intent"`
	ReceiptURL    string `json:"receipt_url"`
	Refunded      bool   `json:"refunded"`
}

// VerifySignature checks the `t=<unix>,v1=<hex-hmac-sha256>` header against
// the payload. The MAC is computed over "<timestamp>.<raw-body>" keyed by the
// shared secret. A stale timestamp (outside tolerance) is rejected to limit
// replay of captured deliveries.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return fmt.Errorf("missing signature header")
	}

	var timestamp string
	var candidates []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if timestamp == "" || len(candidates) == 0 {
		return fmt.Errorf("malformed signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed signature timestamp")
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return fmt.Errorf("signature timestamp outside tolerance")
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, candidate := range candidates {
		decoded, err := hex.DecodeString(candidate)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}
	return fmt.Errorf("no matching v1 signature")
}

// SignPayload produces a valid signature header for payload; used by tests
// and local tooling.
func SignPayload(payload []byte, secret string, at time.Time) string {
	timestamp := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("malformed event payload: %w", err)
	}
	return &event, nil
}
