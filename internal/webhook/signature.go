package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Outbound request headers. Receivers recompute the signature from the
// timestamp header and the raw body to verify authenticity, and reject
// stale timestamps to prevent replay.
const (
	HeaderSignature  = "X-Complyd-Signature"
	HeaderTimestamp  = "X-Complyd-Timestamp"
	HeaderEventType  = "X-Complyd-Event"
	HeaderDeliveryID = "X-Complyd-Delivery"
)

// signatureVersion prefixes the hex digest so the scheme can evolve without
// breaking existing receivers.
const signatureVersion = "v1"

// Sign computes the delivery signature: HMAC-SHA256 over
// "<unix timestamp>.<payload>". The payload must be the exact bytes sent as
// the request body.
func Sign(secret string, timestamp time.Time, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp.Unix(), 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("%s=%s", signatureVersion, hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature checks a received signature in constant time. Exported for
// receiver-side use and tests.
func VerifySignature(secret string, timestamp time.Time, payload []byte, signature string) bool {
	expected := Sign(secret, timestamp, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
