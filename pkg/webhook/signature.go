package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// computeHMACSHA256 computes HMAC-SHA256 signature
func computeHMACSHA256(body []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(h.Sum(nil)))
}

// VerifySignature verifies a delivery signature using HMAC-SHA256 with a
// timing-safe comparison. Consumers use it to authenticate deliveries.
func VerifySignature(body []byte, signature string, secret string) bool {
	expected := computeHMACSHA256(body, secret)
	return subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) == 1
}
