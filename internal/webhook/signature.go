package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Vapi-Signature"

// Sign returns the signature the voice platform sends for payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether header matches payload under secret. An
// optional "sha256=" prefix is accepted.
func VerifySignature(secret string, payload []byte, header string) bool {
	secret = strings.TrimSpace(secret)
	header = strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	if secret == "" || header == "" {
		return false
	}
	provided, err := hex.DecodeString(header)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), provided)
}
