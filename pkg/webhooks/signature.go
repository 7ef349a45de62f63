package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

const DefaultSignatureHeader = "X-Signature-256"

// HMACVerifier checks a "sha256=<hex>" HMAC of the raw body.
type HMACVerifier struct {
	secret []byte
	header string
}

func NewHMACVerifier(secret, header string) *HMACVerifier {
	if header == "" {
		header = DefaultSignatureHeader
	}
	return &HMACVerifier{secret: []byte(secret), header: header}
}

func (v *HMACVerifier) Verify(_ context.Context, r *http.Request, body []byte) error {
	got := strings.TrimSpace(r.Header.Get(v.header))
	if got == "" {
		return fmt.Errorf("%w: missing %s header", ErrInvalidSignature, v.header)
	}
	sig, err := hex.DecodeString(strings.TrimPrefix(got, "sha256="))
	if err != nil {
		return fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
	}
	if !hmac.Equal(sig, Sign(v.secret, body)) {
		return ErrInvalidSignature
	}
	return nil
}

func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

// SignatureHeaderValue is what a sender puts in the signature header.
func SignatureHeaderValue(secret, body []byte) string {
	return "sha256=" + hex.EncodeToString(Sign(secret, body))
}
