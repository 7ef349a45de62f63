// Package webhooks guards inbound webhook routes with body-size limits,
// signature verification and replay protection.
package webhooks

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/httpapi"
)

type SignatureVerifier interface {
	Verify(ctx context.Context, r *http.Request, body []byte) error
}

type ReplayProtector interface {
	Check(ctx context.Context, r *http.Request, body []byte) error
}

type Option func(*options)

type options struct {
	MaxBodyBytes int64
}

func WithMaxBodyBytes(n int64) Option {
	return func(o *options) {
		o.MaxBodyBytes = n
	}
}

var (
	ErrReplayDetected   = errors.New("webhook replay detected")
	ErrMissingID        = errors.New("missing webhook id")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	errBodyTooLarge     = errors.New("webhook payload too large")
)

// Bind mounts a guarded subrouter under prefix.
func Bind(router *mux.Router, prefix string, verifier SignatureVerifier, protector ReplayProtector, opts ...Option) *mux.Router {
	if router == nil {
		return nil
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "/webhooks"
	}
	sub := router.PathPrefix(prefix).Subrouter()
	sub.Use(Middleware(verifier, protector, opts...))
	return sub
}

func Middleware(verifier SignatureVerifier, protector ReplayProtector, opts ...Option) mux.MiddlewareFunc {
	resolved := &options{MaxBodyBytes: 1 << 20}
	for _, opt := range opts {
		if opt != nil {
			opt(resolved)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := composables.UseRequestID(r.Context())
			if verifier == nil || protector == nil {
				_ = httpapi.WriteError(w, http.StatusInternalServerError, requestID, "WEBHOOK_MISCONFIGURED", "webhook middleware misconfigured")
				return
			}

			body, err := readAndRestoreBody(r, resolved.MaxBodyBytes)
			if err != nil {
				if errors.Is(err, errBodyTooLarge) {
					_ = httpapi.WriteError(w, http.StatusRequestEntityTooLarge, requestID, "WEBHOOK_PAYLOAD_TOO_LARGE", err.Error())
					return
				}
				_ = httpapi.WriteError(w, http.StatusBadRequest, requestID, "WEBHOOK_BAD_REQUEST", "invalid webhook payload")
				return
			}

			if err := verifier.Verify(r.Context(), r, body); err != nil {
				_ = httpapi.WriteError(w, http.StatusUnauthorized, requestID, "WEBHOOK_UNAUTHORIZED", err.Error())
				return
			}

			if err := protector.Check(r.Context(), r, body); err != nil {
				switch {
				case errors.Is(err, ErrReplayDetected):
					_ = httpapi.WriteError(w, http.StatusConflict, requestID, "WEBHOOK_REPLAY", err.Error())
				case errors.Is(err, ErrMissingID):
					_ = httpapi.WriteError(w, http.StatusBadRequest, requestID, "WEBHOOK_BAD_REQUEST", err.Error())
				default:
					composables.UseLogger(r.Context()).WithError(err).Warn("webhook replay check failed")
					_ = httpapi.WriteError(w, http.StatusServiceUnavailable, requestID, "WEBHOOK_UNAVAILABLE", "replay check unavailable")
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func readAndRestoreBody(r *http.Request, maxBytes int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, nil
	}
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, errBodyTooLarge
	}

	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}
