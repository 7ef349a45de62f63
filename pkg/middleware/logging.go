package middleware

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/recruit-sla/pkg/composables"
	"github.com/iota-uz/recruit-sla/pkg/constants"
	"github.com/iota-uz/recruit-sla/pkg/httpapi"
)

type LoggerOptions struct {
	RequestIDHeader string
	RealIPHeader    string
	// Repanic re-raises recovered panics after the 500 response is written.
	Repanic bool
}

type statusWriter struct {
	http.ResponseWriter
	statusCode    int
	statusWritten bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.statusWritten {
		w.statusCode = code
		w.statusWritten = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.statusWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *statusWriter) Status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}

func headerOr(r *http.Request, header, fallback string) string {
	if header != "" {
		if v := r.Header.Get(header); v != "" {
			return v
		}
	}
	return fallback
}

var tracer = otel.Tracer("recruit-sla/middleware")

// WithLogger attaches a request-scoped logrus entry and an otel span to the
// request context, logs start and completion, and turns panics into JSON 500s.
func WithLogger(logger *logrus.Logger, opts LoggerOptions) mux.MiddlewareFunc {
	if opts.RequestIDHeader == "" {
		opts.RequestIDHeader = "X-Request-Id"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := headerOr(r, opts.RequestIDHeader, uuid.NewString())
			ip := headerOr(r, opts.RealIPHeader, r.RemoteAddr)

			fieldsLogger := logger.WithFields(logrus.Fields{
				"request-id": requestID,
				"path":       r.URL.Path,
				"method":     r.Method,
			})
			fieldsLogger.WithFields(logrus.Fields{
				"ip":         ip,
				"user-agent": r.UserAgent(),
			}).Debug("request started")

			propagator := propagation.TraceContext{}
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, "http.request", trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", r.URL.Path),
				attribute.String("http.request_id", requestID),
				attribute.String("net.peer.ip", ip),
			))
			defer span.End()

			if sc := span.SpanContext(); sc.HasTraceID() {
				w.Header().Set("X-Trace-Id", sc.TraceID().String())
				fieldsLogger = fieldsLogger.WithField("trace-id", sc.TraceID().String())
			}
			w.Header().Set("X-Request-Id", requestID)

			ctx = composables.WithLogger(ctx, fieldsLogger)
			ctx = composables.WithRequestID(ctx, requestID)
			ctx = context.WithValue(ctx, constants.RequestStart, start)

			sw := &statusWriter{ResponseWriter: w}
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				fieldsLogger.WithFields(logrus.Fields{
					"panic":    recovered,
					"stack":    string(debug.Stack()),
					"duration": time.Since(start),
				}).Error("panic recovered in request handler")
				if !sw.statusWritten {
					_ = httpapi.WriteError(sw, http.StatusInternalServerError, requestID, "INTERNAL_SERVER_ERROR", "internal server error")
				}
				if opts.Repanic {
					panic(recovered)
				}
			}()

			next.ServeHTTP(sw, r.WithContext(ctx))

			status := sw.Status()
			duration := time.Since(start)
			span.SetAttributes(
				attribute.Int("http.status_code", status),
				attribute.Int64("http.request_duration_ms", duration.Milliseconds()),
			)
			entry := fieldsLogger.WithFields(logrus.Fields{
				"duration":    duration,
				"status-code": status,
			})
			if status >= http.StatusInternalServerError {
				entry.Warn("request completed")
				return
			}
			entry.Info("request completed")
		})
	}
}
