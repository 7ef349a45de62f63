package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/recruit-sla/pkg/composables"
)

func newTestLogger() (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	log.SetLevel(logrus.InfoLevel)
	return log, buf
}

func TestWithLogger_PropagatesRequestID(t *testing.T) {
	log, buf := newTestLogger()
	var seen string
	r := mux.NewRouter()
	r.Use(WithLogger(log, LoggerOptions{}))
	r.HandleFunc("/ping", func(w http.ResponseWriter, r *http.Request) {
		seen = composables.UseRequestID(r.Context())
		composables.UseLogger(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "req-42", seen)
	require.Equal(t, "req-42", rec.Header().Get("X-Request-Id"))
	require.Contains(t, buf.String(), "request-id=req-42")
	require.Contains(t, buf.String(), "inside handler")
	require.Contains(t, buf.String(), "status-code=204")
}

func TestWithLogger_RecoversPanics(t *testing.T) {
	log, buf := newTestLogger()
	r := mux.NewRouter()
	r.Use(WithLogger(log, LoggerOptions{}))
	r.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INTERNAL_SERVER_ERROR", body["code"])
	require.NotEmpty(t, body["meta"].(map[string]any)["request_id"])
	require.Contains(t, buf.String(), "panic recovered")
}

func TestWithMetrics_PassesThrough(t *testing.T) {
	r := mux.NewRouter()
	r.Use(WithMetrics())
	r.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/items/1", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
}
