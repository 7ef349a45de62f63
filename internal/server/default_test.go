package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/recruit-sla/pkg/application"
	"github.com/iota-uz/recruit-sla/pkg/configuration"
	"github.com/iota-uz/recruit-sla/pkg/httpapi"
)

func newTestServer(t *testing.T, conf *configuration.Configuration) http.Handler {
	t.Helper()
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	app := application.New(&application.ApplicationOptions{Logger: logger})
	srv, err := Default(&DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
	})
	require.NoError(t, err)
	return srv.Router()
}

func TestDefault_NotFoundIsJSONEnvelope(t *testing.T) {
	h := newTestServer(t, &configuration.Configuration{RequestIDHeader: "X-Request-ID"})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "NOT_FOUND", env.Code)
	require.Equal(t, "abc", env.Meta["request_id"])
}

func TestDefault_RateLimit(t *testing.T) {
	conf := &configuration.Configuration{RequestIDHeader: "X-Request-ID"}
	conf.RateLimit.Enabled = true
	conf.RateLimit.Rate = "1-M"
	h := newTestServer(t, conf)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var env httpapi.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, "RATE_LIMITED", env.Code)
}

func TestDefault_InvalidRate(t *testing.T) {
	conf := &configuration.Configuration{}
	conf.RateLimit.Enabled = true
	conf.RateLimit.Rate = "lots"
	logger, _ := test.NewNullLogger()
	_, err := Default(&DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   application.New(&application.ApplicationOptions{Logger: logger}),
	})
	require.Error(t, err)
}
