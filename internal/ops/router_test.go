package ops

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/storefront-bot/internal/health"
	"github.com/Proton-105/storefront-bot/internal/lifecycle"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouter(t *testing.T) {
	checker := health.NewChecker(testLogger())
	var ledgerDown atomic.Bool
	checker.AddCheck("ledger", health.CheckFunc(func(context.Context) error {
		if ledgerDown.Load() {
			return errors.New("connection refused")
		}
		return nil
	}))

	probes := lifecycle.NewProbes(checker, testLogger())
	srv := httptest.NewServer(NewRouter(probes, testLogger()))
	t.Cleanup(srv.Close)

	get := func(path string) (int, probeResponse) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()

		var body probeResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	code, body := get("/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "up", body.Status)

	code, body = get("/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, health.StatusOK, body.Components["ledger"])

	ledgerDown.Store(true)
	code, body = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "connection refused", body.Components["ledger"])

	probes.Drain()
	code, _ = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
