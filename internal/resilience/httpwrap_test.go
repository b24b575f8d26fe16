package resilience_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jlassimohamed-99/les-rois-des-bois-2-sub001/internal/resilience"
)

func TestHTTPClientRetriesServerErrorsWithBody(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, `{"ref":"r-1"}`, string(body))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"ord-1"}`))
	}))
	defer srv.Close()

	cl := resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 2, BaseBackoff: time.Millisecond, Timeout: time.Second}
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader(`{"ref":"r-1"}`))
	require.NoError(t, err)

	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, `{"id":"ord-1"}`, string(body))
	require.Equal(t, int32(2), calls.Load())
}

func TestHTTPClientReturnsFinalServerErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"code":"UPSTREAM"}}`))
	}))
	defer srv.Close()

	cl := resilience.HTTPClient{Client: srv.Client(), MaxAttempts: 1}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := cl.Do(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	require.Contains(t, string(body), "UPSTREAM")
}

func TestHTTPClientRejectsWhenBreakerOpen(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(1, 0.5, time.Hour)
	breaker.Report(context.Background(), false)

	cl := resilience.HTTPClient{Client: srv.Client(), Breaker: breaker}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = cl.Do(context.Background(), req)
	require.True(t, errors.Is(err, resilience.ErrOpenCircuit))
	require.Zero(t, calls.Load())
}
