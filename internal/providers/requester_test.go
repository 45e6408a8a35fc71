package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/litfuse/litfuse/internal/circuit"
	literrors "github.com/litfuse/litfuse/internal/errors"
	"github.com/litfuse/litfuse/internal/ratelimit"
)

func testDeps() Deps {
	return Deps{
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		Limiters:   ratelimit.NewRegistry(nil),
		Breakers:   circuit.NewRegistry(circuit.Config{FailureThreshold: 10, RecoveryTimeout: time.Minute}),
	}
}

func TestGetJSONDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"value": 42}`))
	}))
	defer srv.Close()

	r := newRequester("test", testDeps(), 0)
	var out struct {
		Value int `json:"value"`
	}
	require.NoError(t, r.getJSON(context.Background(), "op", srv.URL, &out))
	assert.Equal(t, 42, out.Value)
}

func TestGetJSONRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	r := newRequester("test", testDeps(), 0)
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, r.getJSON(context.Background(), "op", srv.URL, &out))
	assert.True(t, out.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSONDoesNotRetryPermanentFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	r := newRequester("test", testDeps(), 0)
	err := r.getJSON(context.Background(), "op", srv.URL, nil)
	require.Error(t, err)
	assert.False(t, literrors.IsRetryable(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSONNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := newRequester("test", testDeps(), 0)
	err := r.getJSON(context.Background(), "op", srv.URL, nil)
	require.Error(t, err)
	assert.True(t, literrors.IsNotFound(err))
}

func TestGetJSONOpenCircuitFailsFast(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	deps := testDeps()
	breaker := deps.Breakers.Get("test")
	for i := 0; i < 10; i++ {
		breaker.RecordFailure(errors.New("down"))
	}
	require.Equal(t, circuit.StateOpen, breaker.State())

	r := newRequester("test", deps, 0)
	start := time.Now()
	err := r.getJSON(context.Background(), "op", srv.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, literrors.ErrCircuitOpen)
	assert.True(t, literrors.IsRetryable(err))
	// Fail fast: no upstream call, no retry backoff.
	assert.Equal(t, int32(0), calls.Load())
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	after, ok := literrors.RetryAfter(err)
	require.True(t, ok)
	assert.Greater(t, after, time.Duration(0))
}

func TestGetJSONRateLimitedWithRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r := newRequester("test", testDeps(), 0)
	require.NoError(t, r.getJSON(context.Background(), "op", srv.URL, nil))
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSONCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	r := newRequester("test", testDeps(), 0)
	err := r.getJSON(ctx, "op", srv.URL, nil)
	require.Error(t, err)
}

func TestPaceEnforcesMinInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r := newRequester("test", testDeps(), 50*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, r.getJSON(ctx, "op", srv.URL, nil))
	require.NoError(t, r.getJSON(ctx, "op", srv.URL, nil))
	assert.GreaterOrEqual(t, time.Since(start), 45*time.Millisecond)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, parseRetryAfter("30"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	assert.Greater(t, parseRetryAfter(future), 50*time.Second)
}
