package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/litfuse/litfuse/internal/circuit"
	literrors "github.com/litfuse/litfuse/internal/errors"
	"github.com/litfuse/litfuse/internal/ratelimit"
	"github.com/litfuse/litfuse/internal/telemetry"
)

const maxRetries = 3

// Deps bundles the shared infrastructure every adapter needs.
type Deps struct {
	HTTPClient *http.Client
	Limiters   *ratelimit.Registry
	Breakers   *circuit.Registry
}

// NewDeps creates adapter dependencies with sane HTTP defaults.
func NewDeps(limiters *ratelimit.Registry, breakers *circuit.Registry) Deps {
	return Deps{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Limiters:   limiters,
		Breakers:   breakers,
	}
}

// requester wraps HTTP access to one provider with rate limiting, circuit
// breaking, minimum inter-request spacing and retries.
type requester struct {
	key         string
	deps        Deps
	minInterval time.Duration
	headers     map[string]string

	mu          sync.Mutex
	lastRequest time.Time
}

func newRequester(key string, deps Deps, minInterval time.Duration) *requester {
	return &requester{
		key:         key,
		deps:        deps,
		minInterval: minInterval,
		headers:     map[string]string{},
	}
}

// setHeader attaches a default header to every request (API keys etc).
func (r *requester) setHeader(name, value string) {
	r.headers[name] = value
}

// pace enforces the adapter's minimum inter-request interval.
func (r *requester) pace(ctx context.Context) error {
	r.mu.Lock()
	wait := r.minInterval - time.Since(r.lastRequest)
	r.lastRequest = time.Now().Add(wait)
	r.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return literrors.WrapCancelled("pace", ctx.Err())
	case <-t.C:
		return nil
	}
}

// getJSON performs a GET against u and decodes the JSON body into out.
// Transient failures (network, 5xx, 429) are retried with exponential
// backoff; a Retry-After header overrides the schedule. Permanent failures
// are not retried. 404 surfaces as ErrNotFound.
func (r *requester) getJSON(ctx context.Context, op string, u string, out any) error {
	breaker := r.deps.Breakers.Get(r.key)

	operation := func() error {
		if !breaker.Allow() {
			telemetry.ProviderRequests.WithLabelValues(r.key, "transient").Inc()
			err := literrors.New(literrors.ErrorTypeTransient, op, r.key, literrors.ErrCircuitOpen).
				WithRetryAfter(breaker.RetryIn())
			// Fail fast: an open circuit should not consume retry budget.
			return backoff.Permanent(err)
		}

		if err := r.deps.Limiters.Acquire(ctx, r.key); err != nil {
			return backoff.Permanent(err)
		}
		if err := r.pace(ctx); err != nil {
			return backoff.Permanent(err)
		}

		err := r.doOnce(ctx, op, u, out)
		switch {
		case err == nil:
			breaker.RecordSuccess()
			telemetry.ProviderRequests.WithLabelValues(r.key, "ok").Inc()
			return nil
		case literrors.IsNotFound(err):
			// Not an upstream failure.
			breaker.RecordSuccess()
			telemetry.ProviderRequests.WithLabelValues(r.key, "not_found").Inc()
			return backoff.Permanent(err)
		case literrors.IsRetryable(err):
			breaker.RecordFailure(err)
			telemetry.ProviderRequests.WithLabelValues(r.key, "transient").Inc()
			if breaker.State() == circuit.StateOpen {
				telemetry.BreakerTrips.WithLabelValues(r.key).Inc()
			}
			if after, ok := literrors.RetryAfter(err); ok {
				r.sleep(ctx, after)
			}
			return err
		default:
			breaker.RecordFailure(err)
			telemetry.ProviderRequests.WithLabelValues(r.key, "permanent").Inc()
			return backoff.Permanent(err)
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.1
	bo.MaxElapsedTime = 0

	err := backoff.Retry(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
	if err != nil {
		log.Debug().Str("provider", r.key).Str("op", op).Err(err).Msg("Provider request failed")
	}
	return err
}

// doOnce executes a single HTTP round trip.
func (r *requester) doOnce(ctx context.Context, op, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return literrors.WrapPermanent(op, r.key, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "litfuse/1.0")
	for name, value := range r.headers {
		req.Header.Set(name, value)
	}

	start := time.Now()
	resp, err := r.deps.HTTPClient.Do(req)
	telemetry.ProviderLatency.WithLabelValues(r.key).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return literrors.WrapCancelled(op, ctx.Err())
		}
		return literrors.WrapTransient(op, r.key, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return literrors.WrapNotFound(op, r.key, fmt.Errorf("%s: %w", u, literrors.ErrNotFound))
	case resp.StatusCode == http.StatusTooManyRequests:
		pe := literrors.New(literrors.ErrorTypeTransient, op, r.key,
			fmt.Errorf("rate limited by provider")).WithStatusCode(resp.StatusCode)
		if after := parseRetryAfter(resp.Header.Get("Retry-After")); after > 0 {
			pe = pe.WithRetryAfter(after)
		}
		io.Copy(io.Discard, resp.Body)
		return pe
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return literrors.New(literrors.ErrorTypeTransient, op, r.key,
			fmt.Errorf("server error")).WithStatusCode(resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return literrors.New(literrors.ErrorTypePermanent, op, r.key,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))).
			WithStatusCode(resp.StatusCode)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return literrors.WrapPermanent(op, r.key, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (r *requester) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// buildURL joins a base endpoint with query parameters.
func buildURL(base string, params url.Values) string {
	if len(params) == 0 {
		return base
	}
	return base + "?" + params.Encode()
}
