// Package gateway implements the authenticated HTTP client for the two
// upstream REST services: the billing panel (accounts, wallet, store,
// tickets) and the game server panel (server listing, power, console).
//
// Every upstream operation is a thin typed wrapper over one generic request
// primitive. The primitive normalizes all transport-level problems —
// connection errors, timeouts, non-2xx statuses — into ErrUnavailable, so
// callers distinguish exactly two failure classes:
//
//   - err != nil (always ErrUnavailable-wrapped): the upstream could not be
//     reached or did not answer usefully. Rendered to the chat user as a
//     generic "connection failed" message, never with transport detail.
//   - result.Success == false: the upstream answered and reported a domain
//     error. Its human-readable Message is surfaced verbatim when present.
//
// Requests are paced by a shared token bucket and carry a UUID X-Request-ID
// for upstream correlation.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/nexoplatform/nexo-bot/internal/metrics"
)

// ErrUnavailable is returned for every transport-class failure: unreachable
// upstream, timeout, non-2xx status, or an unparsable success body. Check
// with errors.Is.
var ErrUnavailable = errors.New("upstream unavailable")

// Service labels used for logging and metrics.
const (
	ServicePanel = "panel"
	ServicePtero = "ptero"
)

// Options configures a Client.
type Options struct {
	// PanelAPIURL is the billing panel API root (e.g. "https://panel.example/api").
	PanelAPIURL string
	// PteroAPIURL is the game server panel API root.
	PteroAPIURL string
	// Timeout bounds each upstream request end to end.
	Timeout time.Duration
	// RPS and Burst shape the outbound token bucket. RPS <= 0 disables pacing.
	RPS   float64
	Burst int
	// Logger receives one event per failed upstream request.
	Logger zerolog.Logger
}

// Client performs authenticated requests against both upstream panels.
// Safe for concurrent use.
type Client struct {
	panelURL string
	pteroURL string
	http     *http.Client
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// New constructs a Client from Options, applying defaults for zero values.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	burst := opts.Burst
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
		if burst < 1 {
			burst = 1
		}
	}
	return &Client{
		panelURL: opts.PanelAPIURL,
		pteroURL: opts.PteroAPIURL,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(limit, burst),
		log:      opts.Logger,
	}
}

// do executes one upstream request and returns the raw response body on
// HTTP 200/201. Everything else comes back as ErrUnavailable. The bearer
// token is attached when non-empty.
func (c *Client) do(ctx context.Context, service, method, rawURL, token string, body any, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
		}
		payload = bytes.NewReader(b)
	}

	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveGateway(service, "unavailable", time.Since(start))
		c.log.Warn().Err(err).Str("service", service).Str("method", method).Str("url", rawURL).
			Msg("upstream request failed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveGateway(service, "unavailable", time.Since(start))
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		metrics.ObserveGateway(service, "ok", time.Since(start))
		return data, nil
	default:
		metrics.ObserveGateway(service, fmt.Sprintf("http_%d", resp.StatusCode), time.Since(start))
		c.log.Warn().Int("status", resp.StatusCode).Str("service", service).
			Str("method", method).Str("url", rawURL).Msg("upstream returned non-success status")
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
}

// decode parses a success body into T, folding parse failures into
// ErrUnavailable (an unparsable 200 is as useless as no answer).
func decode[T any](data []byte) (*T, error) {
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return &out, nil
}
