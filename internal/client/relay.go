package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/AlexZinkM/exchange-json-rpc/internal/metrics"

	"github.com/tidwall/gjson"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const (
	acceptHeader = "application/vnd.core-api.v2+json"

	defaultRequestTimeout = 3 * time.Second
	defaultMaxAttempts    = 3
)

// Doer sends HTTP requests, *http.Client satisfies it
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PeerPicker selects the peer for one attempt
type PeerPicker interface {
	PickPeer(ctx context.Context) (Peer, error)
}

// Response is a parsed node answer of any status
type Response struct {
	Status int
	Body   []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Get reads a gjson path from the body
func (r *Response) Get(path string) gjson.Result {
	if r == nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(r.Body, path)
}

// Data is the "data" member of the body
func (r *Response) Data() gjson.Result {
	return r.Get("data")
}

// RelayOptions configures a Relay
type RelayOptions struct {
	Timeout     time.Duration
	MaxAttempts int
	RateLimit   int // requests per second, 0 is unlimited
}

// Relay sends node API requests, retrying each failed attempt on a newly picked peer
type Relay struct {
	peers   PeerPicker
	client  Doer
	opts    RelayOptions
	limiter ratelimit.Limiter
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewRelay creates a relay
func NewRelay(peers PeerPicker, client Doer, opts RelayOptions, log *zap.Logger, m *metrics.Metrics) *Relay {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}

	limiter := ratelimit.NewUnlimited()
	if opts.RateLimit > 0 {
		limiter = ratelimit.New(opts.RateLimit)
	}

	return &Relay{
		peers:   peers,
		client:  client,
		opts:    opts,
		limiter: limiter,
		log:     log,
		metrics: m,
	}
}

// NewHTTPClient returns the client used for node requests.
// Timeouts are applied per attempt through the request context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 8,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Get sends GET /api/{path}?{query}. A nil result means no peer answered.
func (r *Relay) Get(ctx context.Context, path string, query url.Values) *Response {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return r.send(ctx, http.MethodGet, path, nil)
}

// Post sends body as JSON to /api/{path}. A nil result means no peer answered.
func (r *Relay) Post(ctx context.Context, path string, body interface{}) *Response {
	raw, err := json.Marshal(body)
	if err != nil {
		r.log.Error("failed to encode request body", zap.String("path", path), zap.Error(err))
		return nil
	}
	return r.send(ctx, http.MethodPost, path, raw)
}

func (r *Relay) send(ctx context.Context, method, path string, body []byte) *Response {
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}

		resp, err := r.attempt(ctx, method, path, body)
		if err == nil {
			r.observe(method, "ok", attempt)
			return resp
		}

		r.log.Warn("relay attempt failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	r.log.Error("failed to find a responsive peer",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("attempts", r.opts.MaxAttempts))
	r.observe(method, "exhausted", r.opts.MaxAttempts)
	return nil
}

// attempt picks a peer and sends one request; both share the attempt timeout
func (r *Relay) attempt(ctx context.Context, method, path string, body []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	peer, err := r.peers.PickPeer(ctx)
	if err != nil {
		r.fail("peer")
		return nil, fmt.Errorf("failed to pick peer: %w", err)
	}

	r.limiter.Take()

	uri := fmt.Sprintf("http://%s/api/%s", peer.Address(), path)
	r.log.Info("sending request", zap.String("method", method), zap.String("uri", uri))

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		r.fail("request")
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.fail("transport")
		return nil, fmt.Errorf("request to %s failed: %w", peer.Address(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		r.fail("read")
		return nil, fmt.Errorf("failed to read response from %s: %w", peer.Address(), err)
	}
	if !gjson.ValidBytes(raw) {
		r.fail("decode")
		return nil, fmt.Errorf("invalid JSON from %s (status %d)", peer.Address(), resp.StatusCode)
	}

	return &Response{Status: resp.StatusCode, Body: raw}, nil
}

func (r *Relay) fail(reason string) {
	if r.metrics != nil {
		r.metrics.RelayFailures.WithLabelValues(reason).Inc()
	}
}

func (r *Relay) observe(method, outcome string, attempts int) {
	if r.metrics != nil {
		r.metrics.RelayRequests.WithLabelValues(method, outcome).Inc()
		r.metrics.RelayAttempts.Observe(float64(attempts))
	}
}
