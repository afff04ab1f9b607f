package upstream

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rsp2com/gateway/pkg/gwerrors"
)

// Client performs the actual network call; selector.go holds only the
// decision table, so tests can substitute a stub.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

// Selector sweeps (urls, variants) against an upstream, accepting the
// first response the decision table calls acceptable.
type Selector struct {
	HTTPClient    Client
	Limiter       *URLLimiter
	ProbeTimeout  time.Duration
	ProbeMaxBytes int
}

// NewSelector builds a Selector with the given HTTP client; Limiter may be
// nil to disable local per-URL throttling.
func NewSelector(client Client) *Selector {
	return &Selector{HTTPClient: client}
}

// Accepted is the result of a successful sweep: the response ready to
// stream or decode, and the variant body that produced it (useful for
// logging / debugging which fallback shape finally worked).
type Accepted struct {
	Response *http.Response
	Variant  map[string]interface{}
	URL      string
}

// Sweep tries each URL in order; for each URL, each variant in order,
// POSTing JSON with the caller-supplied headers. It returns the first
// acceptable response per the decision table in classify.go, or the first
// upstream error observed across the whole sweep once every URL is
// exhausted.
func (s *Selector) Sweep(ctx context.Context, urls []string, variants []map[string]interface{}, headers map[string]string, marshal func(map[string]interface{}) ([]byte, error)) (*Accepted, error) {
	var firstErr error

	for _, url := range urls {
		if s.Limiter != nil {
			if err := s.Limiter.Wait(ctx, url); err != nil {
				return nil, err
			}
		}

		accepted, err, hop := s.sweepVariants(ctx, url, variants, headers, marshal, &firstErr)
		if accepted != nil {
			return accepted, nil
		}
		if err != nil && !hop {
			return nil, err
		}
		// hop==true: continue to next URL even if err is non-nil (already
		// recorded into firstErr by sweepVariants).
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return nil, gwerrors.BadGateway("no upstream url produced an acceptable response")
}

func (s *Selector) sweepVariants(ctx context.Context, url string, variants []map[string]interface{}, headers map[string]string, marshal func(map[string]interface{}) ([]byte, error), firstErr *error) (*Accepted, error, bool) {
	for _, variant := range variants {
		body, err := marshal(variant)
		if err != nil {
			continue
		}

		resp, err := s.post(ctx, url, body, headers)
		if err != nil {
			if *firstErr == nil {
				*firstErr = err
			}
			continue // network error: try next variant (and eventually next URL)
		}

		contentType := resp.Header.Get("Content-Type")
		isSSE := strings.Contains(contentType, "text/event-stream")

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if !isSSE {
				return &Accepted{Response: resp, Variant: variant, URL: url}, nil, false
			}

			probe := ProbeEmptyStream(resp.Body, s.probeTimeout(), s.probeMaxBytes())
			resp.Body = io.NopCloser(probe.Reader)
			if !probe.Empty {
				return &Accepted{Response: resp, Variant: variant, URL: url}, nil, false
			}
			resp.Body.Close()

			if accepted := s.retryAfterEmptyStream(ctx, url, variant, headers, marshal); accepted != nil {
				return accepted, nil, false
			}
			if *firstErr == nil {
				*firstErr = gwerrors.BadGateway("empty sse stream from %s", url)
			}
			continue // empty SSE even after the JSON fallback retries: try next variant
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if IsRetryableBody(resp.StatusCode, respBody) {
			continue
		}

		upstreamErr := gwerrors.UpstreamError(resp.StatusCode, respBody)
		if *firstErr == nil {
			*firstErr = upstreamErr
		}
		if ShouldHopURL(resp.StatusCode) {
			return nil, upstreamErr, true
		}
		return nil, upstreamErr, false
	}
	return nil, nil, true
}

// retryAfterEmptyStream re-tries variant against url per the decision
// table's empty-SSE fallback: first with `accept: application/json` and
// `stream:false`, then with `stream` removed entirely. Either attempt that
// yields a non-empty, non-error response is accepted.
func (s *Selector) retryAfterEmptyStream(ctx context.Context, url string, variant map[string]interface{}, headers map[string]string, marshal func(map[string]interface{}) ([]byte, error)) *Accepted {
	attempt := func(mutated map[string]interface{}, jsonAccept bool) *Accepted {
		body, err := marshal(mutated)
		if err != nil {
			return nil
		}
		h := make(map[string]string, len(headers)+1)
		for k, v := range headers {
			h[k] = v
		}
		if jsonAccept {
			h["Accept"] = "application/json"
		}
		resp, err := s.post(ctx, url, body, h)
		if err != nil {
			return nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil
		}
		if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
			return &Accepted{Response: resp, Variant: mutated, URL: url}
		}
		probe := ProbeEmptyStream(resp.Body, s.probeTimeout(), s.probeMaxBytes())
		resp.Body = io.NopCloser(probe.Reader)
		if probe.Empty {
			resp.Body.Close()
			return nil
		}
		return &Accepted{Response: resp, Variant: mutated, URL: url}
	}

	streamFalse := cloneVariant(variant)
	streamFalse["stream"] = false
	if accepted := attempt(streamFalse, true); accepted != nil {
		return accepted
	}

	streamRemoved := cloneVariant(variant)
	delete(streamRemoved, "stream")
	return attempt(streamRemoved, false)
}

func cloneVariant(v map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

func (s *Selector) post(ctx context.Context, url string, body []byte, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return s.HTTPClient.Do(req)
}

func (s *Selector) probeTimeout() time.Duration {
	if s.ProbeTimeout > 0 {
		return s.ProbeTimeout
	}
	return DefaultProbeTimeout
}

func (s *Selector) probeMaxBytes() int {
	if s.ProbeMaxBytes > 0 {
		return s.ProbeMaxBytes
	}
	return DefaultProbeMaxBytes
}
