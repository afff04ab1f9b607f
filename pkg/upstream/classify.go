// Package upstream sweeps a list of candidate URLs and request-body
// variants against a live upstream, classifying responses into accept,
// retry-this-variant, retry-next-url, or fatal.
package upstream

import "strings"

// retryableStatuses are the only HTTP statuses eligible for a variant
// retry; everything else either accepts or moves straight to URL-hop
// classification.
var retryableStatuses = map[int]bool{400: true, 422: true}

// nonRetryableMarkers are lowercased substrings whose presence in an error
// body means the failure is about the endpoint/credentials/model, not the
// request shape, so retrying a different body variant cannot help.
var nonRetryableMarkers = []string{
	"no static resource",
	"unknown route",
	"method not allowed",
	"not found",
	"invalid api key",
	"api key format",
	"missing api key",
	"unauthorized",
	"forbidden",
	"model_not_found",
	"does not exist",
	"unknown model",
}

// urlHopStatuses are the statuses that move the sweep to the next base URL
// rather than stopping immediately.
var urlHopStatuses = map[int]bool{400: true, 403: true, 404: true, 405: true, 422: true, 500: true, 502: true, 503: true}

// IsRetryableBody reports whether status/body warrant retrying the next
// body variant against the same URL. Only 400/422 are eligible; an empty
// body is retryable; a body containing any nonRetryableMarkers is not.
func IsRetryableBody(status int, body []byte) bool {
	if !retryableStatuses[status] {
		return false
	}
	if len(body) == 0 {
		return true
	}
	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "route") && strings.Contains(lower, "not found") {
		return false
	}
	for _, marker := range nonRetryableMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// ShouldHopURL reports whether status warrants moving to the next base URL
// rather than returning the error immediately.
func ShouldHopURL(status int) bool {
	return urlHopStatuses[status]
}
